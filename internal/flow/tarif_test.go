//go:build !integration

package flow

import (
	"context"
	"testing"
	"time"

	"telegram-gpt-bot/internal/domain/model"
	"telegram-gpt-bot/internal/session"
)

func newTarifFlow(t *testing.T, tarifs *memTarifRepo, bot *fakeBot) (*Tarif, *session.Store) {
	t.Helper()
	store := session.NewStore(30 * time.Minute)
	return NewTarif(store, tarifs, bot, newTestBundle(t), newTestLogger()), store
}

func TestTarif_HappyPathWithTwoPrices(t *testing.T) {
	ctx := context.Background()
	tarifs := newMemTarifRepo()
	bot := newFakeBot()
	fl, store := newTarifFlow(t, tarifs, bot)

	const chatID = int64(200)
	const lang = model.LanguageEN

	if err := fl.Start(ctx, chatID, lang); err != nil {
		t.Fatalf("Start: %v", err)
	}

	texts := []string{"pro", "Pro plan", "For power users", "https://img.example/pro.png", "100000", "5000", "20"}
	for i, text := range texts {
		if err := fl.HandleText(ctx, chatID, lang, text); err != nil {
			t.Fatalf("text step %d: %v", i+1, err)
		}
	}
	d, _ := store.Tarif().Get(chatID)
	if d.State != session.TarifAwaitingDuration {
		t.Fatalf("state = %d, want %d", d.State, session.TarifAwaitingDuration)
	}

	buttons := []string{
		CBTarifDurationPrefix + "month",
		CBTarifTypePrefix + "limit",
		CBTarifCurrencyPrefix + "rub",
	}
	for i, data := range buttons {
		if err := fl.HandleButton(ctx, chatID, lang, data); err != nil {
			t.Fatalf("button step %d: %v", i+1, err)
		}
	}
	if err := fl.HandleText(ctx, chatID, lang, "990"); err != nil {
		t.Fatalf("price: %v", err)
	}

	// second price via the decision loop
	if err := fl.HandleButton(ctx, chatID, lang, CBTarifAddPrice); err != nil {
		t.Fatalf("add price: %v", err)
	}
	d, _ = store.Tarif().Get(chatID)
	if d.State != session.TarifAwaitingCurrency {
		t.Fatalf("state after add price = %d, want %d", d.State, session.TarifAwaitingCurrency)
	}
	fl.HandleButton(ctx, chatID, lang, CBTarifCurrencyPrefix+"usd")
	fl.HandleText(ctx, chatID, lang, "12")

	if err := fl.HandleButton(ctx, chatID, lang, CBTarifContinue); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if fl.Active(chatID) {
		t.Error("draft should be deleted after creation")
	}
	if _, ok := store.Prices().Get(chatID); ok {
		t.Error("price draft should be deleted after creation")
	}

	created, err := tarifs.FindByID(ctx, 1)
	if err != nil {
		t.Fatalf("tariff not persisted: %v", err)
	}
	if created.Name != "pro" || created.TotalLimit != 100000 || created.DailyLimit != 5000 || created.MaxContext != 20 {
		t.Errorf("unexpected tariff: %+v", created)
	}
	if created.Duration != model.DurationMonth {
		t.Errorf("duration = %v, want %v", created.Duration, model.DurationMonth)
	}
	prices, _ := tarifs.ListPrices(ctx, 1)
	if len(prices) != 2 {
		t.Fatalf("got %d prices, want 2", len(prices))
	}
	if prices[0].Currency != model.CurrencyRUB || prices[0].Value != 990 {
		t.Errorf("first price: %+v", prices[0])
	}
	if prices[1].Currency != model.CurrencyUSD || prices[1].Value != 12 {
		t.Errorf("second price: %+v", prices[1])
	}
}

func TestTarif_WrongInputNeverMutates(t *testing.T) {
	ctx := context.Background()
	bot := newFakeBot()
	fl, store := newTarifFlow(t, newMemTarifRepo(), bot)

	const chatID = int64(201)
	const lang = model.LanguageEN
	fl.Start(ctx, chatID, lang)
	for _, text := range []string{"pro", "Pro", "desc", "img"} {
		fl.HandleText(ctx, chatID, lang, text)
	}
	before, _ := store.Tarif().Get(chatID)
	if before.State != session.TarifAwaitingTotalLimit {
		t.Fatalf("state = %d, want %d", before.State, session.TarifAwaitingTotalLimit)
	}

	// non-numeric input at a numeric step
	if err := fl.HandleText(ctx, chatID, lang, "lots"); err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	after, _ := store.Tarif().Get(chatID)
	if *after != *before {
		t.Errorf("draft mutated by rejected input: %+v != %+v", after, before)
	}

	// advance to the button-only type step and send text
	fl.HandleText(ctx, chatID, lang, "1000")
	fl.HandleText(ctx, chatID, lang, "100")
	fl.HandleText(ctx, chatID, lang, "10")
	fl.HandleButton(ctx, chatID, lang, CBTarifDurationPrefix+"day")
	before, _ = store.Tarif().Get(chatID)
	if before.State != session.TarifAwaitingType {
		t.Fatalf("state = %d, want %d", before.State, session.TarifAwaitingType)
	}
	if err := fl.HandleText(ctx, chatID, lang, "limit"); err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	after, _ = store.Tarif().Get(chatID)
	if *after != *before {
		t.Errorf("button-only step mutated by text: %+v != %+v", after, before)
	}
}

func TestTarif_StaleButtonReRenders(t *testing.T) {
	ctx := context.Background()
	bot := newFakeBot()
	fl, store := newTarifFlow(t, newMemTarifRepo(), bot)

	const chatID = int64(202)
	const lang = model.LanguageEN
	fl.Start(ctx, chatID, lang)

	if err := fl.HandleButton(ctx, chatID, lang, CBTarifContinue); err != nil {
		t.Fatalf("HandleButton: %v", err)
	}
	d, _ := store.Tarif().Get(chatID)
	if d.State != session.TarifAwaitingName {
		t.Errorf("state = %d, want %d", d.State, session.TarifAwaitingName)
	}
}

func TestTarif_DurationAcceptsDayCount(t *testing.T) {
	ctx := context.Background()
	tarifs := newMemTarifRepo()
	fl, store := newTarifFlow(t, tarifs, newFakeBot())

	const chatID = int64(203)
	const lang = model.LanguageRU
	fl.Start(ctx, chatID, lang)
	for _, text := range []string{"mini", "Mini", "d", "i", "10", "5", "3", "7"} {
		fl.HandleText(ctx, chatID, lang, text)
	}
	d, _ := store.Tarif().Get(chatID)
	if d.State != session.TarifAwaitingType {
		t.Fatalf("state = %d, want %d", d.State, session.TarifAwaitingType)
	}
	if d.Duration != 7*24*time.Hour {
		t.Errorf("duration = %v, want %v", d.Duration, 7*24*time.Hour)
	}
}
