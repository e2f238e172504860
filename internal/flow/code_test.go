//go:build !integration

package flow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"telegram-gpt-bot/internal/domain/model"
	"telegram-gpt-bot/internal/session"
)

func newCodeFlow(t *testing.T, codes *memCodeRepo, tarifs *memTarifRepo, bot *fakeBot) (*Code, *session.Store) {
	t.Helper()
	store := session.NewStore(30 * time.Minute)
	return NewCode(store, codes, tarifs, bot, newTestBundle(t), newTestLogger()), store
}

func seedTarif(t *testing.T, tarifs *memTarifRepo) *model.Tarif {
	t.Helper()
	tarif, err := model.NewTarif("pro", "Pro", "desc", "", 1000, 100, 10, model.DurationMonth, model.TarifTypeLimit)
	if err != nil {
		t.Fatalf("NewTarif: %v", err)
	}
	created, err := tarifs.Create(context.Background(), tarif)
	if err != nil {
		t.Fatalf("seed tarif: %v", err)
	}
	return created
}

func TestCode_HappyPath(t *testing.T) {
	ctx := context.Background()
	codes := newMemCodeRepo()
	tarifs := newMemTarifRepo()
	bot := newFakeBot()
	fl, store := newCodeFlow(t, codes, tarifs, bot)
	tarif := seedTarif(t, tarifs)

	const chatID = int64(300)
	const lang = model.LanguageEN

	if err := fl.Start(ctx, chatID, lang); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fl.HandleText(ctx, chatID, lang, "SUMMER")
	fl.HandleText(ctx, chatID, lang, "25")

	d, _ := store.Code().Get(chatID)
	if d.State != session.CodeAwaitingTarif {
		t.Fatalf("state = %d, want %d", d.State, session.CodeAwaitingTarif)
	}
	// the tariff keyboard must carry the seeded tariff
	last := bot.last()
	if len(last.Rows) != 1 || last.Rows[0][0].Data != fmt.Sprintf("code_tarif_%s_%d", tarif.Name, tarif.ID) {
		t.Fatalf("unexpected tariff keyboard: %+v", last.Rows)
	}

	fl.HandleButton(ctx, chatID, lang, last.Rows[0][0].Data)
	if err := fl.HandleButton(ctx, chatID, lang, CBCodeConfirm); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if fl.Active(chatID) {
		t.Error("draft should be deleted after creation")
	}
	created, err := codes.FindByValue(ctx, "SUMMER")
	if err != nil {
		t.Fatalf("code not persisted: %v", err)
	}
	if created.UsageLimit != 25 || created.TarifID != tarif.ID {
		t.Errorf("unexpected code: %+v", created)
	}
}

func TestCode_NonNumericLimitReRenders(t *testing.T) {
	ctx := context.Background()
	fl, store := newCodeFlow(t, newMemCodeRepo(), newMemTarifRepo(), newFakeBot())

	const chatID = int64(301)
	const lang = model.LanguageRU
	fl.Start(ctx, chatID, lang)
	fl.HandleText(ctx, chatID, lang, "WINTER")

	if err := fl.HandleText(ctx, chatID, lang, "many"); err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	d, _ := store.Code().Get(chatID)
	if d.State != session.CodeAwaitingLimit {
		t.Errorf("state = %d, want %d", d.State, session.CodeAwaitingLimit)
	}
	if d.UsageLimit != 1 {
		t.Errorf("usage limit mutated to %d", d.UsageLimit)
	}
}

func TestCode_ResetRestarts(t *testing.T) {
	ctx := context.Background()
	tarifs := newMemTarifRepo()
	fl, store := newCodeFlow(t, newMemCodeRepo(), tarifs, newFakeBot())
	seedTarif(t, tarifs)

	const chatID = int64(302)
	const lang = model.LanguageEN
	fl.Start(ctx, chatID, lang)
	fl.HandleText(ctx, chatID, lang, "SPRING")
	fl.HandleText(ctx, chatID, lang, "3")

	if err := fl.HandleButton(ctx, chatID, lang, CBCodeReset); err != nil {
		t.Fatalf("reset: %v", err)
	}
	d, ok := store.Code().Get(chatID)
	if !ok {
		t.Fatal("expected a fresh draft after reset")
	}
	if d.State != session.CodeAwaitingValue || d.Value != "" {
		t.Errorf("draft not reset: %+v", d)
	}
}
