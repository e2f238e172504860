package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-gpt-bot/internal/application"
	"telegram-gpt-bot/internal/config"
	"telegram-gpt-bot/internal/domain/ports/adapter"
	"telegram-gpt-bot/internal/flow"
	aiAdapters "telegram-gpt-bot/internal/infra/adapters/ai"
	tele "telegram-gpt-bot/internal/infra/adapters/telegram"
	pg "telegram-gpt-bot/internal/infra/db/postgres"
	"telegram-gpt-bot/internal/infra/i18n"
	"telegram-gpt-bot/internal/infra/logging"
	"telegram-gpt-bot/internal/infra/metrics"
	red "telegram-gpt-bot/internal/infra/redis"
	"telegram-gpt-bot/internal/infra/sched"
	"telegram-gpt-bot/internal/infra/web"
	"telegram-gpt-bot/internal/session"
	"telegram-gpt-bot/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient, cfg.RateLimit.PerChat, cfg.RateLimit.Window)

	// ---- i18n ----
	bundle, err := i18n.NewBundle(i18n.LocalesFS)
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}

	// ---- Sessions ----
	store := session.NewStore(cfg.Session.TTL)

	// ---- Repositories ----
	accountRepo := application.WithAdminOverride(pg.NewPostgresAccountRepo(pool), cfg.Bot.AdminIDs)
	tarifRepo := pg.NewPostgresTarifRepo(pool)
	codeRepo := pg.NewPostgresCodeRepo(pool)
	messageRepo := pg.NewPostgresMessageRepo(pool)
	statsRepo := pg.NewPostgresStatsRepo(pool)

	// ---- AI providers ----
	providers := map[string]adapter.ModelClient{}
	if cfg.AI.OpenAIKey != "" {
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		providers["openai"] = oa
	}
	if cfg.AI.GeminiKey != "" {
		ga, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		providers["gemini"] = ga
	}
	var ai adapter.ModelClient
	switch {
	case len(providers) > 0:
		ai = aiAdapters.NewMultiAdapter(aiAdapters.ResolveProvider(cfg.AI.DefaultModel, "openai"), providers)
	case cfg.Runtime.Dev:
		logger.Warn().Msg("no AI provider configured, using echo client")
		ai = aiAdapters.NewNoopClient()
	default:
		logger.Fatal().Msg("no AI provider configured: set ai.openai_key or ai.gemini_key")
	}
	ai = aiAdapters.NewLimitedClient(ai, cfg.AI.ConcurrentLimit)
	estimator := aiAdapters.NewTiktokenEstimator()

	// ---- Use cases ----
	quotaUC := usecase.NewQuotaUseCase(accountRepo, store, logger)
	chatUC := usecase.NewChatUseCase(messageRepo, accountRepo, store, ai, estimator, quotaUC, cfg.AI.DefaultModel, logger)

	// ---- Transport ----
	var bot *tele.RealBot
	var transport adapter.Transport
	if cfg.Bot.Token != "" {
		bot, err = tele.NewRealBot(&cfg.Bot, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		transport = bot
	} else if cfg.Runtime.Dev {
		logger.Warn().Msg("no bot token, using noop transport")
		transport = tele.NewNoopBot(logger)
	} else {
		logger.Fatal().Msg("bot.token is required")
	}

	// ---- Flows ----
	regFlow := flow.NewRegistration(store, accountRepo, codeRepo, transport, bundle, logger)
	tarifFlow := flow.NewTarif(store, tarifRepo, transport, bundle, logger)
	codeFlow := flow.NewCode(store, codeRepo, tarifRepo, transport, bundle, logger)
	settingsFlow := flow.NewSettings(store, accountRepo, codeRepo, tarifRepo, transport, bundle, logger)

	dispatcher := application.NewDispatcher(
		store, accountRepo, tarifRepo,
		regFlow, tarifFlow, codeFlow, settingsFlow,
		chatUC, rateLimiter, transport, bundle, logger,
	)

	if bot != nil {
		bot.SetDispatcher(dispatcher)
		go func() {
			if err := bot.StartPolling(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
	}

	// ---- Admin server ----
	srv := web.NewServer(fmt.Sprintf(":%d", cfg.Admin.Port), cfg.Admin.Secret, statsRepo, tarifRepo, codeRepo, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("admin server error")
		}
	}()

	// ---- Session sweeper ----
	sweeper := sched.NewSessionSweeper(cfg.Session.SweepInterval, store, logger)
	go func() { _ = sweeper.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
	if bot != nil {
		bot.StopPolling()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin server shutdown")
	}
}
