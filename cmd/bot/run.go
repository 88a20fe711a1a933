package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"gosha-bot/internal/adminhttp"
	"gosha-bot/internal/analytics"
	"gosha-bot/internal/auth"
	"gosha-bot/internal/config"
	"gosha-bot/internal/history"
	"gosha-bot/internal/llm"
	"gosha-bot/internal/logging"
	"gosha-bot/internal/ocr"
	"gosha-bot/internal/persona"
	"gosha-bot/internal/prompt"
	"gosha-bot/internal/scheduler"
	"gosha-bot/internal/storage"
	"gosha-bot/internal/telegram"
)

func runBot(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, ServiceName: "gosha-bot"})
	l := logging.L()

	store, err := history.Open(ctx, storeOptions(&cfg.Storage))
	if err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			l.Error().Err(err).Msg("close conversation store")
		}
	}()

	p, err := persona.Load(cfg.PersonaFilePath)
	if err != nil {
		return fmt.Errorf("load persona: %w", err)
	}
	profiles, err := persona.LoadProfiles(cfg.ProfilesFilePath)
	if err != nil {
		l.Warn().Err(err).Str("path", cfg.ProfilesFilePath).Msg("user profiles not loaded")
		profiles = persona.Profiles{}
	}

	adminRepo, err := auth.NewFileRepository(cfg.AdminsFilePath)
	if err != nil {
		return fmt.Errorf("open admins file: %w", err)
	}
	admins, err := auth.NewWithRepo(adminRepo, cfg.Admins())
	if err != nil {
		return fmt.Errorf("load admins: %w", err)
	}

	var recorder storage.Recorder = storage.Nop{}
	if fr, err := storage.NewFileRecorder(cfg.JournalFilePath); err != nil {
		l.Warn().Err(err).Str("path", cfg.JournalFilePath).Msg("interaction journal disabled")
	} else {
		recorder = fr
	}

	client, err := llm.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("init llm client: %w", err)
	}
	gateway := llm.NewGateway(client, llm.GatewayOptions{
		MaxInflight:    cfg.GatewayMaxInflight,
		QueueTimeout:   cfg.GatewayQueueTimeout,
		RequestTimeout: cfg.GatewayRequestTimeout,
	})

	extractor := ocr.NewExtractor(ocr.TesseractCLI{
		Binary:    cfg.TesseractPath,
		Languages: cfg.OCRLanguages,
	}, cfg.OCRTimeout)

	bot, err := telegram.New(cfg.TelegramBotToken, telegram.Deps{
		Gateway:    gateway,
		Classifier: llm.NewClassifier(gateway),
		Store:      store,
		Assembler: prompt.Assembler{
			Instruction:     p.Instruction,
			HistoryLimit:    cfg.HistoryLimit,
			BudgetChars:     cfg.BudgetChars(),
			SystemMaxChars:  cfg.SystemMaxChars,
			MessageMaxChars: cfg.MessageMaxChars,
			MinSystemChars:  cfg.MinSystemChars,
			Truncation:      prompt.ParseTruncation(cfg.TruncationPolicy),
		},
		Persona:  p,
		Profiles: profiles,
		Admins:   admins,
		Recorder: recorder,
		OCR:      extractor,
	}, telegram.Options{
		PrivateChatMode: cfg.PrivateChatMode,
		ForgetScope:     cfg.ForgetScope,
		Workers:         cfg.Workers,
		MaxPhotoBytes:   cfg.MaxPhotoBytes,
		MathRenderURL:   cfg.MathRenderURL,
	})
	if err != nil {
		return fmt.Errorf("init telegram bot: %w", err)
	}

	l.Info().
		Str("provider", string(cfg.LLMProvider)).
		Str("model", cfg.Model).
		Str("store", cfg.StoreDriver).
		Int("profiles", len(profiles)).
		Msg("bot configured")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(gctx) })
	g.Go(func() error {
		if err := persona.Watch(gctx, cfg.PersonaFilePath, bot.SetPersona); err != nil {
			l.Warn().Err(err).Msg("persona hot reload disabled")
		}
		return nil
	})
	if cfg.AdminHTTPAddr != "" {
		h := adminhttp.NewHandler(store, recorder, admins, cfg.AdminHTTPToken)
		g.Go(func() error { return adminhttp.Serve(gctx, cfg.AdminHTTPAddr, h) })
	}
	if cfg.ReportChatID != 0 {
		sched := scheduler.New(cfg.ReportCron)
		sched.SetReportFunction(func(context.Context) error {
			events, err := recorder.LoadInteractions()
			if err != nil {
				return err
			}
			stats := analytics.AnalyzeDailyLogs(events, time.Now().UTC())
			return bot.Notify(cfg.ReportChatID, stats.GenerateReportSummary())
		})
		g.Go(func() error { return sched.Run(gctx) })
	}

	err = g.Wait()
	l.Info().Msg("bot stopped")
	return err
}
