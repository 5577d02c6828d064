package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	log "log/slog"

	"aide/internal/app"
	"aide/internal/assistant"
	"aide/internal/config"
	"aide/internal/ipc"
	"aide/internal/proxy"
	"aide/internal/schedule"
	"aide/internal/session"
	"aide/internal/spool"
	"aide/internal/telegram"
	"aide/internal/wschat"
)

func main() {
	configPath := cli.StringP("config", "c", "aide.yaml", "Config file path")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address (overrides config)")
	logLevel := cli.StringP("log", "l", "", "Log level (overrides config)")
	translate := cli.Bool("translate", false, "Translate speech to English (whisper backend)")
	beamSize := cli.Int("beam-size", 0, "Whisper beam size, 0 for greedy decoding")
	initialPrompt := cli.String("initial-prompt", "", "Vocabulary hint passed to speech recognition")
	maxSeconds := cli.Int("max-seconds", 0, "Longest voice note transcribed, in seconds")
	cli.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Error("Failed to load config", "path", *configPath, "err", err)
		os.Exit(1)
	}
	if *proxyAddr != "" {
		cfg.Proxy.Socks = *proxyAddr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if cli.CommandLine.Changed("translate") {
		cfg.Speech.Translate = *translate
	}
	if cli.CommandLine.Changed("beam-size") {
		cfg.Speech.BeamSize = *beamSize
	}
	if cli.CommandLine.Changed("initial-prompt") {
		cfg.Speech.InitialPrompt = *initialPrompt
	}
	if cli.CommandLine.Changed("max-seconds") {
		cfg.Speech.MaxSeconds = *maxSeconds
	}

	log.SetDefault(app.NewLogger(cfg.Log))
	log.Info("Booting up")

	if err := cfg.Validate(); err != nil {
		log.Error("Invalid config", "err", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Error("Stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("Bye")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.Default()
	retry := app.RetryConfig(cfg.Retry)

	httpClient, err := proxy.NewHTTPClient(cfg.Proxy.Socks, cfg.Generation.Timeout)
	if err != nil {
		return err
	}
	log.Debug("Loaded proxy", "socks", cfg.Proxy.Socks)

	store, err := app.OpenStore(cfg.Session)
	if err != nil {
		return err
	}
	defer store.Close()
	session.StartSweeper(ctx, store, cfg.Session.SweepInterval, logger)
	log.Debug("Loaded session store", "backend", cfg.Session.Backend)

	voiceSpool, err := spool.New(cfg.Voice.SpoolDir, cfg.Voice.MaxBytes)
	if err != nil {
		return err
	}

	transcriber, closeTranscriber, err := app.NewTranscriber(cfg.Speech, httpClient, retry)
	if err != nil {
		return err
	}
	defer closeTranscriber()
	log.Debug("Loaded speech backend", "backend", cfg.Speech.Backend)

	gen := app.NewGenerator(cfg.Generation, httpClient, retry)
	log.Debug("Loaded generator", "provider", cfg.Generation.Provider, "model", cfg.Generation.Model)

	loc, err := time.LoadLocation(cfg.Calendar.TimeZone)
	if err != nil {
		return err
	}

	a := assistant.New(assistant.Deps{
		Sessions:    store,
		Spool:       voiceSpool,
		Transcriber: transcriber,
		Generator:   gen,
		Models:      gen,
		Mailer:      app.NewMailer(cfg.Mail, logger),
		Calendar:    app.NewCalendar(ctx, cfg.Calendar, httpClient, logger),
		Events:      schedule.NewExtractor(gen, loc, cfg.Calendar.EventDuration, logger),
		Logger:      logger,
		TurnTimeout: cfg.Assistant.TurnTimeout,
	})

	control, err := ipc.Listen(cfg.Control.Socket, ipc.Control(store, time.Now()), logger)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	errc := make(chan error, 3)
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Component failed", "component", name, "err", err)
				errc <- err
				stop()
			}
		}()
	}

	start("control", control.Serve)

	if cfg.Telegram.Token != "" {
		// Long polling holds the request open for PollTimeout.
		tgClient, err := proxy.NewHTTPClient(cfg.Proxy.Socks, cfg.Telegram.PollTimeout+15*time.Second)
		if err != nil {
			stop()
			wg.Wait()
			return err
		}
		api, err := telegram.Connect(cfg.Telegram.Token, tgClient)
		if err != nil {
			stop()
			wg.Wait()
			return err
		}
		log.Info("Telegram connected", "bot", api.Self.UserName)

		bot := telegram.NewBot(api, a, telegram.Options{
			PollTimeout:  cfg.Telegram.PollTimeout,
			AllowedUsers: cfg.Telegram.AllowedUsers,
			MaxBytes:     cfg.Voice.MaxBytes,
			HTTPClient:   httpClient,
			Logger:       logger.With("component", "telegram"),
		})
		start("telegram", bot.Run)
	}

	if cfg.Chat.Addr != "" {
		chat := wschat.NewServer(a, store, wschat.Options{
			Token:          cfg.Chat.Token,
			AllowedOrigins: cfg.Chat.AllowedOrigins,
			MaxFrameBytes:  cfg.Chat.MaxFrameBytes,
		}, logger.With("component", "wschat"))
		start("wschat", func(ctx context.Context) error {
			return chat.ListenAndServe(ctx, cfg.Chat.Addr)
		})
	}

	log.Info("Boot up - successful")
	<-ctx.Done()
	log.Info("Shutting down")
	wg.Wait()

	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}
