package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"

	"github.com/zey-2/tg-prog-foundation-bot/internal/bot"
	"github.com/zey-2/tg-prog-foundation-bot/internal/config"
	"github.com/zey-2/tg-prog-foundation-bot/internal/course"
	"github.com/zey-2/tg-prog-foundation-bot/internal/httpapi"
	"github.com/zey-2/tg-prog-foundation-bot/internal/reminder"
	"github.com/zey-2/tg-prog-foundation-bot/internal/sched"
	"github.com/zey-2/tg-prog-foundation-bot/internal/source"
	"github.com/zey-2/tg-prog-foundation-bot/internal/store"
	"github.com/zey-2/tg-prog-foundation-bot/internal/transport/telegram"
	"github.com/zey-2/tg-prog-foundation-bot/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml")
	flag.Parse()

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	if err := run(cfgPath); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logxConfig(cfg))
	defer logSvc.Close()
	log = log.With(logx.String("comp", "main"))

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	// Course data is load-once: a broken file must fail startup, not fire
	// half-armed later.
	name, content, err := source.Load(ctx, sourceConfig(cfg), log)
	if err != nil {
		return fmt.Errorf("load course source: %w", err)
	}
	c, err := course.Parse(content, course.DetectHint(name, content), loc)
	if err != nil {
		return fmt.Errorf("parse course %q: %w", name, err)
	}
	idx := course.BuildIndex(c.Sessions, log)
	log.Info("course loaded",
		logx.String("title", c.Title),
		logx.Int("sessions", len(c.Sessions)),
		logx.String("source", name),
	)

	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return err
	}
	reg, err := store.Open(store.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		DSN:         cfg.Storage.DSN,
		BusyTimeout: busy,
	}, log)
	if err != nil {
		return fmt.Errorf("open subscriber store: %w", err)
	}
	defer reg.Close()

	scheduler := sched.New(sched.Config{Workers: cfg.Reminders.Workers}, loc, log)
	scheduler.Start(ctx)
	defer scheduler.Stop(context.Background())

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("telegram adapter: %w", err)
	}

	sendTimeout, err := config.ParseDurationOrDefault("reminders.send_timeout", cfg.Reminders.SendTimeout, 10*time.Second)
	if err != nil {
		return err
	}
	rem := reminder.New(reminder.Config{
		SendTimeout: sendTimeout,
		RatePerSec:  cfg.Reminders.RatePerSec,
		DryRun:      cfg.DryRun,
	}, c, idx, reg, adapter, scheduler, telegram.LinkMarkup, loc, log)

	if _, err := rem.Arm(time.Now().In(loc)); err != nil {
		return fmt.Errorf("arm reminders: %w", err)
	}

	app := bot.New(bot.Options{
		Course:       c,
		Registry:     reg,
		Reminders:    rem,
		Adapter:      adapter,
		Markup:       telegram.LinkMarkup,
		OwnerUserIDs: cfg.Telegram.OwnerUserIDs,
		Location:     loc,
		SendTimeout:  sendTimeout,
		Log:          log,
	})
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start bot: %w", err)
	}

	if cfg.Digest.Enabled {
		if err := app.RegisterDigest(scheduler, cfg.Digest.At); err != nil {
			return fmt.Errorf("register digest: %w", err)
		}
	}

	var api *httpapi.Server
	if cfg.HTTP.Enabled {
		ttl, err := config.ParseDurationOrDefault("http.cache_ttl", cfg.HTTP.CacheTTL, 30*time.Second)
		if err != nil {
			return err
		}
		api = httpapi.New(httpapi.Config{
			Addr:           cfg.HTTP.Addr,
			CacheTTL:       ttl,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
		}, c, loc, scheduler, log)
		api.Start()
	}

	// Hot reload covers runtime-tunable settings only; the course itself
	// stays as loaded at startup.
	if err := config.Watch(ctx, cfgPath, log, func(next *config.Config) {
		logSvc.Apply(logxConfig(next))
		rem.SetDryRun(next.DryRun)
	}); err != nil {
		log.Warn("config watch unavailable", logx.Err(err))
	}

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		log.Debug("sd_notify ready sent")
	}
	log.Info("bot running", logx.String("timezone", loc.String()), logx.Bool("dry_run", cfg.DryRun))

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if api != nil {
		if err := api.Stop(stopCtx); err != nil {
			log.Warn("http api shutdown", logx.Err(err))
		}
	}
	if err := app.Stop(stopCtx); err != nil {
		log.Warn("bot shutdown", logx.Err(err))
	}
	return nil
}

func logxConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func sourceConfig(cfg *config.Config) source.Config {
	sc := source.Config{Path: cfg.Course.Path}
	if m := cfg.Course.MinIO; m != nil {
		sc.MinIO = &source.MinIOConfig{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			UseSSL:    m.UseSSL,
			Bucket:    m.Bucket,
			Object:    m.Object,
		}
	}
	return sc
}
