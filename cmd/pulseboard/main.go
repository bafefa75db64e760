package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"pulseboard/internal/board"
	"pulseboard/internal/config"
	"pulseboard/internal/driver"
	"pulseboard/internal/eventbus"
	"pulseboard/internal/history"
	"pulseboard/internal/sched"
	"pulseboard/internal/source"
	logx "pulseboard/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./pulseboard.yaml", "path to config yaml/json")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	boot := logx.NewConsole("info")
	mgr := config.NewManager(cfgPath, boot)
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, logCloser := logx.New(logx.Config{
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console || cfg.Log.File == "",
		File:    logx.FileConfig{Enabled: cfg.Log.File != "", Path: cfg.Log.File},
	})
	if logCloser != nil {
		defer logCloser.Close()
	}

	store, err := history.Open(history.Config{
		Enabled:     cfg.History.Enabled,
		Path:        cfg.History.Path,
		Retention:   cfg.History.Retention.Std(),
		BusyTimeout: cfg.History.BusyTimeout.Or(500 * time.Millisecond),
	}, log.With(logx.String("component", "history")))
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	brd := board.New(os.Stdout, cfg.Board.Order, log.With(logx.String("component", "board")))

	bus := eventbus.New()
	opts := []sched.Option{sched.WithBus(bus)}
	if store != nil {
		opts = append(opts, sched.WithRecorder(store))
	}
	sch := sched.New(sched.Config{
		BatchWindow:       cfg.Scheduler.BatchWindow.Or(sched.DefaultBatchWindow),
		MinUpdateInterval: cfg.Scheduler.MinUpdateInterval.Or(sched.DefaultMinUpdateInterval),
	}, brd, log.With(logx.String("component", "sched")), opts...)

	// Each tick advances the scheduler, then runs the board's own periodic
	// cycle. The cycle is what SetIgnoreUpdate suppresses mid-batch.
	drv := driver.New(driver.Config{
		TickEvery: cfg.Scheduler.TickEvery.Or(time.Millisecond),
		QueueSize: cfg.Scheduler.QueueSize,
	}, func(now time.Time) {
		sch.Tick(now)
		brd.Update()
	}, log.With(logx.String("component", "driver")))
	drv.Start(ctx)
	defer drv.Stop(context.Background())

	// Debug tap on scheduler events.
	events, unsub := bus.Subscribe(32)
	defer unsub()
	go func() {
		for ev := range events {
			if rec, ok := ev.Data.(sched.BatchRecord); ok {
				log.Debug("event",
					logx.String("type", ev.Type),
					logx.Int("jobs", rec.Jobs),
					logx.Duration("lateness", rec.PerformedAt.Sub(rec.PerformAt)),
				)
			}
		}
	}()

	runner, err := buildSources(cfg, drv, sch, brd, log)
	if err != nil {
		return err
	}
	if err := runner.Start(); err != nil {
		return err
	}
	// runner may be swapped by a config reload; stop whichever is current.
	var runnerMu sync.Mutex
	defer func() {
		runnerMu.Lock()
		runner.Stop()
		runnerMu.Unlock()
	}()

	// Hot reload: sources can be swapped at runtime; scheduler and driver
	// settings are start-time only.
	go func() {
		err := mgr.Watch(ctx, func(next *config.Config) {
			nr, err := buildSources(next, drv, sch, brd, log)
			if err != nil {
				log.Warn("config reload: sources rejected", logx.Err(err))
				return
			}
			runnerMu.Lock()
			defer runnerMu.Unlock()
			runner.Stop()
			if err := nr.Start(); err != nil {
				log.Error("config reload: sources failed to start", logx.Err(err))
				return
			}
			runner = nr
			log.Info("sources reloaded", logx.Int("feeds", len(next.Sources)))
		})
		if err != nil {
			log.Warn("config watch unavailable", logx.Err(err))
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info("pulseboard started", logx.String("config", cfgPath))

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	log.Info("pulseboard stopping")
	return nil
}

func buildSources(cfg *config.Config, drv *driver.Loop, sch *sched.Scheduler, brd *board.Board, log logx.Logger) (*source.Runner, error) {
	runner := source.NewRunner(drv, sch, brd, log.With(logx.String("component", "source")))
	start := time.Now()
	var counter atomic.Uint64

	for _, sc := range cfg.Sources {
		var refresh func() string
		switch sc.Kind {
		case "clock", "":
			refresh = func() string { return time.Now().Format("15:04:05.000") }
		case "uptime":
			refresh = func() string { return time.Since(start).Truncate(time.Second).String() }
		case "counter":
			refresh = func() string { return fmt.Sprintf("%d", counter.Add(1)) }
		default:
			return nil, fmt.Errorf("sources: unknown kind %q for %q", sc.Kind, sc.Name)
		}

		err := runner.Add(source.Feed{
			Name:     sc.Name,
			Spec:     sc.Spec,
			Priority: sc.Priority,
			Lead:     sc.Lead.Std(),
			Refresh:  refresh,
		})
		if err != nil {
			return nil, err
		}
	}
	return runner, nil
}
