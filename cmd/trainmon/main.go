package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"connectrpc.com/connect"
	"github.com/spf13/pflag"

	"github.com/tailored-agentic-units/trainmon/config"
	"github.com/tailored-agentic-units/trainmon/historyrpc"
	"github.com/tailored-agentic-units/trainmon/monitor"
	"github.com/tailored-agentic-units/trainmon/observability"
	"github.com/tailored-agentic-units/trainmon/train"
)

func main() {
	fs := pflag.NewFlagSet("trainmon", pflag.ExitOnError)
	var (
		logDir        = fs.String("logdir", "train_log", "Directory for stats.json and event files")
		configFile    = fs.String("config", "", "YAML experiment file merged over the defaults")
		stepsPerEpoch = fs.Int("steps-per-epoch", 0, "Steps per epoch (overrides config)")
		epochs        = fs.Int("epochs", 0, "Last epoch to train (overrides config)")
		startingEpoch = fs.Int("starting-epoch", 0, "First epoch to train (overrides config)")
		resume        = fs.Bool("resume", false, "Start after the last epoch recorded in the log directory")
		serveAddr     = fs.String("serve", "", "Serve scalar history on this address, e.g. :6006")
		observers     = fs.StringSlice("observers", []string{"slog"}, "Lifecycle event observers (noop, slog)")
		verbose       = fs.BoolP("verbose", "v", false, "Enable verbose logging to stderr")
	)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: trainmon [flags] [-- --configs.path.to.key=value ...]")
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(*logDir, 0o755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	observer, err := observability.Resolve(logger, *observers...)
	if err != nil {
		log.Fatalf("Failed to resolve observers: %v", err)
	}

	reg := config.NewRegistry()
	if err := monitor.Register(reg, monitor.WithLogger(logger), monitor.WithObserver(observer)); err != nil {
		log.Fatalf("Failed to register monitors: %v", err)
	}

	configs := config.NewConfigs(reg)
	if err := defaultExperiment(configs, *logDir); err != nil {
		log.Fatalf("Failed to build default experiment: %v", err)
	}
	if *configFile != "" {
		if err := configs.LoadFile(*configFile); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if err := configs.ApplyArguments(fs.Args()); err != nil {
		log.Fatalf("Failed to apply overrides: %v", err)
	}
	logger.Debug("experiment\n" + configs.Root.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	run, err := loadTrainSection(configs)
	if err != nil {
		log.Fatalf("Failed to read train settings: %v", err)
	}
	run.Merge(&train.Config{
		StepsPerEpoch: *stepsPerEpoch,
		StartingEpoch: *startingEpoch,
		MaxEpoch:      *epochs,
	})
	if *resume {
		if last, ok := monitor.LoadExistingEpochNumber(ctx, *logDir); ok {
			logger.Info("resuming", "last_epoch", last)
			run.StartingEpoch = last + 1
		}
	}

	hub, err := buildMonitors(configs)
	if err != nil {
		log.Fatalf("Failed to build monitors: %v", err)
	}

	if *serveAddr != "" {
		srv := serveHistory(*serveAddr, hub, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	loop, err := train.NewLoop(run.Config)
	if err != nil {
		log.Fatalf("Invalid train settings: %v", err)
	}

	callbacks := train.Callbacks{
		train.NewThroughputTracker(hub, run.SamplesPerStep),
		hub,
	}
	model := newToyModel(run.Seed)

	if err := loop.Run(ctx, callbacks, model.step(hub)); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("training interrupted", "global_step", loop.GlobalStep())
			return
		}
		log.Fatalf("Training failed: %v", err)
	}

	if loss, err := hub.GetLatest("loss"); err == nil {
		fmt.Printf("Final loss: %.5g after %d steps\n", loss, loop.GlobalStep())
	}
}

func buildMonitors(configs *config.Configs) (*monitor.Monitors, error) {
	node, ok := configs.Root.Child("monitors")
	if !ok {
		return nil, fmt.Errorf("%w: monitors", config.ErrInvalidPath)
	}
	v, err := node.Evaluate(nil, nil)
	if err != nil {
		return nil, err
	}
	hub, ok := v.(*monitor.Monitors)
	if !ok {
		return nil, fmt.Errorf("monitors built %T, want *monitor.Monitors", v)
	}
	return hub, nil
}

func serveHistory(addr string, hub *monitor.Monitors, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(historyrpc.NewHandler(hub,
		connect.WithInterceptors(historyrpc.LoggingInterceptor(logger)),
	))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("serving scalar history", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("history server stopped", "error", err)
		}
	}()
	return srv
}
