package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"operantcore/internal/blocks"
	"operantcore/internal/config"
	"operantcore/internal/events"
	"operantcore/internal/experiment"
	"operantcore/internal/hwio"
	"operantcore/internal/metrics"
	"operantcore/internal/queues"
	"operantcore/internal/reinforce"
	"operantcore/internal/schedule"
	"operantcore/internal/states"
	"operantcore/internal/stimbank"
	"operantcore/internal/subjects"
	"operantcore/pkg/domain"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate an experiment config without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			fmt.Printf("%s: ok (%d blocks, subject %s)\n", path, len(cfg.Blocks), cfg.Subject.Name)
			return nil
		},
	}
	cmd.Flags().String("config", "experiment.yaml", "Experiment config file")
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an experiment until its schedule completes",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runExperiment(ctx, cfg, dryRun)
		},
	}
	cmd.Flags().String("config", "experiment.yaml", "Experiment config file")
	cmd.Flags().Bool("dry-run", false, "Run against the simulated panel with a constantly responding subject")
	return cmd
}

func runExperiment(ctx context.Context, cfg *config.Config, dryRun bool) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))

	recorder := metrics.NewRecorder()
	handlers := []events.Handler{recorder}
	if cfg.Events.File != "" {
		fh, err := events.NewFileHandler(cfg.Events.File)
		if err != nil {
			return err
		}
		handlers = append(handlers, fh)
	}
	bus := events.NewBus(handlers...)
	defer bus.Close()

	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", recorder.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics endpoint failed", "addr", cfg.Metrics.Listen, "err", err)
			}
		}()
		defer srv.Close()
	}

	// The sim driver is the only in-tree driver; wire-level drivers plug in
	// out of tree. Dry runs additionally script a subject that always pecks.
	driver := hwio.NewSim()
	if dryRun {
		driver.Set("response_port", true)
		logger.Info("dry run: simulated subject will respond to every stimulus")
	}
	panel, err := hwio.NewStandardPanel(driver, bus)
	if err != nil {
		return err
	}

	var resolver experiment.Resolver
	if !dryRun {
		store, err := stimbank.OpenStore(ctx, stimbank.Config{
			Driver:    stimbank.Driver(cfg.Stimuli.Driver),
			Root:      cfg.Stimuli.Root,
			Bucket:    cfg.Stimuli.Bucket,
			Region:    cfg.Stimuli.Region,
			Endpoint:  cfg.Stimuli.Endpoint,
			PathStyle: cfg.Stimuli.PathStyle,
		})
		if err != nil {
			return err
		}
		bank, err := stimbank.NewBank(store, cfg.Stimuli.CacheDir)
		if err != nil {
			return err
		}
		resolver = bank
	}

	dsn := cfg.Subject.Datastore.DSN
	if dryRun {
		dsn = filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s.csv", cfg.Name, cfg.Subject.Name))
		logger.Info("dry run: trial records go to temp csv", "path", dsn)
	}
	driverName := cfg.Subject.Datastore.Driver
	if dryRun {
		driverName = "csv"
	}
	store, err := subjects.Open(driverName, dsn, cfg.Subject.Fields)
	if err != nil {
		return err
	}
	subject, err := subjects.New(cfg.Subject.Name, cfg.Subject.Fields, store)
	if err != nil {
		return err
	}
	defer subject.Close()

	behavior, err := experiment.NewGoNoGo(panel, resolver, experiment.GoNoGoOptions{
		StimulusDuration: cfg.Behavior.StimulusDuration.Std(),
		RewardDuration:   cfg.Behavior.RewardDuration.Std(),
		PunishDuration:   cfg.Behavior.PunishDuration.Std(),
		StartTimeout:     cfg.Behavior.StartTimeout.Std(),
	}, logger)
	if err != nil {
		return err
	}

	light, err := timeOfDay(cfg.LightSchedule)
	if err != nil {
		return err
	}
	session, err := sessionGate(cfg)
	if err != nil {
		return err
	}

	var exp *experiment.Experiment
	exp, err = experiment.New(experiment.Options{
		Name:         cfg.Name,
		Panel:        panel,
		Hooks:        behavior,
		Blocks:       blockFactory(cfg, func() (bool, bool) { return exp.LastOutcome() }),
		Storer:       subject,
		Light:        light,
		Session:      session,
		NumSessions:  cfg.NumSessions,
		PollInterval: cfg.PollInterval.Std(),
		StrictStore:  cfg.Subject.Datastore.Strict,
		Sink:         bus,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	exp.SetObserver(recorder)

	machine := states.NewMachine(domain.PhaseIdle, bus, logger,
		states.NewIdle(exp),
		states.NewSleep(exp),
		states.NewSession(exp),
	)
	machine.SetObserver(recorder)

	logger.Info("starting experiment",
		"name", cfg.Name, "subject", cfg.Subject.Name,
		"blocks", len(cfg.Blocks), "sessions", cfg.NumSessions)
	err = machine.Run(ctx, domain.PhaseIdle)
	if errors.Is(err, context.Canceled) {
		logger.Info("interrupted, shutting down")
		return nil
	}
	return err
}

func timeOfDay(pairs [][2]string) (domain.Scheduler, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	windows, err := schedule.ParseWindows(pairs)
	if err != nil {
		return nil, err
	}
	return schedule.NewTimeOfDay(windows), nil
}

func sessionGate(cfg *config.Config) (domain.Scheduler, error) {
	var gates []domain.Scheduler
	if tod, err := timeOfDay(cfg.SessionSchedule); err != nil {
		return nil, err
	} else if tod != nil {
		gates = append(gates, tod)
	}
	if cfg.SessionDuration > 0 || cfg.SessionInterval > 0 {
		gates = append(gates, schedule.NewDuration(cfg.SessionDuration.Std(), cfg.SessionInterval.Std()))
	}
	if cfg.SessionMaxTrials > 0 {
		gates = append(gates, schedule.NewCount(cfg.SessionMaxTrials))
	}
	switch len(gates) {
	case 0:
		return nil, nil
	case 1:
		return gates[0], nil
	default:
		return schedule.NewGate(gates...), nil
	}
}

func blockFactory(cfg *config.Config, last func() (bool, bool)) experiment.BlockFactory {
	return func(int) (*blocks.Handler, error) {
		built := make([]*domain.Block, 0, len(cfg.Blocks))
		for i, bc := range cfg.Blocks {
			block, err := buildBlock(bc, last)
			if err != nil {
				return nil, fmt.Errorf("block %d: %w", i, err)
			}
			built = append(built, block)
		}
		return blocks.NewHandler(built...), nil
	}
}

func buildBlock(bc config.BlockConfig, last func() (bool, bool)) (*domain.Block, error) {
	conds := bc.DomainConditions()
	policy, err := reinforce.New(bc.Reinforcement.Schedule, bc.Reinforcement.Params())
	if err != nil {
		return nil, err
	}
	var queue domain.ConditionQueue
	switch bc.Queue {
	case "", "fixed":
		reps := bc.Repetitions
		if reps < 1 {
			reps = 1
		}
		queue = queues.NewFixedBlock(conds, reps, bc.Shuffle, nil)
	case "random":
		queue, err = queues.NewRandom(conds, bc.Weights(), bc.MaxTrials, nil)
		if err != nil {
			return nil, domain.NewConfigError("blocks", err)
		}
	case "staircase":
		sc := bc.Staircase
		stair, err := queues.NewStaircase(queues.StaircaseConfig{
			Start:     sc.Start,
			Up:        sc.Up,
			Down:      sc.Down,
			Step:      sc.Step,
			MinVal:    sc.Min,
			MaxVal:    sc.Max,
			TrMin:     sc.TrMin,
			TrMax:     sc.TrMax,
			Reversals: sc.Reversals,
		}, last)
		if err != nil {
			return nil, domain.NewConfigError("blocks", err)
		}
		queue = experiment.NewAdaptiveQueue(conds[0], stair)
	}
	block := &domain.Block{
		Conditions:    conds,
		Weights:       bc.Weights(),
		Queue:         queue,
		Reinforcement: policy,
	}
	if bc.MaxTrials > 0 && bc.Queue != "random" {
		block.Bound = schedule.NewCount(bc.MaxTrials)
	}
	return block, nil
}
