package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xoelrdgz/pagewarden/internal/adapters/detection"
	"github.com/xoelrdgz/pagewarden/internal/adapters/input"
	"github.com/xoelrdgz/pagewarden/internal/adapters/output"
	"github.com/xoelrdgz/pagewarden/internal/app"
	"github.com/xoelrdgz/pagewarden/internal/classifier"
	"github.com/xoelrdgz/pagewarden/internal/heuristics"
	"github.com/xoelrdgz/pagewarden/internal/ports"
	"github.com/xoelrdgz/pagewarden/internal/rules"
	"github.com/xoelrdgz/pagewarden/internal/sink"
	"github.com/xoelrdgz/pagewarden/internal/tui"
)

var (
	signalFile   string
	jsonOut      bool
	fullAnalysis bool
	demoMode     bool
	demoRate     int
	workers      int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Classify browser signals and raise alerts",
	Long: `Start the monitor. Signals are read from a JSONL file, generated in
demo mode, or posted to the reporting API; any combination works.

Examples:
  pagewarden monitor --file ./signals.jsonl
  pagewarden monitor --file ./signals.jsonl --full --no-tui --json
  pagewarden monitor --demo --demo-rate 500
  pagewarden monitor --no-tui`,
	RunE: runMonitor,
}

func init() {
	flags := monitorCmd.Flags()
	flags.StringVarP(&signalFile, "file", "f", "", "JSONL signal file to tail")
	flags.BoolVar(&noTUI, "no-tui", false, "disable TUI, log alerts to stderr")
	flags.BoolVar(&jsonOut, "json", false, "stream detection events as JSON to stdout")
	flags.BoolVar(&fullAnalysis, "full", false, "read the signal file from the beginning")
	flags.BoolVar(&demoMode, "demo", false, "demo mode: generate synthetic browser traffic")
	flags.IntVar(&demoRate, "demo-rate", 0, "demo mode: signals per second")
	flags.IntVarP(&workers, "workers", "w", 0, "number of worker goroutines")

	viper.BindPFlag("signals.file", flags.Lookup("file"))
	viper.BindPFlag("output.json.enabled", flags.Lookup("json"))
}

func runMonitor(cmd *cobra.Command, args []string) error {
	setupLogging()

	if workers > 0 {
		viper.Set("workers.count", workers)
	}
	if err := app.ValidateConfig(); err != nil {
		return err
	}
	settings := app.CurrentSettings()

	catalog, err := rules.LoadFile(settings.RulesFile)
	if err != nil {
		return fmt.Errorf("failed to load rule catalog: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blocklistConfig := detection.DefaultBlocklistConfig()
	blocklistConfig.Filepath = settings.BlocklistFile
	blocklist := detection.NewHostBlocklist(blocklistConfig)
	if err := blocklist.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to load host blocklist")
	} else {
		log.Debug().Int("count", blocklist.Count()).Msg("Host blocklist loaded")
	}

	sessionConfig := heuristics.DefaultSessionConfig()
	sessionConfig.Burst.PerTab = settings.BurstPerTab
	sessionConfig.NotificationWindow = settings.NotificationWindow
	sessionConfig.GestureWindow = settings.GestureWindow
	session := heuristics.NewSession(sessionConfig, heuristics.SystemClock{})
	cls := classifier.New(catalog, session, blocklist)

	var store ports.EventStore
	if settings.StorePath != "" {
		boltStore, err := output.NewBoltStore(settings.StorePath)
		if err != nil {
			return fmt.Errorf("failed to open event store: %w", err)
		}
		defer boltStore.Close()
		store = boltStore
	}
	events := sink.New(sink.Config{MaxEvents: settings.MaxEvents, Store: store})
	if err := events.Load(); err != nil {
		log.Warn().Err(err).Msg("Failed to restore stored events")
	}

	tabNotifier := output.NewTabNotifier(0)
	notifiers := output.MultiNotifier{tabNotifier}

	var tuiApp *tui.App
	if noTUI {
		notifiers = append(notifiers, output.LogNotifier{})
	} else {
		tuiApp = tui.NewApp(events)
		tuiApp.SetRules(catalog.Version())
		notifiers = append(notifiers, tuiApp)
	}

	pipeline := app.NewPipeline(cls, events, notifiers, nil)

	if jsonOut || viper.GetBool("output.json.enabled") {
		jsonConfig := output.JSONEventWriterConfig{
			Stdout: viper.GetBool("output.json.stdout") || jsonOut,
			Pretty: false,
		}
		if path := viper.GetString("output.json.path"); path != "" && !jsonOut {
			jsonConfig.FilePath = path
			jsonConfig.Stdout = false
		}
		writer, err := output.NewJSONEventWriter(jsonConfig)
		if err != nil {
			return fmt.Errorf("failed to create JSON event writer: %w", err)
		}
		pipeline.AddSubscriber(writer)
		defer writer.Close()
	}

	source, sourceName := signalSource(settings)
	apiEnabled := viper.GetBool("api.enabled")
	if source == nil && !apiEnabled {
		return fmt.Errorf("no signal source: use --file, --demo or enable the API")
	}

	hotConfig := app.NewHotReloadConfig(app.HotReloadOptions{
		ConfigPath: viper.ConfigFileUsed(),
		RulesPath:  settings.RulesFile,
		Classifier: cls,
		Intel:      blocklist,
	})
	analyzer := app.NewReloadableAnalyzer(source, pipeline, hotConfig)
	analyzer.SetWorkerConfig(app.WorkerPoolConfig{
		WorkerCount:    settings.WorkerCount,
		BufferSize:     settings.BufferSize,
		EnableDLQ:      viper.GetBool("workers.dlq"),
		OverflowPath:   settings.OverflowPath,
		QuarantinePath: settings.QuarantinePath,
		Encoder:        input.Encode,
	})
	if viper.GetBool("workers.dlq") {
		go drainDLQ(ctx, analyzer.WorkerPool())
	}

	var promMetrics *output.PrometheusMetrics
	if viper.GetBool("output.metrics.enabled") {
		promMetrics = output.NewPrometheusMetrics("pagewarden", pipeline.Metrics())
		pipeline.SetCollector(promMetrics)
		pipeline.AddProcessingObserver(promMetrics)
		promMetrics.SetStoredEvents(events.Len())

		metricsConfig := output.MetricsConfig{
			Port: viper.GetString("output.metrics.port"),
			Path: "/metrics",
		}
		if err := promMetrics.StartServer(metricsConfig); err != nil {
			log.Warn().Err(err).Msg("Failed to start metrics server")
		}
		defer promMetrics.StopServer()
	}

	if apiEnabled {
		healthConfig := output.DefaultHealthCheckerConfig()
		healthConfig.Events = events
		healthConfig.RulesVersion = func() string { return cls.Catalog().Version() }
		health := output.NewHealthChecker(analyzer.WorkerPool(), healthConfig)
		api := output.NewAPI(output.APIOptions{
			Events:   events,
			Decoder:  input.NewJSONDecoder(),
			Submit:   analyzer.Submit,
			Notifier: tabNotifier,
			Health:   health,
		})
		if err := api.Start(viper.GetString("api.addr")); err != nil {
			log.Warn().Err(err).Msg("Failed to start reporting API")
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer stopCancel()
			api.Stop(stopCtx)
		}()
	}

	log.Info().
		Str("source", sourceName).
		Str("session", session.ID).
		Str("rules_version", catalog.Version()).
		Int("rules", catalog.Len()).
		Int("workers", settings.WorkerCount).
		Int("stored_events", events.Len()).
		Bool("tui", !noTUI).
		Msg("PageWarden started")

	if noTUI {
		log.Info().Msg("Running in console mode")
		return analyzer.Run(ctx)
	}

	tuiApp.SetSource(sourceName)
	if err := analyzer.StartWithHotReload(ctx); err != nil {
		return fmt.Errorf("failed to start analyzer: %w", err)
	}

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snapshot := analyzer.Metrics()
				tuiApp.SendMetrics(snapshot)
				if promMetrics != nil {
					promMetrics.SetActiveWorkers(snapshot.ActiveWorkers)
				}
			}
		}
	}()

	var tuiErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("TUI panic recovered")
				tuiErr = fmt.Errorf("TUI panic: %v", r)
			}
		}()
		tuiErr = tuiApp.Run()
	}()

	cancel()
	log.Info().Msg("Shutting down...")

	shutdownDone := make(chan struct{})
	go func() {
		analyzer.Stop()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		log.Debug().Msg("Shutdown complete")
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Shutdown timeout, forcing exit")
	}

	return tuiErr
}

// signalSource picks the pull source for this run. The result is nil when
// signals only arrive through the API.
func signalSource(settings app.Settings) (ports.SignalSource, string) {
	if demoMode {
		config := input.DefaultDemoConfig()
		config.Rate = viper.GetInt("demo.rate")
		if demoRate > 0 {
			config.Rate = demoRate
		}
		config.Tabs = viper.GetInt("demo.tabs")
		config.AttackPercent = viper.GetInt("demo.attack_percent")
		config.BufferSize = settings.BufferSize
		log.Debug().Int("rate", config.Rate).Msg("Demo generator initialized")
		return input.NewDemoGenerator(config), "DEMO"
	}

	path := viper.GetString("signals.file")
	if path == "" {
		return nil, "API"
	}
	tailer := input.NewFileTailer(path, input.NewJSONDecoder(), settings.BufferSize)
	if fullAnalysis {
		tailer.SetFromBeginning(true)
		log.Info().Msg("Full analysis mode: reading from beginning")
	}
	return tailer, filepath.Base(path)
}

func drainDLQ(ctx context.Context, pool *app.WorkerPool) {
	dlq := pool.DLQ()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-dlq:
			if !ok {
				return
			}
			log.Error().
				Int("worker_id", msg.WorkerID).
				Str("kind", string(msg.Signal.Kind())).
				Interface("panic", msg.PanicErr).
				Msg("Signal moved to dead letter queue")
		}
	}
}
