package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/xoelrdgz/pagewarden/internal/classifier"
	"github.com/xoelrdgz/pagewarden/internal/heuristics"
	"github.com/xoelrdgz/pagewarden/internal/ports"
	"github.com/xoelrdgz/pagewarden/internal/rules"
)

// HotReloadConfig swaps the active rule catalog when the config file or the
// rules file changes. A failed reload keeps the previous catalog.
type HotReloadConfig struct {
	classifier *classifier.Classifier
	intel      ports.HostIntelligence

	configPath string
	rulesPath  string
	debounce   time.Duration

	watcher  *fsnotify.Watcher
	timer    *time.Timer
	mu       sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
}

type HotReloadOptions struct {
	ConfigPath    string
	RulesPath     string
	Classifier    *classifier.Classifier
	Intel         ports.HostIntelligence // Reloaded alongside the rules, may be nil
	DebounceDelay time.Duration
}

// Settings is the typed view of the viper keys the monitor uses.
type Settings struct {
	WorkerCount        int
	BufferSize         int
	MaxEvents          int
	StorePath          string
	RulesFile          string
	BlocklistFile      string
	BurstPerTab        bool
	NotificationWindow time.Duration
	GestureWindow      time.Duration
	OverflowPath       string
	QuarantinePath     string
}

func NewHotReloadConfig(opts HotReloadOptions) *HotReloadConfig {
	if opts.DebounceDelay == 0 {
		opts.DebounceDelay = 500 * time.Millisecond
	}

	return &HotReloadConfig{
		classifier: opts.Classifier,
		intel:      opts.Intel,
		configPath: opts.ConfigPath,
		rulesPath:  opts.RulesPath,
		debounce:   opts.DebounceDelay,
		stopChan:   make(chan struct{}),
	}
}

// StartWatching registers the viper config watcher and, when a rules file
// is configured, an fsnotify watcher on its directory.
func (h *HotReloadConfig) StartWatching(ctx context.Context) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		log.Info().
			Str("file", e.Name).
			Str("op", e.Op.String()).
			Msg("Config file changed, reloading...")

		h.reload(ctx)
	})
	viper.WatchConfig()

	if h.rulesPath != "" {
		if err := h.watchRules(); err != nil {
			log.Error().Err(err).Str("rules", h.rulesPath).Msg("Failed to watch rules file")
		}
	}

	log.Info().Str("config", h.configPath).Str("rules", h.rulesPath).Msg("Hot-reload config watching started")
}

// watchRules watches the directory so editors that replace the file on
// save are still seen.
func (h *HotReloadConfig) watchRules() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(h.rulesPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(h.rulesPath), err)
	}
	h.watcher = watcher

	target := filepath.Clean(h.rulesPath)
	go func() {
		for {
			select {
			case <-h.stopChan:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				h.scheduleRulesReload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("Rules watcher error")
			}
		}
	}()
	return nil
}

func (h *HotReloadConfig) scheduleRulesReload() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(h.debounce, func() {
		if err := h.ReloadRules(); err != nil {
			log.Error().Err(err).Msg("Failed to reload rules, keeping current catalog")
		}
	})
}

func (h *HotReloadConfig) reload(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := viper.ReadInConfig(); err != nil {
		log.Error().Err(err).Msg("Failed to re-read config, keeping current configuration")
		return
	}

	if err := ValidateConfig(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration, rejecting reload")
		return
	}

	if path := viper.GetString("rules.file"); path != h.rulesPath {
		log.Info().Str("old", h.rulesPath).Str("new", path).Msg("Rules file path changed")
		h.rulesPath = path
	}
	if h.classifier != nil {
		tuning := CurrentSettings().Tuning()
		h.classifier.Session().Tune(tuning)
		log.Debug().
			Dur("notification_window", tuning.NotificationWindow).
			Dur("gesture_window", tuning.GestureWindow).
			Bool("burst_per_tab", tuning.BurstPerTab).
			Msg("Heuristics tuning applied")
	}
	if err := h.reloadRulesLocked(); err != nil {
		log.Error().Err(err).Msg("Failed to reload rules, keeping current catalog")
		return
	}

	if h.intel != nil {
		if err := h.intel.Load(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to reload host blocklist, keeping current list")
		}
	}

	log.Info().Msg("Configuration hot-reloaded successfully")
}

// ReloadRules compiles the rules file and activates it.
//
// Returns:
//   - nil on success
//   - Error if the file cannot be read or compiled (current catalog kept)
func (h *HotReloadConfig) ReloadRules() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reloadRulesLocked()
}

func (h *HotReloadConfig) reloadRulesLocked() error {
	if h.classifier == nil {
		return nil
	}
	catalog, err := rules.LoadFile(h.rulesPath)
	if err != nil {
		return err
	}
	h.classifier.SetCatalog(catalog)
	return nil
}

// ValidateConfig checks the viper values the monitor depends on.
//
// Returns:
//   - nil if valid
//   - *ConfigValidationError for the first bad field
func ValidateConfig() error {
	workerCount := viper.GetInt("workers.count")
	if workerCount < 1 || workerCount > 1000 {
		return &ConfigValidationError{Field: "workers.count", Value: workerCount, Reason: "must be between 1 and 1000"}
	}

	bufferSize := viper.GetInt("workers.buffer_size")
	if bufferSize < 1 || bufferSize > 10000000 {
		return &ConfigValidationError{Field: "workers.buffer_size", Value: bufferSize, Reason: "must be between 1 and 10M"}
	}

	maxEvents := viper.GetInt("events.max")
	if maxEvents < 1 {
		return &ConfigValidationError{Field: "events.max", Value: maxEvents, Reason: "must be positive"}
	}

	if d := viper.GetDuration("heuristics.notification_window"); d <= 0 {
		return &ConfigValidationError{Field: "heuristics.notification_window", Value: d, Reason: "must be a positive duration"}
	}

	return nil
}

func (h *HotReloadConfig) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
		h.mu.Lock()
		if h.timer != nil {
			h.timer.Stop()
		}
		h.mu.Unlock()
		if h.watcher != nil {
			h.watcher.Close()
		}
		log.Info().Msg("Hot-reload config watcher stopped")
	})
}

// CurrentSettings reads Settings from viper.
func CurrentSettings() Settings {
	return Settings{
		WorkerCount:        viper.GetInt("workers.count"),
		BufferSize:         viper.GetInt("workers.buffer_size"),
		MaxEvents:          viper.GetInt("events.max"),
		StorePath:          viper.GetString("events.store_path"),
		RulesFile:          viper.GetString("rules.file"),
		BlocklistFile:      viper.GetString("intel.blocklist_file"),
		BurstPerTab:        viper.GetBool("heuristics.burst_per_tab"),
		NotificationWindow: viper.GetDuration("heuristics.notification_window"),
		GestureWindow:      viper.GetDuration("heuristics.gesture_window"),
		OverflowPath:       viper.GetString("workers.overflow_path"),
		QuarantinePath:     viper.GetString("workers.quarantine_path"),
	}
}

// Tuning returns the heuristics settings that apply without a restart.
func (s Settings) Tuning() heuristics.Tuning {
	return heuristics.Tuning{
		NotificationWindow: s.NotificationWindow,
		GestureWindow:      s.GestureWindow,
		BurstPerTab:        s.BurstPerTab,
	}
}

type ConfigValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s = %v - %s", e.Field, e.Value, e.Reason)
}

// ReloadableAnalyzer is an Analyzer whose rule catalog follows the config
// and rules files.
type ReloadableAnalyzer struct {
	*Analyzer
	hotConfig *HotReloadConfig
}

func NewReloadableAnalyzer(source ports.SignalSource, pipeline *Pipeline, hotConfig *HotReloadConfig) *ReloadableAnalyzer {
	return &ReloadableAnalyzer{
		Analyzer:  NewAnalyzer(source, pipeline),
		hotConfig: hotConfig,
	}
}

func (a *ReloadableAnalyzer) StartWithHotReload(ctx context.Context) error {
	if a.hotConfig != nil {
		a.hotConfig.StartWatching(ctx)
	}
	return a.Start(ctx)
}

func (a *ReloadableAnalyzer) Stop() {
	if a.hotConfig != nil {
		a.hotConfig.Stop()
	}
	a.Analyzer.Stop()
}

func (a *ReloadableAnalyzer) Run(ctx context.Context) error {
	if err := a.StartWithHotReload(ctx); err != nil {
		return err
	}

	awaitShutdown()
	a.Stop()
	return nil
}
