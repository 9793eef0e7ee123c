package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	noTUI   bool

	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pagewarden",
	Short: "Browser-side web intrusion detection",
	Long: `PageWarden inspects what a browser sees while it loads and runs web
pages: requested URLs, response headers, reports from page scripts, user
gestures and DOM observations. It classifies them against a versioned rule
catalog, keeps a bounded log of detections and raises alerts for the tab
that produced them.

Detection Capabilities:
  - Injection: SQL injection and XSS patterns in URLs
  - Misconfiguration: Missing or weak security headers, insecure cookies
  - Client-side attacks: Gesture-less downloads, request bursts,
    credential hijacking, clipboard theft, keyloggers, media access
  - Host intelligence: Known malicious hosts from a blocklist`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("PageWarden %s\n", Version)
		fmt.Printf("Commit:     %s\n", Commit)
		fmt.Printf("Built:      %s\n", BuildTime)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/pagewarden.yaml)")
	rootCmd.PersistentFlags().String("store", "", "event store path")
	rootCmd.PersistentFlags().String("rules", "", "rules file overriding the built-in catalog")

	viper.BindPFlag("events.store_path", rootCmd.PersistentFlags().Lookup("store"))
	viper.BindPFlag("rules.file", rootCmd.PersistentFlags().Lookup("rules"))

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(versionCmd)
}

// configDefaults are applied before the config file and PAGEWARDEN_*
// environment variables.
var configDefaults = map[string]any{
	"logging.level":                  "info",
	"workers.count":                  8,
	"workers.buffer_size":            10000,
	"workers.dlq":                    false,
	"events.max":                     500,
	"events.store_path":              "./data/pagewarden.db",
	"rules.file":                     "",
	"intel.blocklist_file":           "./testdata/blocklist.txt",
	"heuristics.burst_per_tab":       false,
	"heuristics.notification_window": "3s",
	"api.enabled":                    true,
	"api.addr":                       "127.0.0.1:8787",
	"output.json.enabled":            false,
	"output.json.stdout":             true,
	"output.metrics.enabled":         true,
	"output.metrics.port":            ":9090",
	"demo.rate":                      200,
	"demo.tabs":                      6,
	"demo.attack_percent":            15,
}

func initConfig() {
	for key, value := range configDefaults {
		viper.SetDefault(key, value)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pagewarden")
		viper.SetConfigType("yaml")
		for _, dir := range []string{"./configs", ".", "/etc/pagewarden"} {
			viper.AddConfigPath(dir)
		}
	}

	var notFound viper.ConfigFileNotFoundError
	if err := viper.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		log.Warn().Err(err).Str("file", viper.ConfigFileUsed()).Msg("Error reading config file")
	}

	viper.SetEnvPrefix("PAGEWARDEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

var logLevels = map[string]zerolog.Level{
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
}

// setupLogging applies logging.level. The console writer is used only
// without the TUI, which owns the terminal otherwise.
func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, ok := logLevels[strings.ToLower(viper.GetString("logging.level"))]
	if !ok {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if noTUI {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
