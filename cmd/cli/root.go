// Package cli provides the command-line interface for RAD, the recon
// automation drone. It implements the Cobra-based command structure for
// one-shot recon runs, standalone watching, scheduled daemon mode, and run
// history reporting.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clivendon/RAD/internal/config"
	"github.com/clivendon/RAD/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

// Build information - set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "rad",
	Short: "Recon Automation Drone",
	Long: `RAD automates the initial recon loop against a single target: it launches
an nmap service scan, watches the normal-format output file until the scan
completes, then runs feroxbuster content discovery against every web service
the scan found, one port at a time.`,
	Version: getVersion(),
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./rad.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("rad")
	}

	viper.SetEnvPrefix("RAD")
	viper.AutomaticEnv()

	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	initLogging()
}

// setConfigDefaults sets default values for configuration.
func setConfigDefaults() {
	defaults := config.Default()

	viper.SetDefault("watch.poll_interval_waiting", defaults.Watch.PollIntervalWaiting)
	viper.SetDefault("watch.poll_interval_scanning", defaults.Watch.PollIntervalScanning)

	viper.SetDefault("nmap.binary", defaults.Nmap.Binary)
	viper.SetDefault("nmap.scan_timeout", defaults.Nmap.ScanTimeout)

	viper.SetDefault("ferox.binary", defaults.Ferox.Binary)
	viper.SetDefault("ferox.extensions", defaults.Ferox.Extensions)
	viper.SetDefault("ferox.output_dir", defaults.Ferox.OutputDir)

	viper.SetDefault("database.path", defaults.Database.Path)

	viper.SetDefault("daemon.schedule", defaults.Daemon.Schedule)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.format", defaults.Logging.Format)
	viper.SetDefault("logging.output", defaults.Logging.Output)
}

// getConfigFilePath returns the config file path in use, explicit flag first.
func getConfigFilePath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return viper.ConfigFileUsed()
}

// loadConfig loads the effective configuration: file values, then the
// RAD_TARGET / RAD_WATCH_FILE environment overrides viper picked up.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		return nil, err
	}

	if target := viper.GetString("target"); target != "" {
		cfg.Target = target
	}
	if file := viper.GetString("watch_file"); file != "" {
		cfg.Watch.File = file
	}

	return cfg, nil
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		logging.SetDefault(logging.NewDefault())
		return
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     logging.LogLevel(level),
		Format:    logging.LogFormat(cfg.Logging.Format),
		Output:    cfg.Logging.Output,
		AddSource: level == "debug",
	})
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	logging.SetDefault(logger)
}
