// Package commands implements the CLI commands for prospector.
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/prospector/internal/config"
	"github.com/jmylchreest/prospector/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "prospector",
	Short: "Find business prospects through public search engines",
	Long: `Prospector searches public engines for businesses matching a query,
filters the results for relevance and visits each page to collect
contact details.

Examples:
  # One-off search, printed as JSON
  prospector search "marketing agency" --region leeds

  # Stream prospects as JSONL into a file
  prospector search "dental clinic" --format jsonl -o clinics.jsonl

  # Run the HTTP API
  prospector serve --addr :3000`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.prospector.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.Bool("json-logs", false, "log as JSON")
	flags.String("browser", "", "browser provider: chrome, static")
	flags.String("debug-dir", "", "directory for failed-engine snapshots")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("json_logs", flags.Lookup("json-logs"))
	_ = viper.BindPFlag("browser.mode", flags.Lookup("browser"))
	_ = viper.BindPFlag("debug_dir", flags.Lookup("debug-dir"))
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".prospector")
		viper.SetConfigType("yaml")
	}

	// A .env in the working directory never overrides the real environment.
	_ = godotenv.Load()
	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logError("reading config: %v", err)
		}
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup initializes logging and loads the validated configuration.
func setup() (config.Config, error) {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("json_logs"),
	})

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		logError("%v", err)
		return config.Config{}, err
	}
	return cfg, nil
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
