// Package cmd implements the hstsync command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentstation/hstsync/internal/updater"
	"github.com/agentstation/hstsync/pkg/logging"
)

var (
	verbose bool
	quiet   bool

	// Version information set by main.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "hstsync DESTINATION SOURCE",
	Short: "Update a wget HSTS known-hosts database from a preload list",
	Long: `hstsync reconciles a wget-style HSTS known-hosts database with an
authoritative HSTS preload list (Chromium format).

DESTINATION is the path to the known-hosts database (typically ~/.wget-hsts),
created if absent. SOURCE is a local path or an HTTP(S) URL to the preload
list, for example:

  hstsync ~/.wget-hsts https://cs.chromium.org/codesearch/f/chromium/src/net/http/transport_security_state_static.json

Entries previously derived from a preload list are added, updated, or removed
to match the source; locally-learned entries are never touched.`,
	Args: cobra.ExactArgs(2),
	RunE: run,
}

// Execute runs the root command with version information.
func Execute(version, commit, date string) {
	Version = version
	Commit = commit
	Date = date
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		panic(fmt.Sprintf("Failed to bind verbose flag: %v", err))
	}
	if err := viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet")); err != nil {
		panic(fmt.Sprintf("Failed to bind quiet flag: %v", err))
	}
}

// initConfig reads environment variables and configures logging.
func initConfig() {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	configureLogging()
}

func run(cmd *cobra.Command, args []string) error {
	// Arguments are valid at this point; runtime failures should not
	// re-print the usage text.
	cmd.SilenceUsage = true

	destination, source := args[0], args[1]

	result, err := updater.New(destination, source).Run(cmd.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Update failed")
		return err
	}

	logging.Info().
		Int("preload_entries", result.PreloadEntries).
		Int("known_hosts", result.KnownHosts).
		Int("removed", result.Removed).
		Int("updated", result.Updated).
		Int("inserted", result.Inserted).
		Bool("written", result.Written).
		Msg("Done")
	return nil
}

// configureLogging sets up the logging system based on configuration.
func configureLogging() {
	level := zerolog.InfoLevel
	if verbose || viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	if quiet || viper.GetBool("quiet") {
		level = zerolog.WarnLevel
	}
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		if parsed, err := zerolog.ParseLevel(envLevel); err == nil {
			level = parsed
		}
	}

	config := &logging.Config{
		Level:     level.String(),
		Format:    os.Getenv("LOG_FORMAT"),
		Output:    os.Getenv("LOG_OUTPUT"),
		AddCaller: level <= zerolog.DebugLevel,
	}
	if config.Format == "" {
		config.Format = "auto"
	}
	if config.Output == "" {
		config.Output = "stderr"
	}

	logging.Configure(config)
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		if err := godotenv.Load(envFile); err == nil && verbose {
			fmt.Fprintf(os.Stderr, "Loaded %s\n", envFile)
		}
	}
}
