package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/httpstubs/internal/errx"
	"github.com/jingkaihe/httpstubs/pkg/fixture"
	"github.com/jingkaihe/httpstubs/pkg/stub"
)

var rootCmd = &cobra.Command{
	Use:   "httpstubs",
	Short: "Inspect and exercise HTTP stub fixtures",
	Long: `httpstubs loads Mocktail (.tail) and YAML/JSON stub files and answers
requests from them without touching the network.

Fixtures come from --fixtures, HTTPSTUBS_FIXTURES or the config file.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (YAML, JSON or TOML)")
	rootCmd.PersistentFlags().StringP("fixtures", "f", "", "Fixture file or directory")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().String("events", "", "Append stub events as JSON lines to this file")
	rootCmd.PersistentFlags().String("journal", "", "Record stub events in this SQLite database")
	rootCmd.PersistentFlags().String("run-id", "", "Run ID stamped on events (default: random UUID)")
}

// bindConfig wires flags and HTTPSTUBS_* environment variables into
// viper. Each key resolves flag first, then env, then config file.
func bindConfig() {
	viper.BindPFlag("fixtures", rootCmd.PersistentFlags().Lookup("fixtures"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("no_color", rootCmd.PersistentFlags().Lookup("no-color"))
	viper.BindPFlag("list.full_id", listCmd.Flags().Lookup("full-id"))
	viper.BindPFlag("events", rootCmd.PersistentFlags().Lookup("events"))
	viper.BindPFlag("journal", rootCmd.PersistentFlags().Lookup("journal"))
	viper.BindPFlag("run_id", rootCmd.PersistentFlags().Lookup("run-id"))
	viper.BindPFlag("fetch.timeout", fetchCmd.Flags().Lookup("timeout"))

	viper.SetEnvPrefix("HTTPSTUBS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func main() {
	bindConfig()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, args []string) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return errx.Wrap(ErrReadConfig, err)
		}
	}
	if viper.GetBool("no_color") {
		color.NoColor = true
	}
	return nil
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	if !viper.GetBool("verbose") {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// loadRegistry builds a registry from the configured fixtures.
func loadRegistry(logger *slog.Logger) (*stub.Registry, error) {
	path := viper.GetString("fixtures")
	if path == "" {
		return nil, ErrNoFixtures
	}
	loader, err := fixture.NewLoader(fixture.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	reg := stub.NewRegistry(stub.WithLogger(logger))
	if _, err := loader.Load(reg, path); err != nil {
		return nil, errx.Wrap(ErrLoadFixtures, err)
	}
	return reg, nil
}
