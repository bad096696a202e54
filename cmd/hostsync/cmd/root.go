// Package cmd provides the CLI commands for hostsync.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/munichmade/hostsync/internal/config"
	"github.com/munichmade/hostsync/internal/logging"
	"github.com/munichmade/hostsync/internal/paths"
	"github.com/munichmade/hostsync/internal/source"
	_ "github.com/munichmade/hostsync/internal/source/all"
	"github.com/munichmade/hostsync/internal/source/route53"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var (
	configFlag    string
	logLevelFlag  string
	logFormatFlag string
)

// Loaded by the root command before any subcommand runs.
var (
	cfg        *config.Config
	configPath string

	// configErr holds the load error for commands that tolerate a broken
	// config file. cfg then holds the defaults.
	configErr error
)

// lenientConfig marks commands that still run when the config file is broken.
const lenientConfig = "lenient-config"

var rootCmd = &cobra.Command{
	Use:   "hostsync",
	Short: "Keep hosts file entries in sync with DNS zones",
	Long: `hostsync writes the address records of DNS zones into a hosts file.

Entries it writes are tagged with a trailing "# Updated by script for <zone>"
comment. Later runs update or remove exactly those entries and leave every
other line of the file untouched.

Records come from Route 53, a zone transfer (AXFR), zone files on disk or
labelled Docker containers.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("hostsync version {{.Version}}\ncommit: %s\nbuilt: %s\n", Commit, BuildDate))

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/hostsync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Log format: text, json")
}

// loadConfig reads the config file, applies logging flags and sets up logging.
func loadConfig(cmd *cobra.Command) error {
	path := configFlag
	if path == "" {
		path = paths.ConfigFile()
	}

	configPath = path
	configErr = nil

	loaded, err := config.LoadFromFile(path)
	if err != nil {
		if cmd.Annotations[lenientConfig] == "" {
			return err
		}
		configErr = err
		loaded = config.Default()
	}

	applyLogFlags(loaded)
	if err := loaded.Validate(); err != nil {
		return err
	}

	setupLogging(loaded, cmd.ErrOrStderr())

	cfg = loaded
	return nil
}

// applyLogFlags lets --log-level and --log-format override the config file.
func applyLogFlags(c *config.Config) {
	if logLevelFlag != "" {
		c.Logging.Level = logLevelFlag
	}
	if logFormatFlag != "" {
		c.Logging.Format = logFormatFlag
	}
}

func setupLogging(c *config.Config, w io.Writer) {
	logging.Setup(logging.ParseLevel(c.Logging.Level), logging.ParseFormat(c.Logging.Format), w)
}

// credentialEnv maps AWS environment variables to route53 settings.
var credentialEnv = []struct {
	env     string
	setting string
}{
	{"AWS_ACCESS_KEY_ID", "access_key_id"},
	{"AWS_SECRET_ACCESS_KEY", "secret_access_key"},
	{"AWS_SESSION_TOKEN", "session_token"},
	{"AWS_REGION", "region"},
}

// applyEnvironment fills route53 settings the config file leaves empty.
func applyEnvironment(c *config.Config, getenv func(string) string) {
	if c.Source.Type != route53.Name {
		return
	}
	for _, e := range credentialEnv {
		c.SetSettingDefault(e.setting, getenv(e.env))
	}
}

// newSource builds the configured record source.
func newSource(c *config.Config) (source.Source, error) {
	applyEnvironment(c, os.Getenv)

	src, err := source.New(c.Source.Type, source.Options{
		RecordTypes: c.Source.RecordTypes,
		Settings:    source.Settings(c.Source.Settings),
		Logger:      logging.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s source: %w", c.Source.Type, err)
	}
	return src, nil
}

// closeSource releases sources that hold connections.
func closeSource(src source.Source) {
	if c, ok := src.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logging.Debug("failed to close source", "error", err)
		}
	}
}
