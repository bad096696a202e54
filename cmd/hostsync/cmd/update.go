package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/munichmade/hostsync/internal/config"
	"github.com/munichmade/hostsync/internal/logging"
	"github.com/munichmade/hostsync/internal/syncer"
)

var errNoZones = errors.New("at least one zone is required (-d)")

// syncFlags are the flags shared by commands that run a sync.
type syncFlags struct {
	zones  []string
	input  string
	output string
	source string
}

func (f *syncFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.zones, "domain", "d", nil, "Zone to sync (repeatable, overrides config zones)")
	cmd.Flags().StringVarP(&f.input, "input", "i", "", `Hosts file to read, "-" for stdin (default from config)`)
	cmd.Flags().StringVarP(&f.output, "output", "o", "", `Where to write the result, "-" for stdout (default from config)`)
	cmd.Flags().StringVar(&f.source, "source", "", "Record source: axfr, docker, route53, zonefile")
}

// apply overlays the flags onto c and returns the sync options.
func (f *syncFlags) apply(c *config.Config) (syncer.Options, error) {
	if len(f.zones) > 0 {
		c.Zones = f.zones
	}
	if f.input != "" {
		c.Hosts.Input = f.input
	}
	if f.output != "" {
		c.Hosts.Output = f.output
	}
	if f.source != "" {
		c.Source.Type = f.source
	}

	if len(c.Zones) == 0 {
		return syncer.Options{}, errNoZones
	}
	if err := c.Validate(); err != nil {
		return syncer.Options{}, err
	}

	return syncer.Options{
		Zones:  append([]string(nil), c.Zones...),
		Input:  c.Hosts.Input,
		Output: c.Hosts.Output,
	}, nil
}

var updateFlags syncFlags

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Sync the hosts file once",
	Long: `Read the hosts file, fetch the records of every zone and write the result.

Managed entries of each zone are updated in place, entries whose address
disappeared are removed and new addresses are appended. All other lines are
kept byte for byte.`,
	Example: `  hostsync update -d atha.io -i /etc/hosts -o /etc/hosts
  hostsync update -d atha.io -d test.com --source zonefile < hosts > hosts.new`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	updateFlags.register(updateCmd)
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	opts, err := updateFlags.apply(cfg)
	if err != nil {
		return err
	}

	src, err := newSource(cfg)
	if err != nil {
		return err
	}
	defer closeSource(src)

	s := syncer.New(src,
		syncer.WithStdio(cmd.InOrStdin(), cmd.OutOrStdout()),
		syncer.WithLogger(logging.Default()),
	)
	_, err = s.Run(cmd.Context(), opts)
	return err
}
