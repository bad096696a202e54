package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/munichmade/hostsync/internal/config"
	"github.com/munichmade/hostsync/internal/hosts"
	"github.com/munichmade/hostsync/internal/logging"
	"github.com/munichmade/hostsync/internal/source"
	"github.com/munichmade/hostsync/internal/syncer"
)

// CheckResult represents the result of a single check.
type CheckResult struct {
	Name       string
	Passed     bool
	Message    string
	Suggestion string
}

var (
	checkFlags   syncFlags
	checkTimeout time.Duration
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks to verify hostsync is configured correctly.

Checks include:
  - Configuration is valid
  - The record source can be created (credentials present)
  - The input hosts file parses
  - The output is writable
  - Every zone can be fetched`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{lenientConfig: "true"},
	RunE:        runCheck,
}

func init() {
	checkFlags.register(checkCmd)
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 30*time.Second, "Timeout for fetching each zone")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nChecking hostsync configuration...")

	results := runChecks(cmd.Context(), cmd.InOrStdin(), cfg)

	var failures int
	for _, r := range results {
		printResult(out, r)
		if !r.Passed {
			failures++
		}
	}

	fmt.Fprintln(out)
	if failures > 0 {
		return fmt.Errorf("%d check(s) failed", failures)
	}
	fmt.Fprintln(out, "All checks passed!")
	return nil
}

func printResult(w io.Writer, r CheckResult) {
	if r.Passed {
		fmt.Fprintf(w, "  ✓ %s\n", r.Message)
		return
	}
	fmt.Fprintf(w, "  ✗ %s\n", r.Message)
	if r.Suggestion != "" {
		fmt.Fprintf(w, "    → %s\n", r.Suggestion)
	}
}

// runChecks runs every check. Later checks are skipped when their
// prerequisites failed.
func runChecks(ctx context.Context, stdin io.Reader, c *config.Config) []CheckResult {
	opts, err := checkFlags.apply(c)
	if configErr != nil {
		err = configErr
	}
	results := []CheckResult{checkConfig(err)}
	if err != nil && !errors.Is(err, errNoZones) {
		return results
	}
	opts.Input, opts.Output = c.Hosts.Input, c.Hosts.Output

	src, srcResult := checkSource(ctx, c)
	results = append(results, srcResult)
	if src != nil {
		defer closeSource(src)
	}

	results = append(results, checkInput(stdin, opts.Input), checkOutput(opts.Output))

	if src == nil {
		return results
	}
	if len(opts.Zones) == 0 {
		return append(results, CheckResult{
			Name:       "zones",
			Message:    "No zones configured",
			Suggestion: "Add zones to the config file or pass -d <zone>",
		})
	}

	s := syncer.New(src, syncer.WithLogger(logging.Default()))
	for _, zone := range opts.Zones {
		results = append(results, checkZone(ctx, s, zone))
	}
	return results
}

func checkConfig(err error) CheckResult {
	result := CheckResult{Name: "config"}
	if err != nil && !errors.Is(err, errNoZones) {
		result.Message = fmt.Sprintf("Configuration invalid: %v", err)
		result.Suggestion = "Fix " + configPath + " or run: hostsync config init --force"
		return result
	}

	result.Passed = true
	if _, statErr := os.Stat(configPath); errors.Is(statErr, fs.ErrNotExist) {
		result.Message = "Configuration defaults in use (no config file)"
	} else {
		result.Message = "Configuration valid: " + configPath
	}
	return result
}

func checkSource(ctx context.Context, c *config.Config) (source.Source, CheckResult) {
	result := CheckResult{Name: "source"}

	src, err := newSource(c)
	if err != nil {
		result.Message = err.Error()
		result.Suggestion = "Check source.settings in the config file or the AWS_* environment variables"
		return nil, result
	}

	if p, ok := src.(source.Pinger); ok {
		pingCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := p.Ping(pingCtx)
		cancel()
		if err != nil {
			closeSource(src)
			result.Message = fmt.Sprintf("Record source %s unreachable: %v", c.Source.Type, err)
			result.Suggestion = "Make sure the service is running and source.settings points at it"
			return nil, result
		}
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Record source %s ready", c.Source.Type)
	return src, result
}

func checkInput(stdin io.Reader, input string) CheckResult {
	result := CheckResult{Name: "input"}

	text, err := syncer.ReadInput(stdin, input)
	if err != nil {
		result.Message = err.Error()
		result.Suggestion = "Pass a readable hosts file with -i"
		return result
	}

	doc, err := hosts.Parse(text)
	if err != nil {
		result.Message = fmt.Sprintf("Hosts file %s does not parse: %v", input, err)
		result.Suggestion = "Fix or remove the malformed managed entry"
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Hosts file %s parses (%d lines, %d managed)", input, doc.Len(), len(doc.Entries("")))
	return result
}

func checkOutput(output string) CheckResult {
	result := CheckResult{Name: "output"}

	if output == syncer.Stdio {
		result.Passed = true
		result.Message = "Output goes to stdout"
		return result
	}

	if err := writable(output); err != nil {
		result.Message = fmt.Sprintf("Output %s not writable: %v", output, err)
		result.Suggestion = "Run with sufficient privileges, e.g. sudo hostsync update"
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Output %s writable", output)
	return result
}

// writable reports whether a file can be atomically replaced at path, which
// requires creating a file in its directory.
func writable(path string) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".hostsync-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func checkZone(ctx context.Context, s *syncer.Syncer, zone string) CheckResult {
	result := CheckResult{Name: "zone:" + zone}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	fetched, err := s.Fetch(ctx, []string{zone})
	if err != nil {
		result.Message = fmt.Sprintf("Zone %s unreachable: %v", zone, err)
		result.Suggestion = "Check the zone name and the source's access to it"
		return result
	}

	zr := fetched[0]
	result.Passed = true
	result.Message = fmt.Sprintf("Zone %s: %d address(es)", zone, zr.Records.Len())
	if n := len(zr.Warnings); n > 0 {
		result.Message += fmt.Sprintf(", %d record(s) skipped", n)
	}
	return result
}
