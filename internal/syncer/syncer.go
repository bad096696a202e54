// Package syncer runs one reconciliation pass: read a hosts file, fetch
// records for each zone, update the document and write it back.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/moby/sys/atomicwriter"
	"golang.org/x/sync/errgroup"

	"github.com/munichmade/hostsync/internal/hosts"
	"github.com/munichmade/hostsync/internal/logging"
	"github.com/munichmade/hostsync/internal/source"
)

// Stdio is the Input or Output value meaning standard input or output.
const Stdio = "-"

// DefaultConcurrency bounds how many zones are fetched at once.
const DefaultConcurrency = 4

// defaultFileMode applies when the output file does not exist yet.
const defaultFileMode fs.FileMode = 0644

// ErrNoZones is returned when Run is called without zones.
var ErrNoZones = errors.New("no zones given")

// Options describes one sync pass.
type Options struct {
	// Zones are applied in order.
	Zones []string

	// Input is the hosts file to read, or Stdio.
	Input string

	// Output is where the result is written, or Stdio.
	Output string
}

// Result summarizes a sync pass.
type Result struct {
	// Changed reports whether the output differs from the input.
	Changed bool

	// Warnings collects every source warning, prefixed with its zone.
	Warnings []string

	// Zones maps each zone to the number of addresses fetched for it.
	Zones map[string]int
}

// ZoneRecords are the records and warnings fetched for one zone.
type ZoneRecords struct {
	Zone     string
	Records  *hosts.Records
	Warnings []string
}

// Syncer reconciles hosts files against a record source.
type Syncer struct {
	src         source.Source
	stdin       io.Reader
	stdout      io.Writer
	logger      *slog.Logger
	concurrency int
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithStdio overrides the readers and writers used for Stdio.
func WithStdio(in io.Reader, out io.Writer) Option {
	return func(s *Syncer) {
		s.stdin = in
		s.stdout = out
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) {
		s.logger = l
	}
}

// WithConcurrency bounds concurrent zone fetches. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New creates a Syncer for src.
func New(src source.Source, opts ...Option) *Syncer {
	s := &Syncer{
		src:         src,
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		logger:      logging.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one sync pass. A parse or source error aborts the pass
// before anything is written.
func (s *Syncer) Run(ctx context.Context, opts Options) (*Result, error) {
	if len(opts.Zones) == 0 {
		return nil, ErrNoZones
	}

	original, err := ReadInput(s.stdin, opts.Input)
	if err != nil {
		return nil, err
	}

	doc, err := hosts.Parse(original)
	if err != nil {
		return nil, fmt.Errorf("failed to parse hosts input: %w", err)
	}

	fetched, err := s.Fetch(ctx, opts.Zones)
	if err != nil {
		return nil, err
	}

	result := &Result{Zones: make(map[string]int, len(fetched))}
	for _, zr := range fetched {
		for _, w := range zr.Warnings {
			s.logger.Warn(w, "zone", zr.Zone)
			result.Warnings = append(result.Warnings, zr.Zone+": "+w)
		}
		doc.Update(zr.Zone, zr.Records)
		result.Zones[zr.Zone] = zr.Records.Len()
	}

	output := doc.String() + "\n"
	result.Changed = output != original

	if !result.Changed && opts.Output != Stdio && opts.Output == opts.Input {
		s.logger.Debug("hosts file unchanged", "path", opts.Output)
		return result, nil
	}

	if err := s.write(opts.Output, output); err != nil {
		return nil, err
	}

	s.logger.Info("hosts synced",
		"output", opts.Output,
		"zones", len(opts.Zones),
		"changed", result.Changed,
		"warnings", len(result.Warnings),
	)
	return result, nil
}

// Fetch retrieves records for every zone concurrently. The result keeps the
// order of zones. The first error cancels the remaining fetches.
func (s *Syncer) Fetch(ctx context.Context, zones []string) ([]ZoneRecords, error) {
	out := make([]ZoneRecords, len(zones))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, zone := range zones {
		g.Go(func() error {
			s.logger.Debug("fetching zone", "zone", zone)
			records, warnings, err := s.src.Records(ctx, zone)
			if err != nil {
				return fmt.Errorf("zone %s: %w", zone, err)
			}
			if records == nil {
				records = hosts.NewRecords()
			}
			out[i] = ZoneRecords{Zone: zone, Records: records, Warnings: warnings}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadInput reads the hosts file at input, or stdin when input is Stdio.
func ReadInput(stdin io.Reader, input string) (string, error) {
	if input == Stdio {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return "", fmt.Errorf("failed to read hosts file: %w", err)
	}
	return string(data), nil
}

// write replaces the output atomically, keeping the mode of an existing file.
func (s *Syncer) write(output, content string) error {
	if output == Stdio {
		if _, err := io.WriteString(s.stdout, content); err != nil {
			return fmt.Errorf("failed to write stdout: %w", err)
		}
		return nil
	}

	mode := defaultFileMode
	if info, err := os.Stat(output); err == nil {
		mode = info.Mode().Perm()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat hosts file: %w", err)
	}

	if err := atomicwriter.WriteFile(output, []byte(content), mode); err != nil {
		return fmt.Errorf("failed to write hosts file: %w", err)
	}
	return nil
}
