// Package zonefile reads zone records from RFC 1035 zone files on disk.
package zonefile

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/miekg/dns"

	"github.com/munichmade/hostsync/internal/hosts"
	"github.com/munichmade/hostsync/internal/source"
)

// Name is the registry name of this source.
const Name = "zonefile"

func init() {
	source.Register(Name, func(opts source.Options) (source.Source, error) {
		return New(opts)
	})
}

// Source parses zone files. With the file setting every zone is read from
// that one file; with the dir setting a zone is read from <dir>/<zone> or
// <dir>/<zone>.zone.
type Source struct {
	file        string
	dir         string
	recordTypes []string
	logger      *slog.Logger
}

// New creates a zone file source. One of file or dir is required.
func New(opts source.Options) (*Source, error) {
	s := &Source{
		file:        opts.Settings.String("file", ""),
		dir:         opts.Settings.String("dir", ""),
		recordTypes: opts.RecordTypes,
		logger:      opts.Logger,
	}
	if s.file == "" && s.dir == "" {
		return nil, fmt.Errorf("zonefile: setting file or dir is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Path returns the zone file used for zone.
func (s *Source) Path(zone string) (string, error) {
	if s.file != "" {
		return s.file, nil
	}

	name := strings.TrimSuffix(zone, ".")
	candidates := []string{
		filepath.Join(s.dir, name),
		filepath.Join(s.dir, name+".zone"),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no zone file for %s in %s: %w", zone, s.dir, fs.ErrNotExist)
}

// Records implements source.Source.
func (s *Source) Records(ctx context.Context, zone string) (*hosts.Records, []string, error) {
	path, err := s.Path(zone)
	if err != nil {
		return nil, nil, err
	}

	c, err := source.NewCollector(zone, s.recordTypes)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open zone file: %w", err)
	}
	defer func() { _ = f.Close() }()

	s.logger.Debug("parsing zone file", "zone", zone, "path", path)

	zp := dns.NewZoneParser(f, dns.Fqdn(zone), path)
	zp.SetIncludeAllowed(true)
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		c.Add(rr)
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
	}
	if err := zp.Err(); err != nil {
		return nil, nil, fmt.Errorf("invalid zone file: %w", err)
	}

	records, warnings := c.Result()
	return records, warnings, nil
}
