// Package axfr reads zone records with a DNS zone transfer.
package axfr

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/munichmade/hostsync/internal/hosts"
	"github.com/munichmade/hostsync/internal/source"
)

const (
	// Name is the registry name of this source.
	Name = "axfr"

	// DefaultPort is used when the server setting has no port.
	DefaultPort = "53"

	// DefaultTimeout bounds dialing and each read of the transfer.
	DefaultTimeout = 10 * time.Second
)

func init() {
	source.Register(Name, func(opts source.Options) (source.Source, error) {
		return New(opts)
	})
}

// Source transfers a zone from an authoritative server.
type Source struct {
	server      string
	recordTypes []string
	timeout     time.Duration

	tsigName   string
	tsigSecret string
	tsigAlgo   string

	logger *slog.Logger
}

// New creates an AXFR source. The server setting is required.
func New(opts source.Options) (*Source, error) {
	server := opts.Settings.String("server", "")
	if server == "" {
		return nil, fmt.Errorf("axfr: setting server is required")
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, DefaultPort)
	}

	timeout, err := opts.Settings.Duration("timeout", DefaultTimeout)
	if err != nil {
		return nil, err
	}

	s := &Source{
		server:      server,
		recordTypes: opts.RecordTypes,
		timeout:     timeout,
		tsigName:    opts.Settings.String("tsig_name", ""),
		tsigSecret:  opts.Settings.String("tsig_secret", ""),
		tsigAlgo:    opts.Settings.String("tsig_algorithm", dns.HmacSHA256),
		logger:      opts.Logger,
	}
	if (s.tsigName == "") != (s.tsigSecret == "") {
		return nil, fmt.Errorf("axfr: tsig_name and tsig_secret must be set together")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Records implements source.Source.
func (s *Source) Records(ctx context.Context, zone string) (*hosts.Records, []string, error) {
	c, err := source.NewCollector(zone, s.recordTypes)
	if err != nil {
		return nil, nil, err
	}

	m := new(dns.Msg)
	m.SetAxfr(dns.Fqdn(zone))

	t := &dns.Transfer{
		DialTimeout:  s.timeout,
		ReadTimeout:  s.timeout,
		WriteTimeout: s.timeout,
	}
	if s.tsigName != "" {
		name := dns.Fqdn(s.tsigName)
		t.TsigSecret = map[string]string{name: s.tsigSecret}
		m.SetTsig(name, dns.Fqdn(strings.ToLower(s.tsigAlgo)), 300, time.Now().Unix())
	}

	s.logger.Debug("starting zone transfer", "zone", zone, "server", s.server)

	ch, err := t.In(m, s.server)
	if err != nil {
		return nil, nil, fmt.Errorf("zone transfer of %s from %s: %w", zone, s.server, err)
	}

	var count int
	for env := range ch {
		if env.Error != nil {
			return nil, nil, fmt.Errorf("zone transfer of %s from %s: %w", zone, s.server, env.Error)
		}
		for _, rr := range env.RR {
			c.Add(rr)
			count++
		}
		if err := ctx.Err(); err != nil {
			// Drain so the transfer goroutine can finish.
			go func() {
				for range ch {
				}
			}()
			return nil, nil, err
		}
	}

	s.logger.Debug("zone transfer complete", "zone", zone, "records", count)

	records, warnings := c.Result()
	return records, warnings, nil
}
