// Package docker reads zone records from labelled Docker containers.
//
// A running container labelled hostsync.hosts=a.example.com,b.example.com
// contributes its IP address with those hostnames to zone example.com.
package docker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/miekg/dns"

	"github.com/munichmade/hostsync/internal/hosts"
	"github.com/munichmade/hostsync/internal/source"
)

// Name is the registry name of this source.
const Name = "docker"

func init() {
	source.Register(Name, func(opts source.Options) (source.Source, error) {
		return New(opts)
	})
}

var _ source.Pinger = (*Source)(nil)

// Source maps container addresses to the hostnames in their labels.
type Source struct {
	client  *Client
	parser  *LabelParser
	network string
	logger  *slog.Logger
}

// New creates a Docker source. Settings: host, network, label_prefix.
func New(opts source.Options) (*Source, error) {
	c, err := NewClient(opts.Settings.String("host", ""), opts.Logger)
	if err != nil {
		return nil, err
	}
	return NewWithClient(c, opts), nil
}

// NewWithClient creates a Docker source around an existing client.
func NewWithClient(c *Client, opts source.Options) *Source {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		client:  c,
		parser:  NewLabelParser(opts.Settings.String("label_prefix", DefaultLabelPrefix)),
		network: opts.Settings.String("network", ""),
		logger:  logger,
	}
}

// Ping reports whether the Docker daemon is reachable.
func (s *Source) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Close releases the Docker connection.
func (s *Source) Close() error {
	return s.client.Close()
}

// Records implements source.Source.
func (s *Source) Records(ctx context.Context, zone string) (*hosts.Records, []string, error) {
	containers, err := s.client.ListContainersWithLabel(ctx, s.parser.Prefix())
	if err != nil {
		return nil, nil, err
	}

	fqdn := dns.Fqdn(zone)
	records := hosts.NewRecords()
	var warnings []string

	for _, ctr := range containers {
		name := containerName(ctr)

		cfg, err := s.parser.ParseLabels(ctr.Labels)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping container %s: %v", name, err))
			continue
		}
		if cfg == nil {
			continue
		}

		var inZone []string
		if cfg.Zone != "" {
			if !strings.EqualFold(cfg.Zone, strings.TrimSuffix(zone, ".")) {
				continue
			}
			for _, h := range cfg.Hosts {
				if dns.IsSubDomain(fqdn, dns.Fqdn(h)) {
					inZone = append(inZone, h)
				} else {
					warnings = append(warnings, fmt.Sprintf("skipping host %s of container %s: outside zone %s", h, name, zone))
				}
			}
		} else {
			for _, h := range cfg.Hosts {
				if dns.IsSubDomain(fqdn, dns.Fqdn(h)) {
					inZone = append(inZone, h)
				}
			}
		}
		if len(inZone) == 0 {
			continue
		}

		ip, err := s.client.ContainerIP(ctx, ctr.ID, s.network)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping container %s: %v", name, err))
			continue
		}

		s.logger.Debug("container hosts", "container", name, "ip", ip, "hosts", inZone)
		records.Add(ip, inZone...)
	}

	return records, warnings, nil
}
