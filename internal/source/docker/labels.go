package docker

import (
	"fmt"
	"strings"
)

// DefaultLabelPrefix is the prefix used for all hostsync Docker labels.
const DefaultLabelPrefix = "hostsync"

// HostConfig is the hosts configuration parsed from a container's labels.
type HostConfig struct {
	// Zone restricts the container to one zone. Empty means any zone that
	// contains the hosts.
	Zone string

	// Hosts are the hostnames to map to the container's address.
	Hosts []string
}

// LabelParser parses Docker container labels into host configurations.
//
//	hostsync.hosts=app.example.com,api.example.com
//	hostsync.zone=example.com
//	hostsync.enable=false   (opt out)
type LabelParser struct {
	prefix string
}

// NewLabelParser creates a label parser. An empty prefix uses DefaultLabelPrefix.
func NewLabelParser(prefix string) *LabelParser {
	if prefix == "" {
		prefix = DefaultLabelPrefix
	}
	return &LabelParser{prefix: prefix}
}

// Prefix returns the label prefix.
func (p *LabelParser) Prefix() string {
	return p.prefix
}

// ParseLabels parses container labels. It returns nil when the container
// carries no hosts label or has opted out.
func (p *LabelParser) ParseLabels(labels map[string]string) (*HostConfig, error) {
	if labels[p.prefix+".enable"] == "false" {
		return nil, nil
	}

	hostKey := p.prefix + ".hosts"
	raw, ok := labels[hostKey]
	if !ok {
		return nil, nil
	}

	cfg := &HostConfig{Zone: strings.TrimSuffix(labels[p.prefix+".zone"], ".")}
	for _, h := range strings.Split(raw, ",") {
		h = strings.TrimSpace(h)
		if err := validateHost(h); err != nil {
			return nil, fmt.Errorf("invalid host in label %s: %w", hostKey, err)
		}
		cfg.Hosts = append(cfg.Hosts, h)
	}

	return cfg, nil
}

// validateHost validates a host and returns an error if invalid.
// Hosts files have no wildcard syntax, so wildcards are rejected.
func validateHost(host string) error {
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if strings.Contains(host, "*") {
		return fmt.Errorf("wildcard host %q cannot be written to a hosts file", host)
	}
	if strings.HasPrefix(host, ".") || strings.ContainsAny(host, " \t#") {
		return fmt.Errorf("invalid host %q", host)
	}
	return nil
}
