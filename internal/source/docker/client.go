package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// Client wraps the Docker API client.
type Client struct {
	api    DockerAPI
	logger *slog.Logger
}

// NewClient creates a Docker client. An empty host uses DOCKER_HOST and
// friends from the environment.
func NewClient(host string, logger *slog.Logger) (*Client, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	} else {
		opts = append(opts, client.FromEnv)
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	return NewClientWithAPI(cli, logger), nil
}

// NewClientWithAPI creates a Docker client with a custom DockerAPI implementation.
// This is primarily useful for testing.
func NewClientWithAPI(api DockerAPI, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:    api,
		logger: logger,
	}
}

// Ping checks if the Docker daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to Docker daemon: %w", err)
	}
	return nil
}

// Close closes the Docker client connection.
func (c *Client) Close() error {
	if c.api != nil {
		return c.api.Close()
	}
	return nil
}

// ListContainersWithLabel returns running containers that have at least
// one label starting with labelPrefix.
func (c *Client) ListContainersWithLabel(ctx context.Context, labelPrefix string) ([]container.Summary, error) {
	filterArgs := filters.NewArgs()
	filterArgs.Add("status", "running")
	// Docker's filter doesn't support prefix matching, so we filter all and check labels ourselves

	containers, err := c.api.ContainerList(ctx, container.ListOptions{
		All:     false,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var result []container.Summary
	for _, ctr := range containers {
		if hasLabelPrefix(ctr.Labels, labelPrefix) {
			result = append(result, ctr)
		}
	}

	c.logger.Debug("listed labelled containers", "prefix", labelPrefix, "total", len(containers), "matched", len(result))
	return result, nil
}

// Events subscribes to container start and stop events.
func (c *Client) Events(ctx context.Context) (<-chan events.Message, <-chan error) {
	return c.api.Events(ctx, events.ListOptions{
		Filters: filters.NewArgs(
			filters.Arg("type", "container"),
			filters.Arg("event", "start"),
			filters.Arg("event", "stop"),
			filters.Arg("event", "die"),
		),
	})
}

// hasLabelPrefix reports whether any label key starts with prefix and a dot.
func hasLabelPrefix(labels map[string]string, prefix string) bool {
	for label := range labels {
		if strings.HasPrefix(label, prefix+".") {
			return true
		}
	}
	return false
}

// ContainerIP returns the IP address of a container, preferring network.
func (c *Client) ContainerIP(ctx context.Context, containerID, network string) (string, error) {
	info, err := c.api.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("failed to inspect container: %w", err)
	}
	return extractIP(info.NetworkSettings, network)
}

// extractIP extracts the IP from network settings.
func extractIP(settings *container.NetworkSettings, network string) (string, error) {
	if settings == nil {
		return "", fmt.Errorf("no network settings")
	}

	// Try the specified network first
	if network != "" {
		if ep, ok := settings.Networks[network]; ok && ep != nil && ep.IPAddress != "" {
			return ep.IPAddress, nil
		}
	}

	// Fall back to the first network with an address, by name for stable output
	names := make([]string, 0, len(settings.Networks))
	for name := range settings.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if ep := settings.Networks[name]; ep != nil && ep.IPAddress != "" {
			return ep.IPAddress, nil
		}
	}

	return "", fmt.Errorf("no IP address found for container")
}

// containerName returns the display name of a container summary.
func containerName(ctr container.Summary) string {
	if len(ctr.Names) > 0 {
		return strings.TrimPrefix(ctr.Names[0], "/")
	}
	if len(ctr.ID) > 12 {
		return ctr.ID[:12]
	}
	return ctr.ID
}
