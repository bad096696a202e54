package docker

import (
	"context"
	"errors"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/network"
)

// mockDockerAPI is a test double for DockerAPI that allows configuring
// behavior per-test via function fields.
type mockDockerAPI struct {
	pingFunc             func(ctx context.Context) (types.Ping, error)
	containerListFunc    func(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	containerInspectFunc func(ctx context.Context, containerID string) (container.InspectResponse, error)
	eventsFunc           func(ctx context.Context, options events.ListOptions) (<-chan events.Message, <-chan error)
	closed               bool
}

func (m *mockDockerAPI) Ping(ctx context.Context) (types.Ping, error) {
	if m.pingFunc != nil {
		return m.pingFunc(ctx)
	}
	return types.Ping{}, nil
}

func (m *mockDockerAPI) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	if m.containerListFunc != nil {
		return m.containerListFunc(ctx, options)
	}
	return nil, nil
}

func (m *mockDockerAPI) ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	if m.containerInspectFunc != nil {
		return m.containerInspectFunc(ctx, containerID)
	}
	return container.InspectResponse{}, nil
}

func (m *mockDockerAPI) Events(ctx context.Context, options events.ListOptions) (<-chan events.Message, <-chan error) {
	if m.eventsFunc != nil {
		return m.eventsFunc(ctx, options)
	}
	// Closed channels by default
	eventCh := make(chan events.Message)
	errCh := make(chan error)
	close(eventCh)
	close(errCh)
	return eventCh, errCh
}

func (m *mockDockerAPI) Close() error {
	m.closed = true
	return nil
}

// withContainers returns a mock listing containers and answering inspects
// from ips (container ID -> IP on network "bridge").
func withContainers(containers []container.Summary, ips map[string]string) *mockDockerAPI {
	return &mockDockerAPI{
		containerListFunc: func(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
			return containers, nil
		},
		containerInspectFunc: func(ctx context.Context, containerID string) (container.InspectResponse, error) {
			ip, ok := ips[containerID]
			if !ok {
				return container.InspectResponse{}, errMockNotFound
			}
			return makeContainerInspectResponse(containerID, ip, "bridge"), nil
		},
	}
}

// Helper function to create a container summary for tests.
func makeContainerSummary(id, name string, labels map[string]string) container.Summary {
	names := []string{}
	if name != "" {
		names = append(names, "/"+name)
	}
	return container.Summary{
		ID:     id,
		Names:  names,
		Labels: labels,
	}
}

// Helper function to create a container inspect response for tests.
func makeContainerInspectResponse(id, ip, networkName string) container.InspectResponse {
	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID: id,
		},
		NetworkSettings: &container.NetworkSettings{
			Networks: map[string]*network.EndpointSettings{
				networkName: {
					IPAddress: ip,
				},
			},
		},
	}
}

// Common test errors.
var (
	errMockConnection = errors.New("mock: connection failed")
	errMockNotFound   = errors.New("mock: container not found")
)
