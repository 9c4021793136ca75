// Package dockerhost talks to the local container daemon through the Docker
// SDK. It is used for local volume listing and for the source-volume
// preflight check before a transfer.
package dockerhost

import (
	"context"
	"errors"
	"fmt"
	"sort"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/samber/lo"
)

// ErrSourceNotFound is returned by CheckSource when the volume is missing.
var ErrSourceNotFound = errors.New("source volume not found")

// API is the subset of the Docker client used here.
type API interface {
	VolumeList(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error)
	VolumeInspect(ctx context.Context, volumeID string) (volume.Volume, error)
	Close() error
}

// Client wraps a Docker API client.
type Client struct {
	api API
}

// New connects to the daemon selected by the DOCKER_* environment.
func New() (*Client, error) {
	api, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Client{api: api}, nil
}

// NewWithAPI creates a Client from an existing API implementation.
func NewWithAPI(api API) *Client {
	return &Client{api: api}
}

// Volumes returns the names of all local volumes, sorted.
func (c *Client) Volumes(ctx context.Context) ([]string, error) {
	resp, err := c.api.VolumeList(ctx, volume.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list local volumes: %w", err)
	}

	names := lo.FilterMap(resp.Volumes, func(v *volume.Volume, _ int) (string, bool) {
		if v == nil {
			return "", false
		}
		return v.Name, v.Name != ""
	})
	sort.Strings(names)
	return names, nil
}

// CheckSource verifies that the named volume exists locally.
func (c *Client) CheckSource(ctx context.Context, name string) error {
	if _, err := c.api.VolumeInspect(ctx, name); err != nil {
		if cerrdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrSourceNotFound, name)
		}
		return fmt.Errorf("failed to inspect volume %s: %w", name, err)
	}
	return nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.api.Close()
}
