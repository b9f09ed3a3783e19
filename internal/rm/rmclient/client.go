// Package rmclient implements the RM protocol over the cluster's AM gateway,
// a JSON-over-HTTP bridge in front of the scheduler. The wire format lives
// here and nowhere else; the container manager only sees sproto types.
package rmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dtrain-ml/dtrain/appmaster/internal/sproto"
	"github.com/dtrain-ml/dtrain/appmaster/pkg/cproto"
)

const requestTimeout = 30 * time.Second

// Client is a sproto.RMClient over the AM gateway.
type Client struct {
	syslog *logrus.Entry
	base   string
	client *http.Client
}

// New builds a client for the gateway at endpoint, e.g. "http://rm:8030".
func New(endpoint string) *Client {
	return &Client{
		syslog: logrus.WithField("component", "rm-client"),
		base:   strings.TrimRight(endpoint, "/"),
		client: &http.Client{Timeout: requestTimeout},
	}
}

type registerRequest struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	TrackingURL string `json:"tracking_url"`
}

type registerResponse struct {
	MaxResource cproto.Resource `json:"max_resource"`
	Queue       string          `json:"queue"`
}

type allocateRequest struct {
	Progress float32 `json:"progress"`
}

type updatedContainer struct {
	Container  cproto.Container `json:"container"`
	UpdateType string           `json:"update_type"`
}

type allocateResponse struct {
	Allocated []cproto.Container `json:"allocated"`
	Completed []cproto.Status    `json:"completed"`
	Updated   []updatedContainer `json:"updated"`
}

type releaseRequest struct {
	ContainerID cproto.ID `json:"container_id"`
}

type blacklistRequest struct {
	Additions []string `json:"additions"`
	Removals  []string `json:"removals"`
}

type containerUpdateRequest struct {
	Container     cproto.Container `json:"container"`
	Version       uint64           `json:"version"`
	UpdateType    string           `json:"update_type"`
	Target        cproto.Resource  `json:"target"`
	ExecutionType string           `json:"execution_type"`
}

type containerAskRequest struct {
	Priority cproto.Priority `json:"priority"`
	Resource cproto.Resource `json:"resource"`
	Count    int             `json:"count"`
}

// Register implements sproto.RMClient.
func (c *Client) Register(
	ctx context.Context, host string, port int, trackingURL string,
) (*sproto.RegisterResponse, error) {
	var resp registerResponse
	req := registerRequest{Host: host, Port: port, TrackingURL: trackingURL}
	if err := c.post(ctx, "/ws/v1/am/register", req, &resp); err != nil {
		return nil, err
	}
	return &sproto.RegisterResponse{MaxResource: resp.MaxResource, Queue: resp.Queue}, nil
}

// Allocate implements sproto.RMClient.
func (c *Client) Allocate(ctx context.Context, progress float32) (*sproto.AllocateResponse, error) {
	var resp allocateResponse
	if err := c.post(ctx, "/ws/v1/am/allocate", allocateRequest{Progress: progress}, &resp); err != nil {
		return nil, err
	}

	out := &sproto.AllocateResponse{
		Allocated: resp.Allocated,
		Completed: resp.Completed,
	}
	for _, u := range resp.Updated {
		out.Updated = append(out.Updated, sproto.UpdatedContainer{
			Container:  u.Container,
			UpdateType: parseUpdateType(u.UpdateType),
		})
	}
	return out, nil
}

// ReleaseAssigned implements sproto.RMClient.
func (c *Client) ReleaseAssigned(ctx context.Context, id cproto.ID) error {
	return c.post(ctx, "/ws/v1/am/release", releaseRequest{ContainerID: id}, nil)
}

// UpdateBlacklist implements sproto.RMClient.
func (c *Client) UpdateBlacklist(ctx context.Context, additions, removals []string) error {
	req := blacklistRequest{Additions: additions, Removals: removals}
	return c.post(ctx, "/ws/v1/am/blacklist", req, nil)
}

// RequestContainerUpdate implements sproto.RMClient.
func (c *Client) RequestContainerUpdate(
	ctx context.Context,
	container cproto.Container,
	version uint64,
	updateType sproto.ContainerUpdateType,
	target cproto.Resource,
	executionType sproto.ExecutionType,
) error {
	req := containerUpdateRequest{
		Container:     container,
		Version:       version,
		UpdateType:    updateType.String(),
		Target:        target,
		ExecutionType: "GUARANTEED",
	}
	return c.post(ctx, "/ws/v1/am/container-update", req, nil)
}

// RequestContainers implements sproto.RMClient.
func (c *Client) RequestContainers(
	ctx context.Context, priority cproto.Priority, resource cproto.Resource, count int,
) error {
	req := containerAskRequest{Priority: priority, Resource: resource, Count: count}
	return c.post(ctx, "/ws/v1/am/ask", req, nil)
}

func parseUpdateType(s string) sproto.ContainerUpdateType {
	switch s {
	case "INCREASE_RESOURCE":
		return sproto.ContainerUpdateIncrease
	case "DECREASE_RESOURCE":
		return sproto.ContainerUpdateDecrease
	default:
		return sproto.ContainerUpdateNone
	}
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "encoding %s request", path)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "building %s request", path)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "calling %s", path)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf(
			"%s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding %s response", path)
	}
	return nil
}
