// Package wled is a client for the WLED JSON API.
package wled

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrConnection is returned when the device cannot be reached
	ErrConnection = errors.New("wled: communication error")

	// ErrResponse is returned when the device rejects a request or answers garbage
	ErrResponse = errors.New("wled: invalid response")

	// ErrNotLoaded is returned when a name lookup runs before the first Update
	ErrNotLoaded = errors.New("wled: device state not loaded")

	ErrUnknownEffect   = errors.New("wled: unknown effect")
	ErrUnknownPalette  = errors.New("wled: unknown palette")
	ErrUnknownPreset   = errors.New("wled: unknown preset")
	ErrUnknownPlaylist = errors.New("wled: unknown playlist")
)

// Client talks to one WLED device
type Client struct {
	address    string
	httpClient *http.Client

	// last snapshot decoded, used to resolve names to device ids
	device atomic.Pointer[Device]
}

// NewClient creates a new WLED client. address is host or host:port.
func NewClient(address string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 8 * time.Second
	}
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}

	return &Client{
		address: strings.TrimRight(address, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Close closes idle connections
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Address returns the device base URL
func (c *Client) Address() string {
	return c.address
}

func (c *Client) request(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.address+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrResponse, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrResponse, path, err)
	}
	return nil
}

// Update polls the device and returns a fresh snapshot
func (c *Client) Update(ctx context.Context) (*Device, error) {
	var raw rawDevice
	if err := c.request(ctx, http.MethodGet, "/json", nil, &raw); err != nil {
		return nil, err
	}

	// Older firmware has no presets.json; treat it as "no presets"
	presets := make(map[string]rawPreset)
	if err := c.request(ctx, http.MethodGet, "/presets.json", nil, &presets); err != nil {
		if errors.Is(err, ErrConnection) {
			return nil, err
		}
		log.Debug().Err(err).Str("device", c.address).Msg("Presets unavailable")
		presets = nil
	}

	device := decodeDevice(raw, presets)
	c.device.Store(device)
	return device, nil
}

// Last returns the most recently decoded snapshot, or nil
func (c *Client) Last() *Device {
	return c.device.Load()
}

func (c *Client) postState(ctx context.Context, payload map[string]any) error {
	log.Debug().Str("device", c.address).Interface("payload", payload).Msg("Sending state")
	return c.request(ctx, http.MethodPost, "/json/state", payload, nil)
}

// Master changes device-level power and brightness
func (c *Client) Master(ctx context.Context, req MasterRequest) error {
	return c.postState(ctx, req.payload())
}

// Segment changes a single segment
func (c *Client) Segment(ctx context.Context, req SegmentRequest) error {
	payload, err := req.payload(c.Last())
	if err != nil {
		return err
	}
	return c.postState(ctx, payload)
}

// Live sets the live override mode
func (c *Client) Live(ctx context.Context, live LiveOverride) error {
	return c.postState(ctx, map[string]any{"lor": int(live)})
}

// Preset activates a preset by name
func (c *Client) Preset(ctx context.Context, name string) error {
	d := c.Last()
	if d == nil {
		return ErrNotLoaded
	}
	p, ok := d.presetByName(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return c.postState(ctx, map[string]any{"ps": p.ID})
}

// Playlist starts a playlist by name
func (c *Client) Playlist(ctx context.Context, name string) error {
	d := c.Last()
	if d == nil {
		return ErrNotLoaded
	}
	p, ok := d.playlistByName(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlaylist, name)
	}
	return c.postState(ctx, map[string]any{"ps": p.ID})
}
