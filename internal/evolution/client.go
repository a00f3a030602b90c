// Package evolution is a thin client for the Evolution API WhatsApp
// gateway. The client is constructed once and injected wherever needed;
// there is no package-level instance.
package evolution

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultHTTPTimeout = 30 * time.Second

// Connection states reported by the gateway.
const (
	StateOpen       = "open"
	StateConnecting = "connecting"
	StateClosed     = "close"
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// QRCode is a pairing code issued by the gateway while an instance waits
// to be linked. Base64 is a data URI PNG ready for an <img> tag.
type QRCode struct {
	PairingCode string    `json:"pairing_code,omitempty"`
	Code        string    `json:"code,omitempty"`
	Base64      string    `json:"base64,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, respBody any) error {
	var payload *bytes.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("evolution request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("evolution returned status %d for %s %s", resp.StatusCode, method, path)
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return fmt.Errorf("failed to decode evolution response: %w", err)
		}
	}
	return nil
}

// CreateInstance registers a named instance on the gateway.
func (c *Client) CreateInstance(ctx context.Context, instanceName string) error {
	body := map[string]any{
		"instanceName": instanceName,
		"qrcode":       true,
	}
	return c.doJSON(ctx, http.MethodPost, "/instance/create", body, nil)
}

// Connect asks the gateway to start a session for the instance and
// returns the pairing QR code to display. When the gateway sends only a
// raw code string, a PNG is rendered locally so the console always has an
// image.
func (c *Client) Connect(ctx context.Context, instanceName string) (*QRCode, error) {
	var resp struct {
		PairingCode string `json:"pairingCode"`
		Code        string `json:"code"`
		Base64      string `json:"base64"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/instance/connect/"+instanceName, nil, &resp); err != nil {
		return nil, err
	}

	qr := &QRCode{
		PairingCode: resp.PairingCode,
		Code:        resp.Code,
		Base64:      resp.Base64,
		IssuedAt:    time.Now(),
	}
	if qr.Base64 == "" && qr.Code != "" {
		png, err := qrcode.Encode(qr.Code, qrcode.Medium, 512)
		if err != nil {
			return nil, fmt.Errorf("failed to render QR code: %w", err)
		}
		qr.Base64 = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	}
	return qr, nil
}

// ConnectionState fetches the instance's current state, one of
// StateOpen, StateConnecting or StateClosed.
func (c *Client) ConnectionState(ctx context.Context, instanceName string) (string, error) {
	var resp struct {
		Instance struct {
			InstanceName string `json:"instanceName"`
			State        string `json:"state"`
		} `json:"instance"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/instance/connectionState/"+instanceName, nil, &resp); err != nil {
		return "", err
	}
	return resp.Instance.State, nil
}

// Logout terminates the instance's WhatsApp session without deleting it.
func (c *Client) Logout(ctx context.Context, instanceName string) error {
	return c.doJSON(ctx, http.MethodDelete, "/instance/logout/"+instanceName, nil, nil)
}

// DeleteInstance removes the instance from the gateway entirely.
func (c *Client) DeleteInstance(ctx context.Context, instanceName string) error {
	return c.doJSON(ctx, http.MethodDelete, "/instance/delete/"+instanceName, nil, nil)
}
