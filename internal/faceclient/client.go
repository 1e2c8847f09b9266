package faceclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrRecognitionService wraps every failure talking to the vision service.
var ErrRecognitionService = errors.New("recognition service error")

// Reference is one labelled roster image sent alongside a scene.
type Reference struct {
	MemberID string
	Name     string
	Image    []byte
}

// Client calls the face recognition microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client with configurable timeout.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // face processing can take time
		},
	}
}

type identifyReference struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

type identifyRequest struct {
	Scene      string              `json:"scene"`
	References []identifyReference `json:"references"`
}

// Identify returns the ids of the references whose faces appear in scene.
// The service answers with a JSON array of ids; ids it invents are passed
// through and left to the caller to reject.
func (c *Client) Identify(ctx context.Context, scene []byte, refs []Reference) ([]string, error) {
	if c.Skip {
		return []string{}, nil
	}
	if len(scene) == 0 {
		return nil, fmt.Errorf("%w: empty scene", ErrRecognitionService)
	}

	payload := identifyRequest{
		Scene:      base64.StdEncoding.EncodeToString(scene),
		References: make([]identifyReference, 0, len(refs)),
	}
	for _, r := range refs {
		payload.References = append(payload.References, identifyReference{
			ID:    r.MemberID,
			Name:  r.Name,
			Image: base64.StdEncoding.EncodeToString(r.Image),
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrRecognitionService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/identify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecognitionService, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrRecognitionService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s: %s", ErrRecognitionService, resp.Status, string(bodyBytes))
	}

	var ids []string
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRecognitionService, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: unavailable: %w", ErrRecognitionService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unhealthy: %s", ErrRecognitionService, resp.Status)
	}

	return nil
}
