package sheetsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"rollcall/internal/profile"
	"rollcall/internal/roster"
	"rollcall/internal/session"
)

// ErrDelivery wraps transport failures reaching the webhook.
var ErrDelivery = errors.New("sheet sync delivery failed")

// ErrNoEndpoint means neither the profile nor the config names a webhook.
var ErrNoEndpoint = errors.New("sheet sync endpoint not configured")

const (
	StatusPresent = "PRESENT"
	StatusAbsent  = "ABSENT"
)

// Entry is one roster line in the payload.
type Entry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Payload is the webhook body.
type Payload struct {
	UnitLabel    string     `json:"unitLabel"`
	PreparerName string     `json:"preparerName"`
	GroupLabel   string     `json:"groupLabel"`
	Date         session.ID `json:"date"`
	Attendance   []Entry    `json:"attendance"`
}

// Build lists every member with a present or absent status for the session,
// in roster order.
func Build(p profile.Profile, id session.ID, members []roster.Member, present roster.PresenceSet) Payload {
	p = p.Normalize()
	out := Payload{
		UnitLabel:    p.UnitLabel,
		PreparerName: p.PreparerName,
		GroupLabel:   p.GroupLabel,
		Date:         id,
		Attendance:   make([]Entry, 0, len(members)),
	}
	for _, m := range members {
		status := StatusAbsent
		if present.Has(m.ID) {
			status = StatusPresent
		}
		out.Attendance = append(out.Attendance, Entry{ID: m.ID, Name: m.Name, Status: status})
	}
	return out
}

// Client posts payloads to a spreadsheet webhook.
type Client struct {
	DefaultURL string
	HTTP       *http.Client
}

// NewClient creates a client; defaultURL is used when a job carries none.
func NewClient(defaultURL string) *Client {
	return &Client{
		DefaultURL: defaultURL,
		HTTP:       &http.Client{Timeout: 15 * time.Second},
	}
}

// Send posts the payload as text/plain so script endpoints skip CORS
// preflight. Delivery is best effort: any response counts as success and only
// transport errors are returned.
func (c *Client) Send(ctx context.Context, url string, p Payload) error {
	if url == "" {
		url = c.DefaultURL
	}
	if url == "" {
		return ErrNoEndpoint
	}
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
