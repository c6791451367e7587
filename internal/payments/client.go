package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Client talks to the payment provider's hosted-checkout API. It is
// constructed once at the composition root and injected into services.
type Client struct {
	APIKey        string
	WebhookSecret string
	BaseURL       string
	HTTP          *http.Client
}

type LineItem struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageRef    string `json:"image,omitempty"`
	AmountCents int64  `json:"unit_amount"`
	Currency    string `json:"currency"`
	Quantity    int    `json:"quantity"`
}

type SessionParams struct {
	LineItems         []LineItem        `json:"line_items"`
	SuccessURL        string            `json:"success_url"`
	CancelURL         string            `json:"cancel_url"`
	ClientReferenceID string            `json:"client_reference_id"`
	Locale            string            `json:"locale,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckoutSession requests a hosted checkout session keyed to our
// order via ClientReferenceID. The returned URL is where the user pays.
func (c *Client) CreateCheckoutSession(ctx context.Context, params SessionParams) (Session, error) {
	if len(params.LineItems) == 0 {
		return Session{}, errors.New("line items required")
	}
	if strings.TrimSpace(params.ClientReferenceID) == "" {
		return Session{}, errors.New("client reference required")
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return Session{}, err
	}
	u := strings.TrimRight(c.BaseURL, "/") + "/v1/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(raw))
	if err != nil {
		return Session{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return Session{}, errors.Wrap(err, "provider request failed")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Session{}, errors.Errorf("provider error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out Session
	if err := json.Unmarshal(body, &out); err != nil {
		return Session{}, errors.Wrap(err, "decode session response")
	}
	if strings.TrimSpace(out.ID) == "" || strings.TrimSpace(out.URL) == "" {
		return Session{}, errors.New("provider returned incomplete session")
	}
	return out, nil
}
