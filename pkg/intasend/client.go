package intasend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gasflowhq/gasflow-backend/pkg/config"
	pkgerrors "github.com/gasflowhq/gasflow-backend/pkg/errors"
	"github.com/gasflowhq/gasflow-backend/pkg/logger"
)

const checkoutPath = "/api/v1/checkout/"

// StateComplete is the webhook/checkout state that marks a paid invoice.
const StateComplete = "COMPLETE"

var (
	errPublicKeyRequired = errors.New("intasend public key is required")
	errLoggerRequired    = errors.New("intasend logger is required")
)

// Client wraps the IntaSend checkout API. There is no official Go SDK, so the
// surface is a thin HTTP wrapper with centralized auth, timeout, and error
// mapping.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	publicKey   string
	currency    string
	redirectURL string
	logger      *logger.Logger
}

// CheckoutRequest is the express-checkout creation payload.
type CheckoutRequest struct {
	PublicKey   string `json:"public_key"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	APIRef      string `json:"api_ref"`
	Method      string `json:"method,omitempty"`
	Name        string `json:"name,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// CheckoutResponse carries the hosted-payment redirect handed back to the UI.
type CheckoutResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Signature string `json:"signature"`
}

// NewClient initializes the IntaSend wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.IntaSendConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	publicKey := strings.TrimSpace(cfg.PublicKey)
	if publicKey == "" {
		return nil, errPublicKeyRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://payment.intasend.com"
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     baseURL,
		publicKey:   publicKey,
		currency:    cfg.Currency,
		redirectURL: cfg.RedirectURL,
		logger:      logg,
	}

	logg.Info(ctx, "intasend client initialized")
	return c, nil
}

// PublicKey returns the configured IntaSend publishable key.
func (c *Client) PublicKey() string {
	if c == nil {
		return ""
	}
	return c.publicKey
}

// CreateCheckout creates an express checkout session and returns the redirect URL.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	if c == nil || c.httpClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "intasend client not initialized")
	}
	if strings.TrimSpace(req.APIRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "api_ref is required")
	}
	if strings.TrimSpace(req.Amount) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount is required")
	}
	req.PublicKey = c.publicKey
	if req.Currency == "" {
		req.Currency = c.currency
	}
	if req.RedirectURL == "" {
		req.RedirectURL = c.redirectURL
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding checkout request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+checkoutPath, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building checkout request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "intasend checkout request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading checkout response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("response body: %s", truncateBody(raw)),
			fmt.Sprintf("intasend checkout returned status %d", resp.StatusCode),
		)
	}

	var out CheckoutResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding checkout response")
	}
	if out.URL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "intasend checkout response missing redirect url")
	}
	return &out, nil
}

func truncateBody(raw []byte) string {
	const maxLen = 512
	if len(raw) <= maxLen {
		return string(raw)
	}
	return string(raw[:maxLen])
}
