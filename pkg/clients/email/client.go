package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// DefaultEmailJSURL is the EmailJS REST endpoint for template sends.
const DefaultEmailJSURL = "https://api.emailjs.com/api/v1.0/email/send"

// Request is a templated send through a hosted relay. The relay looks up
// the service and template by ID and fills the template from Params.
type Request struct {
	ServiceID  string
	TemplateID string
	UserID     string
	Params     map[string]any
}

// Result holds the outcome of a send attempt.
type Result struct {
	DeliveryStatus string
	Sent           bool
}

// Client defines the interface for relaying emails.
// Implementations can be swapped between a stub (for dev/testing)
// and the hosted provider.
type Client interface {
	Send(ctx context.Context, req Request) (*Result, error)
}

// StubClient simulates sending emails by logging them.
type StubClient struct{}

// NewStubClient creates an email client that logs instead of sending.
func NewStubClient() *StubClient {
	return &StubClient{}
}

func (c *StubClient) Send(_ context.Context, req Request) (*Result, error) {
	slog.Info("sending email (stub)",
		"serviceId", req.ServiceID,
		"templateId", req.TemplateID,
		"fromEmail", req.Params["from_email"],
	)
	return &Result{
		DeliveryStatus: "sent",
		Sent:           true,
	}, nil
}

// EmailJSClient sends templated emails through the EmailJS REST API.
//
// Server-side calls must be enabled in the EmailJS account settings, and
// accounts in strict mode also need the private key as AccessToken.
type EmailJSClient struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewEmailJSClient creates a client that talks to EmailJS.
// Accepts an optional http.Client for custom timeouts or transport settings.
func NewEmailJSClient(httpClient *http.Client, baseURL, accessToken string) *EmailJSClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultEmailJSURL
	}
	return &EmailJSClient{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  httpClient,
	}
}

type emailJSPayload struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	UserID         string         `json:"user_id"`
	TemplateParams map[string]any `json:"template_params"`
	AccessToken    string         `json:"accessToken,omitempty"`
}

func (c *EmailJSClient) Send(ctx context.Context, req Request) (*Result, error) {
	payload, err := json.Marshal(emailJSPayload{
		ServiceID:      req.ServiceID,
		TemplateID:     req.TemplateID,
		UserID:         req.UserID,
		TemplateParams: req.Params,
		AccessToken:    c.accessToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	slog.Debug("calling EmailJS API", "url", c.baseURL, "serviceId", req.ServiceID, "templateId", req.TemplateID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("EmailJS request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("EmailJS returned %d: %s", resp.StatusCode, string(body))
	}

	return &Result{
		DeliveryStatus: string(body),
		Sent:           true,
	}, nil
}
