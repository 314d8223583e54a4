// Package client provides the HTTP client for the external invoicing API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"mailpilot_backend/internal/pipeline/ports"
	"mailpilot_backend/platform/apperr"
	"mailpilot_backend/platform/config"
	"mailpilot_backend/platform/logger"
)

// Client is the HTTP client for the invoicing API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logger.Logger
}

// New creates a new invoicing API client.
func New(cfg config.BillingConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    cfg.GetBillingAPIURL(),
		apiKey:     cfg.GetBillingAPIKey(),
		log:        log,
	}
}

type customerResponse struct {
	ID string `json:"id"`
}

// FindCustomerByEmail resolves the customer record for an email address.
// Returns apperr.NotFound when no customer exists.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	reqURL := fmt.Sprintf("%s/customers?email=%s", c.baseURL, url.QueryEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("billing request failed", "error", err, "url", reqURL)
		return "", apperr.External("billing request failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success - continue to decode
	case http.StatusNotFound:
		return "", apperr.NotFound(fmt.Sprintf("no customer for %s", email))
	case http.StatusUnauthorized:
		c.log.Error("billing unauthorized", "status", resp.StatusCode)
		return "", apperr.External("billing unauthorized: invalid API key", nil)
	default:
		c.log.Error("billing upstream error", "status", resp.StatusCode)
		return "", apperr.External(fmt.Sprintf("billing upstream error: status %d", resp.StatusCode), nil)
	}

	var customers []customerResponse
	if err := json.NewDecoder(resp.Body).Decode(&customers); err != nil {
		c.log.Error("billing decode failed", "error", err)
		return "", apperr.External("decode billing response failed", err)
	}
	if len(customers) == 0 || customers[0].ID == "" {
		return "", apperr.NotFound(fmt.Sprintf("no customer for %s", email))
	}

	return customers[0].ID, nil
}

type invoiceLineRequest struct {
	Description    string  `json:"description"`
	Quantity       float64 `json:"quantity"`
	UnitPriceCents int64   `json:"unitPriceCents"`
	ProductID      string  `json:"productId,omitempty"`
}

type createInvoiceRequest struct {
	ContactID        string               `json:"contactId"`
	EntryDate        string               `json:"entryDate"`
	PaymentTermsDays int                  `json:"paymentTermsDays"`
	Lines            []invoiceLineRequest `json:"lines"`
}

type createInvoiceResponse struct {
	ID string `json:"id"`
}

// CreateInvoice creates a draft invoice and returns its external id.
func (c *Client) CreateInvoice(ctx context.Context, params ports.CreateInvoiceParams) (string, error) {
	lines := make([]invoiceLineRequest, 0, len(params.Lines))
	for _, line := range params.Lines {
		lines = append(lines, invoiceLineRequest{
			Description:    line.Description,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			ProductID:      line.ProductID,
		})
	}

	payload, err := json.Marshal(createInvoiceRequest{
		ContactID:        params.ContactID,
		EntryDate:        params.EntryDate.Format("2006-01-02"),
		PaymentTermsDays: params.PaymentTermsDays,
		Lines:            lines,
	})
	if err != nil {
		return "", fmt.Errorf("encode invoice: %w", err)
	}

	reqURL := c.baseURL + "/invoices"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("billing request failed", "error", err, "url", reqURL)
		return "", apperr.External("billing request failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		// Success - continue to decode
	case http.StatusUnauthorized:
		c.log.Error("billing unauthorized", "status", resp.StatusCode)
		return "", apperr.External("billing unauthorized: invalid API key", nil)
	default:
		c.log.Error("billing upstream error", "status", resp.StatusCode)
		return "", apperr.External(fmt.Sprintf("billing upstream error: status %d", resp.StatusCode), nil)
	}

	var out createInvoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.log.Error("billing decode failed", "error", err)
		return "", apperr.External("decode billing response failed", err)
	}
	if out.ID == "" {
		return "", apperr.External("billing returned no invoice id", nil)
	}

	return out.ID, nil
}

var _ ports.InvoiceWriter = (*Client)(nil)
