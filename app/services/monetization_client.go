package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/videostreampro/adserver/config"
)

// MonetizationClient notifies the external creator-revenue service that
// an impression was billed. Callers treat failures as best-effort: log
// and move on, never fail the confirm.
type MonetizationClient interface {
	NotifyAdConfirmed(ctx context.Context, notification AdConfirmedNotification) error
}

// AdConfirmedNotification is the payload of the creator-revenue call
type AdConfirmedNotification struct {
	VideoID   string  `json:"videoId"`
	ViewerID  *string `json:"viewerId,omitempty"`
	AdID      uint    `json:"adId"`
	CostCents int64   `json:"costCents"`
}

// MonetizationClientImpl implements MonetizationClient
type MonetizationClientImpl struct {
	config *config.MonetizationConfig
	client *http.Client
}

// NewMonetizationClient creates a new monetization client instance
func NewMonetizationClient(cfg *config.MonetizationConfig) MonetizationClient {
	return &MonetizationClientImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// NotifyAdConfirmed posts the billed impression to the monetization service
func (m *MonetizationClientImpl) NotifyAdConfirmed(ctx context.Context, notification AdConfirmedNotification) error {
	if m.config.BaseURL == "" {
		return fmt.Errorf("monetization base URL is not configured")
	}

	requestBody, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal ad-confirmed notification: %w", err)
	}

	url := m.config.BaseURL + "/api/monetization/ad-confirmed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create ad-confirmed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", m.config.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("ad-confirmed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ad-confirmed request returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
