package appstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/skininsight/backend/internal/infrastructure/config"
)

const sandboxVerifyURL = "https://sandbox.itunes.apple.com/verifyReceipt"

// Apple status code returned when a sandbox receipt is sent to the
// production endpoint.
const statusSandboxReceipt = 21007

// Verification is the outcome of checking a receipt with the store.
type Verification struct {
	Valid  bool
	Status int
}

// Verifier checks purchase receipts with the app store.
type Verifier interface {
	VerifyReceipt(ctx context.Context, receipt string) (*Verification, error)
}

// AppleVerifier implements Verifier against Apple's verifyReceipt endpoint.
type AppleVerifier struct {
	cfg        config.AppStoreConfig
	httpClient *http.Client
}

// NewAppleVerifier creates a receipt verifier from app store configuration
func NewAppleVerifier(cfg config.AppStoreConfig) *AppleVerifier {
	return &AppleVerifier{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type verifyRequest struct {
	ReceiptData string `json:"receipt-data"`
	Password    string `json:"password,omitempty"`
}

type verifyResponse struct {
	Status int `json:"status"`
}

// VerifyReceipt checks a receipt with Apple. A sandbox receipt sent to
// the production endpoint is retried against the sandbox endpoint, as
// Apple's documentation prescribes.
func (v *AppleVerifier) VerifyReceipt(ctx context.Context, receipt string) (*Verification, error) {
	result, err := v.verifyAt(ctx, v.cfg.VerifyURL, receipt)
	if err != nil {
		return nil, err
	}
	if result.Status == statusSandboxReceipt {
		result, err = v.verifyAt(ctx, sandboxVerifyURL, receipt)
		if err != nil {
			return nil, err
		}
	}

	return &Verification{
		Valid:  result.Status == 0,
		Status: result.Status,
	}, nil
}

func (v *AppleVerifier) verifyAt(ctx context.Context, url, receipt string) (*verifyResponse, error) {
	body, err := json.Marshal(verifyRequest{
		ReceiptData: receipt,
		Password:    v.cfg.SharedSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("appstore: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("appstore: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("appstore: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("appstore: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("appstore: unexpected status %d", resp.StatusCode)
	}

	var parsed verifyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("appstore: failed to parse response: %w", err)
	}
	return &parsed, nil
}

var _ Verifier = (*AppleVerifier)(nil)

// PassthroughVerifier accepts every receipt without contacting the
// store. Development and test use only; production config rejects it.
type PassthroughVerifier struct{}

// VerifyReceipt accepts the receipt unconditionally
func (PassthroughVerifier) VerifyReceipt(ctx context.Context, receipt string) (*Verification, error) {
	return &Verification{Valid: true}, nil
}

var _ Verifier = PassthroughVerifier{}
