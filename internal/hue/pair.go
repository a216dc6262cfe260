package hue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nbrennan/huesic/internal/models"
)

const (
	// the bridge link button stays armed for roughly 30 seconds
	defaultPairingInterval = 2 * time.Second
	defaultPairingAttempts = 15

	// v1 error code for "link button not pressed"
	errLinkButtonNotPressed = 101
)

type credentialStore interface {
	SaveBridgeCredential(applicationKey string) error
}

type PairingResult struct {
	ApplicationKey string
}

// Pair performs the one-time link-button handshake. The bridge rejects the
// request until the user physically presses the button, so the request is
// retried at a fixed interval until it succeeds or the budget runs out.
// The obtained credential is persisted and used for all later calls.
func (h *Client) Pair(ctx context.Context) (*PairingResult, error) {

	hostname, _ := os.Hostname()
	requestBody := []byte(fmt.Sprintf(`{ "devicetype": "huesic#%s" }`, hostname))

	var lastErr error
	for attempt := 0; attempt < h.PairingAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(h.PairingInterval):
			}
		}

		key, err := h.requestApplicationKey(ctx, requestBody)
		if err != nil {
			lastErr = err
			continue
		}
		if key == "" {
			// button not pressed yet, keep knocking
			h.logger.Debug("Link button not pressed, retrying...", "attempt", attempt+1)
			lastErr = nil
			continue
		}

		h.logger.Info("Bridge pairing complete")
		h.setApplicationKey(key)
		if h.store != nil {
			if err := h.store.SaveBridgeCredential(key); err != nil {
				return nil, fmt.Errorf("error persisting bridge credential: %w", err)
			}
		}
		return &PairingResult{ApplicationKey: key}, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, models.ErrPairingTimedOut
}

func (h *Client) requestApplicationKey(ctx context.Context, requestBody []byte) (string, error) {

	body, err := h.makeRequest(ctx, "POST", "/api", requestBody)
	if err != nil {
		return "", err
	}

	var entries []pairingResponse
	if err := json.Unmarshal(body, &entries); err != nil {
		return "", fmt.Errorf("error parsing pairing response: %w", err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: empty pairing response", models.ErrBridgeUnreachable)
	}

	entry := entries[0]
	if entry.Success != nil {
		return entry.Success.Username, nil
	}
	if entry.Error != nil && entry.Error.Type == errLinkButtonNotPressed {
		return "", nil
	}
	return "", fmt.Errorf("%w: unexpected pairing response", models.ErrBridgeUnreachable)
}
