package hue

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/nbrennan/huesic/internal/models"
)

const requestTimeout = 5 * time.Second

// Client talks to the bridge's local HTTP API. Color commands and light
// discovery use the CLIP v2 resource endpoints; pairing uses the v1 /api
// endpoint (see pair.go). The bridge serves a self-signed certificate, so
// certificate verification is skipped.
type Client struct {
	// pairing retry cadence, overridable for tests
	PairingInterval time.Duration
	PairingAttempts int

	logger   *log.Logger
	bridgeIP string
	client   *http.Client
	store    credentialStore

	mu             sync.RWMutex
	applicationKey string
}

func NewClient(logger *log.Logger, bridgeIP string, applicationKey string, store credentialStore) *Client {
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	return &Client{
		PairingInterval: defaultPairingInterval,
		PairingAttempts: defaultPairingAttempts,
		logger:          logger,
		bridgeIP:        bridgeIP,
		applicationKey:  applicationKey,
		store:           store,
		client:          &http.Client{Transport: tr, Timeout: requestTimeout},
	}
}

func (h *Client) ApplicationKey() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.applicationKey
}

func (h *Client) setApplicationKey(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.applicationKey = key
}

func (h *Client) GET(ctx context.Context, url string) ([]byte, error) {
	return h.makeRequest(ctx, "GET", url, nil)
}

func (h *Client) PUT(ctx context.Context, url string, body []byte) ([]byte, error) {
	return h.makeRequest(ctx, "PUT", url, body)
}

// DiscoverLights reads every light the bridge knows about, with
// reachability taken from the zigbee connectivity services.
func (h *Client) DiscoverLights(ctx context.Context) ([]models.Light, error) {

	body, err := h.GET(ctx, "/clip/v2/resource/light")
	if err != nil {
		return nil, fmt.Errorf("error reading lights from bridge: %w", err)
	}

	respBody := LightsResponse{}
	if err := json.Unmarshal(body, &respBody); err != nil {
		return nil, fmt.Errorf("error parsing light response: %w", err)
	}

	connectivity := h.deviceConnectivity(ctx)

	lights := lo.Map(respBody.Data, func(light BridgeLight, _ int) models.Light {
		status, known := connectivity[light.Owner.RID]
		return models.Light{
			ID:        light.ID,
			Name:      light.Metadata.Name,
			DeviceID:  light.Owner.RID,
			Reachable: !known || status == "connected",
		}
	})

	return lights, nil
}

func (h *Client) deviceConnectivity(ctx context.Context) map[string]string {

	body, err := h.GET(ctx, "/clip/v2/resource/zigbee_connectivity")
	if err != nil {
		h.logger.Warn("Unable to read zigbee connectivity", "err", err)
		return nil
	}

	respBody := ConnectivityResponse{}
	if err := json.Unmarshal(body, &respBody); err != nil {
		h.logger.Error(err)
		return nil
	}

	return lo.SliceToMap(respBody.Data, func(c ZigbeeConnectivity) (string, string) {
		return c.Owner.RID, c.Status
	})
}

// SetLightColor pushes a color to a single light, turning it on at the
// color's derived brightness.
func (h *Client) SetLightColor(ctx context.Context, lightID string, color models.Color) error {

	x, y := color.XY()
	requestBody := []byte(fmt.Sprintf(
		`{ "color": { "xy": { "x": %.4f, "y": %.4f } }, "dimming": { "brightness": %d }, "on": { "on": true } }`,
		x, y, color.Brightness(),
	))

	_, err := h.PUT(ctx, fmt.Sprintf("/clip/v2/resource/light/%s", lightID), requestBody)
	if err != nil {
		return err
	}

	return nil
}

func (h *Client) makeRequest(ctx context.Context, verb string, url string, body []byte) ([]byte, error) {

	bodyReader := bytes.NewReader(body)
	req, err := http.NewRequestWithContext(ctx, verb, fmt.Sprintf("https://%s%s", h.bridgeIP, url), bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("hue-application-key", h.ApplicationKey())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrBridgeUnreachable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		responseBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", models.ErrBridgeUnreachable, err)
		}
		return responseBody, nil
	case http.StatusMultiStatus:
		// the bridge answers 207 when the light itself did not respond
		return nil, models.ErrLightUnreachable
	default:
		h.logger.Error("Error making bridge API call", "url", url, "status", resp.Status)
		return nil, fmt.Errorf("%w: unexpected status %s", models.ErrBridgeUnreachable, resp.Status)
	}

}
