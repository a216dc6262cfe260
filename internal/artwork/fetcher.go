package artwork

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nbrennan/huesic/internal/models"
)

const fetchTimeout = 3 * time.Second

// Fetcher downloads artwork bytes with a bounded timeout.
type Fetcher struct {
	logger *log.Logger
	client *http.Client
}

func NewFetcher(logger *log.Logger) *Fetcher {
	return &Fetcher{
		logger: logger,
		client: &http.Client{Timeout: fetchTimeout},
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: no artwork url", models.ErrImageDecode)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrServiceUnavailable, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: artwork fetch failed: %s", models.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: artwork fetch status %s", models.ErrServiceUnavailable, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrServiceUnavailable, err)
	}
	return data, nil
}
