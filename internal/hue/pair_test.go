package hue_test

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/nbrennan/huesic/internal/hue"
	"github.com/nbrennan/huesic/internal/models"
)

type mockCredentialStore struct{ mock.Mock }

func (m *mockCredentialStore) SaveBridgeCredential(applicationKey string) error {
	args := m.Called(applicationKey)
	return args.Error(0)
}

const linkButtonBody = `[ { "error": { "type": 101, "description": "link button not pressed" } } ]`
const pairedBody = `[ { "success": { "username": "fresh-key" } } ]`

func fastPairing(client *hue.Client) {
	client.PairingInterval = time.Millisecond
	client.PairingAttempts = 3
}

func Test_Pair(t *testing.T) {

	t.Run("retries until the link button is pressed, then persists the key", func(t *testing.T) {
		var requests atomic.Int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api", r.URL.Path)
			assert.Equal(t, "POST", r.Method)

			buf := make([]byte, r.ContentLength)
			r.Body.Read(buf)
			assert.True(t, strings.Contains(string(buf), `"devicetype": "huesic#`))

			if requests.Add(1) < 3 {
				w.Write([]byte(linkButtonBody))
				return
			}
			w.Write([]byte(pairedBody))
		})

		server := newTLSBridge(t, handler)
		store := &mockCredentialStore{}
		store.On("SaveBridgeCredential", "fresh-key").Return(nil)
		client := hue.NewClient(testLogger(), server, "", store)
		fastPairing(client)

		result, err := client.Pair(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, "fresh-key", result.ApplicationKey)
		assert.Equal(t, "fresh-key", client.ApplicationKey())
		assert.Equal(t, int32(3), requests.Load())
		store.AssertCalled(t, "SaveBridgeCredential", "fresh-key")
	})

	t.Run("gives up when the button is never pressed", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(linkButtonBody))
		})

		server := newTLSBridge(t, handler)
		client := hue.NewClient(testLogger(), server, "", nil)
		fastPairing(client)

		_, err := client.Pair(context.Background())

		assert.ErrorIs(t, err, models.ErrPairingTimedOut)
	})

	t.Run("reports a transport failure instead of a timeout", func(t *testing.T) {
		client := hue.NewClient(testLogger(), "127.0.0.1:1", "", nil)
		fastPairing(client)

		_, err := client.Pair(context.Background())

		assert.ErrorIs(t, err, models.ErrBridgeUnreachable)
	})

	t.Run("stops when the context is cancelled between attempts", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(linkButtonBody))
		})

		server := newTLSBridge(t, handler)
		client := hue.NewClient(testLogger(), server, "", nil)
		client.PairingInterval = time.Minute
		client.PairingAttempts = 5

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := client.Pair(ctx)
			done <- err
		}()
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Fatal("pairing did not stop after cancellation")
		}
	})
}
