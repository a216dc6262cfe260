package hue

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	sse "github.com/r3labs/sse/v2"
)

// EventConsumer subscribes to the bridge's server-sent event stream. The
// engine uses it to learn about lights dropping off or rejoining the
// zigbee network between sync cycles.
type EventConsumer struct {
	Logger *log.Logger

	bridgeIP       string
	applicationKey string

	client       *sse.Client
	eventChannel chan *sse.Event
}

func NewEventConsumer(logger *log.Logger, bridgeIP string, applicationKey string) *EventConsumer {
	return &EventConsumer{Logger: logger, bridgeIP: bridgeIP, applicationKey: applicationKey}
}

func (h *EventConsumer) Subscribe(eventChannel chan *sse.Event) {

	h.eventChannel = eventChannel
	h.client = sse.NewClient(fmt.Sprintf("https://%s/eventstream/clip/v2", h.bridgeIP))

	h.client.Connection.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	h.client.Headers["hue-application-key"] = h.applicationKey

	h.client.OnConnect(func(_ *sse.Client) {
		h.Logger.Info("Connected to bridge, listening for events...")
	})
	h.client.OnDisconnect(func(c *sse.Client) {
		h.Logger.Info("Disconnected from bridge")
	})

	if err := h.client.SubscribeChan("", h.eventChannel); err != nil {
		h.Logger.Errorf("error subscribing to bridge events: %s", err)
	}

}

func (h *EventConsumer) Unsubscribe() {
	h.Logger.Debug("Unsubscribe events")
	h.client.Unsubscribe(h.eventChannel)
}
