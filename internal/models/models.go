package models

import (
	"fmt"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// Track is the currently playing track as reported by the playback source.
// Immutable once fetched; a later poll either returns the same track or a new one.
type Track struct {
	ID         string
	Name       string
	Artist     string
	Album      string
	ArtworkURL string
	Playing    bool
}

// Color is a plain RGB value extracted from album artwork.
type Color struct {
	R uint8
	G uint8
	B uint8
}

// XY converts the color to CIE 1931 xy coordinates for the bridge payload.
func (c Color) XY() (float64, float64) {
	x, y, _ := c.colorful().Xyy()
	return x, y
}

// Brightness returns a dimming value in the 1-100 range the bridge expects.
func (c Color) Brightness() int {
	_, _, v := c.colorful().Hsv()
	b := int(v * 100)
	if b < 1 {
		b = 1
	}
	return b
}

// Saturation returns the HSV saturation in the 0-1 range.
func (c Color) Saturation() float64 {
	_, s, _ := c.colorful().Hsv()
	return s
}

func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) colorful() colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// Light is a local mirror of bridge-side light state. The engine owns the
// applied color and reachability fields; the bridge remains authoritative.
type Light struct {
	ID   string
	Name string

	// owning device id, used to match connectivity events to lights
	DeviceID string

	// whether the light responded during the last attempted update
	Reachable bool

	// the color last successfully pushed to the light, if any
	Applied *Color
	// the track the applied color was extracted from
	SyncedTrackID string
}

// EngineStatus is a snapshot of the engine published to observers
// (status endpoint, terminal UI).
type EngineStatus struct {
	State  string
	Track  *Track
	Lights []Light
}

// an event received from the bridge event stream
type Event struct {
	CreationTime time.Time   `json:"creationtime"`
	Data         []EventData `json:"data"`
	Type         string      `json:"type"`
}

type EventData struct {
	ID    string `json:"id"`
	Owner *struct {
		RID string `json:"rid"`
	} `json:"owner"`
	Type   string `json:"type"`
	Status string `json:"status"`
}
