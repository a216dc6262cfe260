package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	sse "github.com/r3labs/sse/v2"
	"golang.org/x/time/rate"

	"github.com/nbrennan/huesic/internal/concurrency"
	"github.com/nbrennan/huesic/internal/models"
	"github.com/nbrennan/huesic/internal/session"
)

const (
	DefaultPollInterval = 3 * time.Second

	backoffBase = 2 * time.Second
	backoffMax  = 60 * time.Second

	// pacing for per-light commands within one updating phase
	lightCommandsPerSecond = 10
	lightCommandBurst      = 5
)

// bridge events
const (
	eventBatchTypeUpdate         = "update"
	eventTypeZigbeeConnectivity  = "zigbee_connectivity"
	eventStatusConnectivityIssue = "connectivity_issue"
	eventStatusConnected         = "connected"
)

type State string

const (
	StateIdle     State = "idle"
	StatePolling  State = "polling"
	StateUpdating State = "updating"
	StateBackoff  State = "backoff"
)

type playbackClient interface {
	CurrentTrack(ctx context.Context) (*models.Track, error)
}

type bridgeClient interface {
	DiscoverLights(ctx context.Context) ([]models.Light, error)
	SetLightColor(ctx context.Context, lightID string, color models.Color) error
}

type artworkFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type colorExtractor interface {
	Extract(data []byte) (models.Color, error)
}

// TrackRecorder persists the last observed track for the status surface.
type TrackRecorder interface {
	SaveTrack(track models.Track) error
}

// Engine is the background control loop: poll playback, detect a track
// change, extract a color and push it to every targeted light. It runs as
// a single goroutine; cycles never overlap.
type Engine struct {
	// optional knobs, set before Run
	PollInterval  time.Duration
	StatusChannel chan<- models.EngineStatus
	Recorder      TrackRecorder
	Clock         func() time.Time

	logger    *log.Logger
	session   *session.Session
	playback  playbackClient
	bridge    bridgeClient
	fetcher   artworkFetcher
	extractor colorExtractor

	limiter *rate.Limiter
	backoff *Backoff

	mu           sync.RWMutex
	state        State
	currentTrack *models.Track

	// loop-goroutine state, never touched concurrently
	discovered     bool
	lastTrackID    string
	lastRecordedID string
	backoffUntil   time.Time
}

func NewEngine(
	logger *log.Logger,
	sess *session.Session,
	playback playbackClient,
	bridge bridgeClient,
	fetcher artworkFetcher,
	extractor colorExtractor,
) *Engine {
	return &Engine{
		PollInterval: DefaultPollInterval,
		Clock:        time.Now,

		logger:    logger,
		session:   sess,
		playback:  playback,
		bridge:    bridge,
		fetcher:   fetcher,
		extractor: extractor,
		limiter:   rate.NewLimiter(rate.Limit(lightCommandsPerSecond), lightCommandBurst),
		backoff:   NewBackoff(backoffBase, backoffMax),
		state:     StateIdle,
	}
}

// Run drives sync cycles on a fixed cadence until the context is
// cancelled. Bridge events, when a channel is supplied, update light
// reachability between cycles.
func (e *Engine) Run(ctx context.Context, events <-chan *sse.Event) {
	e.logger.Info("engine starting", "pollInterval", e.PollInterval)

	ticker := time.NewTicker(e.PollInterval)
	defer ticker.Stop()

	e.Sync(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping")
			return

		case event := <-events:
			e.handleBridgeEvent(event)

		case <-ticker.C:
			e.Sync(ctx)
		}
	}
}

func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Status returns a snapshot for the status surface and the TUI.
func (e *Engine) Status() models.EngineStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return models.EngineStatus{
		State:  string(e.state),
		Track:  e.currentTrack,
		Lights: e.session.Lights(),
	}
}

// Sync performs exactly one cycle of the state machine. Run calls this on
// every tick; tests call it directly.
func (e *Engine) Sync(ctx context.Context) {
	defer e.publishStatus()

	if !e.session.Ready() {
		// no external calls of any kind until pairing and authorization
		// have both completed
		if e.State() != StateIdle {
			e.logger.Info("readiness revoked, engine going idle")
		}
		e.setState(StateIdle)
		return
	}

	if e.State() == StateBackoff {
		if e.Clock().Before(e.backoffUntil) {
			return
		}
		e.setState(StatePolling)
	}

	if e.State() == StateIdle {
		e.logger.Info("bridge paired and service authorized, engine polling")
		e.setState(StatePolling)
	}

	if !e.discovered {
		lights, err := e.bridge.DiscoverLights(ctx)
		if err != nil {
			e.classifyFailure(err)
			return
		}
		e.session.PutLights(lights)
		e.discovered = true
	}

	track, err := e.playback.CurrentTrack(ctx)
	if err != nil {
		e.classifyFailure(err)
		return
	}

	if track == nil {
		// playback paused or no active device: hold the current color
		e.logger.Debug("no active playback")
		e.backoff.Reset()
		return
	}

	e.setCurrentTrack(track)
	e.recordTrack(track)

	if track.ID == e.lastTrackID || !track.Playing {
		e.backoff.Reset()
		return
	}

	e.logger.Info("track changed", "track", track.Name, "artist", track.Artist)
	e.setState(StateUpdating)

	data, err := e.fetcher.Fetch(ctx, track.ArtworkURL)
	if err != nil {
		if errors.Is(err, models.ErrImageDecode) {
			// a track without usable artwork stays without usable artwork,
			// remember it and keep the previous color
			e.logger.Warn("no usable artwork, keeping previous color", "err", err)
			e.lastTrackID = track.ID
			e.setState(StatePolling)
			return
		}
		e.classifyFailure(err)
		return
	}

	color, err := e.extractor.Extract(data)
	if err != nil {
		// the same bytes will fail again next tick, so remember the track
		// and keep the previous color
		e.logger.Warn("artwork could not be decoded, keeping previous color", "err", err)
		e.lastTrackID = track.ID
		e.setState(StatePolling)
		return
	}

	e.updateLights(ctx, track, color)
}

func (e *Engine) updateLights(ctx context.Context, track *models.Track, color models.Color) {

	selection := e.session.Selection()

	worker := concurrency.NewRateLimitedWorker(e.limiter, func(lightID string) error {
		if light, ok := e.session.Light(lightID); ok && light.SyncedTrackID == track.ID {
			// already pushed for this track in an earlier (partially failed) cycle
			return nil
		}
		return e.bridge.SetLightColor(ctx, lightID, color)
	})
	failures := worker.Run(ctx, selection)

	bridgeDown := false
	for _, lightID := range selection {
		err, failed := failures[lightID]
		switch {
		case !failed:
			e.session.RecordApplied(lightID, color, track.ID)
		case errors.Is(err, models.ErrLightUnreachable):
			e.logger.Warn("light unreachable, skipping", "light", lightID)
			e.session.MarkLightReachable(lightID, false)
		case errors.Is(err, models.ErrBridgeUnreachable):
			bridgeDown = true
		default:
			e.logger.Error(err)
		}
	}

	if bridgeDown {
		// retry the whole cycle after the wait; lights that did get their
		// update are skipped via their synced track id
		e.enterBackoff(0)
		return
	}

	e.lastTrackID = track.ID
	e.backoff.Reset()
	e.setState(StatePolling)
}

func (e *Engine) classifyFailure(err error) {
	var rateLimit *models.RateLimitError

	switch {
	case errors.As(err, &rateLimit):
		e.logger.Warn("playback service rate limit", "retryAfter", rateLimit.RetryAfter)
		e.enterBackoff(rateLimit.RetryAfter)

	case errors.Is(err, models.ErrAuthorizationExpired), errors.Is(err, models.ErrAuthorizationDenied):
		e.logger.Error("playback authorization lost, re-authorization required", "err", err)
		e.session.MarkServiceAuthorized(false)
		e.setState(StateIdle)

	case errors.Is(err, models.ErrServiceUnavailable), errors.Is(err, models.ErrBridgeUnreachable):
		e.logger.Warn("transient failure", "err", err)
		e.enterBackoff(0)

	default:
		e.logger.Error(err)
	}
}

// enterBackoff schedules the next poll. A zero wait means use the bounded
// exponential; a positive wait is a service-specified delay.
func (e *Engine) enterBackoff(wait time.Duration) {
	if wait <= 0 {
		wait = e.backoff.Next()
	}
	e.backoffUntil = e.Clock().Add(wait)
	e.logger.Info("backing off", "wait", wait)
	e.setState(StateBackoff)
}

func (e *Engine) handleBridgeEvent(event *sse.Event) {
	if event == nil {
		return
	}

	events := []models.Event{}
	if err := json.Unmarshal(event.Data, &events); err != nil {
		e.logger.Error(err)
		return
	}

	for _, evt := range events {
		if evt.Type != eventBatchTypeUpdate {
			continue
		}
		for _, eventData := range evt.Data {
			if eventData.Type != eventTypeZigbeeConnectivity || eventData.Owner == nil {
				continue
			}
			switch eventData.Status {
			case eventStatusConnectivityIssue:
				e.logger.Debugf("device (%s) became unreachable", eventData.Owner.RID)
				e.session.MarkDeviceReachable(eventData.Owner.RID, false)
			case eventStatusConnected:
				e.logger.Debugf("device (%s) reconnected", eventData.Owner.RID)
				e.session.MarkDeviceReachable(eventData.Owner.RID, true)
			}
		}
	}
}

func (e *Engine) recordTrack(track *models.Track) {
	if e.Recorder == nil || track.ID == e.lastRecordedID {
		return
	}
	if err := e.Recorder.SaveTrack(*track); err != nil {
		e.logger.Error(err)
		return
	}
	e.lastRecordedID = track.ID
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}

func (e *Engine) setCurrentTrack(track *models.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentTrack = track
}

func (e *Engine) publishStatus() {
	if e.StatusChannel == nil {
		return
	}
	select {
	case e.StatusChannel <- e.Status():
	default:
		// a slow observer never stalls the loop
	}
}
