package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/nbrennan/huesic/internal/hue"
	"github.com/nbrennan/huesic/internal/models"
	"github.com/nbrennan/huesic/internal/session"
)

type bridgeService interface {
	DiscoverLights(ctx context.Context) ([]models.Light, error)
	Pair(ctx context.Context) (*hue.PairingResult, error)
}

type playbackAuth interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) error
}

type trackStore interface {
	LoadTrack() (*models.Track, error)
}

type engineStatus interface {
	Status() models.EngineStatus
}

// StandardResponse is the envelope every endpoint answers with.
type StandardResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Server is the configuration surface: thin HTTP glue over the pairing,
// authorization and selection contracts. No engine logic lives here.
type Server struct {
	// OnPaired runs after a successful link-button handshake, once the
	// session has been marked paired.
	OnPaired func()

	logger   *log.Logger
	session  *session.Session
	bridge   bridgeService
	playback playbackAuth
	tracks   trackStore
	engine   engineStatus

	oauthState string
}

func NewServer(
	logger *log.Logger,
	sess *session.Session,
	bridge bridgeService,
	playback playbackAuth,
	tracks trackStore,
	engine engineStatus,
) *Server {
	return &Server{
		logger:     logger,
		session:    sess,
		bridge:     bridge,
		playback:   playback,
		tracks:     tracks,
		engine:     engine,
		oauthState: randomState(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/pair", s.handlePair)
		r.Get("/authorize", s.handleAuthorize)
		r.Get("/callback", s.handleCallback)
		r.Get("/lights", s.handleLights)
		r.Put("/lights/selected", s.handleSelectLights)
		r.Get("/track", s.handleTrack)
	})

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"bridgePaired":      s.session.BridgePaired(),
		"serviceAuthorized": s.session.ServiceAuthorized(),
	}
	if s.engine != nil {
		data["engineState"] = s.engine.Status().State
	}
	s.respond(w, http.StatusOK, StandardResponse{Success: true, Message: "status", Data: data})
}

// handlePair kicks the link-button handshake off in the background; the
// user has to walk to the bridge, so the request cannot wait for them.
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	go func() {
		if _, err := s.bridge.Pair(context.Background()); err != nil {
			s.logger.Error("pairing failed", "err", err)
			return
		}
		s.session.MarkBridgePaired(true)
		if s.OnPaired != nil {
			s.OnPaired()
		}
	}()

	s.respond(w, http.StatusAccepted, StandardResponse{
		Success: true,
		Message: "pairing started, press the bridge link button",
		Data:    map[string]any{"pairing": true},
	})
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, StandardResponse{
		Success: true,
		Message: "visit this URL to authorize",
		Data:    map[string]any{"authUrl": s.playback.AuthURL(s.oauthState)},
	})
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		s.respond(w, http.StatusBadRequest, StandardResponse{Success: false, Message: "authorization denied: " + errParam})
		return
	}
	if state := r.URL.Query().Get("state"); state != s.oauthState {
		s.respond(w, http.StatusBadRequest, StandardResponse{Success: false, Message: "state mismatch"})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		s.respond(w, http.StatusBadRequest, StandardResponse{Success: false, Message: "missing code"})
		return
	}

	if err := s.playback.Exchange(r.Context(), code); err != nil {
		s.logger.Error("code exchange failed", "err", err)
		s.respond(w, http.StatusBadGateway, StandardResponse{Success: false, Message: "code exchange failed"})
		return
	}

	s.session.MarkServiceAuthorized(true)
	s.respond(w, http.StatusOK, StandardResponse{Success: true, Message: "authorized, you can close this tab"})
}

func (s *Server) handleLights(w http.ResponseWriter, r *http.Request) {
	lights, err := s.bridge.DiscoverLights(r.Context())
	if err != nil {
		s.logger.Error("light discovery failed", "err", err)
		s.respond(w, http.StatusBadGateway, StandardResponse{Success: false, Message: "bridge unreachable"})
		return
	}

	s.respond(w, http.StatusOK, StandardResponse{
		Success: true,
		Message: "available lights",
		Data:    map[string]any{"lights": lights},
	})
}

func (s *Server) handleSelectLights(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Lights []string `json:"lights"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respond(w, http.StatusBadRequest, StandardResponse{Success: false, Message: "invalid body"})
		return
	}
	if len(body.Lights) == 0 {
		s.respond(w, http.StatusBadRequest, StandardResponse{Success: false, Message: `"lights" list is required`})
		return
	}

	s.session.SetTargetSelection(body.Lights)
	s.respond(w, http.StatusOK, StandardResponse{Success: true, Message: "target selection stored"})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	track, err := s.tracks.LoadTrack()
	if err != nil {
		s.logger.Error(err)
		s.respond(w, http.StatusInternalServerError, StandardResponse{Success: false, Message: "error reading track"})
		return
	}

	s.respond(w, http.StatusOK, StandardResponse{
		Success: true,
		Message: "current track",
		Data:    map[string]any{"track": track},
	})
}

func (s *Server) respond(w http.ResponseWriter, status int, resp StandardResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error(err)
	}
}

func randomState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
