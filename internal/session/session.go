package session

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/nbrennan/huesic/internal/models"
)

type selectionStore interface {
	SaveSelection(lightIDs []string) error
	LoadSelection() ([]string, error)
}

// Session is the shared readiness/target state between the engine (reader)
// and the configuration surface (writer). It holds no engine logic; every
// access goes through the mutex so a flag flip is observed whole by the
// next sync cycle.
type Session struct {
	logger *log.Logger
	store  selectionStore

	mu                sync.RWMutex
	bridgePaired      bool
	serviceAuthorized bool
	selection         []string
	lights            map[string]*models.Light
}

func NewSession(logger *log.Logger, store selectionStore) *Session {
	s := &Session{
		logger: logger,
		store:  store,
		lights: map[string]*models.Light{},
	}

	if store != nil {
		selection, err := store.LoadSelection()
		if err != nil {
			logger.Error(err)
		}
		s.selection = selection
	}

	return s
}

func (s *Session) MarkBridgePaired(paired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bridgePaired = paired
}

func (s *Session) MarkServiceAuthorized(authorized bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serviceAuthorized = authorized
}

// SetTargetSelection replaces the targeted lights wholesale and persists
// the new selection.
func (s *Session) SetTargetSelection(lightIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selection = append([]string(nil), lightIDs...)
	if s.store != nil {
		if err := s.store.SaveSelection(s.selection); err != nil {
			s.logger.Error(err)
		}
	}
}

func (s *Session) BridgePaired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bridgePaired
}

func (s *Session) ServiceAuthorized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serviceAuthorized
}

// Ready reports whether both gating workflows have completed.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bridgePaired && s.serviceAuthorized
}

// Selection returns a copy of the targeted light ids in selection order.
func (s *Session) Selection() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.selection...)
}

// PutLights refreshes the local light mirror from a discovery result,
// keeping any previously applied colors.
func (s *Session) PutLights(lights []models.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, light := range lights {
		if existing, ok := s.lights[light.ID]; ok {
			light.Applied = existing.Applied
			light.SyncedTrackID = existing.SyncedTrackID
		}
		l := light
		s.lights[light.ID] = &l
	}
}

// RecordApplied notes a successful color push for a light.
func (s *Session) RecordApplied(lightID string, color models.Color, trackID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	light, ok := s.lights[lightID]
	if !ok {
		light = &models.Light{ID: lightID}
		s.lights[lightID] = light
	}
	c := color
	light.Applied = &c
	light.SyncedTrackID = trackID
	light.Reachable = true
}

// MarkDeviceReachable flips reachability for whichever light belongs to
// the given device. Bridge connectivity events are keyed by device, not
// light service.
func (s *Session) MarkDeviceReachable(deviceID string, reachable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, light := range s.lights {
		if light.DeviceID == deviceID {
			light.Reachable = reachable
		}
	}
}

func (s *Session) MarkLightReachable(lightID string, reachable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if light, ok := s.lights[lightID]; ok {
		light.Reachable = reachable
	}
}

// Light returns a copy of a single mirrored light.
func (s *Session) Light(lightID string) (models.Light, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	light, ok := s.lights[lightID]
	if !ok {
		return models.Light{}, false
	}
	return *light, true
}

// Lights returns copies of the mirrored lights for the current selection,
// in selection order.
func (s *Session) Lights() []models.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lights := make([]models.Light, 0, len(s.selection))
	for _, id := range s.selection {
		if light, ok := s.lights[id]; ok {
			lights = append(lights, *light)
		} else {
			lights = append(lights, models.Light{ID: id})
		}
	}
	return lights
}
