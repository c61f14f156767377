package daemon

import (
	"log/slog"
	"sync"

	"github.com/1broseidon/screenbridge/internal/config"
	"github.com/1broseidon/screenbridge/internal/mode"
)

// PersonaSynchronizer records the active persona in the config file so the
// next start resumes it.
type PersonaSynchronizer struct {
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last string
	save func(path, persona string) error
}

// NewPersonaSynchronizer creates a synchronizer writing to path. An empty
// path disables persistence.
func NewPersonaSynchronizer(path string, logger *slog.Logger) *PersonaSynchronizer {
	return &PersonaSynchronizer{
		path:   path,
		logger: logger,
		save:   config.SetLastPersona,
	}
}

// HandleSwitch is subscribed to the orchestrator's mode-change events.
func (s *PersonaSynchronizer) HandleSwitch(ev mode.Event) {
	if s.path == "" {
		return
	}
	persona := ev.Persona.String()

	s.mu.Lock()
	defer s.mu.Unlock()
	if persona == s.last {
		return
	}
	if err := s.save(s.path, persona); err != nil {
		s.logger.Warn("failed to persist persona", "persona", persona, "path", s.path, "error", err)
		return
	}
	s.last = persona
	s.logger.Debug("persisted persona", "persona", persona, "switch_id", ev.ID, "reason", ev.Reason)
}
