package heuristics

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionConfig configures a detection session.
type SessionConfig struct {
	Burst               BurstConfig
	GestureWindow       time.Duration // > 0 pins the window; 0 follows the catalog (2s built in)
	NotificationWindow  time.Duration // Default: 3s
	MaintenanceInterval time.Duration // Default: 5s
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Burst:               DefaultBurstConfig(),
		NotificationWindow:  3 * time.Second,
		MaintenanceInterval: 5 * time.Second,
	}
}

// Session owns all mutable heuristic state for one monitoring run. Tests and
// concurrent runs get independent sessions; nothing is package-global.
type Session struct {
	ID        string
	Clock     Clock
	Burst     *BurstDetector
	Gestures  *GestureTracker
	Gate      *NotificationGate
	Listeners *ListenerCounter

	maintenanceInterval time.Duration
	stopMaintenance     chan struct{}
	stopOnce            sync.Once
}

// NewSession creates a session.
//
// Parameters:
//   - config: Windows and thresholds (defaults applied when <= 0)
//   - clock: Time source; nil means SystemClock
//
// Note: Call StartMaintenance() to prune expired state in the background.
func NewSession(config SessionConfig, clock Clock) *Session {
	if clock == nil {
		clock = SystemClock{}
	}
	if config.MaintenanceInterval <= 0 {
		config.MaintenanceInterval = 5 * time.Second
	}
	gestures := NewGestureTracker(config.GestureWindow)
	gestures.Pin(config.GestureWindow)
	return &Session{
		ID:                  uuid.NewString(),
		Clock:               clock,
		Burst:               NewBurstDetector(config.Burst),
		Gestures:            gestures,
		Gate:                NewNotificationGate(config.NotificationWindow),
		Listeners:           NewListenerCounter(),
		maintenanceInterval: config.MaintenanceInterval,
		stopMaintenance:     make(chan struct{}),
	}
}

// Tuning holds the operator settings that can change while a session runs.
type Tuning struct {
	NotificationWindow time.Duration // <= 0 keeps the current window
	GestureWindow      time.Duration // > 0 pins the window; 0 hands it back to the catalog
	BurstPerTab        bool
}

// Tune applies operator settings. Call it before swapping the catalog so
// an unpinned gesture window picks up the catalog value again.
func (s *Session) Tune(t Tuning) {
	s.Gate.Configure(t.NotificationWindow)
	s.Gestures.Pin(t.GestureWindow)
	s.Burst.SetPerTab(t.BurstPerTab)
}

func (s *Session) Now() time.Time {
	return s.Clock.Now()
}

// Prune drops expired burst timestamps, gestures and gate keys.
func (s *Session) Prune() {
	now := s.Clock.Now()
	s.Burst.Prune(now)
	s.Gestures.Prune(now)
	s.Gate.Prune(now)
}

// StartMaintenance launches the periodic prune goroutine.
//
// Behavior:
//   - Runs Prune() every MaintenanceInterval
//   - Stops on context cancellation or Stop()
func (s *Session) StartMaintenance(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.maintenanceInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopMaintenance:
				return
			case <-ticker.C:
				s.Prune()
				log.Debug().
					Str("session", s.ID).
					Int("burst_scopes", s.Burst.Scopes()).
					Int("gesture_tabs", s.Gestures.Len()).
					Int("gate_keys", s.Gate.Len()).
					Msg("Heuristic state pruned")
			}
		}
	}()
}

// Stop ends the maintenance goroutine. Idempotent.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopMaintenance)
	})
}
