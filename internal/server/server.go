// Package server runs Determine on a fixed schedule, non-overlapping tick
// by non-overlapping tick. The ticker+mutex shape is carried over from the
// teacher's internal/app.App.startUpdateLoop, stripped of its tray/window
// bindings and pointed at the dosing engine instead of a glucose-status
// poller.
package server

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/orefng/orefng/internal/engine"
	"github.com/orefng/orefng/internal/models"
	"github.com/orefng/orefng/internal/profile"
)

// InputSource supplies the glucose/treatment history for a tick. Swapping
// this out is how a real collaborator (Nightscout, a pump driver) plugs
// into Serve without the orchestrator depending on any transport.
type InputSource interface {
	Fetch(ctx context.Context) ([]models.GlucoseEntry, []models.Treatment, models.TempBasal, error)
}

// Server runs Determine every interval, guarding against overlapping ticks
// with a mutex rather than letting a slow tick pile up behind the next
// ticker fire.
type Server struct {
	source   InputSource
	profile  *profile.Profile
	interval time.Duration
	logger   log.Logger

	mu      sync.Mutex
	running bool
	last    models.Determination
}

// New constructs a Server. logger is used at INFO for each completed tick
// and ERROR for a failed one; the decision engine itself never logs.
func New(source InputSource, p *profile.Profile, interval time.Duration, logger log.Logger) *Server {
	return &Server{source: source, profile: p, interval: interval, logger: logger}
}

// Run blocks, ticking every s.interval until ctx is canceled.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// tick runs one Determine call. If a prior tick is still running (should
// never happen given the ticker interval, but a slow collaborator fetch
// could overrun it) the tick is skipped rather than queued.
func (s *Server) tick(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		level.Warn(s.logger).Log("msg", "skipping tick, previous tick still running")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	tickID := uuid.New()
	glucose, treatments, currentTemp, err := s.source.Fetch(ctx)
	if err != nil {
		level.Error(s.logger).Log("tick", tickID, "msg", "failed to fetch inputs", "err", err)
		return
	}

	det, err := engine.Determine(engine.Inputs{
		Glucose:     glucose,
		Treatments:  treatments,
		Profile:     s.profile,
		Clock:       time.Now(),
		CurrentTemp: currentTemp,
	})
	if err != nil {
		level.Error(s.logger).Log("tick", tickID, "msg", "determination failed", "err", err)
		return
	}

	s.mu.Lock()
	s.last = det
	s.mu.Unlock()

	level.Info(s.logger).Log("tick", tickID, "msg", "determination complete",
		"rate", derefOrNaN(det.Rate), "eventualBG", det.EventualBG, "iob", det.IOB, "cob", det.COB)
}

// Last returns the most recently completed determination.
func (s *Server) Last() models.Determination {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func derefOrNaN(f *float64) float64 {
	if f == nil {
		return math.NaN()
	}
	return *f
}
