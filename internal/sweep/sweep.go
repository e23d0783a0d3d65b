// Package sweep periodically re-derives fleet health, publishes the status
// gauges and raises an alert for every part that has newly become critical.
package sweep

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"partlife-backend/config"
	"partlife-backend/internal/health"
	"partlife-backend/internal/metrics"
	"partlife-backend/internal/notification"
)

// ViewSource provides the current derived view.
type ViewSource interface {
	View() health.View
}

// Dispatcher delivers alerts.
type Dispatcher interface {
	Dispatch(alert notification.Alert)
}

// Service runs the health sweep.
type Service struct {
	cfg        config.SweepConfig
	source     ViewSource
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	log        *zap.Logger

	mu      sync.Mutex
	alerted map[string]struct{}
}

// NewService creates a sweep over source.
func NewService(cfg config.SweepConfig, source ViewSource, dispatcher Dispatcher, m *metrics.Metrics, log *zap.Logger) *Service {
	return &Service{
		cfg:        cfg,
		source:     source,
		dispatcher: dispatcher,
		metrics:    m,
		log:        log,
		alerted:    make(map[string]struct{}),
	}
}

// Run sweeps once immediately and then on every interval until ctx ends.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("health sweep is disabled, not starting")
		return
	}
	s.log.Info("starting health sweep", zap.Duration("interval", s.cfg.Interval))

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("health sweep shutting down")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// SweepOnce performs a single pass and returns the alerts it dispatched.
// A part is alerted once per stay in the critical band; leaving the band or
// being replaced re-arms it.
func (s *Service) SweepOnce(ctx context.Context) []notification.Alert {
	view := s.source.View()

	counts := health.Summarize(view.Parts, nil, nil).Fleet
	s.metrics.ObserveCounts(counts)

	s.mu.Lock()
	critical := make(map[string]struct{}, counts.Critical)
	var alerts []notification.Alert
	for _, p := range view.Parts {
		if p.Status != health.StatusCritical {
			continue
		}
		critical[p.ID] = struct{}{}
		if _, done := s.alerted[p.ID]; done {
			continue
		}
		alerts = append(alerts, notification.Alert{
			MachineID:   p.MachineID,
			MachineName: p.MachineName,
			PartID:      p.ID,
			PartName:    p.Definition.Name,
			PartNumber:  p.PartNumber,
			Health:      p.HealthPercentage,
		})
	}
	s.alerted = critical
	s.mu.Unlock()

	for _, a := range alerts {
		if ctx.Err() != nil {
			break
		}
		s.dispatcher.Dispatch(a)
	}

	if len(view.Orphans) > 0 {
		s.log.Warn("installed parts reference missing machines or definitions", zap.Int("orphans", len(view.Orphans)))
	}
	s.log.Info("health sweep finished",
		zap.Int("parts", counts.Total),
		zap.Int("warning", counts.Warning),
		zap.Int("critical", counts.Critical),
		zap.Int("alerts", len(alerts)),
	)
	return alerts
}
