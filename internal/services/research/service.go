package research

import (
	"context"
	"time"

	"oracle/internal/agents"
	"oracle/internal/delivery"
	"oracle/internal/domain/report"
	"oracle/internal/runlock"
	"oracle/pkg/errors"
	"oracle/pkg/logger"
)

// Service is the generation entry point shared by the scheduler, the HTTP
// API and the one-shot CLI mode. It enforces single-flight per report type
// and hands completed records to delivery.
type Service struct {
	pipeline *agents.Pipeline
	lock     runlock.Locker
	lockTTL  time.Duration
	fanout   *delivery.Fanout
	log      *logger.Logger
}

// NewService assembles the research service
func NewService(pipeline *agents.Pipeline, lock runlock.Locker, lockTTL time.Duration, fanout *delivery.Fanout) *Service {
	return &Service{
		pipeline: pipeline,
		lock:     lock,
		lockTTL:  lockTTL,
		fanout:   fanout,
		log:      logger.Get().With("component", "research_service"),
	}
}

// lockKey guards one report type. Different types run concurrently;
// a second run of the same type is rejected, never queued.
func lockKey(typ report.Type) string {
	return "run:" + string(typ)
}

// Generate runs the full pipeline for (typ, date). A run already in flight
// for the same report type returns ErrRunInProgress immediately.
func (s *Service) Generate(ctx context.Context, typ report.Type, date string, force bool) (*report.Record, error) {
	acquired, err := s.lock.Acquire(ctx, lockKey(typ), s.lockTTL)
	if err != nil {
		return nil, errors.Wrap(err, "acquire run lock")
	}
	if !acquired {
		return nil, errors.Wrapf(errors.ErrRunInProgress, "report type %s", typ)
	}
	defer func() {
		// Release must survive caller cancellation or the type stays
		// locked until the TTL expires.
		if err := s.lock.Release(context.WithoutCancel(ctx), lockKey(typ)); err != nil {
			s.log.Warnw("Run lock release failed", "report_type", typ, "error", err)
		}
	}()

	rec, err := s.pipeline.Run(ctx, typ, date, force)
	if rec != nil && s.fanout != nil {
		s.fanout.Deliver(context.WithoutCancel(ctx), rec)
	}
	return rec, err
}
