package fanout

import (
	"context"
	"fmt"

	"slot-swapper/internal/platform/logger"

	"github.com/robfig/cron/v3"
)

// Sweeper corre Registry.Sweep según una expresión cron ("@every 30s", "*/1 * * * *", ...).
type Sweeper struct {
	cron *cron.Cron
}

func NewSweeper(reg *Registry, schedule string, log logger.Logger) (*Sweeper, error) {
	if log == nil {
		log = logger.Nop()
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if n := reg.Sweep(); n > 0 {
			log.Info("swept dead connections", map[string]any{"removed": n})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("fanout: sweep schedule %q: %w", schedule, err)
	}
	return &Sweeper{cron: c}, nil
}

func (s *Sweeper) Start() { s.cron.Start() }

// Stop espera a que termine un sweep en curso o a que venza ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
