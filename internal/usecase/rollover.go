package usecase

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"ORBScanner/internal/services/session"
	applogger "ORBScanner/pkg/logger"
)

// Rollover discards per-day range and breakout state from previous trading
// dates on a cron schedule.
type Rollover struct {
	cron    *cron.Cron
	scanner *ORBScanner
	clock   session.Clock
	l       *applogger.Logger
}

// NewRollover registers the purge job at schedule, a six-field cron expression
// that may carry a CRON_TZ= prefix.
func NewRollover(schedule string, scanner *ORBScanner, clock session.Clock, l *applogger.Logger) (*Rollover, error) {
	if clock == nil {
		clock = session.SystemClock{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	r := &Rollover{
		cron:    cron.New(cron.WithSeconds()),
		scanner: scanner,
		clock:   clock,
		l:       l,
	}
	if _, err := r.cron.AddFunc(schedule, func() { r.Purge() }); err != nil {
		return nil, fmt.Errorf("register rollover %q: %w", schedule, err)
	}
	return r, nil
}

// Purge drops state for every trading date before today and reports how many
// ranges and triggers went.
func (r *Rollover) Purge() (ranges, triggers int) {
	today := session.TradingDate(r.clock.Now())
	ranges = r.scanner.Builder().Purge(today)
	triggers = r.scanner.Ledger().Purge(today)
	r.scanner.PurgeInvalid(today)
	r.l.Info("session rollover",
		applogger.String("date", today),
		applogger.Int("ranges", ranges),
		applogger.Int("triggers", triggers),
	)
	return ranges, triggers
}

func (r *Rollover) Start() { r.cron.Start() }

// Stop waits for a running purge to finish.
func (r *Rollover) Stop() { <-r.cron.Stop().Done() }
