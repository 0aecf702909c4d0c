package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ORBScanner/internal/services/session"
	"ORBScanner/internal/usecase"
	"ORBScanner/pkg/config"
	xhttp "ORBScanner/pkg/http"
	pkgkafka "ORBScanner/pkg/kafka"
	applogger "ORBScanner/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	orb        *usecase.ORBScanner
	lotto      *usecase.IndexLottoScanner
	rollover   *usecase.Rollover
	collector  *usecase.TickCollector
	consumer   *pkgkafka.Consumer
	httpServer *xhttp.Server
}

// Components groups what New needs. Collector and Consumer are nil unless
// the matching feed type is configured.
type Components struct {
	ORB        *usecase.ORBScanner
	Lotto      *usecase.IndexLottoScanner
	Rollover   *usecase.Rollover
	Collector  *usecase.TickCollector
	Consumer   *pkgkafka.Consumer
	HTTPServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		orb:        c.ORB,
		lotto:      c.Lotto,
		rollover:   c.Rollover,
		collector:  c.Collector,
		consumer:   c.Consumer,
		httpServer: c.HTTPServer,
	}
}

// ORB returns the ORB scanner, used by one-shot commands.
func (a *App) ORB() *usecase.ORBScanner { return a.orb }

// Run starts every component and blocks until ctx ends, SIGINT/SIGTERM
// arrives or a component fails.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	httpErr := a.httpServer.Start()
	g.Go(func() error {
		select {
		case err, ok := <-httpErr:
			if ok && err != nil {
				return err
			}
		case <-gctx.Done():
		}
		return nil
	})

	if a.collector != nil {
		if err := a.collector.Start(gctx); err != nil {
			a.l.Error("market stream start failed", applogger.Error(err))
			stop()
			_ = g.Wait()
			return errors.Join(err, a.shutdown())
		}
		a.l.Info("market stream started", applogger.Strings("symbols", a.cfg.Scanner.Symbols))
	}

	if a.consumer != nil {
		g.Go(func() error {
			return a.consumer.Run(gctx)
		})
		a.l.Info("kafka feed started", applogger.String("topic", a.consumer.Topic()))
	}

	a.rollover.Start()

	g.Go(func() error {
		return a.orb.Run(gctx, session.NewTicker(a.cfg.Scanner.Interval))
	})
	g.Go(func() error {
		return a.lotto.Run(gctx, session.NewTicker(a.cfg.Lotto.Interval))
	})
	a.l.Info("scanners started",
		applogger.Duration("orb_interval", a.cfg.Scanner.Interval),
		applogger.Duration("lotto_interval", a.cfg.Lotto.Interval),
	)

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.l.Error("component failed", applogger.Error(err))
	} else {
		a.l.Info("shutdown signal received")
		err = nil
	}
	if serr := a.shutdown(); serr != nil && err == nil {
		err = serr
	}
	return err
}

// shutdown gracefully stops all services. Infrastructure clients are closed
// by the DI cleanup.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout+time.Second)
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	a.rollover.Stop()
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.l.Warn("market stream close", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.l.Warn("kafka consumer close", applogger.Error(err))
		}
	}
	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
