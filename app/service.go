// Package app assembles the planner, its data store and the optional outer
// surfaces (HTTP API, metrics, MQTT) from a configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kilianp07/busroute/api/routes"
	"github.com/kilianp07/busroute/config"
	"github.com/kilianp07/busroute/core/events"
	coremetrics "github.com/kilianp07/busroute/core/metrics"
	coremon "github.com/kilianp07/busroute/core/monitoring"
	"github.com/kilianp07/busroute/core/planner"
	"github.com/kilianp07/busroute/infra/logger"
	"github.com/kilianp07/busroute/infra/metrics"
	"github.com/kilianp07/busroute/infra/monitoring"
	"github.com/kilianp07/busroute/infra/mqtt"
	infrastore "github.com/kilianp07/busroute/infra/store"
	"github.com/kilianp07/busroute/internal/eventbus"
)

// Service owns every long-lived component of the process.
type Service struct {
	Planner *planner.Planner
	Store   infrastore.Store

	cfg       *config.Config
	changes   *eventbus.TypedBus[events.RouteChanged]
	schedules *eventbus.TypedBus[events.ScheduleRecomputed]
	sink      coremetrics.MetricsSink
	mon       coremon.Monitor
	publisher *mqtt.SchedulePublisher
	log       logger.Logger

	closeOnce sync.Once
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	if err := logger.Setup(logger.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	logg := logger.New("service")

	st, err := infrastore.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("sentry: %w", err)
	}

	svc := &Service{
		Store:     st,
		cfg:       cfg,
		changes:   eventbus.NewTyped[events.RouteChanged](),
		schedules: eventbus.NewTyped[events.ScheduleRecomputed](),
		sink:      sink,
		mon:       mon,
		log:       logg,
	}

	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewSchedulePublisher(cfg.MQTT, mon)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.publisher = pub
	}

	svc.Planner = planner.New(planner.Deps{
		Store:     st,
		Changes:   svc.changes,
		Schedules: svc.schedules,
		Metrics:   sink,
		Monitor:   mon,
		Logger:    logger.New("planner"),
	}, PlannerOptions(cfg.Planning))
	return svc, nil
}

// PlannerOptions maps the planning section onto planner options.
func PlannerOptions(c config.PlanningConfig) planner.Options {
	return planner.Options{
		DefaultCapacity:     c.DefaultCapacity,
		DefaultSchool:       c.DefaultSchool,
		DefaultStartTime:    c.DefaultStartTime,
		DefaultDwellMinutes: c.DefaultDwellMinutes,
		RecomputeDelay:      c.RecomputeDelay(),
		StrictActivation:    c.StrictActivation,
	}
}

// Run starts the recompute consumer and the configured surfaces, then blocks
// until ctx is canceled or the HTTP server fails.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Planner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Errorf("recompute scheduler: %v", err)
		}
	}()

	metrics.StartEventCollector(ctx, s.schedules, s.sink)

	if addr := s.cfg.Metrics.PrometheusPort; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	if s.publisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.publisher.Run(ctx, s.schedules, s.changes)
		}()
	}

	err := s.serveHTTP(ctx)
	cancel()
	wg.Wait()
	return err
}

func (s *Service) serveHTTP(ctx context.Context) error {
	router := routes.NewRouter(s.Planner, routes.Options{
		CORSOrigins: s.cfg.HTTP.CORSOrigins,
		Logger:      logger.NewZerologLogger("http").Zerolog(),
	})
	srv := &http.Server{Addr: s.cfg.HTTP.Address, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}()
	s.log.Infof("http api listening on %s", s.cfg.HTTP.Address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Close releases resources held by the service. It is safe to call twice.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.Planner.Close()
		s.changes.Close()
		s.schedules.Close()
		if s.publisher != nil {
			s.publisher.Disconnect()
		}
		if c, ok := s.sink.(interface{ Close() }); ok {
			c.Close()
		}
		s.mon.Flush(2 * time.Second)
		err = s.Store.Close()
	})
	return err
}
