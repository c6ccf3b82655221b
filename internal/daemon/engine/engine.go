// Package engine orchestrates background collectors for the daemon and is
// the single place where their batches are applied to the store.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/grovetools/pulse/internal/daemon/collector"
	"github.com/grovetools/pulse/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Applier is the store write path used by the engine.
type Applier interface {
	ReplaceSection(ctx context.Context, section models.Section, items []models.Item) (uint64, error)
	UpdateCollectorStatus(ctx context.Context, cs models.CollectorStatus) (uint64, error)
}

// Engine manages and runs all collectors.
type Engine struct {
	store      Applier
	collectors []collector.Collector
	logger     *logrus.Entry
	now        func() time.Time
}

// New creates a new Engine instance.
func New(st Applier, logger *logrus.Entry) *Engine {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Register adds a collector to the engine. It must be called before Start.
func (e *Engine) Register(c collector.Collector) {
	e.collectors = append(e.collectors, c)
}

// Collectors returns the names of the registered collectors.
func (e *Engine) Collectors() []string {
	names := make([]string, 0, len(e.collectors))
	for _, c := range e.collectors {
		names = append(names, c.Name())
	}
	return names
}

// Start runs all collectors and the apply loop, and blocks until ctx is
// canceled. A failing collector is logged and recorded in the status section;
// it does not stop the others.
func (e *Engine) Start(ctx context.Context) error {
	updates := make(chan collector.Batch, 100)
	g, gctx := errgroup.WithContext(ctx)

	// Single consumer: batches are applied in arrival order.
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case b := <-updates:
				if _, err := e.Apply(gctx, b); err != nil {
					e.logger.WithError(err).WithField("source", b.Source).Warn("Failed to apply batch")
				}
			}
		}
	})

	for _, c := range e.collectors {
		col := c
		g.Go(func() error {
			e.logger.WithField("collector", col.Name()).Info("Starting collector")
			if err := col.Run(gctx, updates); err != nil {
				e.logger.WithField("collector", col.Name()).WithError(err).Error("Collector failed")
				_, _ = e.store.UpdateCollectorStatus(context.WithoutCancel(gctx), models.CollectorStatus{
					Name:    col.Name(),
					LastRun: e.now().UTC(),
					Error:   err.Error(),
				})
			}
			return nil
		})
	}

	return g.Wait()
}

// Apply writes one batch to the store and records the outcome under the
// batch's collector name. It returns the version of the section write.
func (e *Engine) Apply(ctx context.Context, b collector.Batch) (uint64, error) {
	status := models.CollectorStatus{
		Name:    collectorName(b.Source),
		LastRun: e.now().UTC(),
	}

	var (
		version uint64
		err     = b.Err
	)
	if err == nil {
		version, err = e.store.ReplaceSection(ctx, b.Section, b.Items)
	}
	if err != nil {
		status.Error = err.Error()
	} else {
		status.Items = len(b.Items)
		e.logger.WithFields(logrus.Fields{
			"section": b.Section,
			"items":   len(b.Items),
			"source":  b.Source,
			"version": version,
		}).Debug("Applied batch")
	}

	if _, serr := e.store.UpdateCollectorStatus(ctx, status); serr != nil {
		e.logger.WithError(serr).Debug("Failed to record collector status")
	}
	return version, err
}

// Refresh asks every collector that supports it to rescan its source.
func (e *Engine) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := 0
	for _, c := range e.collectors {
		if r, ok := c.(collector.Refresher); ok {
			r.Refresh()
			n++
		}
	}
	e.logger.WithField("collectors", n).Debug("Refresh requested")
	return nil
}

// collectorName maps a batch source such as "inbox:priorities.yml" to the
// status key "inbox".
func collectorName(source string) string {
	if source == "" {
		return "unknown"
	}
	name, _, _ := strings.Cut(source, ":")
	return name
}
