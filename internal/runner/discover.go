package runner

import (
	"context"
	"fmt"

	"github.com/savannahghi/idrclient/internal/etlmodel"
	"github.com/savannahghi/idrclient/internal/mlog"
	"github.com/savannahghi/idrclient/internal/protocol"
	"github.com/savannahghi/idrclient/internal/retry"
	"github.com/savannahghi/idrclient/internal/workflow"
)

// discovery accumulates Stage A's output across every metadata supplier,
// resolving duplicate ids first-writer-wins (§8 invariant 8 / scenario S6).
// errs collects every supplier/draw-listing failure so RunProtocol can fold
// a Stage-A deadline (e.g. S3) into a partial-failure result instead of
// silently shrinking the task list.
type discovery struct {
	sinkMetas   map[string]*etlmodel.DataSinkMeta
	sourceMetas map[string]*etlmodel.DataSourceMeta
	errs        []error
}

// discover implements Stage A. A supplier-level failure (sink/source meta
// listing) is logged, recorded in d.errs, and that supplier is skipped; a
// per-source draw listing failure is logged, recorded, and only that
// source's draws are left empty, mirroring S3's "aborts discovery for that
// source, proceeds with other sources" — but still surfaces as a failure.
func (r *Runner) discover(ctx context.Context, p *protocol.ETLProtocol, logger mlog.Logger) *discovery {
	d := &discovery{
		sinkMetas:   make(map[string]*etlmodel.DataSinkMeta),
		sourceMetas: make(map[string]*etlmodel.DataSourceMeta),
	}

	for _, supplier := range p.MetadataSuppliers {
		r.discoverFromSupplier(ctx, supplier, d, logger)
	}

	return d
}

func (r *Runner) discoverFromSupplier(ctx context.Context, supplier etlmodel.MetadataSupplier, d *discovery, logger mlog.Logger) {
	sinkMetas, err := retryCall(ctx, r.opts.RetryConfig, supplier.DataSinkMetas)
	if err != nil {
		logger.Warnf("listing data sink metas failed: %s", err.Error())
		d.errs = append(d.errs, fmt.Errorf("listing data sink metas: %w", err))
	}

	for _, m := range sinkMetas {
		if _, exists := d.sinkMetas[m.ID()]; exists {
			logger.Warnf("duplicate data sink meta id %q ignored (first writer wins)", m.ID())
			continue
		}

		d.sinkMetas[m.ID()] = m
	}

	sourceMetas, err := retryCall(ctx, r.opts.RetryConfig, supplier.DataSourceMetas)
	if err != nil {
		logger.Warnf("listing data source metas failed: %s", err.Error())
		d.errs = append(d.errs, fmt.Errorf("listing data source metas: %w", err))
	}

	for _, src := range sourceMetas {
		if existing, exists := d.sourceMetas[src.ID()]; exists {
			logger.Warnf("duplicate data source meta id %q: keeping the first writer's meta, merging its draws", src.ID())
			r.discoverDraws(ctx, supplier, existing, d, logger)

			continue
		}

		d.sourceMetas[src.ID()] = src
		r.discoverDraws(ctx, supplier, src, d, logger)
	}
}

func (r *Runner) discoverDraws(ctx context.Context, supplier etlmodel.MetadataSupplier, src *etlmodel.DataSourceMeta, d *discovery, logger mlog.Logger) {
	var draws []*etlmodel.DrawMeta

	err := retry.Do(ctx, r.opts.RetryConfig, func(ctx context.Context) error {
		got, err := supplier.DrawMetas(ctx, src)
		if err != nil {
			return err
		}

		draws = got

		return nil
	})
	if err != nil {
		logger.Warnf("discovery aborted for data source %q: %s", src.ID(), err.Error())
		d.errs = append(d.errs, fmt.Errorf("listing draw metas for data source %q: %w", src.ID(), err))

		return
	}

	for _, draw := range draws {
		if _, exists := src.Draws[draw.ID()]; exists {
			logger.Warnf("duplicate draw meta id %q ignored (first writer wins)", draw.ID())
			continue
		}

		_ = src.AddDraw(draw)
	}
}

// retryCall adapts a (ctx) (T, error)-shaped supplier method onto retry.Do,
// which only knows how to wrap (ctx) error.
func retryCall[T any](ctx context.Context, cfg retry.Config, call func(ctx context.Context) (T, error)) (T, error) {
	var result T

	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		got, err := call(ctx)
		if err != nil {
			return err
		}

		result = got

		return nil
	})

	return result, err
}

// materialize implements Stage B: apply the protocol's factories to every
// discovered meta. A single handle's materialization failure is logged,
// recorded, and that handle is dropped; the rest of the protocol still runs.
func (r *Runner) materialize(p *protocol.ETLProtocol, d *discovery, logger mlog.Logger) ([]materializedSource, []workflow.SinkHandle, []error) {
	var (
		sources []materializedSource
		errs    []error
	)

	for _, srcMeta := range d.sourceMetas {
		src, err := p.DataSourceFactory(srcMeta)
		if err != nil {
			logger.Errorf("materializing data source %q failed: %s", srcMeta.ID(), err.Error())
			errs = append(errs, fmt.Errorf("materializing data source %q: %w", srcMeta.ID(), err))

			continue
		}

		sources = append(sources, materializedSource{meta: srcMeta, source: src})
	}

	var sinks []workflow.SinkHandle

	for _, sinkMeta := range d.sinkMetas {
		sink, err := p.DataSinkFactory(sinkMeta)
		if err != nil {
			logger.Errorf("materializing data sink %q failed: %s", sinkMeta.ID(), err.Error())
			errs = append(errs, fmt.Errorf("materializing data sink %q: %w", sinkMeta.ID(), err))

			continue
		}

		sinks = append(sinks, workflow.SinkHandle{Meta: sinkMeta, Sink: sink})
	}

	return sources, sinks, errs
}
