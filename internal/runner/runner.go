// Package runner implements the protocol runner (C11): discover metadata,
// materialize drivers, fan out one workflow per (data source, draw) pair
// under a bounded pool, join, and tear everything down — the top-level
// entry point a CLI invokes once per configured protocol.
package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/semaphore"

	"github.com/savannahghi/idrclient/internal/etlmodel"
	"github.com/savannahghi/idrclient/internal/idrerrors"
	"github.com/savannahghi/idrclient/internal/mlog"
	"github.com/savannahghi/idrclient/internal/protocol"
	"github.com/savannahghi/idrclient/internal/retry"
	"github.com/savannahghi/idrclient/internal/signalbus"
	"github.com/savannahghi/idrclient/internal/workflow"
)

// defaultMaxConcurrency is the §4.6 pool-size ceiling when the caller
// doesn't override it and the protocol has more than 32 draws.
const defaultMaxConcurrency = 32

// Options configures a Runner.
type Options struct {
	// MaxConcurrency overrides the default min(32, number_of_draw_metas)
	// pool size. 0 or negative means "use the default".
	MaxConcurrency int

	// RetryConfig is used for every retry-wrapped discovery/ack call and
	// passed through to each workflow for its own retry-wrapped consume
	// calls.
	RetryConfig retry.Config

	// Bus receives the six §4.6 signals. A nil Bus is replaced with a
	// fresh, listener-less one.
	Bus *signalbus.Bus
}

// FailedWorkflow records one workflow's terminal failure.
type FailedWorkflow struct {
	DrawMetaID string
	Err        error
}

// Result summarizes one RunProtocol call.
type Result struct {
	TotalWorkflows  int
	FailedWorkflows []FailedWorkflow
	Cancelled       bool

	// DiscoveryErrors collects every Stage-A (metadata/draw listing) and
	// Stage-B (driver materialization) failure, including a retry-deadline
	// exceeded while discovering a source's draws. A non-empty
	// DiscoveryErrors still yields a non-nil RunProtocol error even when
	// TotalWorkflows is 0 and FailedWorkflows is empty.
	DiscoveryErrors []error
}

// Runner runs ETLProtocols end to end.
type Runner struct {
	opts Options
}

// New returns a Runner configured with opts.
func New(opts Options) *Runner {
	if opts.Bus == nil {
		opts.Bus = signalbus.New()
	}

	return &Runner{opts: opts}
}

type materializedSource struct {
	meta   *etlmodel.DataSourceMeta
	source etlmodel.DataSource
}

// RunProtocol drives proto through discovery, materialization, fan-out,
// join, and teardown, emitting signals along the way. It returns a non-nil
// error when proto fails Validate (with a zero Result), when at least one
// workflow failed, when the run was cancelled, or when Stage A/B recorded any
// DiscoveryErrors. Except after a Validate failure, Result is populated,
// including when an error is returned.
func (r *Runner) RunProtocol(ctx context.Context, proto *protocol.ETLProtocol) (Result, error) {
	p := proto.WithDefaults()
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	logger := mlog.FromContext(ctx).WithFields("protocol_id", p.ID)
	bus := r.opts.Bus

	var result Result

	var runErr error

	bus.Emit(signalbus.Signal{Kind: signalbus.PreProtocolRun, ProtocolID: p.ID})

	defer func() {
		if runErr != nil {
			bus.Emit(signalbus.Signal{Kind: signalbus.ProtocolRunError, ProtocolID: p.ID, Err: runErr})
		}

		bus.Emit(signalbus.Signal{Kind: signalbus.PostProtocolRun, ProtocolID: p.ID})
	}()

	disc := r.discover(ctx, &p, logger)

	sources, sinks, materializeErrs := r.materialize(&p, disc, logger)

	result.DiscoveryErrors = append(disc.errs, materializeErrs...)

	tasks := fanOutTasks(sources)
	result.TotalWorkflows = len(tasks)

	result.FailedWorkflows, result.Cancelled = r.runTasks(ctx, &p, bus, logger, tasks, sinks)

	r.teardown(&p, sources, sinks, logger)

	switch {
	case result.Cancelled:
		runErr = &idrerrors.CancelledError{Op: "runner.RunProtocol"}
	case len(result.FailedWorkflows) > 0:
		runErr = fmt.Errorf("runner: %d of %d workflow(s) failed", len(result.FailedWorkflows), result.TotalWorkflows)
	case len(result.DiscoveryErrors) > 0:
		runErr = fmt.Errorf("runner: %d discovery/materialization error(s): %w", len(result.DiscoveryErrors), result.DiscoveryErrors[0])
	}

	return result, runErr
}

type fanOutTask struct {
	drawMeta *etlmodel.DrawMeta
	source   etlmodel.DataSource
}

func fanOutTasks(sources []materializedSource) []fanOutTask {
	var tasks []fanOutTask

	for _, ms := range sources {
		for _, draw := range ms.meta.Draws {
			tasks = append(tasks, fanOutTask{drawMeta: draw, source: ms.source})
		}
	}

	return tasks
}

// runTasks implements Stages C (fan-out) and D (join): each task runs in
// its own goroutine guarded by a bounded semaphore, reporting into a shared,
// mutex-protected result slice. Submission stops, without cancelling
// in-flight work, once ctx is done.
func (r *Runner) runTasks(ctx context.Context, p *protocol.ETLProtocol, bus *signalbus.Bus, logger mlog.Logger, tasks []fanOutTask, sinks []workflow.SinkHandle) ([]FailedWorkflow, bool) {
	maxConc := r.opts.MaxConcurrency
	if maxConc <= 0 {
		maxConc = len(tasks)
		if maxConc > defaultMaxConcurrency {
			maxConc = defaultMaxConcurrency
		}
	}

	if maxConc < 1 {
		maxConc = 1
	}

	sem := semaphore.NewWeighted(int64(maxConc))

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		failed    []FailedWorkflow
		cancelled bool
	)

	for _, t := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			cancelled = true
			break
		}

		t := t

		wg.Add(1)

		go func() {
			defer wg.Done()
			defer sem.Release(1)

			r.runOne(ctx, p, bus, logger, t, sinks, &mu, &failed)
		}()
	}

	wg.Wait()

	if ctx.Err() != nil {
		cancelled = true
	}

	return failed, cancelled
}

func (r *Runner) runOne(ctx context.Context, p *protocol.ETLProtocol, bus *signalbus.Bus, logger mlog.Logger, t fanOutTask, sinks []workflow.SinkHandle, mu *sync.Mutex, failed *[]FailedWorkflow) {
	bus.Emit(signalbus.Signal{Kind: signalbus.PreWorkflowRun, ProtocolID: p.ID, DrawMeta: t.drawMeta})

	recordFailure := func(err error) {
		mu.Lock()
		*failed = append(*failed, FailedWorkflow{DrawMetaID: t.drawMeta.ID(), Err: err})
		mu.Unlock()

		bus.Emit(signalbus.Signal{Kind: signalbus.WorkflowRunError, ProtocolID: p.ID, DrawMeta: t.drawMeta, Err: err})
		logger.Errorf("workflow for draw %q failed: %s", t.drawMeta.ID(), err.Error())
	}

	wf, err := workflow.New(workflow.Config{
		DrawMeta:          t.drawMeta,
		DataSource:        t.source,
		Sinks:             sinks,
		ProcessorFactory:  p.ProcessorFactory,
		DrainMetaFactory:  p.DrainMetaFactory,
		MetadataConsumers: p.MetadataConsumers,
		DataSinkSelector:  p.DataSinkSelector,
		RetryConfig:       r.opts.RetryConfig,
	})
	if err != nil {
		recordFailure(err)
		return
	}

	outcome := wf.Run(ctx)
	if outcome.State == workflow.StateFailed {
		recordFailure(outcome.Err)
		return
	}

	bus.Emit(signalbus.Signal{Kind: signalbus.PostWorkflowRun, ProtocolID: p.ID, DrawMeta: t.drawMeta})
}

// teardown implements Stage E: dispose every data source, every data sink,
// every supplier, every consumer, then the drain-meta factory, aggregating
// (but never returning) disposal errors.
func (r *Runner) teardown(p *protocol.ETLProtocol, sources []materializedSource, sinks []workflow.SinkHandle, logger mlog.Logger) {
	var merr *multierror.Error

	for _, s := range sources {
		if err := s.source.Dispose(); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("data source %q: %w", s.meta.ID(), err))
		}
	}

	for _, s := range sinks {
		if err := s.Sink.Dispose(); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("data sink %q: %w", s.Meta.ID(), err))
		}
	}

	for _, supplier := range p.MetadataSuppliers {
		if err := supplier.Dispose(); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("metadata supplier: %w", err))
		}
	}

	for _, consumer := range p.MetadataConsumers {
		if err := consumer.Dispose(); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("metadata consumer: %w", err))
		}
	}

	if p.DrainMetaFactory != nil {
		if err := p.DrainMetaFactory.Dispose(); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("drain meta factory: %w", err))
		}
	}

	if merr != nil && merr.Len() > 0 {
		logger.Warnf("teardown encountered %d disposal error(s): %s", merr.Len(), merr.Error())
	}
}
