package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/directory-service/internal/config"
	"github.com/teresa-solution/directory-service/internal/model"
	"github.com/teresa-solution/directory-service/internal/monitoring"
	"github.com/teresa-solution/directory-service/internal/source"
	"golang.org/x/sync/semaphore"
)

// DriverProvider returns the driver of a source. source.Manager implements it.
type DriverProvider interface {
	Get(ctx context.Context, sourceUUID string) (source.Driver, error)
}

// sourceCall runs one primitive of a driver on behalf of a service.
type sourceCall func(ctx context.Context, ref model.SourceRef, d source.Driver) ([]source.Result, error)

// FanOut dispatches a service query to every source of a profile service in
// parallel and merges what comes back before the service timeout.
type FanOut struct {
	drivers        DriverProvider
	maxConcurrency int64
	defaultTimeout time.Duration
}

func NewFanOut(drivers DriverProvider, cfg config.FanoutConfig) *FanOut {
	maxConcurrency := int64(cfg.MaxConcurrency)
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	timeout := cfg.DefaultTimeout.Duration
	if timeout <= 0 {
		timeout = time.Second
	}
	return &FanOut{drivers: drivers, maxConcurrency: maxConcurrency, defaultTimeout: timeout}
}

type outcome struct {
	index   int
	results []source.Result
	err     error
}

// Search returns the results of every source of svc matching term.
func (f *FanOut) Search(ctx context.Context, service string, svc model.ProfileService, term string, caller source.Caller) []source.Result {
	return flatten(f.run(ctx, service, svc, func(ctx context.Context, _ model.SourceRef, d source.Driver) ([]source.Result, error) {
		return d.Search(ctx, term, caller)
	}))
}

// FirstMatch queries every source of svc and returns the match of the first
// source, in declaration order, that has one.
func (f *FanOut) FirstMatch(ctx context.Context, service string, svc model.ProfileService, term string, caller source.Caller) *source.Result {
	perSource := f.run(ctx, service, svc, func(ctx context.Context, _ model.SourceRef, d source.Driver) ([]source.Result, error) {
		r, err := d.FirstMatch(ctx, term, caller)
		if err != nil || r == nil {
			return nil, err
		}
		return []source.Result{*r}, nil
	})
	for _, results := range perSource {
		if len(results) > 0 {
			return &results[0]
		}
	}
	return nil
}

// List asks each source of svc for the contacts listed under its uuid in
// ids. Sources without ids are not called.
func (f *FanOut) List(ctx context.Context, service string, svc model.ProfileService, ids map[string][]string, caller source.Caller) []source.Result {
	return flatten(f.run(ctx, service, svc, func(ctx context.Context, ref model.SourceRef, d source.Driver) ([]source.Result, error) {
		if len(ids[ref.UUID]) == 0 {
			return nil, nil
		}
		return d.List(ctx, ids[ref.UUID], caller)
	}))
}

func flatten(perSource [][]source.Result) []source.Result {
	out := []source.Result{}
	for _, results := range perSource {
		out = append(out, results...)
	}
	return out
}

// run calls every source of svc and returns their results indexed like
// svc.Sources. A source failing or still running at the deadline has no
// results. Calls running past the deadline are not interrupted.
func (f *FanOut) run(ctx context.Context, service string, svc model.ProfileService, call sourceCall) [][]source.Result {
	results := make([][]source.Result, len(svc.Sources))
	if len(svc.Sources) == 0 {
		return results
	}

	start := time.Now()
	defer func() {
		monitoring.FanoutDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
	}()

	timeout := svc.Options.TimeoutOr(f.defaultTimeout)
	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	callCtx := context.WithoutCancel(ctx)

	sem := semaphore.NewWeighted(f.maxConcurrency)
	done := make(chan outcome, len(svc.Sources))
	for i, ref := range svc.Sources {
		i, ref := i, ref
		go func() {
			if err := sem.Acquire(deadline, 1); err != nil {
				return
			}
			defer sem.Release(1)
			res, err := f.callSource(callCtx, ref, call)
			done <- outcome{index: i, results: res, err: err}
		}()
	}

	logger := log.Ctx(ctx)
	received := make([]bool, len(svc.Sources))
	for pending := len(svc.Sources); pending > 0; pending-- {
		select {
		case o := <-done:
			received[o.index] = true
			ref := svc.Sources[o.index]
			if o.err != nil {
				monitoring.FanoutSourceCalls.WithLabelValues(service, monitoring.StatusError).Inc()
				logger.Warn().Err(o.err).Str("service", service).Str("source_uuid", ref.UUID).
					Str("source", ref.Name).Msg("Source query failed")
				continue
			}
			monitoring.FanoutSourceCalls.WithLabelValues(service, monitoring.StatusOK).Inc()
			results[o.index] = o.results
		case <-deadline.Done():
			for i, ok := range received {
				if ok {
					continue
				}
				monitoring.FanoutSourceCalls.WithLabelValues(service, monitoring.StatusTimeout).Inc()
				logger.Warn().Str("service", service).Str("source_uuid", svc.Sources[i].UUID).
					Str("source", svc.Sources[i].Name).Dur("timeout", timeout).Msg("Source query timed out")
			}
			return results
		}
	}
	return results
}

func (f *FanOut) callSource(ctx context.Context, ref model.SourceRef, call sourceCall) (results []source.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source %s panicked: %v", ref.UUID, r)
		}
	}()
	d, err := f.drivers.Get(ctx, ref.UUID)
	if err != nil {
		return nil, err
	}
	return call(ctx, ref, d)
}
