// Package service runs Lox source on behalf of the network front ends and
// records every run in the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lemonberrylabs/loxwalk/pkg/diagnostics"
	"github.com/lemonberrylabs/loxwalk/pkg/lox"
	"github.com/lemonberrylabs/loxwalk/pkg/metrics"
	"github.com/lemonberrylabs/loxwalk/pkg/store"
)

// Errors returned for requests that are rejected before running.
var (
	ErrEmptySource    = errors.New("source is required")
	ErrSourceTooLarge = errors.New("source exceeds size limit")
)

// Limits bounds the resources a single run may use.
type Limits struct {
	Timeout        time.Duration
	MaxSourceBytes int
	MaxSteps       int
	MaxCallDepth   int
}

// Service executes scripts and ad-hoc source.
type Service struct {
	store  *store.Store
	limits Limits
	logger *zap.Logger
}

// New creates a service backed by s.
func New(s *store.Store, limits Limits, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, limits: limits, logger: logger}
}

// Store returns the backing store.
func (s *Service) Store() *store.Store {
	return s.store
}

// Validate checks source size and static correctness. It returns the static
// diagnostics, or an error when the source cannot be considered at all.
func (s *Service) Validate(source string) ([]*diagnostics.Diagnostic, error) {
	if err := s.checkSize(source); err != nil {
		return nil, err
	}
	return lox.Check(source), nil
}

// RunSource runs ad-hoc source on fresh globals and records the run.
func (s *Service) RunSource(ctx context.Context, source string) (*store.Run, error) {
	if err := s.checkSize(source); err != nil {
		return nil, err
	}
	return s.execute(ctx, store.Run{}, source)
}

// RunScript runs the current revision of a stored script and records the run.
func (s *Service) RunScript(ctx context.Context, scriptID string) (*store.Run, error) {
	sc, err := s.store.GetScript(scriptID)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, store.Run{ScriptID: sc.ID, ScriptRevision: sc.Revision}, sc.Source)
}

func (s *Service) checkSize(source string) error {
	if source == "" {
		return ErrEmptySource
	}
	if s.limits.MaxSourceBytes > 0 && len(source) > s.limits.MaxSourceBytes {
		return fmt.Errorf("%w: %d > %d bytes", ErrSourceTooLarge, len(source), s.limits.MaxSourceBytes)
	}
	return nil
}

func (s *Service) execute(ctx context.Context, run store.Run, source string) (*store.Run, error) {
	if s.limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.limits.Timeout)
		defer cancel()
	}

	opts := []lox.Option{
		lox.WithLogger(s.logger),
		lox.WithMaxSteps(s.limits.MaxSteps),
	}
	if s.limits.MaxCallDepth > 0 {
		opts = append(opts, lox.WithMaxCallDepth(s.limits.MaxCallDepth))
	}

	run.StartTime = time.Now()
	output, res := lox.Exec(ctx, source, opts...)
	run.EndTime = time.Now()
	run.Output = output
	run.Diagnostics = res.Diagnostics
	run.State = stateOf(res)
	if res.Err != nil {
		run.Diagnostics = append(run.Diagnostics, diagnostics.New(diagnostics.Runtime, 0, res.Err.Error()))
	}

	recorded, err := s.store.RecordRun(run)
	if err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	metrics.ObserveRun(string(recorded.State), res.Duration, recorded.Diagnostics)
	s.logger.Info("run recorded",
		zap.String("run_id", recorded.ID),
		zap.String("script_id", recorded.ScriptID),
		zap.String("state", string(recorded.State)),
		zap.Int("diagnostics", len(recorded.Diagnostics)),
		zap.Duration("duration", res.Duration),
	)
	return recorded, nil
}

func stateOf(res lox.Result) store.RunState {
	switch res.ExitCode() {
	case lox.ExitOK:
		return store.RunSucceeded
	case lox.ExitDataErr:
		return store.RunRejected
	default:
		return store.RunFailed
	}
}
