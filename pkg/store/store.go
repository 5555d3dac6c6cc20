// Package store provides storage for scripts and their runs. The store is
// held in memory and can optionally write through to a bbolt file.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.etcd.io/bbolt"

	"github.com/lemonberrylabs/loxwalk/pkg/diagnostics"
)

// Sentinel errors returned by Store methods.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// RunState represents the outcome of a run.
type RunState string

const (
	RunSucceeded RunState = "SUCCEEDED" // completed without diagnostics
	RunFailed    RunState = "FAILED"    // stopped by a runtime error
	RunRejected  RunState = "REJECTED"  // static errors; nothing executed
)

// Script represents a stored Lox program.
type Script struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Source     string    `json:"source"`
	Revision   int       `json:"revision"`
	CreateTime time.Time `json:"createTime"`
	UpdateTime time.Time `json:"updateTime"`
}

// Run represents a stored run of a script or of ad-hoc source.
type Run struct {
	ID             string                    `json:"id"`
	ScriptID       string                    `json:"scriptId,omitempty"`
	ScriptRevision int                       `json:"scriptRevision,omitempty"`
	State          RunState                  `json:"state"`
	Output         string                    `json:"output"`
	Diagnostics    []*diagnostics.Diagnostic `json:"diagnostics"`
	StartTime      time.Time                 `json:"startTime"`
	EndTime        time.Time                 `json:"endTime"`
}

// Store is a thread-safe storage for scripts and runs.
type Store struct {
	mu      sync.RWMutex
	scripts map[string]*Script
	runs    map[string]*Run
	db      *bbolt.DB // nil for a purely in-memory store
}

// New creates a new empty in-memory store.
func New() *Store {
	return &Store{
		scripts: make(map[string]*Script),
		runs:    make(map[string]*Run),
	}
}

// CreateScript stores a new script. Names are unique.
func (s *Store) CreateScript(name, source string) (*Script, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.findByName(name); taken {
		return nil, fmt.Errorf("script %q: %w", name, ErrAlreadyExists)
	}

	now := time.Now()
	sc := &Script{
		ID:         uuid.NewString(),
		Name:       name,
		Source:     source,
		Revision:   1,
		CreateTime: now,
		UpdateTime: now,
	}
	if err := s.put(scriptsBucket, sc.ID, sc); err != nil {
		return nil, err
	}
	s.scripts[sc.ID] = sc
	return copyScript(sc), nil
}

// GetScript retrieves a script by ID.
func (s *Store) GetScript(id string) (*Script, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.scripts[id]
	if !ok {
		return nil, fmt.Errorf("script %q: %w", id, ErrNotFound)
	}
	return copyScript(sc), nil
}

// GetScriptByName retrieves a script by its unique name.
func (s *Store) GetScriptByName(name string) (*Script, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.findByName(name)
	if !ok {
		return nil, fmt.Errorf("script %q: %w", name, ErrNotFound)
	}
	return copyScript(sc), nil
}

// ListScripts returns all scripts ordered by name.
func (s *Store) ListScripts() []*Script {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := lo.Map(lo.Values(s.scripts), func(sc *Script, _ int) *Script {
		return copyScript(sc)
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// UpdateScript replaces the name and/or source of a script. Empty arguments
// leave the field unchanged. Every update bumps the revision.
func (s *Store) UpdateScript(id, name, source string) (*Script, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.scripts[id]
	if !ok {
		return nil, fmt.Errorf("script %q: %w", id, ErrNotFound)
	}
	sc := copyScript(current)
	if name != "" && name != sc.Name {
		if _, taken := s.findByName(name); taken {
			return nil, fmt.Errorf("script %q: %w", name, ErrAlreadyExists)
		}
		sc.Name = name
	}
	if source != "" {
		sc.Source = source
	}
	sc.Revision++
	sc.UpdateTime = time.Now()
	if err := s.put(scriptsBucket, sc.ID, sc); err != nil {
		return nil, err
	}
	s.scripts[id] = sc
	return copyScript(sc), nil
}

// DeleteScript removes a script. Its runs are kept.
func (s *Store) DeleteScript(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.scripts[id]; !ok {
		return fmt.Errorf("script %q: %w", id, ErrNotFound)
	}
	if err := s.remove(scriptsBucket, id); err != nil {
		return err
	}
	delete(s.scripts, id)
	return nil
}

// RecordRun stores a finished run, assigning its ID.
func (s *Store) RecordRun(run Run) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.ID = uuid.NewString()
	if err := s.put(runsBucket, run.ID, &run); err != nil {
		return nil, err
	}
	stored := run
	s.runs[run.ID] = &stored
	return &run, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %q: %w", id, ErrNotFound)
	}
	cp := *run
	return &cp, nil
}

// ListRuns returns the runs of a script, oldest first.
func (s *Store) ListRuns(scriptID string) []*Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matching := lo.Filter(lo.Values(s.runs), func(r *Run, _ int) bool {
		return r.ScriptID == scriptID
	})
	result := lo.Map(matching, func(r *Run, _ int) *Run {
		cp := *r
		return &cp
	})
	sort.SliceStable(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result
}

// RecentRuns returns up to limit runs of any script, newest first. A limit
// of zero or less returns every run.
func (s *Store) RecentRuns(limit int) []*Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := lo.Map(lo.Values(s.runs), func(r *Run, _ int) *Run {
		cp := *r
		return &cp
	})
	sort.SliceStable(result, func(i, j int) bool { return result[i].StartTime.After(result[j].StartTime) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func (s *Store) findByName(name string) (*Script, bool) {
	return lo.Find(lo.Values(s.scripts), func(sc *Script) bool {
		return sc.Name == name
	})
}

func copyScript(sc *Script) *Script {
	cp := *sc
	return &cp
}
