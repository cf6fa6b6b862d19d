// Package jobmgr runs named background jobs with cancellation, status callbacks,
// and in-memory tracking of running jobs. At most one job per name runs at a time.
//
// Typical usage:
//
//	jm := jobmgr.NewManager(ctx, func(msg string) {
//	    log.Debug().Msg(msg)
//	})
//
//	err := jm.StartAsync("reaper", func(ctx context.Context, job *jobmgr.Job) error {
//	    // do work until ctx is cancelled
//	    return nil
//	})
//
//	// later...
//	_ = jm.Stop("reaper")
//
// Jobs run in separate goroutines and are removed on completion.
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrAlreadyRunning = errors.New("job is already running")
	ErrNotRunning     = errors.New("job is not running")
)

// Job represents a running unit of work.
type Job struct {
	Name   string
	Cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed once the job's runner has returned.
func (j *Job) Done() <-chan struct{} { return j.done }

// StatusReporter receives lifecycle events for jobs.
// Example messages:
//
//	running:loop:123
//	error:loop:123:queue backend error
//	done:loop:123
type StatusReporter func(string)

// Runner is the body of a job. job identifies this run for Release.
type Runner func(ctx context.Context, job *Job) error

// Manager orchestrates starting, stopping and tracking jobs.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	parent   context.Context
	wg       sync.WaitGroup
	Reporter StatusReporter
}

// NewManager creates a Manager whose jobs are cancelled with parent.
// The reporter callback may be nil.
func NewManager(parent context.Context, reporter StatusReporter) *Manager {
	if parent == nil {
		parent = context.Background()
	}
	return &Manager{
		jobs:     make(map[string]*Job),
		parent:   parent,
		Reporter: reporter,
	}
}

// StartAsync runs a job in a separate goroutine and returns immediately.
// Checking for an existing job and registering the new one happen under one
// lock, so concurrent callers start at most one job per name; the others get
// ErrAlreadyRunning.
func (m *Manager) StartAsync(name string, runner Runner) error {
	m.mu.Lock()
	if _, exists := m.jobs[name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}
	ctx, cancel := context.WithCancel(m.parent)
	job := &Job{Name: name, Cancel: cancel, done: make(chan struct{})}
	m.jobs[name] = job
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer close(job.done)
		defer cancel()

		m.report("running:" + name)

		err := runner(ctx, job)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.report("error:" + name + ":" + err.Error())
		} else {
			m.report("done:" + name)
		}

		m.remove(job)
	}()

	return nil
}

// Release unregisters job if finished() reports true, evaluated under the manager
// lock. A runner uses it to exit without racing a StartAsync for the same name:
// either the caller sees this job and the runner sees its work, or the runner
// is gone before the caller looks.
func (m *Manager) Release(job *Job, finished func() bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !finished() {
		return false
	}
	if m.jobs[job.Name] == job {
		delete(m.jobs, job.Name)
	}
	return true
}

// Stop cancels a running job by name.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, name)
	}

	job.Cancel()
	delete(m.jobs, name)
	return nil
}

// Running reports whether a job with name is registered.
func (m *Manager) Running(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[name]
	return ok
}

// Get returns the running job with name, if any.
func (m *Manager) Get(name string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[name]
	return job, ok
}

// List returns the names of active jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Status returns a human-readable summary of active jobs.
// Example:
//
//	"Running jobs: loop:1, reaper"
//
// If none are running: "No jobs are running."
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return fmt.Sprintf("Running jobs: %s", strings.Join(active, ", "))
}

// Shutdown cancels every job and waits for their runners to return.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for name, job := range m.jobs {
		job.Cancel()
		delete(m.jobs, name)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) remove(job *Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobs[job.Name] == job {
		delete(m.jobs, job.Name)
	}
}

// report delivers lifecycle messages to the reporter if present.
func (m *Manager) report(s string) {
	if m.Reporter != nil {
		m.Reporter(s)
	}
}
