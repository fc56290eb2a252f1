// Package jobs runs archive-producing work in the background and tracks its
// progress, result and lifecycle.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"cert-studio/studio-backend/pkg/apperr"
	"cert-studio/studio-backend/pkg/archive"
)

// Kind names the tool a job runs.
type Kind string

const (
	KindGenerate Kind = "generate"
	KindOrganize Kind = "organize"
	KindOptimize Kind = "optimize"
)

// Runner produces an archive, reporting (current, total) as it goes. It must
// stop promptly once ctx is cancelled.
type Runner func(ctx context.Context, progress func(current, total int)) (*archive.Archive, error)

// ArchiveStore uploads finished archives and returns a download URL.
type ArchiveStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// Snapshot is a point-in-time copy of a job's public state.
type Snapshot struct {
	ID          string      `json:"id"`
	Kind        Kind        `json:"kind"`
	State       State       `json:"state"`
	Current     int         `json:"current"`
	Total       int         `json:"total"`
	FileName    string      `json:"file_name"`
	Error       string      `json:"error,omitempty"`
	ErrorCode   apperr.Code `json:"error_code,omitempty"`
	Item        string      `json:"item,omitempty"`
	DownloadURL string      `json:"download_url,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	FinishedAt  *time.Time  `json:"finished_at,omitempty"`
}

type job struct {
	snap        Snapshot
	data        []byte
	cancel      context.CancelFunc
	done        chan struct{}
	subscribers map[chan Snapshot]struct{}
}

// Options configures a Manager.
type Options struct {
	Retention time.Duration
	Store     ArchiveStore
}

// Manager owns every job. Each job exclusively owns the archive it builds;
// partial results of failed or cancelled jobs are dropped.
type Manager struct {
	mu        sync.Mutex
	jobs      map[string]*job
	store     ArchiveStore
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
	cron      *cron.Cron
	wg        sync.WaitGroup
}

func NewManager(logger *zap.Logger, opts Options) *Manager {
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	return &Manager{
		jobs:      make(map[string]*job),
		store:     opts.Store,
		retention: opts.Retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit queues run and starts it immediately.
func (m *Manager) Submit(kind Kind, fileName string, run Runner) Snapshot {
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		snap: Snapshot{
			ID:        uuid.NewString(),
			Kind:      kind,
			State:     StateQueued,
			FileName:  fileName,
			CreatedAt: m.now(),
		},
		cancel:      cancel,
		done:        make(chan struct{}),
		subscribers: make(map[chan Snapshot]struct{}),
	}

	m.mu.Lock()
	m.jobs[j.snap.ID] = j
	snap := j.snap
	m.mu.Unlock()

	m.wg.Add(1)
	go m.execute(ctx, j, run)

	m.logger.Info("job submitted", zap.String("job_id", snap.ID), zap.String("kind", string(kind)))
	return snap
}

func (m *Manager) execute(ctx context.Context, j *job, run Runner) {
	defer m.wg.Done()
	defer j.cancel()

	start := m.now()
	m.mu.Lock()
	m.transition(j, StateRunning)
	m.mu.Unlock()

	data, url, err := m.produce(ctx, j, run)

	m.mu.Lock()
	defer m.mu.Unlock()

	finished := m.now()
	j.snap.FinishedAt = &finished
	switch {
	case err == nil:
		j.data = data
		j.snap.DownloadURL = url
		m.transition(j, StateSucceeded)
	case errors.Is(err, context.Canceled):
		m.transition(j, StateCancelled)
	default:
		j.snap.Error = err.Error()
		j.snap.ErrorCode = apperr.Classify(err)
		j.snap.Item = apperr.ItemOf(err)
		m.transition(j, StateFailed)
	}

	m.logger.Info("job finished",
		zap.String("job_id", j.snap.ID),
		zap.String("kind", string(j.snap.Kind)),
		zap.String("state", string(j.snap.State)),
		zap.Int("total", j.snap.Total),
		zap.Int64("duration_ms", finished.Sub(start).Milliseconds()),
		zap.Error(err),
	)

	for ch := range j.subscribers {
		close(ch)
	}
	j.subscribers = nil
	close(j.done)
}

func (m *Manager) produce(ctx context.Context, j *job, run Runner) (data []byte, url string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	out, err := run(ctx, func(current, total int) {
		m.progress(j, current, total)
	})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, "", err
	}

	data, err = out.Bytes()
	if err != nil {
		return nil, "", err
	}

	if m.store != nil {
		url, err = m.store.Put(ctx, j.snap.ID+"/"+j.snap.FileName, data)
		if err != nil {
			return nil, "", fmt.Errorf("failed to upload archive: %w", err)
		}
	}
	return data, url, nil
}

// progress records (current, total); current never moves backwards.
func (m *Manager) progress(j *job, current, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if j.snap.State.Terminal() {
		return
	}
	j.snap.Total = total
	if current > j.snap.Current {
		j.snap.Current = current
	}
	m.publish(j)
}

// transition must be called with m.mu held.
func (m *Manager) transition(j *job, to State) {
	if !CanTransition(j.snap.State, to) {
		m.logger.Warn("invalid job transition",
			zap.String("job_id", j.snap.ID),
			zap.String("from", string(j.snap.State)),
			zap.String("to", string(to)),
		)
		return
	}
	j.snap.State = to
	m.publish(j)
}

// publish delivers the latest snapshot without blocking; a slow subscriber
// only ever misses intermediate states. Must be called with m.mu held.
func (m *Manager) publish(j *job) {
	for ch := range j.subscribers {
		select {
		case ch <- j.snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- j.snap
		}
	}
}

func (m *Manager) lookup(id string) (*job, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, apperr.ErrNotFound)
	}
	return j, nil
}

// Get returns the current snapshot of a job.
func (m *Manager) Get(id string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return j.snap, nil
}

// Result returns the archive bytes of a succeeded job.
func (m *Manager) Result(id string) ([]byte, Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, err := m.lookup(id)
	if err != nil {
		return nil, Snapshot{}, err
	}
	switch j.snap.State {
	case StateSucceeded:
		return j.data, j.snap, nil
	case StateQueued, StateRunning:
		return nil, j.snap, fmt.Errorf("job %s: %w", id, apperr.ErrPending)
	default:
		return nil, j.snap, fmt.Errorf("job %s %s: %s", id, j.snap.State, j.snap.Error)
	}
}

// Cancel requests cancellation. The job settles as cancelled once its runner
// returns.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, err := m.lookup(id)
	if err != nil {
		return err
	}
	j.cancel()
	return nil
}

// Wait blocks until the job reaches a terminal state or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (Snapshot, error) {
	m.mu.Lock()
	j, err := m.lookup(id)
	m.mu.Unlock()
	if err != nil {
		return Snapshot{}, err
	}

	select {
	case <-j.done:
		return m.Get(id)
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Subscribe returns a channel carrying the job's snapshots, primed with the
// current one. It is closed when the job finishes or stop is called.
func (m *Manager) Subscribe(id string) (<-chan Snapshot, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, err := m.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan Snapshot, 1)
	ch <- j.snap
	if j.snap.State.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}

	j.subscribers[ch] = struct{}{}
	stop := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := j.subscribers[ch]; ok {
			delete(j.subscribers, ch)
			close(ch)
		}
	}
	return ch, stop, nil
}

// Purge drops finished jobs older than the retention period and returns how
// many were removed.
func (m *Manager) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.retention)
	removed := 0
	for id, j := range m.jobs {
		if j.snap.FinishedAt != nil && j.snap.FinishedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

// Start schedules Purge on a cron spec (seconds field included).
func (m *Manager) Start(purgeSpec string) error {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(purgeSpec, func() {
		if n := m.Purge(); n > 0 {
			m.logger.Info("purged finished jobs", zap.Int("count", n))
		}
	}); err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", purgeSpec, err)
	}

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()

	c.Start()
	m.logger.Info("job purger started", zap.String("schedule", purgeSpec))
	return nil
}

// Stop halts the purger, cancels running jobs and waits for them to settle
// or ctx to expire.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.cron != nil {
		m.cron.Stop()
	}
	for _, j := range m.jobs {
		j.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
