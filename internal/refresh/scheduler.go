// Package refresh reloads the tool selector on a cron schedule.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RunRecord tracks one scheduled reload.
type RunRecord struct {
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// TriggerFunc performs the reload.
type TriggerFunc func(ctx context.Context) error

const (
	maxRuns    = 200
	keepRuns   = 100
	runTimeout = time.Minute
)

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler runs a single reload job; an empty schedule means no job.
type Scheduler struct {
	mu       sync.RWMutex
	cron     *cron.Cron
	entry    cron.EntryID
	schedule string
	trigger  TriggerFunc
	runs     []RunRecord
}

func NewScheduler(trigger TriggerFunc) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser)),
		trigger: trigger,
	}
}

// Validate reports whether spec is a usable schedule. Empty is valid (disabled).
func Validate(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return nil
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("refresh scheduler started", "schedule", s.Schedule())
}

// Stop gracefully stops the scheduler and waits for a running reload.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Schedule returns the active schedule, or "" when disabled.
func (s *Scheduler) Schedule() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedule
}

// SetSchedule replaces the reload job. An empty spec removes it.
func (s *Scheduler) SetSchedule(spec string) error {
	if err := Validate(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if spec == s.schedule {
		return nil
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
		s.entry = 0
	}
	s.schedule = spec
	if spec == "" {
		slog.Info("scheduled refresh disabled")
		return nil
	}
	entry, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		s.schedule = ""
		return fmt.Errorf("schedule refresh: %w", err)
	}
	s.entry = entry
	slog.Info("scheduled refresh set", "schedule", spec)
	return nil
}

// RunNow performs a reload immediately, outside the schedule.
func (s *Scheduler) RunNow() {
	s.run()
}

// Runs returns the recorded reloads, oldest first.
func (s *Scheduler) Runs() []RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RunRecord, len(s.runs))
	copy(out, s.runs)
	return out
}

// LastRun returns the most recent reload.
func (s *Scheduler) LastRun() (RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.runs) == 0 {
		return RunRecord{}, false
	}
	return s.runs[len(s.runs)-1], true
}

func (s *Scheduler) run() {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	err := s.trigger(ctx)
	duration := time.Since(start)

	record := RunRecord{
		StartedAt: start,
		Duration:  duration.String(),
		Success:   err == nil,
	}
	if err != nil {
		record.Error = err.Error()
		slog.Warn("scheduled refresh failed", "error", err, "duration", duration)
	} else {
		slog.Debug("scheduled refresh completed", "duration", duration)
	}

	s.mu.Lock()
	s.runs = append(s.runs, record)
	if len(s.runs) > maxRuns {
		s.runs = s.runs[len(s.runs)-keepRuns:]
	}
	s.mu.Unlock()
}
