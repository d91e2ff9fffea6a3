package taskcron

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"opengoat/internal/history"
	"opengoat/internal/ports"
	"opengoat/internal/settings"
	"opengoat/pkg/logger"
)

// cronSpec fires at second zero of every minute.
const cronSpec = "0 * * * * *"

// cycleCeiling is the hard bound on one cycle, ticker-driven or manual.
const cycleCeiling = 10 * time.Minute

// CycleRecorder is the slice of the history store the service needs.
type CycleRecorder interface {
	RecordCycle(c history.Cycle) (history.Cycle, error)
}

// CycleReport is the outcome of one cycle: the board tallies from the
// scan plus every dispatch with its result.
type CycleReport struct {
	RanAt          int64            `json:"ranAt"`
	ScannedTasks   int              `json:"scannedTasks"`
	TodoTasks      int              `json:"todoTasks"`
	DoingTasks     int              `json:"doingTasks"`
	BlockedTasks   int              `json:"blockedTasks"`
	InactiveAgents []string         `json:"inactiveAgents"`
	Sent           int              `json:"sent"`
	Failed         int              `json:"failed"`
	Dispatches     []DispatchResult `json:"dispatches"`
}

// Status is the scheduler's observable state.
type Status struct {
	Enabled     bool  `json:"enabled"`
	Running     bool  `json:"running"`
	CycleActive bool  `json:"cycleActive"`
	LastCycleAt int64 `json:"lastCycleAt,omitempty"`
}

// Service owns the minute ticker and runs cycles.
type Service struct {
	planner  *Planner
	executor *Executor
	settings *settings.Watched
	history  CycleRecorder // optional
	clock    ports.Clock

	cron    *cron.Cron
	enabled atomic.Bool

	mu          sync.Mutex
	running     bool
	cycleActive bool
	lastCycleAt int64
}

// NewService wires the scheduler. It subscribes to settings so the
// enabled flag follows hot reloads.
func NewService(planner *Planner, executor *Executor, watched *settings.Watched, clock ports.Clock) *Service {
	s := &Service{
		planner:  planner,
		executor: executor,
		settings: watched,
		clock:    clock,
	}
	s.enabled.Store(watched.Get().TaskCronEnabled)
	watched.Subscribe(func(cfg settings.Settings) {
		was := s.enabled.Swap(cfg.TaskCronEnabled)
		if was != cfg.TaskCronEnabled {
			logger.Info().Bool("enabled", cfg.TaskCronEnabled).Msg("task cron toggled")
		}
	})
	return s
}

// SetHistory wires the cycle recorder (optional).
func (s *Service) SetHistory(h CycleRecorder) { s.history = h }

// Start begins the minute ticker.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("task cron already running")
	}

	s.cron = cron.New(cron.WithSeconds())
	if _, err := s.cron.AddFunc(cronSpec, s.tick); err != nil {
		return fmt.Errorf("register cron entry: %w", err)
	}
	s.cron.Start()
	s.running = true
	logger.Info().Bool("enabled", s.enabled.Load()).Msg("task cron started")
	return nil
}

// Stop halts the ticker and waits for an in-flight cycle.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCtx := s.cron.Stop()
	s.mu.Unlock()

	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports the scheduler state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Enabled:     s.enabled.Load(),
		Running:     s.running,
		CycleActive: s.cycleActive,
		LastCycleAt: s.lastCycleAt,
	}
}

// tick runs one scheduled cycle. Disabled or overlapping ticks are
// skipped.
func (s *Service) tick() {
	if !s.enabled.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cycleCeiling)
	defer cancel()

	if _, err := s.runCycle(ctx, false); err != nil {
		logger.Warn().Err(err).Msg("task cron cycle failed")
	}
}

// RunCycle runs one cycle now, even while the scheduler is disabled.
func (s *Service) RunCycle(ctx context.Context) (CycleReport, error) {
	ctx, cancel := context.WithTimeout(ctx, cycleCeiling)
	defer cancel()
	return s.runCycle(ctx, true)
}

func (s *Service) runCycle(ctx context.Context, manual bool) (CycleReport, error) {
	s.mu.Lock()
	if s.cycleActive {
		s.mu.Unlock()
		if manual {
			return CycleReport{}, fmt.Errorf("a task cron cycle is already running")
		}
		logger.Debug().Msg("skipping tick, previous cycle still running")
		return CycleReport{}, nil
	}
	s.cycleActive = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cycleActive = false
		s.lastCycleAt = s.clock.Now().UnixMilli()
		s.mu.Unlock()
	}()

	cfg := s.settings.Get()
	started := s.clock.Now()

	scan, err := s.planner.Plan(cfg)
	if err != nil {
		return CycleReport{}, fmt.Errorf("plan cycle: %w", err)
	}

	var results []DispatchResult
	if len(scan.Dispatches) > 0 {
		results = s.executor.Execute(ctx, scan.Dispatches, cfg.MaxParallelFlows)
	}
	sent, failed := 0, 0
	for _, r := range results {
		if r.OK {
			sent++
		} else {
			failed++
		}
	}

	report := CycleReport{
		RanAt:          started.UnixMilli(),
		ScannedTasks:   scan.ScannedTasks,
		TodoTasks:      scan.TodoTasks,
		DoingTasks:     scan.DoingTasks,
		BlockedTasks:   scan.BlockedTasks,
		InactiveAgents: scan.InactiveAgents,
		Sent:           sent,
		Failed:         failed,
		Dispatches:     results,
	}
	if s.history != nil {
		cycle := history.Cycle{
			StartedAt:  started.UnixMilli(),
			FinishedAt: s.clock.Now().UnixMilli(),
			Dispatched: sent,
			Errors:     failed,
			Detail:     summarize(scan.Dispatches),
		}
		if _, err := s.history.RecordCycle(cycle); err != nil {
			logger.Warn().Err(err).Msg("could not record cron cycle")
		}
	}

	logger.Info().Int("planned", len(scan.Dispatches)).Int("sent", sent).
		Int("failed", failed).Dur("duration", s.clock.Now().Sub(started)).
		Msg("cron_cycle")
	return report, nil
}

// summarize renders per-kind counts, e.g. "todo-list=2 top-down=1".
func summarize(plans []Dispatch) string {
	if len(plans) == 0 {
		return ""
	}
	counts := make(map[DispatchKind]int)
	order := []DispatchKind{}
	for _, d := range plans {
		if counts[d.Kind] == 0 {
			order = append(order, d.Kind)
		}
		counts[d.Kind]++
	}
	parts := make([]string, 0, len(order))
	for _, k := range order {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
