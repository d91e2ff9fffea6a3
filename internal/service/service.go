// Package service wires every store into the OpenGoat facade, the
// single entry point used by the gateway and the CLI.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"opengoat/internal/agents"
	"opengoat/internal/config"
	"opengoat/internal/errs"
	"opengoat/internal/history"
	"opengoat/internal/openclaw"
	"opengoat/internal/ports"
	"opengoat/internal/provider"
	"opengoat/internal/roleskill"
	"opengoat/internal/runner"
	"opengoat/internal/sessions"
	"opengoat/internal/settings"
	"opengoat/internal/skills"
	"opengoat/internal/taskcron"
	"opengoat/internal/tasks"
	"opengoat/pkg/logger"
)

// HardResetConfirmation is the literal the caller must supply.
const HardResetConfirmation = "hard-reset"

// Options configures a Service. Zero values select the real OS ports.
type Options struct {
	Home          string
	DefaultAgent  string
	PluginPath    string
	RuntimeLogDir string

	FS     ports.Filesystem
	Clock  ports.Clock
	Runner ports.CommandRunner
}

// Service is the OpenGoat facade.
type Service struct {
	fs     ports.Filesystem
	clock  ports.Clock
	runner ports.CommandRunner
	paths  config.Paths

	defaultAgent string

	registry   *provider.Registry
	agents     *agents.Store
	sessions   *sessions.Store
	tasks      *tasks.Store
	skills     *skills.Service
	settings   *settings.Watched
	watcher    *settings.Watcher
	client     *openclaw.Client
	reconciler *openclaw.Reconciler
	dispatcher *runner.Dispatcher
	cron       *taskcron.Service
	history    *history.DB
}

// New builds the facade over the given home directory.
func New(opts Options) (*Service, error) {
	if opts.Home == "" {
		return nil, errs.Validation("service requires a home directory")
	}
	if opts.FS == nil {
		opts.FS = ports.OS()
	}
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if opts.Runner == nil {
		opts.Runner = ports.Exec()
	}

	s := &Service{
		fs:           opts.FS,
		clock:        opts.Clock,
		runner:       opts.Runner,
		paths:        config.NewPaths(opts.Home),
		defaultAgent: opts.DefaultAgent,
		registry:     provider.Builtins(),
	}

	s.agents = agents.NewStore(s.fs, s.clock, s.paths, s.registry)
	s.agents.SetRoleSkillSyncer(roleskill.NewSyncer(s.fs))
	s.sessions = sessions.NewStore(s.fs, s.clock, s.paths)
	s.skills = skills.NewService(s.fs, s.paths)

	taskStore, err := tasks.NewStore(s.fs, s.clock, s.paths, s.agents)
	if err != nil {
		return nil, fmt.Errorf("load task board: %w", err)
	}
	s.tasks = taskStore

	settingsStore, err := settings.NewStore(s.fs, s.paths)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	s.settings = settings.NewWatched(settingsStore)

	db, err := history.Open(s.paths.HistoryDBPath())
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	s.history = db

	s.client = openclaw.NewClient(s.runner, s.fs, s.paths)
	s.reconciler = openclaw.NewReconciler(
		s.client, s.agents, s.registry, roleskill.NewSyncer(s.fs), s.fs, s.paths, opts.PluginPath)
	s.agents.SetRuntimeSyncer(s.reconciler)

	s.dispatcher = runner.NewDispatcher(
		s.agents, s.registry, s.sessions, s.client, s.runner, s.fs, s.clock, s.paths)
	s.dispatcher.SetHistory(db)
	if opts.RuntimeLogDir != "" {
		s.dispatcher.SetRuntimeLogDir(opts.RuntimeLogDir)
	}

	executor := taskcron.NewExecutor(s.dispatcher)
	executor.SetHistory(db)
	planner := taskcron.NewPlanner(s.agents, s.tasks, s.sessions, s.clock)
	s.cron = taskcron.NewService(planner, executor, s.settings, s.clock)
	s.cron.SetHistory(db)

	return s, nil
}

// Start launches the background loops: settings hot-reload and the
// task-cron ticker.
func (s *Service) Start() error {
	watcher, err := settings.NewWatcher(s.settings, s.paths.SettingsPath())
	if err != nil {
		return fmt.Errorf("settings watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("settings watcher: %w", err)
	}
	s.watcher = watcher

	if err := s.cron.Start(); err != nil {
		s.watcher.Stop()
		s.watcher = nil
		return err
	}
	return nil
}

// Close tears the facade down, stopping loops and draining runs.
func (s *Service) Close(ctx context.Context) error {
	var firstErr error
	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}
	if err := s.cron.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.dispatcher.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.history.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// InitReport summarizes what Initialize did.
type InitReport struct {
	Home         string              `json:"home"`
	DefaultAgent string              `json:"defaultAgent"`
	Created      bool                `json:"created"`
	Sync         *openclaw.SyncReport `json:"sync,omitempty"`
	Warnings     []string            `json:"warnings,omitempty"`
}

// Initialize scaffolds the home tree and the default agent, then does a
// best-effort runtime sync. Runtime trouble lands in Warnings, never in
// the error.
func (s *Service) Initialize(ctx context.Context) (InitReport, error) {
	report := InitReport{Home: s.paths.Home}

	for _, dir := range s.paths.Layout() {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return report, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := s.ensureWikiScaffold(); err != nil {
		return report, err
	}

	id, warnings, err := s.agents.EnsureDefaultAgent(ctx, s.defaultAgent)
	if err != nil {
		return report, err
	}
	report.DefaultAgent = id
	report.Warnings = append(report.Warnings, warnings...)

	created, err := s.ensureRootConfig(id)
	if err != nil {
		return report, err
	}
	report.Created = created

	// Persist the settings file so operators can edit it.
	if _, err := s.fs.Stat(s.paths.SettingsPath()); os.IsNotExist(err) {
		if err := s.settings.Update(s.settings.Get()); err != nil {
			return report, err
		}
	}

	if sync, err := s.reconciler.SyncRuntimeDefaults(ctx); err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("runtime sync: %v", err))
	} else {
		report.Sync = &sync
		report.Warnings = append(report.Warnings, sync.Warnings...)
	}

	logger.Info().Str("home", s.paths.Home).Str("defaultAgent", id).Msg("initialized")
	return report, nil
}

// HardReset wipes the home directory and re-initializes. The literal
// confirmation guards against scripting accidents.
func (s *Service) HardReset(ctx context.Context, confirm string) (InitReport, error) {
	if confirm != HardResetConfirmation {
		return InitReport{}, errs.Validation(
			"hard reset requires the confirmation string %q", HardResetConfirmation)
	}

	if err := s.cron.Stop(ctx); err != nil {
		return InitReport{}, err
	}
	if err := s.dispatcher.Shutdown(ctx); err != nil {
		return InitReport{}, err
	}
	if err := s.history.Close(); err != nil {
		return InitReport{}, err
	}

	entries, err := s.fs.ReadDir(s.paths.Home)
	if err != nil && !os.IsNotExist(err) {
		return InitReport{}, fmt.Errorf("read home: %w", err)
	}
	for _, entry := range entries {
		if err := s.fs.RemoveAll(filepath.Join(s.paths.Home, entry.Name())); err != nil {
			return InitReport{}, fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
	}

	db, err := history.Open(s.paths.HistoryDBPath())
	if err != nil {
		return InitReport{}, fmt.Errorf("reopen history: %w", err)
	}
	s.history = db
	s.dispatcher.SetHistory(db)
	s.cron.SetHistory(db)

	if err := s.settings.Reload(); err != nil {
		return InitReport{}, err
	}
	if err := s.tasks.Reload(); err != nil {
		return InitReport{}, err
	}

	logger.Warn().Str("home", s.paths.Home).Msg("hard reset")
	return s.Initialize(ctx)
}

// DoctorReport is the health check outcome.
type DoctorReport struct {
	Home            string   `json:"home"`
	HomeExists      bool     `json:"homeExists"`
	DefaultAgent    string   `json:"defaultAgent,omitempty"`
	AgentCount      int      `json:"agentCount"`
	TaskCount       int      `json:"taskCount"`
	OpenClawVersion string   `json:"openclawVersion,omitempty"`
	Problems        []string `json:"problems,omitempty"`
}

// Doctor inspects the installation without mutating it.
func (s *Service) Doctor(ctx context.Context) DoctorReport {
	report := DoctorReport{Home: s.paths.Home}

	if _, err := s.fs.Stat(s.paths.Home); err == nil {
		report.HomeExists = true
	} else {
		report.Problems = append(report.Problems, "home directory does not exist; run init")
		return report
	}

	if cfg, err := s.rootConfig(); err != nil {
		report.Problems = append(report.Problems, fmt.Sprintf("config.json: %v", err))
	} else {
		report.DefaultAgent = cfg.DefaultAgent
		if cfg.DefaultAgent != "" && !s.agents.Exists(cfg.DefaultAgent) {
			report.Problems = append(report.Problems,
				fmt.Sprintf("default agent %q has no config", cfg.DefaultAgent))
		}
	}

	if all, err := s.agents.List(); err != nil {
		report.Problems = append(report.Problems, fmt.Sprintf("agents: %v", err))
	} else {
		report.AgentCount = len(all)
		for _, a := range all {
			if _, err := s.registry.Get(a.ProviderID()); err != nil {
				report.Problems = append(report.Problems,
					fmt.Sprintf("agent %q uses unknown provider %q", a.ID, a.ProviderID()))
			}
			if _, err := s.fs.Stat(s.paths.WorkspaceDir(a.ID)); err != nil {
				report.Problems = append(report.Problems,
					fmt.Sprintf("agent %q has no workspace", a.ID))
			}
		}
	}

	report.TaskCount = len(s.tasks.List(tasks.Filter{}))

	versionCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if v, err := s.client.Version(versionCtx); err != nil {
		report.Problems = append(report.Problems, fmt.Sprintf("openclaw: %v", err))
	} else {
		report.OpenClawVersion = v
	}

	return report
}

// SyncRuntimeDefaults reconciles the OpenClaw inventory now.
func (s *Service) SyncRuntimeDefaults(ctx context.Context) (openclaw.SyncReport, error) {
	return s.reconciler.SyncRuntimeDefaults(ctx)
}

// RunTaskCronCycle runs one cron cycle immediately.
func (s *Service) RunTaskCronCycle(ctx context.Context) (taskcron.CycleReport, error) {
	return s.cron.RunCycle(ctx)
}

// TaskCronStatus reports the scheduler state.
func (s *Service) TaskCronStatus() taskcron.Status {
	return s.cron.Status()
}

// RecentCronCycles returns the latest recorded cycles.
func (s *Service) RecentCronCycles(n int) ([]history.Cycle, error) {
	return s.history.RecentCycles(n)
}

func (s *Service) rootConfig() (config.RootConfig, error) {
	var cfg config.RootConfig
	data, err := s.fs.ReadFile(s.paths.ConfigPath())
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config.json: %w", err)
	}
	return cfg, nil
}

// ensureRootConfig writes config.json when missing. Returns whether it
// was created.
func (s *Service) ensureRootConfig(defaultAgent string) (bool, error) {
	if _, err := s.fs.Stat(s.paths.ConfigPath()); err == nil {
		return false, nil
	}
	data, err := json.MarshalIndent(config.RootConfig{DefaultAgent: defaultAgent}, "", "  ")
	if err != nil {
		return false, err
	}
	data = append(data, '\n')
	if err := s.fs.WriteFileAtomic(s.paths.ConfigPath(), data, 0o644); err != nil {
		return false, fmt.Errorf("write config.json: %w", err)
	}
	return true, nil
}

// ensureWikiScaffold seeds organization/wiki with a starter page.
func (s *Service) ensureWikiScaffold() error {
	readme := filepath.Join(s.paths.WikiDir(), "README.md")
	if _, err := s.fs.Stat(readme); err == nil {
		return nil
	}
	content := "# Organization wiki\n\n" +
		"Shared notes for every agent. Each workspace links here through " +
		"the `organization` symlink.\n"
	return s.fs.WriteFile(readme, []byte(content), 0o644)
}
