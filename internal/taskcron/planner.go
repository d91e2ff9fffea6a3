package taskcron

import (
	"sort"
	"time"

	"opengoat/internal/agents"
	"opengoat/internal/ports"
	"opengoat/internal/sessions"
	"opengoat/internal/settings"
	"opengoat/internal/tasks"
	"opengoat/pkg/logger"
)

// Dispatch is one planned message to one agent.
type Dispatch struct {
	Target  string       `json:"target"`
	Kind    DispatchKind `json:"kind"`
	Message string       `json:"message"`
	TaskID  string       `json:"taskId,omitempty"`
}

// Scan is the outcome of one planning pass: the dispatch list plus the
// board and activity tallies that go into the cycle report.
type Scan struct {
	Dispatches     []Dispatch
	ScannedTasks   int
	TodoTasks      int
	DoingTasks     int
	BlockedTasks   int
	InactiveAgents []string
}

// Planner turns a board snapshot into the cycle's dispatch list.
type Planner struct {
	agents   *agents.Store
	tasks    *tasks.Store
	sessions *sessions.Store
	clock    ports.Clock
}

// NewPlanner wires a planner over the shared stores.
func NewPlanner(agentStore *agents.Store, taskStore *tasks.Store, sessionStore *sessions.Store, clock ports.Clock) *Planner {
	return &Planner{agents: agentStore, tasks: taskStore, sessions: sessionStore, clock: clock}
}

// Plan classifies the current board into dispatches. While the root
// agent still carries its bootstrap sentinel the whole cycle is
// skipped. At most one dispatch per (agent, kind) survives
// deduplication.
func (p *Planner) Plan(cfg settings.Settings) (Scan, error) {
	now := p.clock.Now()

	all, err := p.agents.List()
	if err != nil {
		return Scan{}, err
	}
	agentByID := make(map[string]agents.Agent, len(all))
	// Agents still carrying the bootstrap sentinel have never run; they
	// cannot act on a nudge yet.
	ready := make(map[string]bool, len(all))
	for _, a := range all {
		agentByID[a.ID] = a
		ready[a.ID] = !p.agents.HasBootstrap(a.ID)
		if a.ReportsTo == "" && !ready[a.ID] {
			logger.Debug().Str("agent", a.ID).Msg("root not onboarded, skipping cycle")
			return Scan{}, nil
		}
	}

	var plans []Dispatch
	add := func(d Dispatch) {
		if !ready[d.Target] {
			return
		}
		plans = append(plans, d)
	}

	scan := Scan{}
	pendingMinutes := cfg.TaskDelegationStrategies.BottomUp.MaxInactivityMinutes
	board := p.tasks.List(tasks.Filter{})
	scan.ScannedTasks = len(board)
	todoByAssignee := make(map[string][]tasks.Task)
	for _, t := range board {
		switch t.Status {
		case tasks.StatusTodo:
			scan.TodoTasks++
			todoByAssignee[t.Assignee] = append(todoByAssignee[t.Assignee], t)
		case tasks.StatusDoing:
			scan.DoingTasks++
			if stale(t.StatusChangedAt, cfg.MaxInProgressMinutes, now) {
				add(Dispatch{
					Target:  t.Assignee,
					Kind:    KindDoingTimeout,
					Message: renderTaskNudge(KindDoingTimeout, t, now),
					TaskID:  t.ID,
				})
			}
		case tasks.StatusPending:
			if stale(t.StatusChangedAt, pendingMinutes, now) {
				add(Dispatch{
					Target:  t.Assignee,
					Kind:    KindPendingTimeout,
					Message: renderTaskNudge(KindPendingTimeout, t, now),
					TaskID:  t.ID,
				})
			}
		case tasks.StatusBlocked:
			scan.BlockedTasks++
			manager := agentByID[t.Assignee].ReportsTo
			if manager == "" {
				continue
			}
			add(Dispatch{
				Target:  manager,
				Kind:    KindBlockedEscalate,
				Message: renderTaskNudge(KindBlockedEscalate, t, now),
				TaskID:  t.ID,
			})
		}
	}

	for assignee, list := range todoByAssignee {
		add(Dispatch{
			Target:  assignee,
			Kind:    KindTodoList,
			Message: renderTodoList(list),
		})
	}

	if cfg.TaskDelegationStrategies.BottomUp.Enabled {
		inactivePlans, inactiveIDs := p.planInactive(cfg, all, agentByID, ready, now)
		plans = append(plans, inactivePlans...)
		scan.InactiveAgents = inactiveIDs
	}
	if cfg.TaskDelegationStrategies.TopDown.Enabled {
		plans = append(plans, p.planTopDown(cfg, all, ready, board)...)
	}

	scan.Dispatches = dedupe(plans)
	return scan, nil
}

// planInactive notifies managers about reportees that have gone quiet.
// Each manager gets one message listing every inactive agent routed to
// them; with the root-only target everything goes to the root.
func (p *Planner) planInactive(cfg settings.Settings, all []agents.Agent, agentByID map[string]agents.Agent, ready map[string]bool, now time.Time) ([]Dispatch, []string) {
	maxIdle := time.Duration(cfg.TaskDelegationStrategies.BottomUp.MaxInactivityMinutes) * time.Minute

	var inactiveIDs []string
	var managers []string
	batches := make(map[string][]inactiveAgent)
	route := func(manager string, ia inactiveAgent) {
		if manager == "" || !ready[manager] {
			return
		}
		if _, ok := batches[manager]; !ok {
			managers = append(managers, manager)
		}
		batches[manager] = append(batches[manager], ia)
	}

	root := ""
	for _, a := range all {
		if a.ReportsTo == "" {
			root = a.ID
			break
		}
	}

	for _, a := range all {
		if !ready[a.ID] || a.ReportsTo == "" {
			continue
		}
		last, err := p.sessions.LastActivity(a.ID)
		if err != nil {
			logger.Warn().Err(err).Str("agent", a.ID).Msg("could not read session activity")
			continue
		}
		if last > 0 && now.Sub(time.UnixMilli(last)) < maxIdle {
			continue
		}

		inactiveIDs = append(inactiveIDs, a.ID)
		ia := inactiveAgent{ID: a.ID, LastActivity: last}
		switch cfg.TaskDelegationStrategies.BottomUp.InactiveAgentNotificationTarget {
		case settings.TargetRootOnly:
			route(root, ia)
		default:
			seen := map[string]bool{a.ID: true}
			for id := a.ReportsTo; id != "" && !seen[id]; id = agentByID[id].ReportsTo {
				seen[id] = true
				route(id, ia)
			}
		}
	}

	var out []Dispatch
	for _, manager := range managers {
		out = append(out, Dispatch{
			Target:  manager,
			Kind:    KindInactiveAgent,
			Message: renderInactiveAgents(batches[manager], now),
		})
	}
	return out, inactiveIDs
}

// planTopDown prompts the root when its own open-task count drops
// below the planning threshold.
func (p *Planner) planTopDown(cfg settings.Settings, all []agents.Agent, ready map[string]bool, board []tasks.Task) []Dispatch {
	threshold := cfg.TaskDelegationStrategies.TopDown.OpenTasksThreshold

	var root string
	for _, a := range all {
		if a.ReportsTo == "" {
			root = a.ID
			break
		}
	}
	if root == "" || !ready[root] {
		return nil
	}

	open := 0
	for _, t := range board {
		if t.Assignee != root {
			continue
		}
		switch t.Status {
		case tasks.StatusTodo, tasks.StatusDoing, tasks.StatusPending:
			open++
		}
	}
	if open >= threshold {
		return nil
	}
	return []Dispatch{{
		Target:  root,
		Kind:    KindTopDown,
		Message: renderTopDown(open, threshold),
	}}
}

func stale(statusChangedAtMs int64, maxMinutes int, now time.Time) bool {
	return now.Sub(time.UnixMilli(statusChangedAtMs)) > time.Duration(maxMinutes)*time.Minute
}

// dedupe keeps the first dispatch per (target, kind) and gives the
// result a stable order.
func dedupe(plans []Dispatch) []Dispatch {
	seen := make(map[string]bool, len(plans))
	var out []Dispatch
	for _, d := range plans {
		key := d.Target + "|" + string(d.Kind)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Target != out[j].Target {
			return out[i].Target < out[j].Target
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
