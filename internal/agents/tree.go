package agents

import (
	"sort"

	"opengoat/internal/errs"
)

// SetManager moves the agent under a new manager, preserving the tree
// shape and the reportee symlinks.
func (s *Store) SetManager(id, managerID string) error {
	defer s.locks.Lock(id)()

	agent, err := s.Get(id)
	if err != nil {
		return err
	}
	if managerID == id {
		return errs.Validation("agent %q cannot report to itself", id)
	}
	manager, err := s.Get(managerID)
	if err != nil {
		return err
	}
	mgrProv, err := s.registry.Get(manager.ProviderID())
	if err != nil {
		return err
	}
	if !mgrProv.Capabilities.Reportees {
		return errs.AuthorityDenied(
			"provider %q does not support reportees; %q cannot take reports", mgrProv.ID, managerID)
	}
	if !manager.IsManager() {
		return errs.Validation("agent %q is not a manager", managerID)
	}
	if err := s.checkNoCycle(id, managerID); err != nil {
		return err
	}

	old := agent.ReportsTo
	if old == managerID {
		return nil
	}
	agent.ReportsTo = managerID
	agent.UpdatedAt = s.clock.Now().UnixMilli()
	if err := s.save(agent); err != nil {
		return err
	}

	if old != "" {
		s.unlinkReportee(old, id)
	}
	return s.linkReportee(managerID, id)
}

// checkNoCycle walks up from the proposed manager; reaching the agent
// means the edge would close a loop.
func (s *Store) checkNoCycle(id, managerID string) error {
	seen := map[string]bool{managerID: true}
	cur := managerID
	for {
		agent, err := s.Get(cur)
		if err != nil {
			return err
		}
		if agent.ReportsTo == "" {
			return nil
		}
		if agent.ReportsTo == id {
			return errs.Validation(
				"moving %q under %q would create a management cycle", id, managerID)
		}
		if seen[agent.ReportsTo] {
			return errs.Fatal("management chain above %q already contains a cycle", managerID)
		}
		seen[agent.ReportsTo] = true
		cur = agent.ReportsTo
	}
}

// ListDirectReportees returns the agents reporting directly to id.
func (s *Store) ListDirectReportees(id string) ([]Agent, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var out []Agent
	for _, a := range all {
		if a.ReportsTo == id {
			out = append(out, a)
		}
	}
	return out, nil
}

// ListAllReportees returns the whole subtree below id, breadth-first.
// A visited set keeps damaged on-disk state from looping.
func (s *Store) ListAllReportees(id string) ([]Agent, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	children := make(map[string][]Agent)
	for _, a := range all {
		if a.ReportsTo != "" {
			children[a.ReportsTo] = append(children[a.ReportsTo], a)
		}
	}

	visited := map[string]bool{id: true}
	queue := []string{id}
	var out []Agent
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		kids := children[cur]
		sort.Slice(kids, func(i, j int) bool { return kids[i].ID < kids[j].ID })
		for _, kid := range kids {
			if visited[kid.ID] {
				continue
			}
			visited[kid.ID] = true
			out = append(out, kid)
			queue = append(queue, kid.ID)
		}
	}
	return out, nil
}

// ManagementChain returns the managers above id, nearest first.
func (s *Store) ManagementChain(id string) ([]Agent, error) {
	agent, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	var out []Agent
	seen := map[string]bool{id: true}
	for agent.ReportsTo != "" && !seen[agent.ReportsTo] {
		seen[agent.ReportsTo] = true
		manager, err := s.Get(agent.ReportsTo)
		if err != nil {
			return out, err
		}
		out = append(out, manager)
		agent = manager
	}
	return out, nil
}
