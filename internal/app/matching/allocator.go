package matching

import (
	"context"
	"hash/fnv"

	"golang.org/x/sync/errgroup"

	"amoria/internal/store"
)

// AgentDirectory is the roster surface the allocator and the lazy
// expiry path read from.
type AgentDirectory interface {
	ActiveAgents(ctx context.Context) ([]store.Agent, error)
	AvailableSubAccounts(ctx context.Context, agentID string) ([]store.SubAccount, error)
	AdvanceRoundRobin(ctx context.Context, agentID string, index int) error
	SubAccountByID(ctx context.Context, subAccountID string) (*store.SubAccount, error)
}

const allocationRounds = 5

// userOffset maps a user id to a stable starting position in the agent
// list. FNV-1a keeps the rotation identical across processes and
// restarts.
func userOffset(userID string, agents int) int {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return int(h.Sum32() % uint32(agents))
}

type allocator struct {
	agents AgentDirectory
}

// pickForUser returns up to k candidates for the user, one per agent
// per round, preferring candidates the user has never been offered.
// history holds sub-account ids from the user's match history; picks
// made during this call join the set so one batch never repeats a
// candidate.
func (a *allocator) pickForUser(ctx context.Context, userID string, k int, history map[string]bool) ([]store.SubAccount, error) {
	if k <= 0 {
		return nil, nil
	}
	agents, err := a.agents.ActiveAgents(ctx)
	if err != nil {
		return nil, err
	}
	if len(agents) == 0 {
		return nil, nil
	}

	// Rotate so different users start their walk at different agents
	// instead of all draining the top-priority roster first.
	offset := userOffset(userID, len(agents))
	rotated := make([]store.Agent, 0, len(agents))
	rotated = append(rotated, agents[offset:]...)
	rotated = append(rotated, agents[:offset]...)

	seen := make(map[string]bool, len(history))
	for id := range history {
		seen[id] = true
	}
	selected := map[string]bool{}
	out := []store.SubAccount{}

	for round := 0; round < allocationRounds; round++ {
		subsByAgent, err := a.fetchSubAccounts(ctx, rotated)
		if err != nil {
			return nil, err
		}
		added := 0
		for i := range rotated {
			subs := subsByAgent[i]
			if len(subs) == 0 {
				continue
			}
			pick, ok := pickFromAgent(subs, round, seen)
			if !ok || selected[pick.ID] {
				continue
			}
			out = append(out, pick)
			selected[pick.ID] = true
			seen[pick.ID] = true
			added++
			if len(out) >= k {
				return out, nil
			}
		}
		if added == 0 {
			break
		}
	}
	return out, nil
}

// pickFromAgent walks the agent's sub-accounts starting at a
// round-shifted index and returns the first one outside the history
// set. When the user has seen them all it falls back to deterministic
// cycling so the agent still contributes a candidate.
func pickFromAgent(subs []store.SubAccount, round int, seen map[string]bool) (store.SubAccount, bool) {
	n := len(subs)
	for i := 0; i < n; i++ {
		idx := (round + i) % n
		if !seen[subs[idx].ID] {
			return subs[idx], true
		}
	}
	return subs[round%n], true
}

// fetchSubAccounts loads every agent's available roster concurrently,
// preserving agent order in the result.
func (a *allocator) fetchSubAccounts(ctx context.Context, agents []store.Agent) ([][]store.SubAccount, error) {
	out := make([][]store.SubAccount, len(agents))
	g, gctx := errgroup.WithContext(ctx)
	for i, agent := range agents {
		i, agentID := i, agent.ID
		g.Go(func() error {
			subs, err := a.agents.AvailableSubAccounts(gctx, agentID)
			if err != nil {
				return err
			}
			out[i] = subs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// pickRoundRobin is the non-personalized path: each agent's persistent
// cursor advances one step per pick. This is the only writer of the
// agent round-robin state.
func (a *allocator) pickRoundRobin(ctx context.Context, k int) ([]store.SubAccount, error) {
	if k <= 0 {
		return nil, nil
	}
	agents, err := a.agents.ActiveAgents(ctx)
	if err != nil {
		return nil, err
	}
	cursors := make(map[string]int, len(agents))
	for _, agent := range agents {
		cursors[agent.ID] = agent.LastAssignedIndex
	}

	selected := map[string]bool{}
	out := []store.SubAccount{}
	for round := 0; round < allocationRounds; round++ {
		added := 0
		for _, agent := range agents {
			subs, err := a.agents.AvailableSubAccounts(ctx, agent.ID)
			if err != nil {
				return nil, err
			}
			if len(subs) == 0 {
				continue
			}
			next := (cursors[agent.ID] + 1) % len(subs)
			pick := subs[next]
			if selected[pick.ID] {
				continue
			}
			if err := a.agents.AdvanceRoundRobin(ctx, agent.ID, next); err != nil {
				return nil, err
			}
			cursors[agent.ID] = next
			out = append(out, pick)
			selected[pick.ID] = true
			added++
			if len(out) >= k {
				return out, nil
			}
		}
		if added == 0 {
			break
		}
	}
	return out, nil
}
