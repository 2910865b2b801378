package session

import (
	"fmt"

	"github.com/baca2-project/judgekeeper/internal/events"
	"github.com/baca2-project/judgekeeper/internal/storage/postgres"
)

// RestoredState is the minimal session state reconstructed from the
// durable event log.
type RestoredState struct {
	SubmitID    string
	NodeName    string
	PackagePath string
	CommitID    string
	Terminal    bool
}

// RestoreOpenSubmits reads the event log and reconstructs the state of
// every submission that never reached a terminal event. Returns the
// states keyed by submit id. A nil client restores nothing.
func RestoreOpenSubmits(client *postgres.Client) (map[string]*RestoredState, error) {
	if client == nil {
		return nil, nil
	}

	ids, err := client.OpenSubmits()
	if err != nil {
		return nil, err
	}

	states := make(map[string]*RestoredState, len(ids))
	for _, id := range ids {
		rows, err := client.QueryBySubmit(id)
		if err != nil {
			return nil, err
		}
		state := &RestoredState{SubmitID: id}
		for _, row := range rows {
			switch row.Event {
			case "submit.received":
				if p, ok := row.Fields["package_path"].(string); ok {
					state.PackagePath = p
				}
				if c, ok := row.Fields["commit_id"].(string); ok {
					state.CommitID = c
				}
			case "node.started":
				if n, ok := row.Fields["node"].(string); ok {
					state.NodeName = n
				}
			case "node.advanced":
				if n, ok := row.Fields["to"].(string); ok {
					state.NodeName = n
				}
			case "submit.judged", "submit.failed":
				state.Terminal = true
			}
		}
		if !state.Terminal {
			states[id] = state
		}
	}
	return states, nil
}

// ApplyRestored rebuilds a running session at the restored node. The
// caller supplies the freshly loaded graph; no events are re-emitted
// and no node work is re-dispatched. The in-flight request, if any,
// will answer on the worker's result topic as usual.
func (s *Session) ApplyRestored(state *RestoredState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusPending {
		return fmt.Errorf("session %s: cannot restore a begun session", s.submitID)
	}

	nodeName := state.NodeName
	if nodeName == "" {
		start, err := s.graph.StartNode()
		if err != nil {
			return err
		}
		nodeName = start.Name()
	}
	node, err := s.graph.NodeByName(nodeName)
	if err != nil {
		return fmt.Errorf("session %s: restored node: %w", s.submitID, err)
	}

	s.current = node
	s.status = StatusRunning
	return nil
}

// EmitStartupRestore records how many sessions a restart brought back.
func EmitStartupRestore(restored int, instance string) {
	events.Emit("info", "system.startup", "restored open sessions", map[string]any{
		"restored": restored,
		"instance": instance,
	})
}
