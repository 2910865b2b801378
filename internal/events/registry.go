package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// submit
	"submit.received": {},
	"submit.judged":   {},
	"submit.failed":   {},

	// node
	"node.started":  {},
	"node.verdict":  {},
	"node.advanced": {},
	"node.stuck":    {},

	// graph
	"graph.loaded":  {},
	"graph.checked": {},

	// judge workers
	"judge.registered":   {},
	"judge.connected":    {},
	"judge.disconnected": {},
	"judge.error":        {},

	// operator
	"operator.force_verdict": {},
	"operator.abort":         {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
