package broker

import (
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/baca2-project/judgekeeper/internal/events"
)

// SubscribeClient is the part of Client the subscriber needs. Tests
// substitute a fake.
type SubscribeClient interface {
	Subscribe(topic string, handler paho.MessageHandler) error
}

// ResultHandler receives authenticated worker results.
type ResultHandler func(*JudgeResult)

// ErrorHandler receives authenticated worker error reports.
type ErrorHandler func(*ErrorReport)

// ResultSubscriber manages subscriptions to worker result topics and
// routes authenticated results to the session layer. Subscription
// handling is idempotent across reconnects.
type ResultSubscriber struct {
	mu         sync.RWMutex
	client     SubscribeClient
	registry   *WorkerRegistry
	password   string
	onResult   ResultHandler
	onError    ErrorHandler
	subscribed map[string]bool // topic -> subscribed
}

// NewResultSubscriber creates a new result subscriber.
func NewResultSubscriber(client SubscribeClient, registry *WorkerRegistry, password string, onResult ResultHandler, onError ErrorHandler) *ResultSubscriber {
	return &ResultSubscriber{
		client:     client,
		registry:   registry,
		password:   password,
		onResult:   onResult,
		onError:    onError,
		subscribed: make(map[string]bool),
	}
}

// SubscribeWorker subscribes to a worker's result topic if not already
// subscribed. Calling multiple times for the same worker is safe.
func (s *ResultSubscriber) SubscribeWorker(w *RegisteredWorker) error {
	if w.ResultTopic == "" {
		return nil
	}

	s.mu.Lock()
	if s.subscribed[w.ResultTopic] {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	handler := s.createHandler(w.ID, w.ResultTopic)
	if err := s.client.Subscribe(w.ResultTopic, handler); err != nil {
		return err
	}

	s.mu.Lock()
	s.subscribed[w.ResultTopic] = true
	s.mu.Unlock()

	return nil
}

// SubscribeAll subscribes to every worker in the registry. Useful for
// the initial subscription after connecting.
func (s *ResultSubscriber) SubscribeAll() {
	for _, w := range s.registry.All() {
		if err := s.SubscribeWorker(w); err != nil {
			events.Emit("error", "judge.error", "failed to subscribe to worker results", map[string]any{
				"worker_id": w.ID,
				"topic":     w.ResultTopic,
				"error":     err.Error(),
			})
		}
	}
}

// createHandler builds a message handler that authenticates payloads
// and dispatches them. Results that fail parsing or the hash check are
// reported as judge.error and dropped.
func (s *ResultSubscriber) createHandler(workerID, topic string) paho.MessageHandler {
	return func(client paho.Client, msg paho.Message) {
		data := msg.Payload()

		if result, err := ParseJudgeResult(data, s.password); err == nil {
			if s.onResult != nil {
				s.onResult(result)
			}
			return
		}

		if report, err := ParseErrorReport(data, s.password); err == nil {
			if s.onError != nil {
				s.onError(report)
			}
			return
		}

		events.Emit("error", "judge.error", "unparseable worker message", map[string]any{
			"worker_id": workerID,
			"topic":     topic,
			"bytes":     len(data),
		})
	}
}

// IsSubscribed returns true if the topic is already subscribed.
func (s *ResultSubscriber) IsSubscribed(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscribed[topic]
}

// SubscribedTopics returns all subscribed topics.
func (s *ResultSubscriber) SubscribedTopics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := make([]string, 0, len(s.subscribed))
	for topic := range s.subscribed {
		topics = append(topics, topic)
	}
	return topics
}

// ClearSubscriptions clears the subscription tracking. Call this on
// disconnect to allow re-subscription on reconnect.
func (s *ResultSubscriber) ClearSubscriptions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = make(map[string]bool)
}
