// Package notify delivers session events to configured webhook targets.
// Delivery is best effort: Publish never blocks the caller, a full
// queue drops with a counter, and repeated endpoint failures open a
// per-endpoint circuit for a cooldown period.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"amoria/internal/config"
)

type breakerState struct {
	consecutiveFailures int
	openUntil           time.Time
}

type Publisher struct {
	cfg    config.NotifyConfig
	client *http.Client

	dispatchCh chan pushJob
	retryQ     *retryQueue
	done       chan struct{}

	mu           sync.Mutex
	started      bool
	breakerByURL map[string]breakerState
}

func NewPublisher(cfg config.NotifyConfig) *Publisher {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 2048
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.CircuitOpenDuration <= 0 {
		cfg.CircuitOpenDuration = 30 * time.Second
	}

	p := &Publisher{
		cfg:          cfg,
		client:       &http.Client{Timeout: cfg.RequestTimeout},
		dispatchCh:   make(chan pushJob, cfg.Buffer),
		done:         make(chan struct{}),
		breakerByURL: map[string]breakerState{},
	}
	p.retryQ = newRetryQueue(p.dispatchCh, p.done)
	return p
}

// Start launches the worker pool. Disabled publishers start nothing and
// drop every Publish silently.
func (p *Publisher) Start(ctx context.Context) {
	if !p.cfg.Enabled || len(p.cfg.WebhookURLs) == 0 {
		return
	}
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < p.cfg.Workers; i++ {
		go p.worker(ctx)
	}
	go func() {
		<-ctx.Done()
		close(p.done)
	}()
}

// Publish fans the event out to every webhook target without blocking.
func (p *Publisher) Publish(channel, event string, payload any) {
	if !p.cfg.Enabled || len(p.cfg.WebhookURLs) == 0 {
		return
	}
	body, err := json.Marshal(Event{
		Channel:   channel,
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("notify payload marshal failed")
		metricNotifyDroppedTotal.Add(1)
		return
	}
	for _, url := range p.cfg.WebhookURLs {
		if !p.enqueue(pushJob{URL: url, Body: body}) {
			metricNotifyDroppedTotal.Add(1)
		}
	}
}

func (p *Publisher) enqueue(job pushJob) bool {
	select {
	case <-p.done:
		return false
	case p.dispatchCh <- job:
		metricNotifyQueuedTotal.Add(1)
		metricNotifyQueueLen.Set(int64(len(p.dispatchCh)))
		return true
	default:
		return false
	}
}
