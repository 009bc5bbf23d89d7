package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var errCircuitOpen = errors.New("circuit_open")

func (p *Publisher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case job := <-p.dispatchCh:
			metricNotifyQueueLen.Set(int64(len(p.dispatchCh)))
			p.processJob(ctx, job)
		}
	}
}

func (p *Publisher) processJob(ctx context.Context, job pushJob) {
	if err := p.beforeSend(job.URL, time.Now()); err != nil {
		metricNotifyCircuitOpenTotal.Add(1)
		p.retryOrDrop(job)
		return
	}

	if err := p.send(ctx, job); err != nil {
		metricNotifyFailedTotal.Add(1)
		p.afterFailure(job.URL, time.Now())
		p.retryOrDrop(job)
		return
	}

	metricNotifySentTotal.Add(1)
	p.afterSuccess(job.URL)
}

func (p *Publisher) send(ctx context.Context, job pushJob) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.URL, bytes.NewReader(job.Body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.Secret != "" {
		req.Header.Set("X-Webhook-Secret", p.cfg.Secret)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

func (p *Publisher) retryOrDrop(job pushJob) {
	if job.Attempt >= p.cfg.RetryMax {
		metricNotifyRetryDroppedTotal.Add(1)
		return
	}
	job.Attempt++
	metricNotifyRetryTotal.Add(1)
	delay := p.cfg.RetryBase * time.Duration(1<<(job.Attempt-1))
	p.retryQ.Enqueue(job, delay)
}

func (p *Publisher) beforeSend(url string, now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	state := p.breakerByURL[url]
	if !state.openUntil.IsZero() && now.Before(state.openUntil) {
		return errCircuitOpen
	}
	return nil
}

func (p *Publisher) afterFailure(url string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state := p.breakerByURL[url]
	state.consecutiveFailures++
	if state.consecutiveFailures >= p.cfg.FailureThreshold {
		state.openUntil = now.Add(p.cfg.CircuitOpenDuration)
		state.consecutiveFailures = 0
	}
	p.breakerByURL[url] = state
}

func (p *Publisher) afterSuccess(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakerByURL[url] = breakerState{}
}
