package flagpole

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/flagpole-io/flagpole-go-client/flagengine"
)

const eventBatchEndpoint = "batch/"

// Event is one analytics event queued for delivery. Capture fills in UUID and
// Timestamp; callers only provide the name, subject and properties.
type Event struct {
	Event      string                 `json:"event"`
	DistinctID string                 `json:"distinct_id"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	UUID       string                 `json:"uuid"`
}

type eventStore struct {
	mu     sync.Mutex
	events []Event
}

func (s *eventStore) add(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// takeBatch removes and returns up to max queued events, oldest first.
func (s *eventStore) takeBatch(max int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return nil
	}
	n := len(s.events)
	if n > max {
		n = max
	}
	batch := make([]Event, n)
	copy(batch, s.events[:n])
	s.events = s.events[n:]
	return batch
}

// requeue returns an undelivered batch to the front of the queue.
func (s *eventStore) requeue(batch []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(batch, s.events...)
}

func (s *eventStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// EventProcessor buffers captured events and delivers them to the batch
// endpoint on a background goroutine. Delivery failures requeue the batch and
// back off exponentially; a successful flush resets the backoff.
type EventProcessor struct {
	client     *resty.Client
	store      *eventStore
	endpoint   string
	projectKey string
	backoff    *retryBackoff
	log        *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewEventProcessor(ctx context.Context, client *resty.Client, baseURL, projectKey string, flushInterval time.Duration, log *slog.Logger) *EventProcessor {
	ctx, cancel := context.WithCancel(ctx)
	processor := &EventProcessor{
		client:     client,
		store:      &eventStore{},
		endpoint:   baseURL + eventBatchEndpoint,
		projectKey: projectKey,
		backoff:    newRetryBackoff(200*time.Millisecond, 30*time.Second),
		log:        log.With(slog.String("worker", "event_processor")),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go processor.start(ctx, flushInterval)
	return processor
}

// Capture queues an event for asynchronous delivery.
func (p *EventProcessor) Capture(event, distinctID string, properties map[string]interface{}) {
	p.store.add(Event{
		Event:      event,
		DistinctID: distinctID,
		Properties: properties,
		Timestamp:  time.Now().UTC(),
		UUID:       uuid.NewString(),
	})
}

// CaptureFlagCalled records a "$feature_flag_called" event for a flag
// evaluation, mirroring what the remote evaluation endpoint would record
// server side.
func (p *EventProcessor) CaptureFlagCalled(key, distinctID string, value flagengine.FlagValue) {
	p.Capture("$feature_flag_called", distinctID, map[string]interface{}{
		"$feature_flag":          key,
		"$feature_flag_response": value.String(),
	})
}

func (p *EventProcessor) start(ctx context.Context, flushInterval time.Duration) {
	defer close(p.done)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Flush(ctx); err != nil {
				p.log.Warn("failed to deliver event batch", "error", err)
				p.backoff.wait(ctx)
			} else {
				p.backoff.reset()
			}
		}
	}
}

// Flush delivers queued events in batches of up to EventBatchMaxCount. On
// failure the current batch is requeued and the remainder stays queued.
func (p *EventProcessor) Flush(ctx context.Context) error {
	for {
		batch := p.store.takeBatch(EventBatchMaxCount)
		if batch == nil {
			return nil
		}
		if err := p.send(ctx, batch); err != nil {
			p.store.requeue(batch)
			return err
		}
	}
}

func (p *EventProcessor) send(ctx context.Context, batch []Event) error {
	body := map[string]interface{}{
		"api_key": p.projectKey,
		"batch":   batch,
	}
	resp, err := p.client.NewRequest().SetContext(ctx).SetBody(body).Post(p.endpoint)
	if err != nil {
		return ClientError{msg: fmt.Sprintf("failed to send event batch: %v", err)}
	}
	if resp.IsError() {
		return APIError{Status: resp.StatusCode(), msg: fmt.Sprintf("event batch request returned %s", resp.Status())}
	}
	return nil
}

// Stop halts the delivery loop and attempts one final flush of anything still
// queued. It is safe to call more than once.
func (p *EventProcessor) Stop(ctx context.Context) error {
	p.cancel()
	<-p.done
	return p.Flush(ctx)
}
