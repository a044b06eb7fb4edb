// Package notify delivers result and fee notifications off the request path.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/school-erp/internal/metrics"
	"github.com/Spok95/school-erp/internal/observability"
)

// Notifier delivers one notification synchronously.
type Notifier interface {
	ResultPublished(ctx context.Context, summaryID int64) error
	FeeReminder(ctx context.Context, studentID int64, recordIDs []int64) error
}

type Kind string

const (
	KindResultPublished Kind = "result_published"
	KindFeeReminder     Kind = "fee_reminder"
)

type Event struct {
	Kind      Kind
	SummaryID int64
	StudentID int64
	RecordIDs []int64
}

const deliveryTimeout = 15 * time.Second

// Dispatcher queues events for a pool of workers. Enqueue never blocks: when the
// queue is full the event is dropped and counted.
type Dispatcher struct {
	n     Notifier
	log   *zap.Logger
	queue chan Event
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(n Notifier, log *zap.Logger, workers, size int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 1
	}
	d := &Dispatcher{n: n, log: log, queue: make(chan Event, size)}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) Enqueue(ev Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.Notifications.WithLabelValues(string(ev.Kind), "dropped").Inc()
		return false
	}
	select {
	case d.queue <- ev:
		metrics.Notifications.WithLabelValues(string(ev.Kind), "queued").Inc()
		return true
	default:
		metrics.Notifications.WithLabelValues(string(ev.Kind), "dropped").Inc()
		d.log.Warn("notification queue full, dropping", zap.String("kind", string(ev.Kind)),
			zap.Int64("summary_id", ev.SummaryID), zap.Int64("student_id", ev.StudentID))
		return false
	}
}

func (d *Dispatcher) ResultPublished(summaryID int64) bool {
	return d.Enqueue(Event{Kind: KindResultPublished, SummaryID: summaryID})
}

func (d *Dispatcher) FeeReminder(studentID int64, recordIDs []int64) bool {
	return d.Enqueue(Event{Kind: KindFeeReminder, StudentID: studentID, RecordIDs: recordIDs})
}

// Close stops accepting events and waits until the queued ones are delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in notifier: %v", r)
			}
		}()
		switch ev.Kind {
		case KindResultPublished:
			return d.n.ResultPublished(ctx, ev.SummaryID)
		case KindFeeReminder:
			return d.n.FeeReminder(ctx, ev.StudentID, ev.RecordIDs)
		default:
			return fmt.Errorf("unknown notification kind %q", ev.Kind)
		}
	}()
	if err != nil {
		metrics.Notifications.WithLabelValues(string(ev.Kind), "failed").Inc()
		d.log.Warn("notification failed", zap.String("kind", string(ev.Kind)),
			zap.Int64("summary_id", ev.SummaryID), zap.Int64("student_id", ev.StudentID), zap.Error(err))
		observability.CaptureWithTags(err, map[string]string{"notification": string(ev.Kind)})
		return
	}
	metrics.Notifications.WithLabelValues(string(ev.Kind), "sent").Inc()
}
