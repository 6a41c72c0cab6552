package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-tracker/internal/events"
	"github.com/spec-kit/issue-tracker/internal/service"
)

type recordingDeliverer struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (d *recordingDeliverer) Deliver(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return d.err
}

func (d *recordingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

func TestNotificationWorkerDeliversPublishedEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	deliverer := &recordingDeliverer{err: errors.New("webhook down")}
	w := NewNotificationWorker(deliverer, 8, 2, nil)
	w.Register(dispatcher)
	w.Start()

	for _, eventType := range []events.EventType{events.EventIssueCreated, events.EventCommentAdded, events.EventIssueEscalated} {
		require.NoError(t, dispatcher.Publish(context.Background(), events.Event{ID: string(eventType), Type: eventType}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(ctx)

	assert.Equal(t, 3, deliverer.count())
}

func TestNotificationWorkerIgnoresEventsAfterStop(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	deliverer := &recordingDeliverer{}
	w := NewNotificationWorker(deliverer, 1, 1, nil)
	w.Register(dispatcher)
	w.Start()
	w.Stop(context.Background())

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventIssueDeleted}))
	assert.Zero(t, deliverer.count())
}

type fakeReconciler struct {
	calls   int
	reports []*service.ReconcileReport
	err     error
}

func (f *fakeReconciler) ReconcileAll(context.Context) ([]*service.ReconcileReport, error) {
	f.calls++
	return f.reports, f.err
}

func TestParseSchedule(t *testing.T) {
	_, err := ParseSchedule("@every 1h")
	require.NoError(t, err)

	_, err = ParseSchedule("0 3 * * *")
	require.NoError(t, err)

	_, err = ParseSchedule("every hour")
	assert.Error(t, err)
}

func TestReconcileWorkerRunOnce(t *testing.T) {
	reconciler := &fakeReconciler{reports: []*service.ReconcileReport{
		{OrganizationID: "org-1", Drifts: []service.CounterDrift{{CustomerID: "c1", Stored: 3, Actual: 2}}},
	}}
	w, err := NewReconcileWorker("@every 1h", reconciler, nil)
	require.NoError(t, err)

	w.RunOnce()
	assert.Equal(t, 1, reconciler.calls)

	reconciler.err = context.DeadlineExceeded
	w.RunOnce()
	assert.Equal(t, 2, reconciler.calls)
}

func TestNewReconcileWorkerRejectsBadSchedule(t *testing.T) {
	_, err := NewReconcileWorker("not a schedule", &fakeReconciler{}, nil)
	assert.Error(t, err)
}
