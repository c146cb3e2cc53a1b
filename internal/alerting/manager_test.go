package alerting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"nettriage/internal/schema"
)

// recordingChannel captures sent alerts for assertions.
type recordingChannel struct {
	mu    sync.Mutex
	sent  []*schema.EnrichedAlert
	ready chan struct{}
}

func newRecordingChannel() *recordingChannel {
	return &recordingChannel{ready: make(chan struct{}, 16)}
}

func (c *recordingChannel) Name() string { return "recording" }

func (c *recordingChannel) Send(_ context.Context, alert *schema.EnrichedAlert) error {
	c.mu.Lock()
	c.sent = append(c.sent, alert)
	c.mu.Unlock()
	c.ready <- struct{}{}
	return nil
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func newAlert(priority schema.Priority, createdAt time.Time) *schema.EnrichedAlert {
	return &schema.EnrichedAlert{
		ID:        uuid.New(),
		CreatedAt: createdAt,
		Priority:  priority,
		Severity:  schema.SeverityWarning,
		AlertType: "link_failure",
	}
}

func TestManager_HandleAndGet(t *testing.T) {
	m := NewManager(DefaultManagerConfig())
	ch := newRecordingChannel()
	m.AddChannel(ch)

	alert := newAlert(schema.PriorityP2, time.Now())
	m.Handle(context.Background(), alert)

	managed, err := m.Get(alert.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if managed.Status != StatusNew {
		t.Errorf("Status = %v, want %v", managed.Status, StatusNew)
	}

	select {
	case <-ch.ready:
	case <-time.After(time.Second):
		t.Fatal("notification channel never received the alert")
	}
	if ch.count() != 1 {
		t.Errorf("channel received %d alerts, want 1", ch.count())
	}
}

func TestManager_GetMissing(t *testing.T) {
	m := NewManager(DefaultManagerConfig())
	if _, err := m.Get(uuid.New()); err == nil {
		t.Error("Get() of unknown id should fail")
	}
}

func TestManager_AcknowledgeResolve(t *testing.T) {
	m := NewManager(DefaultManagerConfig())
	alert := newAlert(schema.PriorityP1, time.Now())
	m.Handle(context.Background(), alert)

	if err := m.Acknowledge(alert.ID, "oncall"); err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}
	managed, _ := m.Get(alert.ID)
	if managed.Status != StatusAcknowledged || managed.AckedBy != "oncall" {
		t.Errorf("after ack: status %v by %q, want acknowledged by oncall", managed.Status, managed.AckedBy)
	}

	if err := m.Resolve(alert.ID, "oncall"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	managed, _ = m.Get(alert.ID)
	if managed.Status != StatusResolved {
		t.Errorf("after resolve: status %v, want resolved", managed.Status)
	}
}

func TestManager_ListNewestFirstWithFilter(t *testing.T) {
	m := NewManager(DefaultManagerConfig())
	base := time.Now()

	old := newAlert(schema.PriorityP2, base.Add(-2*time.Hour))
	mid := newAlert(schema.PriorityP1, base.Add(-time.Hour))
	latest := newAlert(schema.PriorityP2, base)
	for _, a := range []*schema.EnrichedAlert{old, mid, latest} {
		m.Handle(context.Background(), a)
	}

	all := m.List(Filter{})
	if len(all) != 3 {
		t.Fatalf("List() returned %d alerts, want 3", len(all))
	}
	if all[0].Alert.ID != latest.ID || all[2].Alert.ID != old.ID {
		t.Error("List() not sorted newest first")
	}

	p1 := schema.PriorityP1
	filtered := m.List(Filter{Priority: &p1})
	if len(filtered) != 1 || filtered[0].Alert.ID != mid.ID {
		t.Errorf("priority filter returned %d alerts, want the single P1", len(filtered))
	}

	limited := m.List(Filter{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("Limit filter returned %d alerts, want 2", len(limited))
	}
}

func TestManager_EvictionAtCapacity(t *testing.T) {
	m := NewManager(ManagerConfig{RetentionPeriod: time.Hour, MaxAlerts: 2})
	base := time.Now()

	oldest := newAlert(schema.PriorityP3, base.Add(-3*time.Minute))
	m.Handle(context.Background(), oldest)
	m.Handle(context.Background(), newAlert(schema.PriorityP3, base.Add(-2*time.Minute)))
	m.Handle(context.Background(), newAlert(schema.PriorityP3, base.Add(-time.Minute)))

	if _, err := m.Get(oldest.ID); err == nil {
		t.Error("oldest alert should have been evicted at capacity")
	}
	if got := m.Stats()["total"].(int); got != 2 {
		t.Errorf("total = %d, want 2", got)
	}
}

func TestManager_Cleanup(t *testing.T) {
	m := NewManager(ManagerConfig{RetentionPeriod: time.Hour, MaxAlerts: 100})

	stale := newAlert(schema.PriorityP3, time.Now().Add(-2*time.Hour))
	fresh := newAlert(schema.PriorityP3, time.Now())
	m.Handle(context.Background(), stale)
	m.Handle(context.Background(), fresh)
	m.Resolve(stale.ID, "oncall")

	if removed := m.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() = %d, want 1", removed)
	}
	if _, err := m.Get(fresh.ID); err != nil {
		t.Error("fresh alert removed by cleanup")
	}
}
