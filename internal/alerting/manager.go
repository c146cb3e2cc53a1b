package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nettriage/internal/schema"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a managed alert.
type Status string

const (
	StatusNew          Status = "new"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// ManagedAlert wraps an EnrichedAlert with its operational state.
type ManagedAlert struct {
	Alert      *schema.EnrichedAlert `json:"alert"`
	Status     Status                `json:"status"`
	UpdatedAt  time.Time             `json:"updated_at"`
	AckedAt    *time.Time            `json:"acked_at,omitempty"`
	AckedBy    string                `json:"acked_by,omitempty"`
	ResolvedAt *time.Time            `json:"resolved_at,omitempty"`
	ResolvedBy string                `json:"resolved_by,omitempty"`
}

// NotificationChannel delivers alerts to an external sink.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, alert *schema.EnrichedAlert) error
}

// ManagerConfig configures the alert manager.
type ManagerConfig struct {
	RetentionPeriod time.Duration
	MaxAlerts       int
}

// DefaultManagerConfig returns default manager configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		RetentionPeriod: 24 * time.Hour,
		MaxAlerts:       10000,
	}
}

// Manager keeps recent alerts in memory and fans them out to notification
// channels. Historical persistence is an external concern.
type Manager struct {
	config   ManagerConfig
	channels []NotificationChannel
	alerts   map[uuid.UUID]*ManagedAlert
	mu       sync.RWMutex
}

// NewManager creates a new alert manager.
func NewManager(config ManagerConfig) *Manager {
	return &Manager{
		config: config,
		alerts: make(map[uuid.UUID]*ManagedAlert),
	}
}

// AddChannel adds a notification channel.
func (m *Manager) AddChannel(channel NotificationChannel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, channel)
	slog.Info("added notification channel", "name", channel.Name())
}

// Handle stores a new alert and sends notifications. Correlation-level
// dedup already happened upstream; every alert reaching here is delivered.
func (m *Manager) Handle(ctx context.Context, alert *schema.EnrichedAlert) {
	managed := &ManagedAlert{
		Alert:     alert,
		Status:    StatusNew,
		UpdatedAt: alert.CreatedAt,
	}

	m.mu.Lock()
	m.alerts[alert.ID] = managed
	if len(m.alerts) > m.config.MaxAlerts {
		m.evictOldestLocked()
	}
	channels := m.channels
	m.mu.Unlock()

	slog.Info("alert raised",
		"alert_id", alert.ID,
		"type", alert.AlertType,
		"severity", alert.Severity,
		"priority", alert.Priority,
		"device", alert.AffectedDevices,
		"spof", alert.SPOF,
	)

	for _, channel := range channels {
		go func(ch NotificationChannel) {
			if err := ch.Send(ctx, alert); err != nil {
				slog.Error("notification failed",
					"channel", ch.Name(),
					"alert_id", alert.ID,
					"error", err)
			}
		}(channel)
	}
}

// evictOldestLocked drops the oldest alert when the store is over capacity.
func (m *Manager) evictOldestLocked() {
	var oldestID uuid.UUID
	var oldest time.Time
	first := true
	for id, a := range m.alerts {
		if first || a.Alert.CreatedAt.Before(oldest) {
			first = false
			oldest = a.Alert.CreatedAt
			oldestID = id
		}
	}
	if !first {
		delete(m.alerts, oldestID)
	}
}

// Get retrieves a managed alert by id.
func (m *Manager) Get(id uuid.UUID) (*ManagedAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.alerts[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("alert not found: %s", id)
}

// List returns alerts matching the filter, newest first.
func (m *Manager) List(filter Filter) []*ManagedAlert {
	m.mu.RLock()
	var results []*ManagedAlert
	for _, a := range m.alerts {
		if filter.matches(a) {
			results = append(results, a)
		}
	}
	m.mu.RUnlock()

	for i := 0; i < len(results)-1; i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].Alert.CreatedAt.After(results[i].Alert.CreatedAt) {
				results[i], results[j] = results[j], results[i]
			}
		}
	}

	if filter.Limit > 0 && filter.Limit < len(results) {
		results = results[:filter.Limit]
	}
	return results
}

// Filter selects alerts for List.
type Filter struct {
	Status   *Status
	Priority *schema.Priority
	Since    *time.Time
	Limit    int
}

func (f *Filter) matches(a *ManagedAlert) bool {
	if f.Status != nil && a.Status != *f.Status {
		return false
	}
	if f.Priority != nil && a.Alert.Priority != *f.Priority {
		return false
	}
	if f.Since != nil && a.Alert.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Acknowledge marks an alert acknowledged.
func (m *Manager) Acknowledge(id uuid.UUID, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return fmt.Errorf("alert not found: %s", id)
	}
	now := time.Now()
	a.Status = StatusAcknowledged
	a.AckedAt = &now
	a.AckedBy = user
	a.UpdatedAt = now
	return nil
}

// Resolve marks an alert resolved.
func (m *Manager) Resolve(id uuid.UUID, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return fmt.Errorf("alert not found: %s", id)
	}
	now := time.Now()
	a.Status = StatusResolved
	a.ResolvedAt = &now
	a.ResolvedBy = user
	a.UpdatedAt = now
	return nil
}

// Cleanup removes resolved alerts past the retention period. Returns the
// number removed.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.config.RetentionPeriod)
	removed := 0
	for id, a := range m.alerts {
		if a.Status == StatusResolved && a.Alert.CreatedAt.Before(cutoff) {
			delete(m.alerts, id)
			removed++
		}
	}
	return removed
}

// Stats returns alert statistics.
func (m *Manager) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statusCounts := make(map[string]int)
	priorityCounts := make(map[string]int)
	for _, a := range m.alerts {
		statusCounts[string(a.Status)]++
		priorityCounts[string(a.Alert.Priority)]++
	}

	return map[string]interface{}{
		"total":       len(m.alerts),
		"by_status":   statusCounts,
		"by_priority": priorityCounts,
		"channels":    len(m.channels),
	}
}
