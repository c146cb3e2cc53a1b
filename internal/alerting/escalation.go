package alerting

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"nettriage/internal/schema"

	"github.com/google/uuid"
)

// EscalationRule defines a single escalation step for unacknowledged alerts.
// An empty Channels list fans out to every registered channel.
type EscalationRule struct {
	After    time.Duration `yaml:"after" json:"after"`
	Channels []string      `yaml:"channels" json:"channels"`
	Message  string        `yaml:"message" json:"message"`
}

// EscalationPolicy defines the re-notification ladder for a priority.
type EscalationPolicy struct {
	ID       string           `yaml:"id" json:"id"`
	Name     string           `yaml:"name" json:"name"`
	Enabled  bool             `yaml:"enabled" json:"enabled"`
	Priority *schema.Priority `yaml:"priority,omitempty" json:"priority,omitempty"` // nil = all priorities
	Rules    []EscalationRule `yaml:"rules" json:"rules"`
}

// EscalationEngine periodically re-notifies unacknowledged alerts per
// policy ladder.
type EscalationEngine struct {
	policies  []EscalationPolicy
	manager   *Manager
	channels  map[string]NotificationChannel
	escalated map[string]map[int]bool // alertID -> ruleIndex -> escalated
	mu        sync.RWMutex
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewEscalationEngine creates a new escalation engine.
func NewEscalationEngine(manager *Manager) *EscalationEngine {
	return &EscalationEngine{
		manager:   manager,
		channels:  make(map[string]NotificationChannel),
		escalated: make(map[string]map[int]bool),
		stopCh:    make(chan struct{}),
	}
}

// AddPolicy registers an escalation policy.
func (e *EscalationEngine) AddPolicy(policy EscalationPolicy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies = append(e.policies, policy)
	slog.Info("escalation policy registered", "id", policy.ID, "name", policy.Name)
}

// RegisterChannel makes a notification channel available for escalation.
func (e *EscalationEngine) RegisterChannel(ch NotificationChannel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channels[ch.Name()] = ch
}

// Start begins the escalation check loop.
func (e *EscalationEngine) Start(ctx context.Context, checkInterval time.Duration) {
	if checkInterval <= 0 {
		checkInterval = 1 * time.Minute
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		slog.Info("escalation engine started", "check_interval", checkInterval)

		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stopCh:
				return
			case <-ticker.C:
				e.checkEscalations(ctx)
			}
		}
	}()
}

// Stop halts the escalation engine.
func (e *EscalationEngine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
	slog.Info("escalation engine stopped")
}

func (e *EscalationEngine) checkEscalations(ctx context.Context) {
	e.mu.RLock()
	policies := make([]EscalationPolicy, len(e.policies))
	copy(policies, e.policies)
	e.mu.RUnlock()

	status := StatusNew
	alerts := e.manager.List(Filter{Status: &status})
	now := time.Now()

	for _, managed := range alerts {
		for _, policy := range policies {
			if !policy.Enabled {
				continue
			}
			if policy.Priority != nil && managed.Alert.Priority != *policy.Priority {
				continue
			}

			alertKey := managed.Alert.ID.String()

			for ruleIdx, rule := range policy.Rules {
				if now.Sub(managed.Alert.CreatedAt) < rule.After {
					continue
				}

				e.mu.RLock()
				already := e.escalated[alertKey][ruleIdx]
				e.mu.RUnlock()
				if already {
					continue
				}

				e.trigger(ctx, managed, &policy, ruleIdx, &rule)
			}
		}
	}

	e.cleanupTracking()
}

func (e *EscalationEngine) trigger(ctx context.Context, managed *ManagedAlert, policy *EscalationPolicy, ruleIdx int, rule *EscalationRule) {
	alertKey := managed.Alert.ID.String()

	e.mu.Lock()
	if _, ok := e.escalated[alertKey]; !ok {
		e.escalated[alertKey] = make(map[int]bool)
	}
	e.escalated[alertKey][ruleIdx] = true
	e.mu.Unlock()

	slog.Warn("escalating alert",
		"alert_id", managed.Alert.ID,
		"policy", policy.Name,
		"after", rule.After,
		"message", rule.Message,
		"channels", rule.Channels,
	)

	e.mu.RLock()
	defer e.mu.RUnlock()

	var targets []NotificationChannel
	if len(rule.Channels) == 0 {
		for _, ch := range e.channels {
			targets = append(targets, ch)
		}
	} else {
		for _, chName := range rule.Channels {
			ch, ok := e.channels[chName]
			if !ok {
				slog.Warn("escalation channel not found", "channel", chName, "alert_id", managed.Alert.ID)
				continue
			}
			targets = append(targets, ch)
		}
	}

	for _, ch := range targets {
		go func(c NotificationChannel) {
			if err := c.Send(ctx, managed.Alert); err != nil {
				slog.Error("escalation notification failed",
					"channel", c.Name(),
					"alert_id", managed.Alert.ID,
					"error", err)
			}
		}(ch)
	}
}

func (e *EscalationEngine) cleanupTracking() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for alertKey := range e.escalated {
		id, err := uuid.Parse(alertKey)
		if err != nil {
			delete(e.escalated, alertKey)
			continue
		}
		managed, err := e.manager.Get(id)
		if err != nil || managed.Status != StatusNew {
			delete(e.escalated, alertKey)
		}
	}
}

// Stats returns escalation engine statistics.
func (e *EscalationEngine) Stats() map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.channels))
	for name := range e.channels {
		names = append(names, name)
	}
	sort.Strings(names)

	return map[string]interface{}{
		"policies":       len(e.policies),
		"channels":       names,
		"tracked_alerts": len(e.escalated),
	}
}

// BuiltinEscalationPolicies returns the default escalation ladders.
// Rules carry no channel names so they reach every registered channel.
func BuiltinEscalationPolicies() []EscalationPolicy {
	p1 := schema.PriorityP1
	p2 := schema.PriorityP2

	return []EscalationPolicy{
		{
			ID:       "escalation-p1",
			Name:     "P1 Escalation",
			Enabled:  true,
			Priority: &p1,
			Rules: []EscalationRule{
				{After: 15 * time.Minute, Message: "P1 alert unacknowledged for 15 minutes"},
				{After: 30 * time.Minute, Message: "P1 alert unacknowledged for 30 minutes, immediate action required"},
			},
		},
		{
			ID:       "escalation-p2",
			Name:     "P2 Escalation",
			Enabled:  true,
			Priority: &p2,
			Rules: []EscalationRule{
				{After: 1 * time.Hour, Message: "P2 alert unacknowledged for 1 hour"},
			},
		},
	}
}
