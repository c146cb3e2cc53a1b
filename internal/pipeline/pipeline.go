// Package pipeline wires the detection-to-alert path: telemetry sources
// feed per-source aggregation workers, detector verdicts flow through the
// shared correlator, and correlated events are triaged, assembled, and
// delivered.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"nettriage/internal/aggregate"
	"nettriage/internal/alerting"
	"nettriage/internal/config"
	"nettriage/internal/correlation"
	"nettriage/internal/detect"
	"nettriage/internal/kafka"
	"nettriage/internal/rislive"
	"nettriage/internal/schema"
	"nettriage/internal/topology"
	"nettriage/internal/triage"
)

const sourceBuffer = 4096

// Pipeline owns every processing stage and the source plumbing between
// them. Each telemetry source has a dedicated worker goroutine that owns
// its aggregator and detector state, so that path needs no locking; the
// correlator and everything downstream is shared and internally guarded.
type Pipeline struct {
	cfg       *config.Config
	logger    *slog.Logger
	validator *schema.Validator

	correlator *correlation.Correlator
	engine     *triage.Engine
	assembler  *alerting.Assembler
	manager    *alerting.Manager
	escalation *alerting.EscalationEngine
	producer   *kafka.Producer

	bgpAdapter  *detect.Adapter
	snmpAdapter *detect.Adapter

	bgpCh  chan *schema.BGPUpdate
	snmpCh chan *schema.SNMPMetrics

	consumers []*kafka.Consumer
	ris       *rislive.Client
	risCh     chan *schema.BGPUpdate
	redis     *redis.Client

	wg     sync.WaitGroup
	cancel context.CancelFunc

	bgpIn     atomic.Uint64
	snmpIn    atomic.Uint64
	rejected  atomic.Uint64
	anomalies atomic.Uint64
	alerts    atomic.Uint64
}

// New builds a pipeline from configuration. The topology graph is loaded
// separately so callers can share it or inject a test graph.
func New(cfg *config.Config, graph *topology.Graph, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		cfg:       cfg,
		logger:    logger.With("component", "pipeline"),
		validator: schema.NewValidator(),
		engine:    triage.NewEngineDepth(graph, cfg.Topology.MaxDepth),
		assembler: alerting.NewAssembler(),
		bgpCh:     make(chan *schema.BGPUpdate, sourceBuffer),
		snmpCh:    make(chan *schema.SNMPMetrics, sourceBuffer),
	}

	var err error
	if p.bgpAdapter, err = newAdapter(schema.SourceBGP, cfg.Detector.BGP, cfg.Aggregator.HistoryLen); err != nil {
		return nil, fmt.Errorf("bgp detector: %w", err)
	}
	if p.snmpAdapter, err = newAdapter(schema.SourceSNMP, cfg.Detector.SNMP, cfg.Aggregator.HistoryLen); err != nil {
		return nil, fmt.Errorf("snmp detector: %w", err)
	}

	var dedup correlation.DedupStore
	if cfg.Redis.Enabled {
		p.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		dedup = correlation.NewRedisDedup(p.redis, cfg.Redis.KeyPrefix, correlation.DedupHorizon)
		p.logger.Info("using redis dedup store", "addr", cfg.Redis.Addr)
	}
	p.correlator = correlation.New(cfg.Correlator, graph, dedup)

	p.manager = alerting.NewManager(alerting.ManagerConfig{
		RetentionPeriod: cfg.Alerting.RetentionPeriod,
		MaxAlerts:       cfg.Alerting.MaxAlerts,
	})
	var channels []alerting.NotificationChannel
	for _, wh := range cfg.Alerting.Webhooks {
		channels = append(channels, alerting.NewWebhookChannel(wh.Name, wh.URL, wh.Headers))
	}
	if cfg.Alerting.Slack.Enabled {
		channels = append(channels, alerting.NewSlackChannel(
			cfg.Alerting.Slack.WebhookURL, cfg.Alerting.Slack.Channel, cfg.Alerting.Slack.Username))
	}
	for _, ch := range channels {
		p.manager.AddChannel(ch)
	}
	if cfg.Alerting.EscalationEnabled {
		p.escalation = alerting.NewEscalationEngine(p.manager)
		for _, policy := range alerting.BuiltinEscalationPolicies() {
			p.escalation.AddPolicy(policy)
		}
		// Re-notifications go out on the same channels the first delivery used.
		for _, ch := range channels {
			p.escalation.RegisterChannel(ch)
		}
	}

	if cfg.Kafka.Enabled {
		if err := p.setupKafka(); err != nil {
			return nil, err
		}
	}
	if cfg.RISLive.Enabled {
		buf := cfg.RISLive.Buffer
		if buf <= 0 {
			buf = sourceBuffer
		}
		p.risCh = make(chan *schema.BGPUpdate, buf)
		p.ris = rislive.NewClient(cfg.RISLive.URL, cfg.RISLive.Collector, p.risCh, logger)
	}

	return p, nil
}

func (p *Pipeline) setupKafka() error {
	conn := p.cfg.Kafka.Connection

	if topic := p.cfg.Kafka.BGPTopic; topic != "" {
		c, err := kafka.NewConsumer(conn.WithTopic(topic), p.handleBGPMessage, p.logger)
		if err != nil {
			return fmt.Errorf("bgp consumer: %w", err)
		}
		p.consumers = append(p.consumers, c)
	}
	if topic := p.cfg.Kafka.SNMPTopic; topic != "" {
		c, err := kafka.NewConsumer(conn.WithTopic(topic), p.handleSNMPMessage, p.logger)
		if err != nil {
			return fmt.Errorf("snmp consumer: %w", err)
		}
		p.consumers = append(p.consumers, c)
	}
	if topic := p.cfg.Kafka.AlertTopic; topic != "" {
		prod, err := kafka.NewProducer(conn.WithTopic(topic), p.logger)
		if err != nil {
			return fmt.Errorf("alert producer: %w", err)
		}
		p.producer = prod
	}
	return nil
}

// Start launches the source workers and begins consuming.
func (p *Pipeline) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(2)
	go p.bgpWorker(ctx)
	go p.snmpWorker(ctx)

	for _, c := range p.consumers {
		if err := c.StartAsync(); err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
	}
	if p.ris != nil {
		p.wg.Add(1)
		go p.forwardRIS(ctx)
		p.ris.Start()
	}
	if p.escalation != nil {
		p.escalation.Start(ctx, time.Minute)
	}

	p.logger.Info("pipeline started",
		"kafka_consumers", len(p.consumers),
		"rislive", p.ris != nil,
		"bin_seconds", p.cfg.Aggregator.BinSeconds,
	)
	return nil
}

// Stop shuts the pipeline down: sources first, then workers, then sinks.
func (p *Pipeline) Stop() {
	for _, c := range p.consumers {
		if err := c.Stop(); err != nil {
			p.logger.Warn("consumer stop", "error", err)
		}
	}
	if p.ris != nil {
		p.ris.Stop()
	}
	if p.escalation != nil {
		p.escalation.Stop()
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			p.logger.Warn("producer close", "error", err)
		}
	}
	if p.redis != nil {
		if err := p.redis.Close(); err != nil {
			p.logger.Warn("redis close", "error", err)
		}
	}
	p.logger.Info("pipeline stopped")
}

// handleBGPMessage decodes one Kafka message into a BGP update.
func (p *Pipeline) handleBGPMessage(ctx context.Context, _ []byte, value []byte) error {
	var update schema.BGPUpdate
	if err := json.Unmarshal(value, &update); err != nil {
		p.rejected.Add(1)
		return fmt.Errorf("decode bgp update: %w", err)
	}
	select {
	case p.bgpCh <- &update:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleSNMPMessage decodes one Kafka message into an SNMP poll result.
func (p *Pipeline) handleSNMPMessage(ctx context.Context, _ []byte, value []byte) error {
	var metrics schema.SNMPMetrics
	if err := json.Unmarshal(value, &metrics); err != nil {
		p.rejected.Add(1)
		return fmt.Errorf("decode snmp metrics: %w", err)
	}
	select {
	case p.snmpCh <- &metrics:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// forwardRIS moves RIS Live updates onto the shared BGP channel.
func (p *Pipeline) forwardRIS(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-p.risCh:
			select {
			case p.bgpCh <- update:
			case <-ctx.Done():
				return
			}
		}
	}
}

// bgpWorker owns the BGP aggregation state. Updates are validated, folded
// into the current time bin, and every bin the arrival seals is scored.
func (p *Pipeline) bgpWorker(ctx context.Context) {
	defer p.wg.Done()

	agg := aggregate.New(p.cfg.Aggregator.BinSeconds)
	churn := aggregate.NewPathChurnTracker(p.cfg.Aggregator.ChurnPrefixes)

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-p.bgpCh:
			if err := p.validator.ValidateBGP(update); err != nil {
				p.rejected.Add(1)
				p.logger.Debug("rejected bgp update", "error", err)
				continue
			}
			p.bgpIn.Add(1)
			agg.AddEvent(aggregate.BGPContribution(update, churn))
			p.drainBins(ctx, agg, p.bgpAdapter)
		}
	}
}

// snmpWorker owns the SNMP aggregation state.
func (p *Pipeline) snmpWorker(ctx context.Context) {
	defer p.wg.Done()

	agg := aggregate.New(p.cfg.Aggregator.BinSeconds)

	for {
		select {
		case <-ctx.Done():
			return
		case metrics := <-p.snmpCh:
			if err := p.validator.ValidateSNMP(metrics); err != nil {
				p.rejected.Add(1)
				p.logger.Debug("rejected snmp metrics", "error", err)
				continue
			}
			p.snmpIn.Add(1)
			agg.AddEvent(aggregate.SNMPContribution(metrics))
			p.drainBins(ctx, agg, p.snmpAdapter)
		}
	}
}

func newAdapter(source string, cfg detect.Config, historyLen int) (*detect.Adapter, error) {
	detector, err := detect.New(cfg)
	if err != nil {
		return nil, err
	}
	return detect.NewAdapter(source, detector, historyLen), nil
}

// drainBins scores every bin the last arrival sealed and pushes any
// detector verdict through correlation and triage.
func (p *Pipeline) drainBins(ctx context.Context, agg *aggregate.Aggregator, adapter *detect.Adapter) {
	for agg.HasClosedBin() {
		bin, err := agg.PopClosedBin()
		if err != nil {
			return
		}
		event := adapter.ProcessBin(bin)
		if event == nil {
			continue
		}
		p.anomalies.Add(1)
		p.logger.Debug("anomaly detected",
			"source", event.Source,
			"device", event.Device,
			"confidence", event.Confidence,
			"features", event.AffectedFeatures,
		)

		corr := p.correlator.Ingest(ctx, event)
		if corr == nil {
			continue
		}
		p.emit(ctx, corr)
	}
}

// emit runs the alert path for one correlated event.
func (p *Pipeline) emit(ctx context.Context, corr *schema.CorrelatedEvent) {
	result := p.engine.Analyze(locate(corr), &triage.Context{
		AffectedDevices: corr.Devices(),
	})
	alert := p.assembler.Build(corr, result)

	p.manager.Handle(ctx, alert)
	if p.producer != nil {
		if err := p.producer.ProduceJSON(ctx, alert.ID.String(), alert); err != nil {
			p.logger.Error("publish alert", "alert_id", alert.ID, "error", err)
		}
	}

	p.alerts.Add(1)
	p.logger.Info("alert emitted",
		"alert_id", alert.ID,
		"type", alert.AlertType,
		"priority", alert.Priority,
		"severity", alert.Severity,
		"devices", alert.AffectedDevices,
		"spof", alert.SPOF,
	)
}

// locate derives the triage starting point from a correlated event. SNMP
// names a device directly so it wins; a BGP-only event falls back to the
// peer that dominated its bin.
func locate(corr *schema.CorrelatedEvent) triage.Location {
	loc := triage.Location{Confidence: correlation.CombinedConfidence(corr)}
	if corr.SNMPEvent != nil {
		loc.Device = corr.SNMPEvent.Device
		loc.Interface = corr.SNMPEvent.Interface
	}
	if corr.BGPEvent != nil {
		loc.Peer = corr.BGPEvent.Peer
		if loc.Device == "" {
			loc.Device = corr.BGPEvent.Device
		}
	}
	return loc
}

// Stats aggregates statistics from every stage.
func (p *Pipeline) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"bgp_updates":   p.bgpIn.Load(),
		"snmp_polls":    p.snmpIn.Load(),
		"rejected":      p.rejected.Load(),
		"anomalies":     p.anomalies.Load(),
		"alerts":        p.alerts.Load(),
		"correlator":    p.correlator.Stats(),
		"alert_manager": p.manager.Stats(),
	}
	if p.escalation != nil {
		stats["escalation"] = p.escalation.Stats()
	}
	if p.ris != nil {
		stats["rislive"] = p.ris.Stats()
	}
	if p.producer != nil {
		stats["producer"] = p.producer.Stats()
	}
	for i, c := range p.consumers {
		stats[fmt.Sprintf("consumer_%d", i)] = c.Stats()
	}
	return stats
}
