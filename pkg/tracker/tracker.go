// Package tracker implements the Performance Tracker (spec §4.3):
// per-(model_id, task_type) rolling outcome counters collapsed into a
// single recommendation weight the Router Core blends into its score.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/moerouter/pkg/moerouter/types"
	"github.com/blueberrycongee/moerouter/pkg/store"
)

// nMin is the minimum sample count before RecommendationWeight trusts
// the observed success rate over the neutral default (spec §4.3).
const nMin = 5

const ewmaAlpha = 0.3

// defaultRingCapacity bounds the per-key recent-outcomes ring buffer,
// mirroring DeploymentStats.LatencyHistory's fixed-size history in the
// teacher's routers/base.go.
const defaultRingCapacity = 200

// defaultHistoryCapacity bounds the global feedback history used by
// FeedbackHistory.
const defaultHistoryCapacity = 2000

// Sink is the narrow telemetry contract the tracker reports persistence
// failures through. pkg/telemetry.Sink satisfies it.
type Sink interface {
	RecordStoreError(operation string, err error)
}

type noopSink struct{}

func (noopSink) RecordStoreError(string, error) {}

// FeedbackEntry is one recorded outcome, returned by FeedbackHistory.
type FeedbackEntry struct {
	ModelID      string         `json:"model_id"`
	TaskType     types.TaskType `json:"task_type"`
	Success      bool           `json:"success"`
	LatencyMs    *float64       `json:"latency_ms,omitempty"`
	Cost         *float64       `json:"cost,omitempty"`
	QualityScore *float64       `json:"quality_score,omitempty"`
	Error        string         `json:"error,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

type entry struct {
	total     int64
	successes int64
	failures  int64

	costEWMA    *ewma
	latencyEWMA *ewma
	qualityEWMA *ewma

	ring     []FeedbackEntry
	ringHead int
}

func newEntry() *entry {
	return &entry{
		costEWMA:    newEWMA(ewmaAlpha),
		latencyEWMA: newEWMA(ewmaAlpha),
		qualityEWMA: newEWMA(ewmaAlpha),
	}
}

// Tracker is the Performance Tracker. The zero value is not usable;
// use New.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*entry
	history []FeedbackEntry

	ringCapacity    int
	historyCapacity int

	store     store.Store
	telemetry Sink
	logger    *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStore injects a persistence backing store (spec §6). Defaults to
// store.Memory when not supplied.
func WithStore(s store.Store) Option {
	return func(t *Tracker) { t.store = s }
}

// WithTelemetry injects a telemetry sink for store-failure reporting.
func WithTelemetry(s Sink) Option {
	return func(t *Tracker) { t.telemetry = s }
}

// WithLogger injects a logger, defaulting to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithRingCapacity overrides the per-key recent-outcomes ring size.
func WithRingCapacity(n int) Option {
	return func(t *Tracker) { t.ringCapacity = n }
}

// New creates a Performance Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		entries:         make(map[string]*entry),
		ringCapacity:    defaultRingCapacity,
		historyCapacity: defaultHistoryCapacity,
		telemetry:       noopSink{},
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.store == nil {
		t.store = store.NewMemory()
	}
	return t
}

func key(modelID string, taskType types.TaskType) string {
	return modelID + "|" + string(taskType)
}

// RecordOutcome updates counters and moving averages for (modelID,
// taskType). O(1) amortized. A failing persistence write degrades to
// memory-only and reports through the telemetry sink; it never
// prevents the in-memory update from taking effect.
func (t *Tracker) RecordOutcome(modelID string, taskType types.TaskType, success bool, latencyMs, cost, qualityScore *float64, recordErr error) {
	fb := FeedbackEntry{
		ModelID:      modelID,
		TaskType:     taskType,
		Success:      success,
		LatencyMs:    latencyMs,
		Cost:         cost,
		QualityScore: qualityScore,
		Timestamp:    time.Now(),
	}
	if recordErr != nil {
		fb.Error = recordErr.Error()
	}

	t.mu.Lock()
	e, ok := t.entries[key(modelID, taskType)]
	if !ok {
		e = newEntry()
		t.entries[key(modelID, taskType)] = e
	}

	e.total++
	if success {
		e.successes++
	} else {
		e.failures++
	}
	if cost != nil {
		e.costEWMA.add(*cost)
	}
	if latencyMs != nil {
		e.latencyEWMA.add(*latencyMs)
	}
	if qualityScore != nil {
		e.qualityEWMA.add(*qualityScore)
	}
	e.pushRing(fb, t.ringCapacity)

	t.history = appendBounded(t.history, fb, t.historyCapacity)
	t.mu.Unlock()

	t.persist(modelID, taskType, fb)
}

func (e *entry) pushRing(fb FeedbackEntry, capacity int) {
	if len(e.ring) < capacity {
		e.ring = append(e.ring, fb)
		return
	}
	e.ring[e.ringHead] = fb
	e.ringHead = (e.ringHead + 1) % capacity
}

func appendBounded(history []FeedbackEntry, fb FeedbackEntry, capacity int) []FeedbackEntry {
	history = append(history, fb)
	if len(history) > capacity {
		history = history[len(history)-capacity:]
	}
	return history
}

func (t *Tracker) persist(modelID string, taskType types.TaskType, fb FeedbackEntry) {
	if t.store == nil {
		return
	}
	data, err := json.Marshal(fb)
	if err != nil {
		t.telemetry.RecordStoreError("tracker.marshal", types.NewStoreError(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	storeKey := "tracker:" + key(modelID, taskType) + ":" + fb.Timestamp.Format(time.RFC3339Nano)
	if err := t.store.Put(ctx, storeKey, data); err != nil {
		t.logger.Warn("performance tracker persistence write failed, continuing memory-only", "error", err)
		t.telemetry.RecordStoreError("tracker.put", types.NewStoreError(err.Error()))
	}
}

// RecommendationWeight returns the tracker's blended recommendation for
// (modelID, taskType) in [0,1], per spec §4.3: neutral 0.5 below
// nMin samples, else 0.6*success_rate + 0.4*normalized_quality.
func (t *Tracker) RecommendationWeight(modelID string, taskType types.TaskType) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[key(modelID, taskType)]
	if !ok || e.total < nMin {
		return 0.5
	}

	successRate := float64(e.successes) / float64(e.total)

	normalizedQuality := successRate
	if e.qualityEWMA.hasValue() {
		normalizedQuality = clamp01(e.qualityEWMA.get())
	}

	return 0.6*successRate + 0.4*normalizedQuality
}

// FeedbackHistory returns the most recent entries matching the given
// filters, newest first. An empty modelID or taskType matches any
// value for that field.
func (t *Tracker) FeedbackHistory(modelID string, taskType types.TaskType, limit int) []FeedbackEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]FeedbackEntry, 0, limit)
	for i := len(t.history) - 1; i >= 0 && len(out) < limit; i-- {
		fb := t.history[i]
		if modelID != "" && fb.ModelID != modelID {
			continue
		}
		if taskType != "" && fb.TaskType != taskType {
			continue
		}
		out = append(out, fb)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
