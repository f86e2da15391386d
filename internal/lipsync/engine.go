// Package lipsync is the timing state machine that turns a segmented utterance into
// per-frame blend-shape weights.
//
// The engine is driven by the host's frame loop: Speak installs an utterance and
// Tick is called once per frame with the current time. Elapsed time is measured
// against the wall clock (with Go's monotonic reading), so skipped frames only skip a
// visual update and never shift the timing. When a segment overruns, the excess is
// subtracted from the next segment so drift does not accumulate over a sentence.
//
// An Engine is not safe for concurrent use; confine it to the frame loop goroutine.
package lipsync

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/cortexlipsync/internal/metrics"
	"github.com/normanking/cortexlipsync/internal/segment"
	"github.com/normanking/cortexlipsync/internal/weights"
)

// Pair is one emitted blend-shape value.
type Pair struct {
	Name  string
	Value float32
}

// State is a read-only snapshot of the engine.
type State struct {
	Active        bool
	Index         int
	Segments      int
	PrevSymbol    string
	CurrSymbol    string
	ReferenceTime time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithEasing replaces the default exponential easing.
func WithEasing(fn EaseFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.ease = fn
		}
	}
}

// WithClock sets the time source used by Speak. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger attaches a logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// Engine interpolates between the weight vectors of consecutive symbols.
type Engine struct {
	table *weights.Table
	ease  EaseFunc
	now   func() time.Time
	log   zerolog.Logger

	segments  segment.Utterance
	index     int
	reference time.Time
	started   time.Time
	plannedMs float64
	prev      string
	curr      string
	active    bool

	missed map[string]struct{}
	out    []Pair
}

// New creates an idle engine reading weights from table.
func New(table *weights.Table, opts ...Option) *Engine {
	e := &Engine{
		table:  table,
		ease:   ExponentialEase,
		now:    time.Now,
		log:    zerolog.Nop(),
		prev:   weights.Silence,
		curr:   weights.Silence,
		missed: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.out = make([]Pair, 0, table.Len())
	return e
}

// Speak replaces whatever is playing with u and starts it from the rest pose.
// An empty utterance or one with a non-finite duration is rejected and the current
// one keeps playing.
// The engine keeps its own copy of u.
func (e *Engine) Speak(u segment.Utterance) error {
	if len(u) == 0 {
		return fmt.Errorf("%w: empty utterance", segment.ErrInput)
	}
	for i, seg := range u {
		if math.IsNaN(seg.DurationMs) || math.IsInf(seg.DurationMs, 0) {
			return fmt.Errorf("%w: segment %d (%s) has non-finite duration", segment.ErrInput, i, seg.Symbol)
		}
	}

	if e.active {
		e.log.Debug().
			Int("index", e.index).
			Int("segments", len(e.segments)).
			Msg("Interrupting utterance")
	}

	now := e.now()
	e.segments = append(e.segments[:0], u...)
	e.index = 0
	e.reference = now
	e.started = now
	e.plannedMs = u.TotalMs()
	e.prev = weights.Silence
	e.curr = u[0].Symbol
	e.active = true
	clear(e.missed)

	metrics.Utterances.WithLabelValues(metrics.OutcomeStarted).Inc()
	metrics.Speaking.Set(1)

	e.log.Debug().
		Int("segments", len(u)).
		Float64("planned_ms", e.plannedMs).
		Msg("Utterance started")

	return nil
}

// Tick computes the weights for time now and advances past any finished segment.
// It returns nil while idle. The returned slice is reused by the next call.
func (e *Engine) Tick(now time.Time) []Pair {
	if !e.active {
		return nil
	}

	seg := &e.segments[e.index]
	elapsed := float64(now.Sub(e.reference)) / float64(time.Millisecond)
	if elapsed < 0 {
		elapsed = 0
	}

	ratio := 1.0
	if seg.DurationMs > 0 {
		ratio = elapsed / seg.DurationMs
	}

	out := e.interpolate(ratio)

	if elapsed > seg.DurationMs {
		e.advance(now, elapsed-seg.DurationMs)
	}

	return out
}

func (e *Engine) interpolate(ratio float64) []Pair {
	from, ok := e.lookup(e.prev)
	if !ok {
		return nil
	}
	to, ok := e.lookup(e.curr)
	if !ok {
		return nil
	}

	k := e.ease(ratio)

	n := min(len(from), len(to))
	e.out = e.out[:0]
	for i := 0; i < n; i++ {
		a := float64(from[i].Weight)
		b := float64(to[i].Weight)
		e.out = append(e.out, Pair{
			Name:  from[i].Name,
			Value: float32(a + (b-a)*k),
		})
	}
	return e.out
}

func (e *Engine) lookup(symbol string) (weights.Vector, bool) {
	vec, err := e.table.Get(symbol)
	if err == nil {
		return vec, true
	}

	metrics.LookupMisses.WithLabelValues(metrics.MissSymbol).Inc()
	if _, seen := e.missed[symbol]; !seen {
		e.missed[symbol] = struct{}{}
		e.log.Warn().Err(err).Str("symbol", symbol).Msg("Skipping frame for unknown symbol")
	}
	return nil, false
}

func (e *Engine) advance(now time.Time, overshootMs float64) {
	e.prev = e.curr
	e.index++

	if e.index >= len(e.segments) {
		e.active = false
		actualMs := float64(now.Sub(e.started)) / float64(time.Millisecond)

		metrics.Utterances.WithLabelValues(metrics.OutcomeCompleted).Inc()
		metrics.UtteranceDrift.Observe(actualMs - e.plannedMs)
		metrics.Speaking.Set(0)

		e.log.Info().
			Float64("elapsed_ms", actualMs).
			Float64("planned_ms", e.plannedMs).
			Msg("Utterance finished")
		return
	}

	e.curr = e.segments[e.index].Symbol
	e.segments[e.index].DurationMs -= overshootMs
	e.reference = now
}

// SetTable swaps the weight table. Call it between frames.
func (e *Engine) SetTable(t *weights.Table) {
	e.table = t
	clear(e.missed)
}

// IsActive reports whether an utterance is playing.
func (e *Engine) IsActive() bool {
	return e.active
}

// State returns a snapshot of the interpolation state.
func (e *Engine) State() State {
	return State{
		Active:        e.active,
		Index:         e.index,
		Segments:      len(e.segments),
		PrevSymbol:    e.prev,
		CurrSymbol:    e.curr,
		ReferenceTime: e.reference,
	}
}

// Remaining returns the stored duration of segment i, including any carried overshoot.
func (e *Engine) Remaining(i int) (float64, bool) {
	if i < 0 || i >= len(e.segments) {
		return 0, false
	}
	return e.segments[i].DurationMs, true
}
