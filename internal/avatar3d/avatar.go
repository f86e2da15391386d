// Package avatar3d connects the lip-sync engine to a face mesh. An Avatar accepts
// speak payloads, ticks the engine once per frame and forwards every emitted weight
// to the renderer by blend-shape index.
package avatar3d

import (
	"errors"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rs/zerolog"

	"github.com/normanking/cortexlipsync/internal/bus"
	"github.com/normanking/cortexlipsync/internal/lipsync"
	"github.com/normanking/cortexlipsync/internal/metrics"
	"github.com/normanking/cortexlipsync/internal/segment"
	"github.com/normanking/cortexlipsync/internal/weights"
)

// AvatarID names the head being animated; it tags events and comes from config.
type AvatarID string

// Renderer weight range.
const (
	MinWeight float32 = 0
	MaxWeight float32 = 100
)

// Option configures an Avatar.
type Option func(*Avatar)

// WithEventBus publishes utterance lifecycle events on b.
func WithEventBus(b *bus.EventBus) Option {
	return func(a *Avatar) { a.events = b }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(a *Avatar) { a.log = log }
}

type Avatar struct {
	ID AvatarID

	engine *lipsync.Engine
	sink   WeightSink
	events *bus.EventBus
	log    zerolog.Logger

	indices map[string]int
	missing map[string]struct{}

	wasActive bool
}

// NewAvatar builds the name-to-index mapping for a mesh declaring meshNames.
// The mapping is fixed for the lifetime of the Avatar.
func NewAvatar(id AvatarID, engine *lipsync.Engine, sink WeightSink, meshNames []string, opts ...Option) *Avatar {
	a := &Avatar{
		ID:      id,
		engine:  engine,
		sink:    sink,
		log:     zerolog.Nop(),
		indices: make(map[string]int, len(meshNames)),
		missing: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}

	for i, name := range meshNames {
		if name == "" {
			continue
		}
		if prev, dup := a.indices[name]; dup {
			a.log.Warn().Str("blendshape", name).Int("kept", prev).Int("ignored", i).Msg("Duplicate blend shape name on mesh")
			continue
		}
		a.indices[name] = i
	}

	return a
}

// Index returns the mesh index for a blend-shape name.
func (a *Avatar) Index(name string) (int, bool) {
	idx, ok := a.indices[name]
	return idx, ok
}

// Speak parses a "<sentence>###<t1,t2,...>" payload and starts animating it.
// An invalid payload is rejected and whatever is playing carries on.
func (a *Avatar) Speak(payload string) error {
	u, err := segment.FromPayload(payload)
	if err != nil {
		a.reject(err)
		return err
	}
	return a.SpeakUtterance(u)
}

// SpeakUtterance starts an already segmented utterance, interrupting the current one.
func (a *Avatar) SpeakUtterance(u segment.Utterance) error {
	if err := a.engine.Speak(u); err != nil {
		a.reject(err)
		return err
	}

	a.wasActive = true
	a.publish(bus.EventTypeUtteranceStarted, map[string]any{
		"avatar":     string(a.ID),
		"segments":   len(u),
		"planned_ms": u.TotalMs(),
	})
	return nil
}

func (a *Avatar) reject(err error) {
	metrics.Utterances.WithLabelValues(metrics.OutcomeRejected).Inc()
	a.log.Warn().Err(err).Bool("input_error", errors.Is(err, segment.ErrInput)).Msg("Speak request rejected")
	a.publish(bus.EventTypeUtteranceRejected, map[string]any{
		"avatar": string(a.ID),
		"error":  err.Error(),
	})
}

// Frame advances the engine to now and pushes the resulting weights to the sink.
// It returns the number of weights applied.
func (a *Avatar) Frame(now time.Time) int {
	// Measures engine and sink work only; frame lag shows up as utterance drift.
	start := time.Now()

	applied := 0
	for _, p := range a.engine.Tick(now) {
		idx, ok := a.indices[p.Name]
		if !ok {
			a.missingBlendshape(p.Name)
			continue
		}
		a.sink.SetBlendShapeWeight(idx, mgl32.Clamp(p.Value, MinWeight, MaxWeight))
		applied++
	}

	if a.wasActive && !a.engine.IsActive() {
		a.wasActive = false
		a.publish(bus.EventTypeUtteranceFinished, map[string]any{
			"avatar": string(a.ID),
		})
	}

	metrics.TickDuration.Observe(time.Since(start).Seconds())
	return applied
}

func (a *Avatar) missingBlendshape(name string) {
	metrics.LookupMisses.WithLabelValues(metrics.MissBlendshape).Inc()
	if _, seen := a.missing[name]; seen {
		return
	}
	a.missing[name] = struct{}{}
	a.log.Warn().Str("blendshape", name).Msg("Could not find blend shape on mesh")
}

// SetTable swaps the engine's weight table between frames.
func (a *Avatar) SetTable(t *weights.Table) {
	a.engine.SetTable(t)
	clear(a.missing)
	metrics.TableReloads.Inc()
	a.publish(bus.EventTypeTableReloaded, map[string]any{
		"avatar":      string(a.ID),
		"blendshapes": t.Len(),
	})
}

// IsSpeaking reports whether an utterance is playing.
func (a *Avatar) IsSpeaking() bool {
	return a.engine.IsActive()
}

func (a *Avatar) publish(t bus.EventType, data map[string]any) {
	if a.events == nil {
		return
	}
	a.events.Publish(bus.Event{Type: t, Data: data})
}
