// Package playback implements the transport controller bound to a single
// audio source.
package playback

import (
	"log/slog"
	"math"
	"sync"
)

// Controller owns the PlaybackState for whichever source is bound. Commands
// and source notifications are serialized; subscribers are called after
// each change, outside the controller lock.
type Controller struct {
	mu    sync.Mutex
	src   Source
	gen   uint64
	state State
	log   *slog.Logger

	subMu   sync.Mutex
	subs    []subscriber
	nextSub uint64
}

type subscriber struct {
	id uint64
	fn func(State)
}

func NewController(logger *slog.Logger) *Controller {
	return &Controller{
		state: State{Status: StatusEmpty, Duration: math.NaN()},
		log:   logger.With(slog.String("component", "playback")),
	}
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn for every state change. The returned func removes it.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.subMu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Bind replaces the current source. A nil source empties the controller.
// State is fully reset and the previous source is closed.
func (c *Controller) Bind(src Source) {
	c.mu.Lock()
	old := c.src
	c.gen++
	gen := c.gen
	c.src = src
	c.state = State{Duration: math.NaN()}
	if src != nil {
		c.state.SourceID = src.ID()
	}
	c.derive()
	snap := c.state
	c.mu.Unlock()

	if old != nil && old != src {
		old.Close()
	}
	c.notify(snap)
	if src != nil {
		src.Attach(&binding{c: c, gen: gen})
	}
}

// Retry re-binds the current source, clearing a sticky error.
func (c *Controller) Retry() {
	c.mu.Lock()
	src := c.src
	c.mu.Unlock()
	if src != nil {
		c.Bind(src)
	}
}

// Close unbinds and releases the current source.
func (c *Controller) Close() {
	c.Bind(nil)
}

// Play requests playback. It is a no-op without a source, while already
// playing, or in the Error state.
func (c *Controller) Play() {
	c.mu.Lock()
	if c.src == nil || c.state.LastError != ErrorNone || c.state.Playing {
		c.mu.Unlock()
		return
	}
	src, gen := c.src, c.gen
	c.mu.Unlock()

	err := src.Play()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.log.Warn("play request rejected", slog.String("source", c.state.SourceID), slog.String("error", err.Error()))
		c.state.Playing = false
		c.state.Buffering = false
		c.state.LastError = ErrorPlaybackFailed
	} else {
		c.state.Playing = true
	}
	c.derive()
	snap := c.state
	c.mu.Unlock()
	c.notify(snap)
}

// Pause stops playback, keeping the position.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.src == nil || !c.state.Playing {
		c.mu.Unlock()
		return
	}
	src := c.src
	c.state.Playing = false
	c.derive()
	snap := c.state
	c.mu.Unlock()

	c.notify(snap)
	src.Pause()
}

// Toggle plays when paused and pauses when playing.
func (c *Controller) Toggle() {
	if c.State().Playing {
		c.Pause()
		return
	}
	c.Play()
}

// Seek moves to percent (0–100) of the known duration. Current time and
// progress update immediately without waiting for the source.
func (c *Controller) Seek(percent float64) {
	c.mu.Lock()
	d := c.state.Duration
	if c.src == nil || c.state.LastError != ErrorNone || math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 || math.IsNaN(percent) {
		c.mu.Unlock()
		return
	}
	percent = math.Max(0, math.Min(100, percent))
	target := percent / 100 * d
	c.state.CurrentTime = target
	c.state.Progress = percent
	src := c.src
	snap := c.state
	c.mu.Unlock()

	c.notify(snap)
	src.SetPosition(target)
}

// Skip moves the source position by delta seconds. Bounds are left to the
// source.
func (c *Controller) Skip(delta float64) {
	c.mu.Lock()
	if c.src == nil || c.state.LastError != ErrorNone {
		c.mu.Unlock()
		return
	}
	src := c.src
	c.mu.Unlock()

	src.SetPosition(src.Position() + delta)
}

func (c *Controller) derive() {
	s := &c.state
	switch {
	case c.src == nil:
		s.Status = StatusEmpty
	case s.LastError != ErrorNone:
		s.Status = StatusError
	case !s.DurationKnown() || s.Buffering:
		s.Status = StatusLoading
	case s.Playing:
		s.Status = StatusPlaying
	default:
		s.Status = StatusPaused
	}
}

func (c *Controller) notify(s State) {
	c.subMu.Lock()
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.subMu.Unlock()
	for _, sub := range subs {
		sub.fn(s)
	}
}

// apply runs fn against the state if gen is still the bound generation.
func (c *Controller) apply(gen uint64, fn func(s *State) bool) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if !fn(&c.state) {
		c.mu.Unlock()
		return
	}
	c.derive()
	snap := c.state
	c.mu.Unlock()
	c.notify(snap)
}

// binding scopes source notifications to one Bind call so a superseded
// source cannot touch the new state.
type binding struct {
	c   *Controller
	gen uint64
}

func (b *binding) MetadataLoaded(duration float64) {
	b.c.apply(b.gen, func(s *State) bool {
		if s.LastError != ErrorNone || math.IsNaN(duration) {
			return false
		}
		s.Duration = duration
		s.Buffering = false
		return true
	})
}

func (b *binding) TimeUpdate(current, duration float64) {
	b.c.apply(b.gen, func(s *State) bool {
		if s.LastError != ErrorNone {
			return false
		}
		s.CurrentTime = current
		if duration > 0 && !math.IsNaN(duration) && !math.IsInf(duration, 0) {
			s.Duration = duration
			s.Progress = current / duration * 100
		}
		return true
	})
}

func (b *binding) Waiting() {
	b.c.apply(b.gen, func(s *State) bool {
		if s.LastError != ErrorNone || s.Buffering {
			return false
		}
		s.Buffering = true
		return true
	})
}

func (b *binding) CanPlay() {
	b.c.apply(b.gen, func(s *State) bool {
		if !s.Buffering {
			return false
		}
		s.Buffering = false
		return true
	})
}

func (b *binding) Ended() {
	b.c.apply(b.gen, func(s *State) bool {
		s.Playing = false
		s.Buffering = false
		s.CurrentTime = 0
		s.Progress = 0
		return true
	})
}

func (b *binding) Failed(err error) {
	b.c.apply(b.gen, func(s *State) bool {
		attrs := []any{slog.String("source", s.SourceID)}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		b.c.log.Warn("audio source failed", attrs...)
		s.Playing = false
		s.Buffering = false
		s.LastError = ErrorAudioUnavailable
		return true
	})
}
