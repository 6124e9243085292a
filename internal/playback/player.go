package playback

import (
	"sync"
	"time"
)

// Player loads finished narrations into a controller as in-memory WAV
// sources. Loading a new narration supersedes the previous one.
type Player struct {
	*Controller
	tick time.Duration

	mu      sync.Mutex
	current *WAVSource
}

func NewPlayer(c *Controller, tick time.Duration) *Player {
	return &Player{Controller: c, tick: tick}
}

// Load binds container as the current source.
func (p *Player) Load(id string, container []byte) {
	src := NewWAVSource(id, container, p.tick)
	p.mu.Lock()
	p.current = src
	p.mu.Unlock()
	p.Bind(src)
}

// Audio returns the container of the current source.
func (p *Player) Audio() (string, []byte, bool) {
	p.mu.Lock()
	src := p.current
	p.mu.Unlock()
	if src == nil {
		return "", nil, false
	}
	data := src.Data()
	if data == nil {
		return "", nil, false
	}
	return src.ID(), data, true
}

// Unload empties the controller.
func (p *Player) Unload() {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	p.Bind(nil)
}
