package playback

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/loqalabs/loqa-books/internal/audio"
)

var (
	ErrSourceClosed   = errors.New("audio source closed")
	ErrSourceNotReady = errors.New("audio source not ready")
)

// WAVSource plays an in-memory WAV container on a wall clock. With a zero
// tick the clock only moves through Advance.
type WAVSource struct {
	id   string
	tick time.Duration

	mu       sync.Mutex
	data     []byte
	listener Listener
	duration float64
	position float64
	ready    bool
	playing  bool
	closed   bool
	stop     chan struct{}
}

func NewWAVSource(id string, container []byte, tick time.Duration) *WAVSource {
	return &WAVSource{id: id, data: container, tick: tick}
}

func (s *WAVSource) ID() string { return s.id }

// Data returns the container bytes, or nil once closed.
func (s *WAVSource) Data() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

func (s *WAVSource) Attach(l Listener) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		l.Failed(ErrSourceClosed)
		return
	}
	s.stopClockLocked()
	s.listener = l
	s.position = 0
	s.playing = false
	s.ready = false
	data := s.data
	s.mu.Unlock()

	info, err := audio.Inspect(data)
	if err != nil {
		l.Failed(err)
		return
	}

	s.mu.Lock()
	s.duration = info.Duration
	s.ready = true
	s.mu.Unlock()

	l.MetadataLoaded(info.Duration)
	l.CanPlay()
}

func (s *WAVSource) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSourceClosed
	}
	if !s.ready {
		return ErrSourceNotReady
	}
	if s.playing {
		return nil
	}
	s.playing = true
	if s.tick > 0 {
		s.stop = make(chan struct{})
		go s.run(s.stop)
	}
	return nil
}

func (s *WAVSource) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.stopClockLocked()
}

func (s *WAVSource) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// SetPosition clamps to [0, duration] and reports the new time.
func (s *WAVSource) SetPosition(seconds float64) {
	s.mu.Lock()
	if !s.ready || s.closed || math.IsNaN(seconds) {
		s.mu.Unlock()
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	if seconds > s.duration {
		seconds = s.duration
	}
	s.position = seconds
	l, pos, dur := s.listener, s.position, s.duration
	s.mu.Unlock()

	if l != nil {
		l.TimeUpdate(pos, dur)
	}
}

// Advance moves the clock forward while playing and reports the end of the
// payload.
func (s *WAVSource) Advance(elapsed time.Duration) {
	s.mu.Lock()
	if !s.playing || s.closed {
		s.mu.Unlock()
		return
	}
	s.position += elapsed.Seconds()
	ended := s.position >= s.duration
	pos := s.position
	if ended {
		pos = s.duration
		s.position = 0
		s.playing = false
		s.stopClockLocked()
	}
	l, dur := s.listener, s.duration
	s.mu.Unlock()

	if l == nil {
		return
	}
	l.TimeUpdate(pos, dur)
	if ended {
		l.Ended()
	}
}

func (s *WAVSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.playing = false
	s.stopClockLocked()
	s.listener = nil
	s.data = nil
}

func (s *WAVSource) run(stop <-chan struct{}) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			s.Advance(now.Sub(last))
			last = now
		}
	}
}

func (s *WAVSource) stopClockLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}
