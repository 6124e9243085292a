package playback

// Listener receives notifications from the audio subsystem backing a Source.
type Listener interface {
	MetadataLoaded(duration float64)
	TimeUpdate(current, duration float64)
	Waiting()
	CanPlay()
	Ended()
	Failed(err error)
}

// Source is a single playable audio resource. Sources clamp positions to
// their own bounds.
type Source interface {
	ID() string
	// Attach starts loading and directs all later notifications to l.
	Attach(l Listener)
	// Play asks the device to start; an error means the request was rejected.
	Play() error
	Pause()
	Position() float64
	SetPosition(seconds float64)
	// Close releases the source; no notifications follow.
	Close()
}
