// Package audio packages raw PCM speech into self-contained WAV containers
// and inspects containers on the way back in.
package audio

import "time"

// Format describes linear PCM sample layout.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// SpeechFormat is what the synthesizers emit: 24 kHz, mono, 16-bit.
var SpeechFormat = Format{
	SampleRate:    24000,
	Channels:      1,
	BitsPerSample: 16,
}

// ByteRate is the number of payload bytes consumed per second of playback.
func (f Format) ByteRate() int {
	return f.SampleRate * f.Channels * (f.BitsPerSample / 8)
}

// BlockAlign is the size in bytes of one frame across all channels.
func (f Format) BlockAlign() int {
	return f.Channels * (f.BitsPerSample / 8)
}

// Asset is an immutable PCM payload plus the format needed to play it.
type Asset struct {
	PCM    []byte
	Format Format
}

// Duration reports playback length derived from payload size and byte rate.
func (a Asset) Duration() time.Duration {
	rate := a.Format.ByteRate()
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(len(a.PCM)) / float64(rate) * float64(time.Second))
}
