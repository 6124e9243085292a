package audio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-audio/wav"
)

var (
	// ErrInvalidContainer marks bytes that no linear PCM decoder would accept.
	ErrInvalidContainer = errors.New("invalid wav container")
	// ErrTruncated marks a container whose payload is shorter than its header claims.
	ErrTruncated = errors.New("truncated wav payload")
)

// Info is what a decoder learns from a container before reading samples.
type Info struct {
	Format   Format
	DataLen  int
	Duration float64 // seconds
}

// Inspect validates a container the way a playback device would and
// reports its format and duration.
func Inspect(data []byte) (Info, error) {
	r := bytes.NewReader(data)
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return Info{}, fmt.Errorf("%w: %v", ErrInvalidContainer, err)
		}
		return Info{}, ErrInvalidContainer
	}
	if d.WavAudioFormat != formatPCM {
		return Info{}, fmt.Errorf("%w: unsupported audio format %d", ErrInvalidContainer, d.WavAudioFormat)
	}
	if err := d.FwdToPCM(); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrInvalidContainer, err)
	}

	// Both the reader position and the canonical layout must agree before
	// a payload is reported short.
	if r.Len() < d.PCMSize && len(data)-HeaderSize < d.PCMSize {
		return Info{}, fmt.Errorf("%w: header declares %d bytes", ErrTruncated, d.PCMSize)
	}

	f := Format{
		SampleRate:    int(d.SampleRate),
		Channels:      int(d.NumChans),
		BitsPerSample: int(d.BitDepth),
	}
	info := Info{Format: f, DataLen: d.PCMSize}
	if rate := f.ByteRate(); rate > 0 {
		info.Duration = float64(d.PCMSize) / float64(rate)
	}
	return info, nil
}
