package tts

import (
	"context"
	"encoding/binary"
	"math"
	"strings"
	"time"

	"github.com/go-audio/audio"
)

const (
	mockWordDuration = 80 * time.Millisecond
	mockMaxDuration  = 30 * time.Second
	mockChunk        = 250 * time.Millisecond
	mockToneHz       = 220
)

// mockSynth renders a quiet tone whose length follows the word count, so
// narration plays back for a plausible time without a speech engine.
type mockSynth struct {
	sampleRate int
	channels   int
}

func NewMockSynth(sampleRate, channels int) Synthesizer {
	return &mockSynth{sampleRate: sampleRate, channels: channels}
}

func (m *mockSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)

		words := len(strings.Fields(req.Text))
		if words == 0 {
			return
		}
		total := time.Duration(words) * mockWordDuration
		if total > mockMaxDuration {
			total = mockMaxDuration
		}
		step := int(mockChunk.Seconds()*float64(m.sampleRate)) * m.channels * 2
		if step <= 0 {
			return
		}
		pcm := int16LE(m.tone(total, mockToneHz))
		sequence := 0
		for off := 0; off < len(pcm); off += step {
			end := off + step
			if end > len(pcm) {
				end = len(pcm)
			}
			chunk := SynthChunk{
				SessionID:  req.SessionID,
				Sequence:   sequence,
				SampleRate: m.sampleRate,
				Channels:   m.channels,
				PCM:        pcm[off:end],
				Final:      end == len(pcm),
			}
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case chunks <- chunk:
			}
			sequence++
		}
	}()
	return chunks, errs
}

func (m *mockSynth) tone(d time.Duration, hz float64) *audio.IntBuffer {
	frames := int(d.Seconds() * float64(m.sampleRate))
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: m.channels, SampleRate: m.sampleRate},
		Data:           make([]int, frames*m.channels),
		SourceBitDepth: 16,
	}
	for i := 0; i < frames; i++ {
		v := int(2000 * math.Sin(2*math.Pi*hz*float64(i)/float64(m.sampleRate)))
		for c := 0; c < m.channels; c++ {
			buf.Data[i*m.channels+c] = v
		}
	}
	return buf
}

func int16LE(buf *audio.IntBuffer) []byte {
	out := make([]byte, len(buf.Data)*2)
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}
