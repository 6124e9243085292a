package audio

import (
	"encoding/binary"
	"io"
	"math"
)

const (
	// HeaderSize is the fixed size of the canonical RIFF/WAVE preamble.
	HeaderSize = 44
	// MaxDataLen is the largest payload the 32-bit size fields can describe.
	MaxDataLen uint64 = math.MaxUint32 - (HeaderSize - 8)

	formatChunkSize = 16
	formatPCM       = 1
)

// Header is the 44-byte container header written before the PCM payload.
type Header struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // total file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // payload length
}

// NewHeader computes the header for dataLen bytes of PCM in format f.
func NewHeader(f Format, dataLen uint32) Header {
	return Header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     HeaderSize - 8 + dataLen,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: formatChunkSize,
		AudioFormat:   formatPCM,
		NumChannels:   uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.ByteRate()),
		BlockAlign:    uint16(f.BlockAlign()),
		BitsPerSample: uint16(f.BitsPerSample),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataLen,
	}
}

// Bytes lays the header out little-endian.
func (h Header) Bytes() [HeaderSize]byte {
	var b [HeaderSize]byte
	le := binary.LittleEndian
	copy(b[0:4], h.ChunkID[:])
	le.PutUint32(b[4:8], h.ChunkSize)
	copy(b[8:12], h.Format[:])
	copy(b[12:16], h.Subchunk1ID[:])
	le.PutUint32(b[16:20], h.Subchunk1Size)
	le.PutUint16(b[20:22], h.AudioFormat)
	le.PutUint16(b[22:24], h.NumChannels)
	le.PutUint32(b[24:28], h.SampleRate)
	le.PutUint32(b[28:32], h.ByteRate)
	le.PutUint16(b[32:34], h.BlockAlign)
	le.PutUint16(b[34:36], h.BitsPerSample)
	copy(b[36:40], h.Subchunk2ID[:])
	le.PutUint32(b[40:44], h.Subchunk2Size)
	return b
}

// Package returns header ++ PCM as a new slice. The payload is not
// validated; a truncated or malformed payload only shows up at decode time.
// Callers keep len(a.PCM) within MaxDataLen.
func Package(a Asset) []byte {
	header := NewHeader(a.Format, uint32(len(a.PCM))).Bytes()
	out := make([]byte, 0, HeaderSize+len(a.PCM))
	out = append(out, header[:]...)
	return append(out, a.PCM...)
}

// Encode streams the packaged container to w.
func Encode(w io.Writer, a Asset) error {
	header := NewHeader(a.Format, uint32(len(a.PCM))).Bytes()
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(a.PCM)
	return err
}
