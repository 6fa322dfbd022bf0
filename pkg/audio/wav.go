package audio

import (
	"encoding/binary"
	"errors"

	"github.com/teslashibe/go-eyeguide/pkg/audioio"
)

// ErrInvalidWAV is returned for data that is not 16-bit PCM RIFF/WAVE.
var ErrInvalidWAV = errors.New("audio: invalid wav")

// WAV is decoded 16-bit PCM audio.
type WAV struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// ParseWAV reads a RIFF/WAVE file holding 16-bit PCM. Chunks other than
// "fmt " and "data" are skipped. Streamed WAVs (espeak --stdout) carry a
// bogus data size, so the data chunk is clamped to what is present.
func ParseWAV(data []byte) (*WAV, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrInvalidWAV
	}

	w := &WAV{}
	var haveFmt bool
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := data[off+8:]
		if size < 0 || size > len(body) {
			size = len(body)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, ErrInvalidWAV
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			bits := binary.LittleEndian.Uint16(body[14:16])
			if format != 1 || bits != 16 {
				return nil, ErrInvalidWAV
			}
			w.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			w.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, ErrInvalidWAV
			}
			w.Samples = audioio.BytesToSamples(body[:size])
			return w, nil
		}

		// chunks are word aligned
		off += 8 + size + size%2
	}
	return nil, ErrInvalidWAV
}
