package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/hraban/opus.v2"
)

// opusRate is the rate libopusfile always decodes to.
const opusRate = 48000

// DecodeOpus decodes a mono Ogg Opus file to 48 kHz PCM.
func DecodeOpus(data []byte) ([]int16, error) {
	s, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open opus stream: %w", err)
	}
	defer s.Close()

	var pcm []int16
	buf := make([]int16, opusRate/10)
	for {
		n, err := s.Read(buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode opus: %w", err)
		}
		pcm = append(pcm, buf[:n]...)
	}
	return pcm, nil
}
