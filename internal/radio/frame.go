package radio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Stream framing constants.
const (
	frameStart1 byte = 0x94
	frameStart2 byte = 0xC3

	frameHeaderLen = 4

	// maxFramePayload is the largest payload the firmware will send.
	maxFramePayload = 512

	// wakeLen is the number of frameStart2 bytes sent to wake a sleeping
	// serial console before the first frame.
	wakeLen = 32
)

// wakePreamble returns the bytes sent ahead of the first frame.
func wakePreamble() []byte {
	return bytes.Repeat([]byte{frameStart2}, wakeLen)
}

// encodeFrame prefixes payload with the stream header.
func encodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > maxFramePayload {
		return nil, fmt.Errorf("%w: payload %d bytes exceeds %d", ErrInvalidFrame, len(payload), maxFramePayload)
	}

	frame := make([]byte, frameHeaderLen+len(payload))
	frame[0] = frameStart1
	frame[1] = frameStart2
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(payload)))
	copy(frame[frameHeaderLen:], payload)
	return frame, nil
}

// frameReader extracts frames from a byte stream, skipping console noise
// between them.
type frameReader struct {
	r *bufio.Reader

	// skipped counts bytes discarded while hunting for a header.
	skipped uint64
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: bufio.NewReader(r)}
}

// ReadFrame returns the next frame payload. The returned slice is owned by
// the caller. Errors are only ever read errors from the underlying stream.
func (fr *frameReader) ReadFrame() ([]byte, error) {
	for {
		b, err := fr.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != frameStart1 {
			fr.skipped++
			continue
		}

		b, err = fr.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != frameStart2 {
			fr.skipped += 2
			if b == frameStart1 {
				// Possible start of the real header.
				_ = fr.r.UnreadByte()
				fr.skipped--
			}
			continue
		}

		// Peek at the length so a corrupt one leaves its bytes in the
		// stream to be rescanned for the next header.
		size, err := fr.r.Peek(2)
		if err != nil {
			return nil, err
		}
		n := binary.BigEndian.Uint16(size)
		if n > maxFramePayload {
			fr.skipped += 2
			continue
		}
		if _, err := fr.r.Discard(2); err != nil {
			return nil, err
		}

		payload := make([]byte, n)
		if _, err := io.ReadFull(fr.r, payload); err != nil {
			return nil, err
		}
		return payload, nil
	}
}
