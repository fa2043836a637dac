package collective

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// frameHeaderLen covers the big-endian payload length followed by its xxhash64 digest.
const frameHeaderLen = 16

func encodeFrame(payload []byte) []byte {
	frame := make([]byte, frameHeaderLen+len(payload))
	binary.BigEndian.PutUint64(frame[0:8], uint64(len(payload)))
	binary.BigEndian.PutUint64(frame[8:16], xxhash.Sum64(payload))
	copy(frame[frameHeaderLen:], payload)
	return frame
}

// decodeFrame verifies a frame and returns its payload, which aliases frame.
func decodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < frameHeaderLen {
		return nil, fmt.Errorf("%w: short frame of %d bytes", ErrProtocol, len(frame))
	}
	size := binary.BigEndian.Uint64(frame[0:8])
	digest := binary.BigEndian.Uint64(frame[8:16])
	payload := frame[frameHeaderLen:]
	if uint64(len(payload)) != size {
		return nil, fmt.Errorf("%w: frame announces %d payload bytes, carries %d", ErrProtocol, size, len(payload))
	}
	if sum := xxhash.Sum64(payload); sum != digest {
		return nil, fmt.Errorf("%w: payload digest %016x, expected %016x", ErrProtocol, sum, digest)
	}
	return payload, nil
}
