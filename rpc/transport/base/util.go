package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/ValentinKolb/dCfg/lib/db/util"
)

// Frame operations
const (
	opSubscribe   uint64 = 1
	opUnsubscribe uint64 = 2
	opPublish     uint64 = 3
)

const (
	headerSize = 20

	// maxFrameSize limits the payload a peer may announce
	maxFrameSize = 64 * 1024 * 1024
)

// topicID maps a topic name to the id used on the wire
func topicID(topic string) uint64 {
	return uint64(util.HashString(topic, 0))
}

func opName(op uint64) string {
	switch op {
	case opSubscribe:
		return "subscribe"
	case opUnsubscribe:
		return "unsubscribe"
	case opPublish:
		return "publish"
	default:
		return fmt.Sprintf("op(%d)", op)
	}
}

// writeFrame writes a frame to the connection with the format:
// - 8 bytes: topic id (uint64, big endian)
// - 8 bytes: operation (uint64, big endian)
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(conn net.Conn, topic uint64, op uint64, data []byte) error {
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint64(header[:8], topic)
	binary.BigEndian.PutUint64(header[8:16], op)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads a frame from the connection using the provided buffer
// If the buffer is too small, it will allocate a new temporary buffer for the data
func readFrame(conn io.Reader, buf []byte) (uint64, uint64, []byte, error) {
	if len(buf) < headerSize {
		buf = make([]byte, headerSize)
	}

	if _, err := io.ReadFull(conn, buf[:headerSize]); err != nil {
		return 0, 0, nil, err
	}

	topic := binary.BigEndian.Uint64(buf[:8])
	op := binary.BigEndian.Uint64(buf[8:16])
	contentLength := binary.BigEndian.Uint32(buf[16:20])

	if contentLength == 0 {
		return topic, op, []byte{}, nil
	}
	if contentLength > maxFrameSize {
		return 0, 0, nil, fmt.Errorf("frame of %d bytes exceeds limit of %d bytes", contentLength, maxFrameSize)
	}

	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		return 0, 0, nil, err
	}

	return topic, op, buf[:contentLength], nil
}
