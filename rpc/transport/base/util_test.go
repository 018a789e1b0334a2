package base

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payloads := [][]byte{nil, []byte("x"), bytes.Repeat([]byte("config"), 1000)}

	go func() {
		for i, p := range payloads {
			if err := writeFrame(client, topicID("dcfg.test"), uint64(i+1), p); err != nil {
				return
			}
		}
	}()

	// small buffer forces the allocation path for the large payload
	buf := make([]byte, 64)
	for i, p := range payloads {
		topic, op, data, err := readFrame(server, buf)
		require.NoError(t, err)
		assert.Equal(t, topicID("dcfg.test"), topic)
		assert.Equal(t, uint64(i+1), op)
		assert.Equal(t, len(p), len(data))
		assert.True(t, bytes.Equal(p, data) || len(p) == 0)
	}
}

func TestFrameTooLarge(t *testing.T) {
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint32(header[16:20], maxFrameSize+1)

	_, _, _, err := readFrame(bytes.NewReader(header), nil)
	assert.Error(t, err)
}

func TestTopicID(t *testing.T) {
	assert.Equal(t, topicID("a.b"), topicID("a.b"))
	assert.NotEqual(t, topicID("dcfg.requestFullConfig"), topicID("dcfg.sendFullConfig"))
	assert.Equal(t, "publish", opName(opPublish))
	assert.Equal(t, "op(9)", opName(9))
}
