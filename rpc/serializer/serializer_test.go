package serializer

import (
	"testing"

	"github.com/ValentinKolb/dCfg/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTRequestClientConfig},

		*common.NewRequestFullConfig("client-1"),
		*common.NewRequestSingleValue("client-1", "db:hosts", common.ValueTStringList, common.JoinList([]string{"a", "b"})),
		*common.NewSendSingleValue("server-1", "client-1", "db:port", common.ValueTInt, "5432", true),
		*common.NewSendFullConfig("server-1", "", `{"db":{"host":"<local & host>"}}`, true),
		*common.NewSendClientConfig("client-1", `{"client-1":{"port":"1"}}`),

		// Error message
		{
			MsgType: common.MsgTSendSingleValue,
			Sender:  "server-1",
			Err:     "test error message",
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				data, err := serializer.Serialize(msg)
				require.NoError(t, err, "message %d", i)

				var result common.Message
				require.NoError(t, serializer.Deserialize(data, &result), "message %d", i)

				assert.Equal(t, msg, result, "message %d", i)
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for msgType := common.MsgTUnknown; msgType <= common.MsgTSendClientConfig; msgType++ {
				data, err := serializer.Serialize(common.Message{MsgType: msgType})
				require.NoError(t, err, msgType.String())

				var result common.Message
				require.NoError(t, serializer.Deserialize(data, &result), msgType.String())
				assert.Equal(t, msgType, result.MsgType)
			}
		})
	}
}

// A reused message must not keep fields of the previous one
func TestDeserializeReusedMessage(t *testing.T) {
	for _, name := range []string{"GOB", "Binary"} {
		t.Run(name, func(t *testing.T) {
			serializer := testSerializers[name]()

			full, err := serializer.Serialize(*common.NewSendSingleValue("s", "c", "a:b", common.ValueTInt, "1", true))
			require.NoError(t, err)
			empty, err := serializer.Serialize(*common.NewRequestFullConfig("c"))
			require.NoError(t, err)

			var msg common.Message
			require.NoError(t, serializer.Deserialize(full, &msg))
			require.NoError(t, serializer.Deserialize(empty, &msg))
			assert.Equal(t, *common.NewRequestFullConfig("c"), msg)
		})
	}
}

func TestJSONKeepsConfigVerbatim(t *testing.T) {
	data, err := NewJSONSerializer().Serialize(*common.NewSendClientConfig("c", `{"a":"<&>"}`))
	require.NoError(t, err)
	assert.Contains(t, string(data), `<&>`)
	assert.Contains(t, string(data), `"msg_type":"sendClientConfig"`)
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{"Empty data", []byte{}, true},
		{"Too short header", []byte{1, 0}, true},
		{"Valid header only", []byte{1, 0, 0}, false},
		{"Bool flags only", []byte{4, 0x01, 0x80}, false},
		// claims a sender of length 5 but only 3 bytes follow
		{"Invalid length for sender", []byte{1, 0, 1, 0, 0, 0, 5, 'a', 'b', 'c'}, true},
		// claims a key but no length follows
		{"Missing length for key", []byte{2, 0, 4}, true},
		{"Trailing bytes", []byte{1, 0, 0, 'x'}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	var msg common.Message
	require.NoError(t, serializer.Deserialize([]byte{4, 0x01, 0x80}, &msg))
	assert.True(t, msg.Found)
	assert.True(t, msg.ResetActive)
}
