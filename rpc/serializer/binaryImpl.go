package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dCfg/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: MsgType (1 byte), flags (2 bytes, big endian), then every present
// string field as length (4 bytes) + data, in the order of the flag bits.
// Boolean fields are encoded in the flags only.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasSender     uint16 = 1 << 0
	hasReceiver   uint16 = 1 << 1
	hasKey        uint16 = 1 << 2
	hasValueType  uint16 = 1 << 3
	hasValue      uint16 = 1 << 4
	hasConfig     uint16 = 1 << 5
	hasErr        uint16 = 1 << 6
	isFound       uint16 = 1 << 7
	isResetActive uint16 = 1 << 8
)

const (
	headerSize     = 3 // MsgType + flags
	lengthByteSize = 4
)

// stringFields returns pointers to the string fields in wire order
func stringFields(msg *common.Message) [7]struct {
	flag uint16
	ptr  *string
} {
	return [7]struct {
		flag uint16
		ptr  *string
	}{
		{hasSender, &msg.Sender},
		{hasReceiver, &msg.Receiver},
		{hasKey, &msg.Key},
		{hasValueType, (*string)(&msg.ValueType)},
		{hasValue, &msg.Value},
		{hasConfig, &msg.Config},
		{hasErr, &msg.Err},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	fields := stringFields(&msg)

	// Calculate total size needed
	totalSize := headerSize
	for _, f := range fields {
		if *f.ptr != "" {
			totalSize += lengthByteSize + len(*f.ptr)
		}
	}
	result := make([]byte, totalSize)

	// Write message type
	result[0] = byte(msg.MsgType)

	var flags uint16
	pos := headerSize

	for _, f := range fields {
		if *f.ptr == "" {
			continue
		}
		flags |= f.flag
		n := len(*f.ptr)

		binary.BigEndian.PutUint32(result[pos:pos+lengthByteSize], uint32(n))
		pos += lengthByteSize

		copy(result[pos:pos+n], *f.ptr)
		pos += n
	}

	if msg.Found {
		flags |= isFound
	}
	if msg.ResetActive {
		flags |= isResetActive
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:headerSize], flags)

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	msg.MsgType = common.MessageType(data[0])
	flags := binary.BigEndian.Uint16(data[1:headerSize])
	pos := headerSize

	for _, f := range stringFields(msg) {
		if flags&f.flag == 0 {
			*f.ptr = ""
			continue
		}

		if pos+lengthByteSize > len(data) {
			return fmt.Errorf("data too short for field length (flag %#x)", f.flag)
		}
		n := int(binary.BigEndian.Uint32(data[pos : pos+lengthByteSize]))
		pos += lengthByteSize

		if n < 0 || pos+n > len(data) {
			return fmt.Errorf("data too short for field data (flag %#x)", f.flag)
		}
		*f.ptr = string(data[pos : pos+n])
		pos += n
	}

	msg.Found = flags&isFound != 0
	msg.ResetActive = flags&isResetActive != 0

	if pos != len(data) {
		return fmt.Errorf("unexpected %d trailing bytes", len(data)-pos)
	}
	return nil
}
