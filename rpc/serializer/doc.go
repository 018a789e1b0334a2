// Package serializer converts sync protocol messages to and from the bytes
// published on the transports.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format. A two byte flag field marks
//     which string fields follow and carries the boolean fields, so empty
//     fields cost nothing.
//
//   - gobSerializerImpl: Go's gob encoding, mainly useful as a reference.
//
//   - jsonSerializerImpl: JSON via goccy/go-json. Human readable, handy when
//     watching a NATS subject with the nats cli.
//
// All serializers are stateless and safe for concurrent use. Every process
// publishing on the same namespace must use the same serializer.
//
// Usage:
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(*common.NewRequestFullConfig("client"))
//	// ... publish data ...
//	var msg common.Message
//	err = s.Deserialize(received, &msg)
package serializer
