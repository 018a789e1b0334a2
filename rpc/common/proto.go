package common

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message is the single envelope of the sync protocol.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Routing
	Sender   string `json:"sender,omitempty"`   // Name of the publishing process (all types)
	Receiver string `json:"receiver,omitempty"` // Addressed client, empty = broadcast (SendFullConfig, SendSingleValue)

	// Single value fields
	Key       string    `json:"key,omitempty"`        // RequestSingleValue, SendSingleValue
	ValueType ValueType `json:"value_type,omitempty"` // RequestSingleValue, SendSingleValue
	Value     string    `json:"value,omitempty"`      // Default (request) or resolved value (response)
	Found     bool      `json:"found,omitempty"`      // SendSingleValue: the server had a value for Key

	// Full config fields
	Config      string `json:"config,omitempty"`       // SendFullConfig, SendClientConfig
	ResetActive bool   `json:"reset_active,omitempty"` // SendFullConfig

	// Error message, empty if there was no error
	Err string `json:"err,omitempty"`
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewRequestFullConfig asks the config server for the complete configuration
func NewRequestFullConfig(requester string) *Message {
	return &Message{
		MsgType: MsgTRequestFullConfig,
		Sender:  requester,
	}
}

// NewRequestSingleValue asks the config server for one value.
// def is the stringified default of the caller.
func NewRequestSingleValue(requester, key string, valueType ValueType, def string) *Message {
	return &Message{
		MsgType:   MsgTRequestSingleValue,
		Sender:    requester,
		Key:       key,
		ValueType: valueType,
		Value:     def,
	}
}

// NewSendFullConfig carries a complete configuration document.
// An empty receiver addresses every client.
func NewSendFullConfig(sender, receiver, config string, resetActive bool) *Message {
	return &Message{
		MsgType:     MsgTSendFullConfig,
		Sender:      sender,
		Receiver:    receiver,
		Config:      config,
		ResetActive: resetActive,
	}
}

// NewSendSingleValue answers a RequestSingleValue
func NewSendSingleValue(sender, receiver, key string, valueType ValueType, value string, found bool) *Message {
	return &Message{
		MsgType:   MsgTSendSingleValue,
		Sender:    sender,
		Receiver:  receiver,
		Key:       key,
		ValueType: valueType,
		Value:     value,
		Found:     found,
	}
}

// NewRequestClientConfig asks every client to publish its configuration
func NewRequestClientConfig(sender string) *Message {
	return &Message{
		MsgType: MsgTRequestClientConfig,
		Sender:  sender,
	}
}

// NewSendClientConfig carries the configuration of one client
func NewSendClientConfig(sender, config string) *Message {
	return &Message{
		MsgType: MsgTSendClientConfig,
		Sender:  sender,
		Config:  config,
	}
}

// --------------------------------------------------------------------------
// Value Types
// --------------------------------------------------------------------------

// ValueType selects how a single value request is resolved
type ValueType string

const (
	ValueTBool       ValueType = "bool"
	ValueTInt        ValueType = "int"
	ValueTFloat      ValueType = "float"
	ValueTString     ValueType = "string"
	ValueTStringList ValueType = "stringList"
	ValueTChildren   ValueType = "getChildren"
)

// ListSeparator joins list values in a single message field
const ListSeparator = ":$@"

// JoinList joins values with ListSeparator
func JoinList(values []string) string {
	return strings.Join(values, ListSeparator)
}

// SplitList is the inverse of JoinList, an empty string is an empty list
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ListSeparator)
}

// --------------------------------------------------------------------------
// Message Type and Topics
// --------------------------------------------------------------------------

type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTRequestFullConfig:
		return "requestFullConfig"
	case MsgTRequestSingleValue:
		return "requestSingleValue"
	case MsgTSendFullConfig:
		return "sendFullConfig"
	case MsgTSendSingleValue:
		return "sendSingleValue"
	case MsgTRequestClientConfig:
		return "requestClientConfig"
	case MsgTSendClientConfig:
		return "sendClientConfig"
	default:
		return "unknown"
	}
}

// ParseMessageType is the inverse of MessageType.String
func ParseMessageType(s string) (MessageType, error) {
	for t := MsgTUnknown; t <= MsgTSendClientConfig; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return MsgTUnknown, fmt.Errorf("unknown message type: %s", s)
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMessageType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Topic returns the pub/sub topic a message type is published on
func Topic(namespace string, t MessageType) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return namespace + "." + t.String()
}

// DefaultNamespace prefixes every topic unless configured otherwise
const DefaultNamespace = "dcfg"

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	MsgTUnknown MessageType = iota

	// client -> server

	MsgTRequestFullConfig  // Ask for the complete configuration
	MsgTRequestSingleValue // Ask for one value of another component

	// server -> client

	MsgTSendFullConfig      // Complete configuration, broadcast or addressed
	MsgTSendSingleValue     // Answer to MsgTRequestSingleValue
	MsgTRequestClientConfig // Ask every client to publish its configuration

	// client -> server

	MsgTSendClientConfig // Configuration of one client
)
