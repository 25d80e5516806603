package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/frame"
	"unicode/utf8"
)

// ErrInvalidCommand is returned by ParseCommand for every frame that is not a
// well-formed command. The reason is deliberately not differentiated.
var ErrInvalidCommand = errors.New("invalid command")

// --------------------------------------------------------------------------
// Command Structure
// --------------------------------------------------------------------------

// Command represents a single client request.
// Which fields are used depends on the type of the command.
type Command struct {
	// Type of command
	CmdType CommandType `json:"cmd_type"`

	Key   string `json:"key,omitempty"`   // Used for: Get, Set
	Value []byte `json:"value,omitempty"` // Used for: Set
}

// ToFrame converts the command into its wire representation,
// an array of bulk strings starting with the verb.
func (c Command) ToFrame() frame.Frame {
	switch c.CmdType {
	case CmdTPing:
		return frame.Array(frame.BulkString(VerbPing))
	case CmdTGet:
		return frame.Array(frame.BulkString(VerbGet), frame.BulkString(c.Key))
	case CmdTSet:
		return frame.Array(frame.BulkString(VerbSet), frame.BulkString(c.Key), frame.Bulk(c.Value))
	default:
		return frame.Array()
	}
}

// String returns a short representation of the command for logging.
// Values are not printed, only their size.
func (c Command) String() string {
	switch c.CmdType {
	case CmdTPing:
		return "PING"
	case CmdTGet:
		return fmt.Sprintf("GET %q", c.Key)
	case CmdTSet:
		return fmt.Sprintf("SET %q (%d bytes)", c.Key, len(c.Value))
	default:
		return c.CmdType.String()
	}
}

// ParseCommand interprets a frame as a command.
// The frame must be an array of bulk strings whose first element is one of the
// verbs PING, GET or SET (case-sensitive) followed by exactly the arguments the
// verb expects. Keys must be valid UTF-8. Any other frame yields ErrInvalidCommand.
func ParseCommand(f frame.Frame) (Command, error) {
	if f.Kind != frame.KindArray || len(f.Array) == 0 {
		return Command{}, ErrInvalidCommand
	}
	for _, elem := range f.Array {
		if elem.Kind != frame.KindBulk {
			return Command{}, ErrInvalidCommand
		}
	}

	args := f.Array[1:]
	switch string(f.Array[0].Bulk) {
	case VerbPing:
		if len(args) != 0 {
			return Command{}, ErrInvalidCommand
		}
		return NewPingCommand(), nil

	case VerbGet:
		if len(args) != 1 || !utf8.Valid(args[0].Bulk) {
			return Command{}, ErrInvalidCommand
		}
		return NewGetCommand(string(args[0].Bulk)), nil

	case VerbSet:
		if len(args) != 2 || !utf8.Valid(args[0].Bulk) {
			return Command{}, ErrInvalidCommand
		}
		value := args[1].Bulk
		if value == nil {
			value = []byte{}
		}
		return NewSetCommand(string(args[0].Bulk), value), nil

	default:
		return Command{}, ErrInvalidCommand
	}
}

// --------------------------------------------------------------------------
// Command Factory Functions
// --------------------------------------------------------------------------

// NewPingCommand creates a new Ping command
func NewPingCommand() Command {
	return Command{CmdType: CmdTPing}
}

// NewGetCommand creates a new Get command
func NewGetCommand(key string) Command {
	return Command{CmdType: CmdTGet, Key: key}
}

// NewSetCommand creates a new Set command
func NewSetCommand(key string, value []byte) Command {
	return Command{CmdType: CmdTSet, Key: key, Value: value}
}

// --------------------------------------------------------------------------
// Replies
// --------------------------------------------------------------------------

// Verbs as they appear on the wire
const (
	VerbPing = "PING"
	VerbGet  = "GET"
	VerbSet  = "SET"
)

// Error texts sent to clients
const (
	ErrMsgInvalidCommand   = "ERR invalid command"
	ErrMsgProtocol         = "ERR protocol error"
	ErrMsgStoreUnavailable = "ERR store unavailable"
)

var (
	// ReplyPong is the reply to a Ping command
	ReplyPong = frame.Simple("PONG")
	// ReplyOK is the reply to a Set command
	ReplyOK = frame.Simple("OK")
	// ReplyInvalidCommand is sent when a frame could not be parsed into a command
	ReplyInvalidCommand = frame.Error(ErrMsgInvalidCommand)
	// ReplyProtocolError is sent before a connection is closed due to malformed input
	ReplyProtocolError = frame.Error(ErrMsgProtocol)
	// ReplyStoreUnavailable is sent when the store could not serve a command
	ReplyStoreUnavailable = frame.Error(ErrMsgStoreUnavailable)
)

// --------------------------------------------------------------------------
// Command Type Definition
// --------------------------------------------------------------------------

// CommandType defines the type of command sent by a client.
type CommandType uint8

// String returns the string representation of a CommandType.
func (t CommandType) String() string {
	switch t {
	case CmdTPing:
		return "ping"
	case CmdTGet:
		return "get"
	case CmdTSet:
		return "set"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for CommandType.
// This allows CommandType to be serialized as a string in JSON.
func (t CommandType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for CommandType.
func (t *CommandType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "ping":
		*t = CmdTPing
	case "get":
		*t = CmdTGet
	case "set":
		*t = CmdTSet
	default:
		return fmt.Errorf("unknown command type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Command Type Constants
// --------------------------------------------------------------------------

const (
	CmdTUnknown CommandType = iota
	CmdTPing                // Liveness check
	CmdTGet                 // Get a value by key
	CmdTSet                 // Set a key-value pair
)
