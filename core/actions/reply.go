package actions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Reply is an endpoint response. Every field may be absent.
type Reply struct {
	Status int
	// Error is the top level "error" of the body.
	Error string
	// Fields holds a keyed "message", in document order. Any other message
	// shape is ignored.
	Fields *orderedmap.OrderedMap[string, any]
	Data   map[string]any
}

// Field returns Data[key] formatted as a string.
func (r Reply) Field(key string) (string, bool) {
	value, ok := r.Data[key]
	if !ok || value == nil {
		return "", false
	}
	return FormatValue(value), true
}

type envelope struct {
	Error   json.RawMessage `json:"error"`
	Message json.RawMessage `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// DecodeReply parses a JSON body. An empty body yields a reply with only the
// status set.
func DecodeReply(status int, body []byte) (Reply, error) {
	reply := Reply{Status: status}
	if len(bytes.TrimSpace(body)) == 0 {
		return reply, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return reply, fmt.Errorf("failed to decode reply: %w", err)
	}

	if value, ok := decodeValue(env.Error); ok {
		reply.Error = FormatValue(value)
	}

	if firstByte(env.Message) == '{' {
		fields := orderedmap.New[string, any]()
		if err := json.Unmarshal(env.Message, fields); err != nil {
			return reply, fmt.Errorf("failed to decode reply message: %w", err)
		}
		reply.Fields = fields
	}

	if firstByte(env.Data) == '{' {
		if err := json.Unmarshal(env.Data, &reply.Data); err != nil {
			return reply, fmt.Errorf("failed to decode reply data: %w", err)
		}
	}

	return reply, nil
}

func firstByte(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

func decodeValue(raw json.RawMessage) (any, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil || value == nil {
		return nil, false
	}
	return value, true
}

// FormatValue renders a decoded JSON value for speech: strings verbatim,
// numbers without exponent, composites as JSON.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}
