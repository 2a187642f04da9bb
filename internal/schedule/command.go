package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// maxDuration caps a single station run (one day, in seconds).
const maxDuration = 24 * 60 * 60

// Command is a decoded run-once program: a SequenceCommand or a NamedCommand.
type Command interface {
	isCommand()
}

// SequenceCommand gives durations by station position.
type SequenceCommand struct {
	Values []int
}

// NamedCommand gives durations by station name.
type NamedCommand struct {
	Values map[string]int
	// Order lists the names as they appeared in the payload.
	Order []string
}

func (SequenceCommand) isCommand() {}
func (NamedCommand) isCommand()    {}

// DecodeCommand parses a run-once payload.
func DecodeCommand(payload []byte) (Command, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCommand, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrMalformedCommand)
	}

	switch v := raw.(type) {
	case []any:
		values := make([]int, len(v))
		for i, item := range v {
			d, err := duration(item)
			if err != nil {
				return nil, fmt.Errorf("station %d: %w", i+1, err)
			}
			values[i] = d
		}
		return SequenceCommand{Values: values}, nil

	case map[string]any:
		cmd := NamedCommand{Values: make(map[string]int, len(v))}
		for name, item := range v {
			d, err := duration(item)
			if err != nil {
				return nil, fmt.Errorf("station %q: %w", name, err)
			}
			cmd.Values[name] = d
		}
		cmd.Order = objectKeyOrder(payload)
		return cmd, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedCommand, truncate(payload))
	}
}

// duration converts one JSON value to whole seconds.
// Integral floats such as 60.0 are accepted.
func duration(v any) (int, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: %v is not a number", ErrInvalidDuration, v)
	}

	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, n)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %s is not whole seconds", ErrInvalidDuration, n)
	}
	if f < 0 || f > maxDuration {
		return 0, fmt.Errorf("%w: %s outside 0..%d", ErrInvalidDuration, n, maxDuration)
	}
	return int(f), nil
}

// objectKeyOrder returns the top-level keys of a JSON object in payload order.
func objectKeyOrder(payload []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(payload))
	if _, err := dec.Token(); err != nil {
		return nil
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
	}
	return keys
}

func truncate(payload []byte) string {
	const limit = 64
	if len(payload) <= limit {
		return string(payload)
	}
	return string(payload[:limit]) + "..."
}
