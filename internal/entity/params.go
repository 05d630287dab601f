package entity

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
)

func missing(key string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidParameter, key)
}

func invalid(key string, v any) error {
	return fmt.Errorf("%w: %s has invalid value %v", ErrInvalidParameter, key, v)
}

func floatParam(params map[string]any, key string) (float64, bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return n, true, nil
	case int:
		return float64(n), true, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false, invalid(key, v)
		}
		return f, true, nil
	}
	return 0, false, invalid(key, v)
}

func intParam(params map[string]any, key string) (int, bool, error) {
	f, ok, err := floatParam(params, key)
	if !ok || err != nil {
		return 0, ok, err
	}
	return int(math.Round(f)), true, nil
}

// percentParam reads an optional 0-100 integer.
func percentParam(params map[string]any, key string) (*int, error) {
	n, ok, err := intParam(params, key)
	if err != nil || !ok {
		return nil, err
	}
	if n < 0 || n > 100 {
		return nil, invalid(key, n)
	}
	return &n, nil
}

func requirePercent(params map[string]any, key string) (int, error) {
	p, err := percentParam(params, key)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, missing(key)
	}
	return *p, nil
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", missing(key)
	}
	s, isString := v.(string)
	if !isString || s == "" {
		return "", invalid(key, v)
	}
	return s, nil
}

func boolParam(params map[string]any, key string) (bool, error) {
	v, ok := params[key]
	if !ok {
		return false, missing(key)
	}
	b, isBool := v.(bool)
	if !isBool {
		return false, invalid(key, v)
	}
	return b, nil
}

// colorParam reads an optional {r,g,b} object.
func colorParam(params map[string]any, key string) (*device.RGB, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, isMap := v.(map[string]any)
	if !isMap {
		return nil, invalid(key, v)
	}
	var c [3]uint8
	for i, ch := range []string{"r", "g", "b"} {
		n, present, err := intParam(m, ch)
		if err != nil || !present || n < 0 || n > 255 {
			return nil, invalid(key, v)
		}
		c[i] = uint8(n)
	}
	return &device.RGB{R: c[0], G: c[1], B: c[2]}, nil
}
