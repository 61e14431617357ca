package core

import (
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/runtime"
)

// ErrNotJSON is returned for payloads holding values outside the JSON data model.
var ErrNotJSON = errors.New("payload is not JSON-shaped")

// ClonePayload returns an independent deep copy of p. Nil stays nil.
func ClonePayload(p Payload) (Payload, error) {
	if p == nil {
		return nil, nil
	}
	if err := checkJSON("", p); err != nil {
		return nil, err
	}
	return runtime.DeepCopyJSON(p), nil
}

// MustClonePayload is ClonePayload for payloads already known to be JSON-shaped.
func MustClonePayload(p Payload) Payload {
	c, err := ClonePayload(p)
	if err != nil {
		panic(err)
	}
	return c
}

func checkJSON(path string, v any) error {
	switch t := v.(type) {
	case nil, string, bool, float64, int64:
		return nil
	case map[string]any:
		for k, e := range t {
			if err := checkJSON(path+"."+k, e); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for i, e := range t {
			if err := checkJSON(fmt.Sprintf("%s[%d]", path, i), e); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %s has type %T", ErrNotJSON, path, v)
	}
}

// String returns p[key] when it holds a string.
func String(p Payload, key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok
}

// Number returns p[key] as float64 when it holds a JSON number.
func Number(p Payload, key string) (float64, bool) {
	switch n := p[key].(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Object returns p[key] when it holds a nested object.
func Object(p Payload, key string) (Payload, bool) {
	m, ok := p[key].(map[string]any)
	return m, ok
}
