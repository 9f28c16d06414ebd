package classify

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Field is one key/value pair of a JSON object, in source order
type Field struct {
	Key   string
	Value any
}

// Object is a JSON object that keeps its keys in source order.
// Nested objects are Objects; objects inside arrays are plain maps.
type Object []Field

// Get returns the last value stored under key
func (o Object) Get(key string) (any, bool) {
	for i := len(o) - 1; i >= 0; i-- {
		if o[i].Key == key {
			return o[i].Value, true
		}
	}
	return nil, false
}

// ToMap converts the object, and any nested objects, into plain maps
func (o Object) ToMap() map[string]any {
	m := make(map[string]any, len(o))
	for _, f := range o {
		m[f.Key] = plain(f.Value)
	}
	return m
}

func plain(v any) any {
	if obj, ok := v.(Object); ok {
		return obj.ToMap()
	}
	return v
}

// parseObject decodes text holding exactly one JSON object. Numbers decode as json.Number.
func parseObject(text string) (Object, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("message is not a JSON object")
	}

	obj, err := readObject(dec)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	return obj, nil
}

// readObject reads the members of an object whose opening brace was already consumed
func readObject(dec *json.Decoder) (Object, error) {
	obj := Object{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.Errorf("unexpected object key %v", tok)
		}
		value, err := readValue(dec)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", key)
		}
		obj = append(obj, Field{Key: key, Value: value})
	}
	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func readValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		return readObject(dec)
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, plain(v))
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, errors.Errorf("unexpected delimiter %v", delim)
	}
}
