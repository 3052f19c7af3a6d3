package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/procnet/internal/ir"
)

// marshalValue encodes v as canonical JSON together with its type string.
func marshalValue(v ir.Value) (data, typ string, err error) {
	if v == nil {
		return "", "", fmt.Errorf("marshal value: nil value")
	}
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", "", fmt.Errorf("marshal value: %w", err)
	}
	return string(b), ir.TypeOf(v).String(), nil
}

// unmarshalValue decodes a value written by marshalValue.
// Numbers are decoded as json.Number so 64-bit values survive intact.
func unmarshalValue(data, typ string) (ir.Value, error) {
	t, err := ir.ParseType(typ)
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var native any
	if err := dec.Decode(&native); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}

	v, err := ir.FromNative(t, native)
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}
