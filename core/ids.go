package core

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// ID is an opaque server-assigned identifier.
// The API emits ids either as JSON strings or numbers.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	s, err := unmarshalScalar(b)
	if err != nil {
		return errors.Wrap(err, "decoding id")
	}
	*id = ID(s)
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Amount is a money value as sent by the API: a JSON number or a numeric string.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	s, err := unmarshalScalar(b)
	if err != nil {
		return errors.Wrap(err, "decoding amount")
	}
	*a = Amount(s)
	return nil
}

func (a Amount) String() string {
	if a == "" {
		return "0"
	}
	return string(a)
}

// unmarshalScalar reads a JSON string, number or null as text.
func unmarshalScalar(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return "", nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		err := json.Unmarshal(b, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
