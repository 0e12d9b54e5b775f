package rates

import (
	"encoding/json"
	"fmt"
)

// Tuple identifies one rate in the bounded (period, hotel, room) domain.
type Tuple struct {
	Period string `json:"period"`
	Hotel  string `json:"hotel"`
	Room   string `json:"room"`
}

// Key generates the canonical cache key for the tuple.
// The encoding is compact JSON with the fixed field order period, hotel,
// room. Two replicas produce byte-identical keys for the same tuple; the
// key is both the cache slot and the registry member.
//
// Example:
//
//	{"period":"Summer","hotel":"FloatingPointResort","room":"SingletonRoom"}
func (t Tuple) Key() string {
	// Struct marshalling emits fields in declaration order with no
	// whitespace, which is exactly the canonical form.
	data, err := json.Marshal(t)
	if err != nil {
		// A struct of three strings cannot fail to marshal.
		panic(fmt.Sprintf("encode rate key: %v", err))
	}
	return string(data)
}

// ParseKey decodes a registry member back into a tuple. Registry entries are
// written by Key, so malformed members should be impossible; the decoder is
// defensive anyway because the registry lives in shared storage.
func ParseKey(key string) (Tuple, error) {
	var t Tuple
	if err := json.Unmarshal([]byte(key), &t); err != nil {
		return Tuple{}, fmt.Errorf("parse rate key %q: %w", key, err)
	}
	if t.Period == "" || t.Hotel == "" || t.Room == "" {
		return Tuple{}, fmt.Errorf("parse rate key %q: missing field", key)
	}
	return t, nil
}

func (t Tuple) String() string {
	return t.Period + "/" + t.Hotel + "/" + t.Room
}
