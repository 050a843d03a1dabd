package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type Param struct {
	Key   string
	Value any
}

// Params is an ordered parameter list serialized as one flat JSON object.
// When a key repeats, the last occurrence wins. Nil values are kept and
// encoded as JSON null.
type Params []Param

func P(key string, value any) Param {
	return Param{Key: key, Value: value}
}

func ParamsFromMap(values map[string]any) Params {
	if len(values) == 0 {
		return Params{}
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make(Params, 0, len(keys))
	for _, key := range keys {
		out = append(out, Param{Key: key, Value: values[key]})
	}
	return out
}

func (p Params) With(key string, value any) Params {
	out := make(Params, 0, len(p)+1)
	out = append(out, p...)
	return append(out, Param{Key: key, Value: value})
}

func (p Params) Get(key string) (any, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Key == key {
			return p[i].Value, true
		}
	}
	return nil, false
}

func (p Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

func (p Params) Without(key string) Params {
	out := make(Params, 0, len(p))
	for _, param := range p {
		if param.Key == key {
			continue
		}
		out = append(out, param)
	}
	return out
}

// Map flattens the list, applying last-write-wins.
func (p Params) Map() map[string]any {
	out := make(map[string]any, len(p))
	for _, param := range p {
		out[param.Key] = param.Value
	}
	return out
}

// MarshalJSON writes keys in first-seen order with their last value.
func (p Params) MarshalJSON() ([]byte, error) {
	order := make([]string, 0, len(p))
	values := make(map[string]any, len(p))
	for _, param := range p {
		if strings.TrimSpace(param.Key) == "" {
			return nil, fmt.Errorf("core: parameter key is required")
		}
		if _, seen := values[param.Key]; !seen {
			order = append(order, param.Key)
		}
		values[param.Key] = param.Value
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range order {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		encodedValue, err := json.Marshal(values[key])
		if err != nil {
			return nil, fmt.Errorf("core: encode parameter %q: %w", key, err)
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		buf.Write(encodedValue)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
