package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Value is a raw JSON document returned by the remote service.
type Value json.RawMessage

func (v Value) MarshalJSON() ([]byte, error) {
	if len(bytes.TrimSpace(v)) == 0 {
		return []byte("null"), nil
	}
	return []byte(v), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if v == nil {
		return fmt.Errorf("core: unmarshal into nil value")
	}
	*v = append((*v)[:0], data...)
	return nil
}

func (v Value) IsZero() bool {
	trimmed := bytes.TrimSpace(v)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func (v Value) Decode(target any) error {
	if len(bytes.TrimSpace(v)) == 0 {
		return fmt.Errorf("core: empty json value")
	}
	return json.Unmarshal(v, target)
}

// Object decodes the value as a JSON object, keeping members raw.
func (v Value) Object() (map[string]json.RawMessage, error) {
	var out map[string]json.RawMessage
	if err := v.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("core: json value is not an object")
	}
	return out, nil
}

func (v Value) String() string {
	return string(v)
}

func stringMember(obj map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok {
		return "", false
	}
	var out string
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", false
	}
	if out == "" {
		return "", false
	}
	return out, true
}

// truthyMember reports whether obj[key] is present and not null, false,
// zero, or an empty string.
func truthyMember(obj map[string]json.RawMessage, key string) bool {
	raw, ok := obj[key]
	if !ok {
		return false
	}
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}

// remoteErrorFields extracts the service's error envelope ({"error":{code,
// message, id}}) as log and error metadata.
func remoteErrorFields(body Value) map[string]any {
	obj, err := body.Object()
	if err != nil {
		return map[string]any{}
	}
	raw, ok := obj["error"]
	if !ok || !truthyMember(obj, "error") {
		return map[string]any{}
	}
	fields := map[string]any{}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		fields["remote_error"] = string(bytes.TrimSpace(raw))
		return fields
	}
	if code, ok := stringMember(envelope, "code"); ok {
		fields["remote_code"] = code
	}
	if message, ok := stringMember(envelope, "message"); ok {
		fields["remote_message"] = message
	}
	if id, ok := stringMember(envelope, "id"); ok {
		fields["remote_error_id"] = id
	}
	return fields
}

func mergeFields(base map[string]any, extra map[string]any) map[string]any {
	out := cloneFields(base)
	for key, value := range extra {
		out[key] = value
	}
	return out
}
