package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const RedactedValue = "[REDACTED]"

// credentialMarkers flag a key as carrying a credential when they appear
// anywhere in it. "i" is matched exactly since it is the signing parameter.
var credentialMarkers = []string{
	"secret",
	"token",
	"password",
	"authorization",
	"apikey",
	"api_key",
	"credential",
	"signature",
}

// RedactSensitiveMap returns a copy of metadata with credential values
// replaced, descending into nested maps, slices and Params.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		out[key] = redactEntry(key, value)
	}
	return out
}

// Fingerprint returns the first 8 hex digits of the SHA-256 of secret, or ""
// for an empty secret.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:4])
}

func redactEntry(key string, value any) any {
	if isCredentialKey(key) {
		return RedactedValue
	}
	switch typed := value.(type) {
	case map[string]any:
		return RedactSensitiveMap(typed)
	case []any:
		out := make([]any, len(typed))
		for index, item := range typed {
			out[index] = redactEntry("", item)
		}
		return out
	case Params:
		out := make(Params, len(typed))
		for index, param := range typed {
			out[index] = P(param.Key, redactEntry(param.Key, param.Value))
		}
		return out
	default:
		return value
	}
}

func isCredentialKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	switch {
	case key == "":
		return false
	case key == SigningParam:
		return true
	case strings.HasSuffix(key, "_fingerprint"):
		return false
	}
	for _, marker := range credentialMarkers {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
