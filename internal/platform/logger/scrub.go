package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

const redacted = "[REDACTED]"

// key fragments whose values never reach the log
var secretKeys = []string{"token", "authorization", "secret", "signature", "cookie", "password", "email"}

// scrubber rewrites log key/value pairs. A nil or disabled scrubber passes pairs through.
type scrubber struct {
	enabled bool
	salt    string
}

func scrubberFromEnv() *scrubber {
	s := &scrubber{enabled: true, salt: strings.TrimSpace(os.Getenv("LOG_HASH_SALT"))}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_REDACTION_ENABLED"))) {
	case "0", "false", "no", "off":
		s.enabled = false
	}
	return s
}

func (s *scrubber) pairs(kv []any) []any {
	if s == nil || !s.enabled || len(kv) == 0 {
		return kv
	}
	out := make([]any, len(kv))
	copy(out, kv)
	for i := 0; i+1 < len(out); i += 2 {
		out[i+1] = s.value(normalizeKey(out[i]), out[i+1])
	}
	return out
}

func (s *scrubber) value(key string, v any) any {
	switch {
	case key == "":
		return v
	case containsFragment(key, secretKeys):
		return redacted
	case key == "user" || strings.Contains(key, "user_id") || strings.Contains(key, "userid"):
		return s.hash(v)
	}
	switch t := v.(type) {
	case map[string]any:
		nested := make(map[string]any, len(t))
		for k, inner := range t {
			nested[k] = s.value(normalizeKey(k), inner)
		}
		return nested
	case string:
		if isJWT(t) {
			return redacted
		}
	}
	return v
}

// hash keeps user ids correlatable across lines without logging them.
func (s *scrubber) hash(v any) string {
	raw := stringify(v)
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s.salt + raw))
	return "hash:" + hex.EncodeToString(sum[:])[:12]
}

func normalizeKey(k any) string { return strings.ToLower(stringify(k)) }

func containsFragment(key string, frags []string) bool {
	for _, f := range frags {
		if strings.Contains(key, f) {
			return true
		}
	}
	return false
}

func isJWT(s string) bool {
	head, rest, ok := strings.Cut(s, ".")
	if !ok {
		return false
	}
	body, sig, ok := strings.Cut(rest, ".")
	return ok && !strings.Contains(sig, ".") && len(head) > 10 && len(body) > 10
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
