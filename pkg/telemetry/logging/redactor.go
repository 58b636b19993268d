package logging

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/eunomia-sh/eunomia/pkg/config"
)

// Redactor redacts credential material (signing keys, tokens, passwords)
// from log fields before they reach the log writer.
type Redactor struct {
	patterns map[string]*redactPattern
	enabled  bool
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in redaction pattern names.
const (
	PatternSigningKey  = "signing_key"
	PatternBearerToken = "bearer_token"
	PatternBasicAuth   = "basic_auth"
	PatternPassword    = "password"
	PatternSecretRef   = "secret_ref"
)

// NewRedactor creates a new Redactor with default and custom patterns.
func NewRedactor(customPatterns []config.RedactPattern) *Redactor {
	r := &Redactor{
		patterns: make(map[string]*redactPattern),
		enabled:  true,
	}

	// Add default patterns
	r.addDefaultPatterns()

	// Add custom patterns
	for _, p := range customPatterns {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			// Skip invalid patterns (log warning in production)
			continue
		}
		r.patterns[p.Name] = &redactPattern{
			name:        p.Name,
			regex:       regex,
			replacement: p.Replacement,
		}
	}

	return r
}

// addDefaultPatterns adds built-in redaction patterns for credential material
// that shows up in bundle signing, registry auth, and git-source config.
func (r *Redactor) addDefaultPatterns() {
	patterns := map[string]struct {
		regex       string
		replacement string
	}{
		// Base64-encoded Ed25519 seeds/keys, as carried by EUNOMIA_SIGNING_KEY
		// and SigningConfig.KeyFile contents.
		PatternSigningKey: {
			regex:       `(signing[-_]?key|key[-_]?seed)[:=]\s*[A-Za-z0-9+/=]{16,}`,
			replacement: "$1=***",
		},

		// Bearer tokens (registry auth, git-source HTTP auth)
		PatternBearerToken: {
			regex:       `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`,
			replacement: "Bearer ***",
		},

		// HTTP Basic auth headers and embedded userinfo credentials
		PatternBasicAuth: {
			regex:       `Basic\s+[A-Za-z0-9+/=]+`,
			replacement: "Basic ***",
		},

		// Generic password/token fields
		PatternPassword: {
			regex:       `(password|passwd|pwd|token)[:=]\s*[^\s]+`,
			replacement: "$1: ***",
		},

		// "${secret:name}" references should never leak a resolved value
		// adjacent to the reference in a log line.
		PatternSecretRef: {
			regex:       `\$\{secret:[^}]+\}=\s*[^\s]+`,
			replacement: "${secret:***}",
		},
	}

	for name, p := range patterns {
		regex := regexp.MustCompile(p.regex)
		r.patterns[name] = &redactPattern{
			name:        name,
			regex:       regex,
			replacement: p.replacement,
		}
	}
}

// RedactString redacts credential material from a string value.
func (r *Redactor) RedactString(value string) string {
	if !r.enabled || value == "" {
		return value
	}

	redacted := value
	for _, pattern := range r.patterns {
		redacted = pattern.regex.ReplaceAllString(redacted, pattern.replacement)
	}

	return redacted
}

// RedactArgs redacts credential material from variadic log arguments.
// Args are in the form: key1, value1, key2, value2, ...
func (r *Redactor) RedactArgs(args ...any) []any {
	if !r.enabled || len(args) == 0 {
		return args
	}

	redacted := make([]any, len(args))
	copy(redacted, args)

	// Process key-value pairs
	for i := 1; i < len(redacted); i += 2 {
		// Check if this is a sensitive field by key name
		if i > 0 {
			key, ok := redacted[i-1].(string)
			if ok && r.isSensitiveKey(key) {
				redacted[i] = r.redactValue(redacted[i])
			}
		}

		// Also redact string values that match patterns
		if str, ok := redacted[i].(string); ok {
			redacted[i] = r.RedactString(str)
		}
	}

	return redacted
}

// isSensitiveKey checks if a key name indicates sensitive data.
func (r *Redactor) isSensitiveKey(key string) bool {
	// Convert to lowercase for case-insensitive matching
	lowerKey := strings.ToLower(key)

	sensitiveKeys := []string{
		"password", "passwd", "pwd",
		"secret", "token",
		"auth", "authorization",
		"signing_key", "signingkey", "key_seed",
		"private_key", "privatekey",
	}

	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}

	return false
}

// redactValue redacts a sensitive value completely.
func (r *Redactor) redactValue(value any) any {
	switch v := value.(type) {
	case string:
		// For sensitive keys, completely redact the value
		if v == "" {
			return ""
		}
		// Keep a hint of the value type/length for debugging
		if len(v) <= 4 {
			return "***"
		}
		return v[:min(4, len(v))] + "***"
	case fmt.Stringer:
		return "***"
	default:
		return "***"
	}
}

// min returns the minimum of two integers.
func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// RedactKeyID redacts a signing key ID, keeping only a short prefix for
// correlating log lines with a trusted-keys table entry.
func RedactKeyID(keyID string) string {
	if len(keyID) <= 4 {
		return "***"
	}
	return keyID[:4] + "***"
}

// RedactToken redacts a bearer or access token, keeping only a short prefix.
func RedactToken(token string) string {
	if len(token) <= 4 {
		return "***"
	}
	return token[:4] + "***"
}
