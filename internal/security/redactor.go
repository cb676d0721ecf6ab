// Package security keeps secrets out of logs and API output. The bot token,
// gateway credentials and database passwords are registered with a shared
// Redactor that both the log handler and the gateway config endpoint use.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// ServiceName is the service registry name of the shared Redactor.
const ServiceName = "security.redactor"

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// secretKeyPattern matches map keys that likely contain secrets.
var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|password|pass|dsn|key|credential)`)

type rule struct {
	pattern *regexp.Regexp
	replace string
}

// Redactor replaces secret values in strings and maps with a redaction placeholder.
// It supports both regex pattern matching (for known token formats) and
// literal value matching (for credentials read from the config).
// All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	rules    []rule
	literals []string
}

// NewRedactor creates a Redactor pre-loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	r := &Redactor{}
	for _, p := range DefaultPatterns() {
		r.rules = append(r.rules, rule{pattern: p, replace: RedactPlaceholder})
	}
	// Keep the scheme and user of connection strings readable.
	r.rules = append(r.rules, rule{
		pattern: regexp.MustCompile(`([a-z][a-z0-9+.-]*://[^:/@\s]+):[^@\s]+@`),
		replace: "${1}:" + RedactPlaceholder + "@",
	})
	return r
}

// AddPattern adds a compiled regex pattern whose matches are replaced whole.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{pattern: pattern, replace: RedactPlaceholder})
}

// AddLiteral adds a literal secret value that should be redacted on sight.
// Empty strings and duplicates are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lit := range r.literals {
		if lit == secret {
			return
		}
	}
	r.literals = append(r.literals, secret)
}

// Redact replaces all known secret patterns and literal values in s
// with RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	rules := r.rules
	literals := r.literals
	r.mu.RUnlock()

	// Literals first: a registered token is replaced whole even when a
	// pattern would only match part of it.
	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}
	for _, rl := range rules {
		s = rl.pattern.ReplaceAllString(s, rl.replace)
	}
	return s
}

// RedactMap walks a decoded YAML or JSON document and replaces string
// values whose keys look like secrets. Other strings go through Redact.
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		if secretKeyPattern.MatchString(k) {
			if s, ok := v.(string); ok && s != "" {
				m[k] = RedactPlaceholder
				continue
			}
		}
		switch val := v.(type) {
		case map[string]any:
			r.RedactMap(val)
		case []any:
			for _, item := range val {
				if sub, ok := item.(map[string]any); ok {
					r.RedactMap(sub)
				}
			}
		case string:
			if redacted := r.Redact(val); redacted != val {
				m[k] = redacted
			}
		}
	}
}

// DefaultPatterns returns compiled regex patterns for token formats tgrelay
// handles.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Telegram bot token: <bot id>:<35 char secret>, also inside API URLs.
		regexp.MustCompile(`\d{6,12}:[A-Za-z0-9_-]{30,}`),
		// HTTP bearer credentials.
		regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]{8,}`),
	}
}
