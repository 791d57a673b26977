package redact

import (
	"strings"

	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/internal/wildcard"
)

const (
	redactedStr = "[REDACTED]"
)

type Redacter struct {
	matchers []Matcher
}

func NewRedacter(matchers ...Matcher) *Redacter {
	if len(matchers) == 0 {
		matchers = defaultMatchers
	}
	return &Redacter{
		matchers: matchers,
	}
}

type Matcher func(string) bool

var defaultMatchers = []Matcher{
	Contains("SECRET"),
	Contains("PASSWORD"),
	Contains("BINDPASS"),
	Contains("ACCESS_KEY"),
	Contains("CREDENTIALS"),
	Contains("JWT"),
	Wildcard("*token"),
	Wildcard("*_key"),
}

func Contains(substr string) func(s string) bool {
	return func(s string) bool {
		return strings.Contains(strings.ToUpper(s), strings.ToUpper(substr))
	}
}

func Wildcard(pattern string) func(s string) bool {
	return func(s string) bool {
		return wildcard.Match(pattern, strings.ToLower(s))
	}
}

// RedactConfig returns a copy of c with the values of
// sensitive fields replaced.
func (r *Redacter) RedactConfig(c *mountflow.BackendConfig) *mountflow.BackendConfig {
	if c == nil {
		return nil
	}
	redacted := c.Clone()
	redacted.Fields = r.redactVars(redacted.Fields)
	return redacted
}

// RedactHeaders returns a copy of the headers with the
// values of sensitive headers replaced.
func (r *Redacter) RedactHeaders(h map[string]string) map[string]string {
	redacted := make(map[string]string, len(h))
	for k, v := range h {
		if r.matches(k) {
			v = redactedStr
		}
		redacted[k] = v
	}
	return redacted
}

// IsSensitive reports whether the value of a field or header
// named k must not be shown.
func (r *Redacter) IsSensitive(k string) bool {
	return r.matches(k)
}

func (r *Redacter) matches(k string) bool {
	for _, m := range r.matchers {
		if m(k) {
			return true
		}
	}
	return false
}

func (r *Redacter) redactVars(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	redacted := make(map[string]any, len(m))
	for k, v := range m {
		switch {
		case r.matches(k):
			v = redactedStr
		default:
			if nested, ok := v.(map[string]any); ok {
				v = r.redactVars(nested)
			}
		}
		redacted[k] = v
	}
	return redacted
}
