package redact

import (
	"testing"

	"github.com/runabol/mountflow"
	"github.com/stretchr/testify/assert"
)

func TestRedactConfig(t *testing.T) {
	r := NewRedacter()
	c := &mountflow.BackendConfig{
		Type: "auth-config/aws/client",
		Fields: map[string]any{
			"access_key":         "AKIA...",
			"secret_key":         "shhhhh",
			"region":             "us-east-1",
			"api_token":          "tok",
			"token_ttl":          "1h",
			"bindpass":           "pass",
			"token_reviewer_jwt": "eyJ...",
			"nested": map[string]any{
				"PASSword": "password",
				"harmless": "hello world",
			},
		},
	}
	redacted := r.RedactConfig(c)
	assert.Equal(t, "[REDACTED]", redacted.Fields["access_key"])
	assert.Equal(t, "[REDACTED]", redacted.Fields["secret_key"])
	assert.Equal(t, "us-east-1", redacted.Fields["region"])
	assert.Equal(t, "[REDACTED]", redacted.Fields["api_token"])
	assert.Equal(t, "1h", redacted.Fields["token_ttl"])
	assert.Equal(t, "[REDACTED]", redacted.Fields["bindpass"])
	assert.Equal(t, "[REDACTED]", redacted.Fields["token_reviewer_jwt"])
	nested := redacted.Fields["nested"].(map[string]any)
	assert.Equal(t, "[REDACTED]", nested["PASSword"])
	assert.Equal(t, "hello world", nested["harmless"])
	// the original is left alone
	assert.Equal(t, "shhhhh", c.Fields["secret_key"])
	assert.Nil(t, r.RedactConfig(nil))
}

func TestRedactCustomMatchers(t *testing.T) {
	r := NewRedacter(Wildcard("org*"))
	c := &mountflow.BackendConfig{Fields: map[string]any{
		"organization": "acme",
		"secret":       "not matched",
	}}
	redacted := r.RedactConfig(c)
	assert.Equal(t, "[REDACTED]", redacted.Fields["organization"])
	assert.Equal(t, "not matched", redacted.Fields["secret"])
}

func TestRedactHeaders(t *testing.T) {
	r := NewRedacter()
	h := r.RedactHeaders(map[string]string{"X-Vault-Token": "s.123", "Accept": "json"})
	assert.Equal(t, "[REDACTED]", h["X-Vault-Token"])
	assert.Equal(t, "json", h["Accept"])
}
