package catalog

import (
	"testing"

	"github.com/runabol/mountflow"
	"github.com/stretchr/testify/assert"
)

func TestResolveApprole(t *testing.T) {
	ct, ok := ResolveConfigType(mountflow.CategoryAuth, "approle")
	assert.False(t, ok)
	assert.Empty(t, ct)
}

func TestResolveAWS(t *testing.T) {
	ct, ok := ResolveConfigType(mountflow.CategoryAuth, "aws")
	assert.True(t, ok)
	assert.Equal(t, "auth-config/aws/client", ct)
}

func TestResolveGeneric(t *testing.T) {
	ct, ok := ResolveConfigType(mountflow.CategoryAuth, "ssh")
	assert.True(t, ok)
	assert.Equal(t, "auth-config/ssh", ct)

	ct, ok = ResolveConfigType(mountflow.CategoryAuth, "userpass")
	assert.True(t, ok)
	assert.Equal(t, "auth-config/userpass", ct)
}

func TestResolveSecretNeverConfigured(t *testing.T) {
	for _, b := range append(Backends(mountflow.CategorySecret), Backends(mountflow.CategoryAuth)...) {
		ct, ok := ResolveConfigType(mountflow.CategorySecret, string(b.Type))
		assert.False(t, ok)
		assert.Empty(t, ct)
	}
}

func TestResolveEmptyType(t *testing.T) {
	_, ok := ResolveConfigType(mountflow.CategoryAuth, "")
	assert.False(t, ok)
}
