package httpx

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListening(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	assert.True(t, listening(addr))
	assert.NoError(t, ln.Close())
	assert.False(t, listening(addr))
}
