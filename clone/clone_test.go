package clone_test

import (
	"testing"

	"github.com/runabol/mountflow/clone"
	"github.com/stretchr/testify/assert"
)

func TestCloneStringMap(t *testing.T) {
	m := map[string]string{
		"ke1": "val1",
	}
	c := clone.CloneStringMap(m)
	assert.Equal(t, m, c)
	m["key2"] = "val2"
	assert.NotEqual(t, m, c)
}

func TestCloneStringMapNil(t *testing.T) {
	assert.Nil(t, clone.CloneStringMap(nil))
}

func TestCloneAnyMap(t *testing.T) {
	m := map[string]any{
		"region":   "us-east-1",
		"max_ttl":  60,
		"policies": []string{"default"},
		"nested":   map[string]any{"a": "b"},
	}
	c := clone.CloneAnyMap(m)
	assert.Equal(t, m, c)

	m["policies"].([]string)[0] = "admin"
	m["nested"].(map[string]any)["a"] = "c"
	assert.Equal(t, []string{"default"}, c["policies"])
	assert.Equal(t, "b", c["nested"].(map[string]any)["a"])
}
