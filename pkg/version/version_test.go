package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	old, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = old, oldCommit })

	Version, Commit = "v1.2.3", ""
	assert.Equal(t, "v1.2.3", String())
	assert.Equal(t, "v1.2.3", Full())

	Commit = "abc123"
	assert.Equal(t, "v1.2.3 (abc123)", Full())

	Version = ""
	assert.NotEmpty(t, String())
}
