package simple

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyAllow(t *testing.T) {
	t.Parallel()

	p := New([]string{"Example.com", " self.snaps ", ""})
	assert.True(t, p.Allow("example.com"))
	assert.True(t, p.Allow("EXAMPLE.COM"))
	assert.True(t, p.Allow("self.snaps"))
	assert.False(t, p.Allow("www.example.com"), "subdomains are not implied")
	assert.False(t, p.Allow(""))
}

func TestPolicyAll(t *testing.T) {
	t.Parallel()

	p := New([]string{"ALL"})
	assert.True(t, p.Allow("anything.org"))
}

func TestPolicyEmpty(t *testing.T) {
	t.Parallel()

	assert.False(t, New(nil).Allow("example.com"))
	var nilPolicy *Policy
	assert.False(t, nilPolicy.Allow("example.com"))
}
