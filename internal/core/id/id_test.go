package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IsVersion7AndOrdered(t *testing.T) {
	a := New()
	b := New()

	assert.Equal(t, 7, int(a.Version()))
	assert.False(t, IsNil(a))
	assert.LessOrEqual(t, a.String()[:8], b.String()[:8])
}

func TestParse_RoundTrip(t *testing.T) {
	run := NewRun()
	parsed, err := Parse(run)
	require.NoError(t, err)
	assert.Equal(t, run, parsed.String())

	_, err = Parse("not-a-uuid")
	assert.Error(t, err)
}
