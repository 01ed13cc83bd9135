package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI_OpaqueForm(t *testing.T) {
	uri, err := ParseURI("file:results.json")
	require.NoError(t, err)
	assert.Equal(t, "file", uri.Scheme)
	assert.Equal(t, "results.json", uri.Path)
	assert.Equal(t, "results.json", uri.Location())
}

func TestParseURI_AddressForm(t *testing.T) {
	uri, err := ParseURI("file:///tmp/results.json")
	require.NoError(t, err)
	assert.Equal(t, "file", uri.Scheme)
	assert.Equal(t, "/tmp/results.json", uri.Address)
	assert.Equal(t, "/tmp/results.json", uri.Location())
}

func TestParseURI_MissingScheme(t *testing.T) {
	_, err := ParseURI("results.json")
	assert.Error(t, err)

	_, err = ParseURI(":results.json")
	assert.Error(t, err)
}

func TestSubstituteProject(t *testing.T) {
	got := SubstituteProject("file://${project}.json", "mnist")
	assert.Equal(t, "file://mnist.json", got)

	// Without a project name the placeholder stays.
	got = SubstituteProject("file://${project}.json", "")
	assert.Equal(t, "file://${project}.json", got)
}

func TestOpen_UnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "gopher://results")
	assert.ErrorIs(t, err, ErrUnknownScheme)
}

func TestOpen_DispatchesOnScheme(t *testing.T) {
	s, err := Open(context.Background(), "memory://")
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.(*MemoryStorage)
	assert.True(t, ok)
}

func TestSchemes_ListsRegisteredBackends(t *testing.T) {
	schemes := Schemes()
	assert.Contains(t, schemes, "file")
	assert.Contains(t, schemes, "memory")
	assert.Contains(t, schemes, "sqlite")
	assert.Contains(t, schemes, "libsql")
	assert.Contains(t, schemes, "mysql")
	assert.Contains(t, schemes, "pebble")
}
