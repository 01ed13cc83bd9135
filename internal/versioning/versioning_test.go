package versioning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFile_IsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.py")
	require.NoError(t, os.WriteFile(path, []byte("print('hello')\n"), 0o644))

	first, err := HashFile(path)
	require.NoError(t, err)
	second, err := HashFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestHashFile_DiffersByContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("two"), 0o644))

	ha, err := HashFile(a)
	require.NoError(t, err)
	hb, err := HashFile(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestHashFile_MissingFile(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestDefaultVersion_NeverEmpty(t *testing.T) {
	assert.NotEmpty(t, DefaultVersion())
}
