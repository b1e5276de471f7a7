package dirs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSaveDirectory(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	abs := t.TempDir()
	got, err := GetSaveDirectory(abs)
	require.NoError(t, err)
	assert.Equal(t, abs, got)

	got, err = GetSaveDirectory("downloads")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "downloads"), got)

	got, err = GetSaveDirectory("")
	require.NoError(t, err)
	assert.Equal(t, cwd, got)
}

func TestSeriesDirectory(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "Frieren"), SeriesDirectory("out", "Frieren"))
	assert.Equal(t, "out", SeriesDirectory("out", ""))
}
