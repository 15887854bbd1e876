// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	images := []string{
		"data:image/png;base64,iVBORw==",
		"",
		"https://example.com/remote.png",
		"data:image/jpeg;base64,/9j/",
	}

	paths, err := ExportImages(dir, images)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "scene-01.png"),
		filepath.Join(dir, "scene-04.jpg"),
	}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)

	// Re-export replaces in place.
	_, err = ExportImages(dir, images)
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestExportImagesRejectsBrokenData(t *testing.T) {
	_, err := ExportImages(t.TempDir(), []string{"data:image/png;base64,!!!"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scene 1")
}
