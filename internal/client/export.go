// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/mvgen/internal/imagegen"
	"github.com/google/renameio/v2"
)

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ExportImages writes every data URL in images to dir as scene-NN.<ext>,
// numbered by position. Placeholders ("") and non-data references are
// skipped. Files are replaced atomically.
func ExportImages(dir string, images []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	var written []string
	for i, ref := range images {
		if !strings.HasPrefix(ref, "data:") {
			continue
		}
		mime, data, err := imagegen.DecodeDataURL(ref)
		if err != nil {
			return written, fmt.Errorf("scene %d: %w", i+1, err)
		}
		ext, ok := extensions[mime]
		if !ok {
			ext = ".bin"
		}
		path := filepath.Join(dir, fmt.Sprintf("scene-%02d%s", i+1, ext))
		if err := renameio.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
