// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxReferenceBytes = 20 << 20

type reference struct {
	mimeType string
	data     string // base64
}

func referenceKind(ref string) string {
	if strings.HasPrefix(ref, "data:") {
		return "data"
	}
	return "url"
}

// loadReference resolves a data: URL in place or downloads an http(s) URL.
func (c *Client) loadReference(ctx context.Context, ref string) (reference, error) {
	if strings.HasPrefix(ref, "data:") {
		return parseDataURL(ref)
	}

	u, err := url.Parse(ref)
	if err != nil {
		return reference{}, fmt.Errorf("parse reference url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return reference{}, fmt.Errorf("unsupported reference scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return reference{}, err
	}
	resp, err := c.refClient.Do(req)
	if err != nil {
		return reference{}, fmt.Errorf("fetch reference: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return reference{}, fmt.Errorf("fetch reference: unexpected status %s", resp.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReferenceBytes+1))
	if err != nil {
		return reference{}, fmt.Errorf("read reference: %w", err)
	}
	if len(raw) > maxReferenceBytes {
		return reference{}, errors.New("reference image too large")
	}
	if len(raw) == 0 {
		return reference{}, errors.New("reference image is empty")
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(raw)
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return reference{mimeType: mime, data: base64.StdEncoding.EncodeToString(raw)}, nil
}

// parseDataURL splits a base64 data: URL into mime type and payload.
func parseDataURL(ref string) (reference, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return reference{}, errors.New("malformed data url")
	}
	mime, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return reference{}, errors.New("data url is not base64 encoded")
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return reference{}, fmt.Errorf("decode data url: %w", err)
	}
	if mime == "" {
		mime = "image/jpeg"
	}
	return reference{mimeType: mime, data: payload}, nil
}

// DecodeDataURL returns the mime type and raw bytes of a base64 data: URL.
func DecodeDataURL(ref string) (string, []byte, error) {
	if !strings.HasPrefix(ref, "data:") {
		return "", nil, errors.New("not a data url")
	}
	r, err := parseDataURL(ref)
	if err != nil {
		return "", nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(r.data)
	if err != nil {
		return "", nil, err
	}
	return r.mimeType, raw, nil
}
