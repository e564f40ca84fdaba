package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maxAssetBytes = 4 << 20

// asset is a loaded image and the fpdf type name for it.
type asset struct {
	name string
	kind string
	data []byte
}

// loadAsset reads an image from a path or http(s) URL within timeout.
func loadAsset(ctx context.Context, src string, timeout time.Duration) (*asset, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		data        []byte
		contentType string
		err         error
	}
	done := make(chan result, 1)
	go func() {
		var res result
		if isURL(src) {
			res.data, res.contentType, res.err = fetch(ctx, src)
		} else {
			res.data, res.err = readFile(src)
		}
		done <- res
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrAssetTimeout, src)
		}
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", ErrAssetTimeout, src)
			}
			return nil, res.err
		}
		kind := imageKind(src, res.contentType, res.data)
		if kind == "" {
			return nil, fmt.Errorf("unsupported image format: %s", src)
		}
		return &asset{name: "logo", kind: kind, data: res.data}, nil
	}
}

func isURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

func fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build asset request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch asset: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read asset: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open asset: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxAssetBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read asset: %w", err)
	}
	return data, nil
}

// imageKind picks the fpdf image type from the extension, content type or
// magic bytes, in that order.
func imageKind(src, contentType string, data []byte) string {
	switch strings.ToLower(filepath.Ext(src)) {
	case ".png":
		return "PNG"
	case ".jpg", ".jpeg":
		return "JPG"
	case ".gif":
		return "GIF"
	}
	switch {
	case strings.Contains(contentType, "png"):
		return "PNG"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return "JPG"
	case strings.Contains(contentType, "gif"):
		return "GIF"
	}
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return "PNG"
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8}):
		return "JPG"
	case bytes.HasPrefix(data, []byte("GIF8")):
		return "GIF"
	}
	return ""
}
