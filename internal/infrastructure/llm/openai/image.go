package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const maxInlineImageBytes = 20 << 20

// resolveImageRef turns references the vision API cannot reach into inlined
// base64 data URLs: plain file paths are read from disk, and URLs pointing
// at loopback or private dev hosts are fetched locally first. Publicly
// reachable URLs pass through unchanged.
func resolveImageRef(ctx context.Context, client *http.Client, ref string) (string, error) {
	if strings.HasPrefix(ref, "data:") {
		return ref, nil
	}

	parsed, err := url.Parse(ref)
	if err != nil || parsed.Scheme == "" {
		return inlineFile(ref)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported image ref scheme %q", parsed.Scheme)
	}
	if !isLocalHost(parsed.Hostname()) {
		return ref, nil
	}
	return inlineURL(ctx, client, ref)
}

func isLocalHost(host string) bool {
	switch {
	case host == "localhost", host == "127.0.0.1", host == "::1":
		return true
	case strings.HasSuffix(host, ".local"), strings.HasSuffix(host, ".internal"):
		return true
	default:
		return false
	}
}

func inlineFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat image file: %w", err)
	}
	if info.Size() > maxInlineImageBytes {
		return "", fmt.Errorf("image file %d bytes exceeds inline limit", info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image file: %w", err)
	}
	return dataURL(data, mimeTypeForPath(path)), nil
}

func inlineURL(ctx context.Context, client *http.Client, ref string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", fmt.Errorf("build image fetch: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch local image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch local image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxInlineImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read local image: %w", err)
	}
	if len(data) > maxInlineImageBytes {
		return "", fmt.Errorf("local image exceeds inline limit")
	}
	mt := resp.Header.Get("Content-Type")
	if mt == "" {
		mt = mimeTypeForPath(ref)
	}
	return dataURL(data, mt), nil
}

func mimeTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	switch strings.TrimPrefix(ext, ".") {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

func dataURL(data []byte, mimeType string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
