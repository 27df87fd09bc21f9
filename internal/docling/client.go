// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docling is an HTTP client for the docling-serve REST API.
// The service owns the request/response schema; this client only knows
// how to submit one document and extract the Markdown from the reply.
package docling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const convertPath = "/v1/convert/file"

// Client submits documents to a running docling-serve instance. One
// request is one file; the client applies a per-file timeout and never
// retries — continuing past a failed file is the batch loop's decision.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the service at baseURL. timeout bounds each
// conversion request end to end.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Convert uploads the file at path and returns the converted Markdown.
func (c *Client) Convert(ctx context.Context, path string) (string, error) {
	body, contentType, err := buildRequestBody(path)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+convertPath, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("conversion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(detail))
		if msg == "" {
			msg = "conversion failed"
		}
		return "", fmt.Errorf("conversion service returned HTTP %d: %s", resp.StatusCode, msg)
	}

	var data any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("parsing conversion response: %w", err)
	}

	content, ok := extractContent(data)
	if !ok {
		return "", fmt.Errorf("unexpected response format from conversion service")
	}
	return content, nil
}

// buildRequestBody assembles the multipart form: the file under the
// "files" field plus the target format and OCR options.
func buildRequestBody(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="files"; filename=%q`, filepath.Base(path)))
	h.Set("Content-Type", mimeType(path))
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("building upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}

	if err := mw.WriteField("to_formats", "md"); err != nil {
		return nil, "", fmt.Errorf("building upload: %w", err)
	}
	if err := mw.WriteField("do_ocr", "true"); err != nil {
		return nil, "", fmt.Errorf("building upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("building upload: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func mimeType(path string) string {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

// extractContent pulls the Markdown text out of the service reply. The
// API has shipped several shapes: {"document":{"md_content":...}},
// {"document":{"content":...}}, a bare {"content":...}, and
// single-element list wrappers around each. An empty document is a valid
// result; ok is false only when the reply has none of these shapes.
func extractContent(data any) (content string, ok bool) {
	switch v := data.(type) {
	case map[string]any:
		if doc, found := v["document"].(map[string]any); found {
			if s, _ := doc["md_content"].(string); s != "" {
				return s, true
			}
			s, _ := doc["content"].(string)
			return s, true
		}
		s, _ := v["content"].(string)
		return s, true
	case []any:
		if len(v) == 0 {
			return "", false
		}
		return extractContent(v[0])
	default:
		return "", false
	}
}
