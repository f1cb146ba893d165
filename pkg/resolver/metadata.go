package resolver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/arcade-market/media-api/pkg/gateway"
)

// DefaultMaxDocumentBytes caps the size of a metadata document
const DefaultMaxDocumentBytes = 2 << 20

// errDocumentTooLarge is returned when a document exceeds the size cap
var errDocumentTooLarge = errors.New("metadata document too large")

// imageKeys are the top-level fields checked for an image reference, in priority order
var imageKeys = []string{"image", "image_url", "imageUri", "imageUrl", "image_uri"}

// mediaKeys are the fields of a media entry object that can carry its location
var mediaKeys = []string{"uri", "url", "gateway", "raw", "src"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Document is a fetched metadata response
type Document struct {
	URL         string // final URL after redirects
	StatusCode  int
	ContentType string
	Body        []byte
}

// MetadataResolver fetches JSON metadata documents and extracts the image they point at.
// Values that point at another indirection layer are resolved again by the engine.
type MetadataResolver struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	engine   *Engine
}

// NewMetadataResolver creates a resolver; timeout bounds each document fetch including the body
func NewMetadataResolver(client *http.Client, timeout time.Duration) *MetadataResolver {
	if client == nil {
		client = gateway.NewHTTPClient(gateway.ClientConfig{})
	}
	return &MetadataResolver{
		client:   client,
		timeout:  timeout,
		maxBytes: DefaultMaxDocumentBytes,
	}
}

// ResolveFromDocument fetches the document at url and resolves the image it references.
// It returns false when the document cannot be fetched, parsed or yields no image.
func (m *MetadataResolver) ResolveFromDocument(ctx context.Context, url string, tokenID *big.Int) (string, bool) {
	if m.engine == nil {
		return "", false
	}
	r, err := m.engine.newRun(tokenID, Options{})
	if err != nil {
		return "", false
	}
	return r.followCandidate(ctx, gateway.Candidate{URL: url})
}

// Fetch performs a full GET of a candidate bounded by the resolver timeout and size cap.
// Transport failures are returned as errors; HTTP statuses are reported on the document.
func (m *MetadataResolver) Fetch(ctx context.Context, c gateway.Candidate) (*Document, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	if err := c.Mirror.Wait(ctx); err != nil {
		return nil, fmt.Errorf("limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, */*;q=0.8")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc := &Document{
		URL:         c.URL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		doc.URL = resp.Request.URL.String()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return doc, nil
	}
	// Image bodies are never parsed
	if gateway.Classify(resp.StatusCode, doc.ContentType) == gateway.ClassImage {
		return doc, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, m.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > m.maxBytes {
		return doc, errDocumentTooLarge
	}
	doc.Body = body
	return doc, nil
}

// ParseDocument decodes a metadata body. Bodies that are not strict JSON get a second,
// lenient pass with the BOM and surrounding whitespace trimmed and comments and trailing commas removed.
func ParseDocument(body []byte) (map[string]any, error) {
	var fields map[string]any
	err := json.Unmarshal(body, &fields)
	if err == nil {
		return fields, nil
	}

	cleaned := bytes.TrimSpace(bytes.TrimPrefix(bytes.TrimSpace(body), utf8BOM))
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("empty metadata document: %w", err)
	}
	if lenientErr := json.Unmarshal(jsonc.ToJSON(cleaned), &fields); lenientErr != nil {
		return nil, fmt.Errorf("malformed metadata document: %w", lenientErr)
	}
	return fields, nil
}

// ExtractImage returns the first non-empty image reference in a document
func ExtractImage(fields map[string]any) (string, bool) {
	for _, key := range imageKeys {
		if s, ok := stringField(fields, key); ok {
			return s, true
		}
	}

	properties, _ := fields["properties"].(map[string]any)
	if s, ok := stringField(properties, "image"); ok {
		return s, true
	}

	if s, ok := fromMedia(fields["media"]); ok {
		return s, true
	}

	if files, ok := properties["files"].([]any); ok {
		for _, f := range files {
			file, ok := f.(map[string]any)
			if !ok {
				continue
			}
			fileType, _ := file["type"].(string)
			if !strings.HasPrefix(strings.ToLower(fileType), "image") {
				continue
			}
			if s, ok := firstString(file, mediaKeys); ok {
				return s, true
			}
		}
	}

	if s, ok := stringField(fields, "image_data"); ok {
		return inlineImage(s), true
	}

	return "", false
}

// fromMedia reads a media field that is either a string, an object or a list of either
func fromMedia(v any) (string, bool) {
	switch media := v.(type) {
	case string:
		if s := strings.TrimSpace(media); s != "" {
			return s, true
		}
	case map[string]any:
		return firstString(media, mediaKeys)
	case []any:
		for _, item := range media {
			if s, ok := fromMedia(item); ok {
				return s, true
			}
		}
	}
	return "", false
}

// inlineImage turns raw image_data into something a display surface can load
func inlineImage(s string) string {
	if strings.HasPrefix(s, "data:") {
		return s
	}
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "<svg") || strings.HasPrefix(trimmed, "<?xml") {
		return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(trimmed))
	}
	return s
}

func firstString(fields map[string]any, keys []string) (string, bool) {
	for _, key := range keys {
		if s, ok := stringField(fields, key); ok {
			return s, true
		}
	}
	return "", false
}

func stringField(fields map[string]any, key string) (string, bool) {
	if fields == nil {
		return "", false
	}
	s, ok := fields[key].(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
