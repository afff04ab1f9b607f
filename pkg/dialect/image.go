package dialect

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

var (
	dataURLPattern   = regexp.MustCompile(`^data:([^;,]+)?(?:;charset=[^;,]+)?;base64,(.+)$`)
	rawBase64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)
)

// MaxGeminiInlineImageBytes caps a remote image fetch for Gemini inlining.
const MaxGeminiInlineImageBytes = 8 * 1024 * 1024

// ImageRef is a normalized image reference: either a URL to pass through
// or inline base64 data with a media type.
type ImageRef struct {
	IsDataURL bool
	MediaType string
	Base64    string
	URL       string
}

// ClassifyImage sniffs a raw image_url value: a data URL, else a bare
// base64 blob (mime defaults to image/png), else a pass-through URL.
func ClassifyImage(value string) ImageRef {
	trimmed := strings.TrimSpace(value)

	if m := dataURLPattern.FindStringSubmatch(trimmed); m != nil {
		mediaType := m[1]
		if mediaType == "" {
			mediaType = "image/png"
		}
		return ImageRef{IsDataURL: true, MediaType: mediaType, Base64: m[2]}
	}

	if len(trimmed) >= 40 && rawBase64Pattern.MatchString(trimmed) {
		return ImageRef{IsDataURL: true, MediaType: "image/png", Base64: trimmed}
	}

	return ImageRef{URL: value}
}

// DataURL renders the ref as a data: URL string.
func (r ImageRef) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", r.MediaType, r.Base64)
}

// InlineForGemini resolves a ref to inline base64 data suitable for a
// Gemini inlineData part, fetching remote http(s) URLs once and capping
// the body at MaxGeminiInlineImageBytes.
func InlineForGemini(client *http.Client, ref ImageRef) (mediaType, b64 string, err error) {
	if ref.IsDataURL {
		return ref.MediaType, ref.Base64, nil
	}
	if !strings.HasPrefix(ref.URL, "http://") && !strings.HasPrefix(ref.URL, "https://") {
		return "", "", fmt.Errorf("dialect: cannot inline non-http image url %q", ref.URL)
	}

	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Get(ref.URL)
	if err != nil {
		return "", "", fmt.Errorf("dialect: fetch image: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxGeminiInlineImageBytes+1))
	if err != nil {
		return "", "", fmt.Errorf("dialect: read image body: %w", err)
	}
	if len(body) > MaxGeminiInlineImageBytes {
		body = body[:MaxGeminiInlineImageBytes]
	}

	mt := resp.Header.Get("Content-Type")
	if mt == "" {
		mt = "image/png"
	}
	return mt, base64.StdEncoding.EncodeToString(body), nil
}
