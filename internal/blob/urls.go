package blob

import (
	"fmt"
	"strings"
)

// Note image attachments are stored as a single comma-joined string column.
// The list is ordered and no element may contain the delimiter; these two
// functions are the only place the encoding lives.

func EncodeImageList(urls []string) (string, error) {
	cleaned := make([]string, 0, len(urls))
	for _, raw := range urls {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if strings.Contains(trimmed, ",") {
			return "", fmt.Errorf("image url contains delimiter: %q", trimmed)
		}
		cleaned = append(cleaned, trimmed)
	}
	return strings.Join(cleaned, ","), nil
}

func DecodeImageList(field string) []string {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	parts := strings.Split(field, ",")
	urls := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}

// BucketForURL maps a stored attachment URL back to the bucket it lives in.
func BucketForURL(rawURL string) string {
	switch {
	case strings.Contains(rawURL, "/"+BucketAvatars+"/"):
		return BucketAvatars
	case strings.Contains(rawURL, "/"+BucketNoteImages+"/"):
		return BucketNoteImages
	default:
		return BucketDefault
	}
}

// ObjectKeyFromURL extracts the object key: the last path segment with any
// query string stripped. Returns "" when the URL has no path.
func ObjectKeyFromURL(rawURL string) string {
	withoutQuery := rawURL
	if idx := strings.IndexByte(withoutQuery, '?'); idx >= 0 {
		withoutQuery = withoutQuery[:idx]
	}
	idx := strings.LastIndexByte(withoutQuery, '/')
	if idx < 0 || idx == len(withoutQuery)-1 {
		return ""
	}
	return withoutQuery[idx+1:]
}
