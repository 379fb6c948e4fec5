package services

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"
)

var manifestURL = regexp.MustCompile(`https?://[\w\-.~:?#\[\]@!$&'()*+,;=%/]+`)

// ExtractManifestURL decodes a base64 manifest and returns the first stream URL in it.
//
// JSON manifests yield urls[0]; anything else is scanned for the first http(s) URL.
// Undecodable manifests yield "".
func ExtractManifestURL(manifest string) string {
	decoded, ok := decodeBase64(strings.TrimSpace(manifest))
	if !ok {
		return ""
	}

	var parsed struct {
		URLs []string `json:"urls"`
	}
	if err := json.Unmarshal(decoded, &parsed); err == nil && len(parsed.URLs) > 0 && parsed.URLs[0] != "" {
		return parsed.URLs[0]
	}

	return manifestURL.FindString(string(decoded))
}

func decodeBase64(s string) ([]byte, bool) {
	if s == "" {
		return nil, false
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, true
		}
	}
	return nil, false
}
