package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/shared"
)

type payloadKind int

const (
	objectPayload payloadKind = iota
	listPayload
)

// object is a JSON object whose values are decoded lazily.
type object map[string]json.RawMessage

// payload is a catalog response body resolved once into list or object form.
type payload struct {
	kind   payloadKind
	object object
	list   []json.RawMessage
}

func decodePayload(body []byte) (payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return payload{}, fmt.Errorf("%w: empty body", shared.ErrInvalidPayload)
	}

	switch trimmed[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return payload{}, fmt.Errorf("%w: %v", shared.ErrInvalidPayload, err)
		}
		return payload{kind: listPayload, list: list}, nil
	case '{':
		var obj object
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return payload{}, fmt.Errorf("%w: %v", shared.ErrInvalidPayload, err)
		}
		return payload{kind: objectPayload, object: obj}, nil
	default:
		return payload{}, fmt.Errorf("%w: body is neither list nor object", shared.ErrInvalidPayload)
	}
}

// at returns the i-th list element or nil.
func (p payload) at(i int) json.RawMessage {
	if p.kind != listPayload || i < 0 || i >= len(p.list) {
		return nil
	}
	return p.list[i]
}

func asObject(raw json.RawMessage) (object, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func asList(raw json.RawMessage) ([]json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil || list == nil {
		return nil, false
	}
	return list, true
}

func asString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// asInt accepts JSON numbers and numeric strings.
func asInt(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	}
	if s, ok := asString(raw); ok {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

func (o object) str(key string) string {
	s, _ := asString(o[key])
	return s
}

func (o object) num(key string) int64 {
	n, _ := asInt(o[key])
	return n
}

// name reads key as a plain string or as an object carrying a "name" or "title".
func (o object) name(key string) string {
	if s, ok := asString(o[key]); ok {
		return s
	}
	if nested, ok := asObject(o[key]); ok {
		if s := nested.str("name"); s != "" {
			return s
		}
		return nested.str("title")
	}
	return ""
}

// parseTrack normalizes a catalog track item. Items without an id or title are rejected.
func parseTrack(raw json.RawMessage) (models.Track, bool) {
	item, ok := asObject(raw)
	if !ok {
		return models.Track{}, false
	}

	id := item.num("id")
	title := item.str("title")
	if id == 0 || title == "" {
		return models.Track{}, false
	}

	track := models.Track{
		ID:       id,
		Title:    title,
		Duration: int(item.num("duration")),
		Quality:  item.str("audioQuality"),
	}
	if track.Quality == "" {
		track.Quality = models.DefaultQuality
	}

	if artists, ok := asList(item["artists"]); ok && len(artists) > 0 {
		if first, ok := asObject(artists[0]); ok {
			track.Artist = first.str("name")
		} else if s, ok := asString(artists[0]); ok {
			track.Artist = s
		}
	} else {
		track.Artist = item.name("artist")
	}

	if album, ok := asObject(item["album"]); ok {
		track.Album = album.str("title")
		track.CoverID = album.str("cover")
	}

	return track, true
}

// searchItems locates the result list in any of the known search response shapes.
func searchItems(p payload) []json.RawMessage {
	if p.kind == listPayload {
		return p.list
	}
	if raw, ok := p.object["tracks"]; ok {
		if tracks, ok := asObject(raw); ok {
			items, _ := asList(tracks["items"])
			return items
		}
		items, _ := asList(raw)
		return items
	}
	items, _ := asList(p.object["items"])
	return items
}
