// Package tagging writes Vorbis comments and cover art into downloaded FLAC files.
package tagging

import (
	"errors"
	"fmt"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/flacsync/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

const (
	FieldTrackID        = "TRACK_ID"
	FieldTitle          = "TITLE"
	FieldArtist         = "ARTIST"
	FieldAlbum          = "ALBUM"
	FieldDateDownloaded = "DATE_DOWNLOADED"
)

var ErrNoTrackID = errors.New("file has no TRACK_ID tag")

// TagInfo is what gets written into a file. Empty Album and CoverPath are skipped.
type TagInfo struct {
	TrackID   int64
	Title     string
	Artist    string
	Album     string
	CoverPath string
}

// Tagger embeds metadata into audio files.
type Tagger interface {
	Embed(path string, info TagInfo) error
	TrackID(path string) (int64, error)
}

// FLACTagger implements [Tagger] for FLAC files.
type FLACTagger struct {
	logger *log.Logger
	now    func() time.Time
}

func NewFLACTagger(logger *log.Logger) *FLACTagger {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &FLACTagger{logger: shared.WithLogger(logger, "component", "tagger"), now: time.Now}
}

// Embed replaces the managed comment fields, keeps any other existing comments, and
// swaps in the cover as the front-cover picture. A cover that cannot be read is
// logged and skipped. The file is rewritten through a temp file and rename.
func (t *FLACTagger) Embed(path string, info TagInfo) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("failed to parse flac file: %w", err)
	}

	comment, err := t.comment(f, info)
	if err != nil {
		return err
	}

	var picture *flac.MetaDataBlock
	if info.CoverPath != "" {
		picture = t.picture(info.CoverPath)
	}

	meta := make([]*flac.MetaDataBlock, 0, len(f.Meta)+2)
	for _, block := range f.Meta {
		switch {
		case block.Type == flac.VorbisComment:
			continue
		case block.Type == flac.Picture && picture != nil:
			continue
		}
		meta = append(meta, block)
	}
	meta = append(meta, comment)
	if picture != nil {
		meta = append(meta, picture)
	}
	f.Meta = meta

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tagging")
	if err := f.Save(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write tags: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace file: %w", err)
	}

	t.logger.Debug("tags saved", "file", filepath.Base(path), "track_id", info.TrackID, "cover", picture != nil)
	return nil
}

func (t *FLACTagger) comment(f *flac.File, info TagInfo) (*flac.MetaDataBlock, error) {
	managed := map[string]bool{
		FieldTrackID: true, FieldTitle: true, FieldArtist: true, FieldDateDownloaded: true,
	}
	if info.Album != "" {
		managed[FieldAlbum] = true
	}

	cmt := flacvorbis.New()
	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		existing, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			t.logger.Warn("dropping unreadable vorbis comment block", "error", err)
			continue
		}
		for _, entry := range existing.Comments {
			key, _, _ := strings.Cut(entry, "=")
			if !managed[strings.ToUpper(key)] {
				cmt.Comments = append(cmt.Comments, entry)
			}
		}
	}

	fields := [][2]string{
		{FieldTrackID, strconv.FormatInt(info.TrackID, 10)},
		{FieldTitle, info.Title},
		{FieldArtist, info.Artist},
	}
	if info.Album != "" {
		fields = append(fields, [2]string{FieldAlbum, info.Album})
	}
	fields = append(fields, [2]string{FieldDateDownloaded, t.now().Format(time.RFC3339)})

	for _, kv := range fields {
		if err := cmt.Add(kv[0], kv[1]); err != nil {
			return nil, fmt.Errorf("failed to add %s tag: %w", kv[0], err)
		}
	}

	block := cmt.Marshal()
	return &block, nil
}

func (t *FLACTagger) picture(coverPath string) *flac.MetaDataBlock {
	data, err := os.ReadFile(coverPath)
	if err != nil {
		t.logger.Warn("could not read cover art", "path", coverPath, "error", err)
		return nil
	}

	pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Cover", data, "image/jpeg")
	if err != nil {
		t.logger.Warn("could not add cover art", "error", err)
		return nil
	}

	t.logger.Debug("cover art added", "size", humanize.Bytes(uint64(len(data))))
	block := pic.Marshal()
	return &block
}

// TrackID reads the catalog id stored in the TRACK_ID comment.
func (t *FLACTagger) TrackID(path string) (int64, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to parse flac file: %w", err)
	}

	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			continue
		}
		values, err := cmt.Get(FieldTrackID)
		if err != nil || len(values) == 0 {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(values[0]), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not numeric", ErrNoTrackID, values[0])
		}
		return id, nil
	}
	return 0, ErrNoTrackID
}
