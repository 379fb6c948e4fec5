package matching

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AudioExtensions are the file types counted as already-downloaded audio.
var AudioExtensions = []string{".flac", ".mp3", ".m4a", ".wav"}

func isAudioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range AudioExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ListAudioFiles returns the names of audio files directly inside dir. A missing dir yields no files.
func ListAudioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !isAudioFile(entry.Name()) {
			continue
		}
		files = append(files, entry.Name())
	}
	return files, nil
}

// IsDownloaded reports whether one of files already holds the requested track.
//
// A file matches when its normalized name shares at least min(2, title words) title
// words and at least one artist word.
func IsDownloaded(title, artist string, files []string) bool {
	titleWords := NormalizedWords(title)
	artistWords := NormalizedWords(artist)
	minTitle := min(2, len(titleWords))

	for _, name := range files {
		if !isAudioFile(name) {
			continue
		}
		fileWords := NormalizedWords(name)
		if titleWords.Overlap(fileWords) >= minTitle && artistWords.Overlap(fileWords) >= 1 {
			return true
		}
	}
	return false
}
