package models

import "time"

// Status is the terminal state of one orchestrated attempt.
type Status string

const (
	StatusSuccess       Status = "success"
	StatusNotFound      Status = "not_found"
	StatusDownloadError Status = "download_error"
	StatusSkipped       Status = "skipped"
)

// Failure reasons recorded in the ledger.
const (
	ReasonNotFound      = "Song not found"
	ReasonDownloadError = "Download error"
)

func (s Status) String() string { return string(s) }

// IsTerminalFailure reports whether the status should count against the track.
func (s Status) IsTerminalFailure() bool {
	return s == StatusNotFound || s == StatusDownloadError
}

// Reason maps a failure status to its ledger classification.
func (s Status) Reason() string {
	switch s {
	case StatusNotFound:
		return ReasonNotFound
	case StatusDownloadError:
		return ReasonDownloadError
	default:
		return ""
	}
}

// Outcome is the result of processing one track request.
type Outcome struct {
	Status   Status `json:"status"`
	Track    Track  `json:"track"`
	FilePath string `json:"file_path,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Succeeded reports whether the track landed on disk.
func (o Outcome) Succeeded() bool { return o.Status == StatusSuccess }

// FailedDownload is one row of the failed-downloads log written at the end of a session.
type FailedDownload struct {
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary is the tally of one download session.
type Summary struct {
	Playlist    string           `json:"playlist"`
	Total       int              `json:"total"`
	Existing    int              `json:"existing"`
	Succeeded   int              `json:"succeeded"`
	Failed      int              `json:"failed"`
	Skipped     int              `json:"skipped"`
	Interrupted bool             `json:"interrupted"`
	Elapsed     time.Duration    `json:"elapsed"`
	Failures    []FailedDownload `json:"failures,omitempty"`
}

// Attempted is the number of tracks that reached the download loop.
func (s Summary) Attempted() int { return s.Total - s.Existing }

// SuccessRate is the share of attempted tracks that succeeded, in percent.
func (s Summary) SuccessRate() float64 {
	if s.Attempted() <= 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Attempted()) * 100
}
