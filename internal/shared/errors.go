package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrEmptyPool          = fmt.Errorf("server pool is empty")

	// Catalog and transport errors
	ErrNotFound       = fmt.Errorf("resource not found")
	ErrRequestFailed  = fmt.Errorf("request failed on all servers")
	ErrNoStream       = fmt.Errorf("no stream URL available")
	ErrInvalidPayload = fmt.Errorf("unexpected response shape")
	ErrTrackNotFound  = fmt.Errorf("track not found")
	ErrNoMatch        = fmt.Errorf("no candidate above confidence floor")

	// Download errors
	ErrDownloadFailed = fmt.Errorf("download failed")
	ErrEmptyDownload  = fmt.Errorf("downloaded file is empty")
	ErrInvalidCoverID = fmt.Errorf("invalid cover id")

	// Playlist source errors
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrInvalidPlaylist  = fmt.Errorf("invalid playlist reference")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
