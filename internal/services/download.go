package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/flacsync/internal/shared"
)

const downloadChunkSize = 8192

// ProgressFunc receives bytes written so far and the expected total, or -1 when unknown.
type ProgressFunc func(written, total int64)

// DownloadTrack streams url to dest and returns the number of bytes written.
//
// The transfer is bounded by the download timeout. Any failure, including a zero-byte
// body, removes the partial file.
func (c *CatalogClient) DownloadTrack(ctx context.Context, url, dest string, progress ProgressFunc) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", shared.ErrDownloadFailed, describeTransportError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: HTTP %d", shared.ErrDownloadFailed, resp.StatusCode)
	}

	written, err := writeStream(dest, resp.Body, resp.ContentLength, progress)
	if err != nil {
		os.Remove(dest)
		if errors.Is(err, shared.ErrEmptyDownload) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}

	c.logger.Debug("downloaded", "file", filepath.Base(dest), "bytes", written)
	return written, nil
}

func writeStream(dest string, body io.Reader, total int64, progress ProgressFunc) (int64, error) {
	if dir := filepath.Dir(dest); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create destination directory: %w", err)
		}
	}

	file, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	w := bufio.NewWriterSize(file, downloadChunkSize*8)
	buf := make([]byte, downloadChunkSize)
	var written int64
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				file.Close()
				return written, err
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			file.Close()
			return written, rerr
		}
	}

	if err := w.Flush(); err != nil {
		file.Close()
		return written, err
	}
	if err := file.Close(); err != nil {
		return written, err
	}
	if written == 0 {
		return 0, shared.ErrEmptyDownload
	}
	return written, nil
}

// CoverURL maps a dash-separated cover id onto the image host's path layout.
func (c *CatalogClient) CoverURL(coverID string) (string, error) {
	parts := strings.Split(coverID, "-")
	if len(parts) != 5 {
		return "", fmt.Errorf("%w: %q", shared.ErrInvalidCoverID, coverID)
	}
	for _, p := range parts {
		if p == "" {
			return "", fmt.Errorf("%w: %q", shared.ErrInvalidCoverID, coverID)
		}
	}
	return strings.TrimRight(c.imageHost, "/") + "/images/" + strings.Join(parts, "/") + "/1280x1280.jpg", nil
}

// DownloadCover fetches the 1280x1280 artwork for coverID into dest.
func (c *CatalogClient) DownloadCover(ctx context.Context, coverID, dest string) error {
	coverURL, err := c.CoverURL(coverID)
	if err != nil {
		return err
	}
	_, err = c.DownloadTrack(ctx, coverURL, dest, nil)
	return err
}
