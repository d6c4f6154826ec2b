// Package recordings downloads call recordings through the media
// playback service.
package recordings

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/kalambet/cxops/internal/cxone"
)

// DefaultMediaBaseURL is the media playback service; unlike the tenant
// API base it is not part of the discovery response.
const DefaultMediaBaseURL = "https://na1.nice-incontact.com"

// MaxBulkCallIDs caps a bulk download; recordings are large and the
// console is an interactive tool, not a batch exporter.
const MaxBulkCallIDs = 50

// Recording is one downloaded media file.
type Recording struct {
	FileName string
	Content  []byte
}

// Downloader resolves call ids to playable media and fetches the bytes.
type Downloader struct {
	client  *cxone.Client
	baseURL string
	logger  *slog.Logger
}

// NewDownloader builds a Downloader; an empty mediaBaseURL takes the
// default region endpoint.
func NewDownloader(client *cxone.Client, mediaBaseURL string) *Downloader {
	if mediaBaseURL == "" {
		mediaBaseURL = DefaultMediaBaseURL
	}
	return &Downloader{
		client:  client,
		baseURL: strings.TrimRight(mediaBaseURL, "/"),
		logger:  slog.Default(),
	}
}

type interactionsResponse struct {
	Interactions []struct {
		Data struct {
			FileToPlayURL string `json:"fileToPlayUrl"`
		} `json:"data"`
	} `json:"interactions"`
}

// Download resolves one call id to its MP4 recording.
func (d *Downloader) Download(ctx context.Context, callID string) (*Recording, error) {
	if callID == "" {
		return nil, fmt.Errorf("call id is required")
	}

	lookupURL := fmt.Sprintf("%s/media-playback/v1/contacts?acd-call-id=%s&media-type=all&exclude-waveforms=true&isDownload=false",
		d.baseURL, url.QueryEscape(callID))

	var out interactionsResponse
	status, err := d.client.GetURLJSON(ctx, lookupURL, &out)
	if err != nil {
		return nil, fmt.Errorf("looking up call %s: %w", callID, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("looking up call %s: status %d", callID, status)
	}
	if len(out.Interactions) == 0 || out.Interactions[0].Data.FileToPlayURL == "" {
		return nil, fmt.Errorf("no playable media for call %s", callID)
	}

	content, status, err := d.client.GetRaw(ctx, out.Interactions[0].Data.FileToPlayURL)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetching media for call %s: status %d", callID, status)
	}

	return &Recording{FileName: callID + ".mp4", Content: content}, nil
}

// ReadCallIDs reads a headerless one-column CSV of call ids, capped at
// MaxBulkCallIDs.
func ReadCallIDs(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	var ids []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading call id csv: %w", err)
		}
		if len(rec) > 0 && strings.TrimSpace(rec[0]) != "" {
			ids = append(ids, strings.TrimSpace(rec[0]))
		}
		if len(ids) == MaxBulkCallIDs {
			break
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("csv contains no call ids")
	}
	return ids, nil
}

// BulkResult summarizes a bulk download.
type BulkResult struct {
	Archive []byte
	Fetched int
	Missing []string
}

// DownloadBulk fetches each call id in order and packs the recordings
// into a zip. Per-call failures are collected, not fatal; the archive
// holds whatever could be fetched.
func (d *Downloader) DownloadBulk(ctx context.Context, callIDs []string) (*BulkResult, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	res := &BulkResult{}
	for _, id := range callIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := d.Download(ctx, id)
		if err != nil {
			d.logger.Warn("recording skipped", "call", id, "error", err)
			res.Missing = append(res.Missing, id)
			continue
		}

		f, err := zw.Create(rec.FileName)
		if err != nil {
			return nil, fmt.Errorf("adding %s to archive: %w", rec.FileName, err)
		}
		if _, err := f.Write(rec.Content); err != nil {
			return nil, fmt.Errorf("writing %s to archive: %w", rec.FileName, err)
		}
		res.Fetched++
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}
	res.Archive = buf.Bytes()
	return res, nil
}
