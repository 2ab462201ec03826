package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/victimvoice/internal/models"
)

const (
	DefaultFilename    = "default_filename"
	DefaultArchiveName = "evidence.zip"
)

// Fetcher opens evidence content by URL.
type Fetcher interface {
	FetchEvidence(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Downloaded records one evidence file written to disk or to an archive.
type Downloaded struct {
	URL   string
	Name  string
	Bytes int64
}

// FileName returns the last path segment of rawURL, or DefaultFilename when
// it is empty, so a URL ending in a slash gets the default name.
func FileName(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}

	name := p[strings.LastIndex(p, "/")+1:]
	switch name {
	case "", ".", "..":
		return DefaultFilename
	}
	return name
}

// DownloadEvidence fetches each evidence item in order and writes it into dir
// under its FileName. Existing files are overwritten. A failed item does not
// stop the rest; all failures are returned together.
func DownloadEvidence(ctx context.Context, f Fetcher, evidence []models.Evidence, dir string) ([]Downloaded, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	var (
		done []Downloaded
		errs []error
	)
	for _, e := range evidence {
		name := FileName(e.URL)
		n, err := downloadOne(ctx, f, e.URL, filepath.Join(dir, name))
		if err != nil {
			log.Debug().Err(err).Str("url", e.URL).Msg("evidence download failed")
			errs = append(errs, fmt.Errorf("%s: %w", e.URL, err))
			continue
		}
		done = append(done, Downloaded{URL: e.URL, Name: name, Bytes: n})
	}

	return done, errors.Join(errs...)
}

func downloadOne(ctx context.Context, f Fetcher, rawURL, dest string) (int64, error) {
	body, err := f.FetchEvidence(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(out, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("failed to write file: %w", err)
	}
	return n, nil
}

// ArchiveEvidence fetches each evidence item in order into a zip written to w.
// Repeated names get a numeric suffix. Failed items are skipped and reported.
func ArchiveEvidence(ctx context.Context, f Fetcher, evidence []models.Evidence, w io.Writer) ([]Downloaded, error) {
	zw := zip.NewWriter(w)

	var (
		done []Downloaded
		errs []error
		seen = map[string]bool{}
	)
	for _, e := range evidence {
		name := uniqueName(seen, FileName(e.URL))
		n, err := archiveOne(ctx, f, zw, e.URL, name)
		if err != nil {
			log.Debug().Err(err).Str("url", e.URL).Msg("evidence archive entry failed")
			errs = append(errs, fmt.Errorf("%s: %w", e.URL, err))
			continue
		}
		done = append(done, Downloaded{URL: e.URL, Name: name, Bytes: n})
	}

	if err := zw.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to finish archive: %w", err))
	}

	return done, errors.Join(errs...)
}

// SaveEvidenceArchive writes the evidence zip to path.
func SaveEvidenceArchive(ctx context.Context, f Fetcher, evidence []models.Evidence, path string) ([]Downloaded, error) {
	var (
		done     []Downloaded
		fetchErr error
	)
	err := writeFile(path, func(w io.Writer) error {
		var err error
		done, err = ArchiveEvidence(ctx, f, evidence, w)
		if len(done) == 0 && err != nil {
			return err
		}
		fetchErr = err
		return nil
	})
	if err != nil {
		return nil, err
	}
	return done, fetchErr
}

func archiveOne(ctx context.Context, f Fetcher, zw *zip.Writer, rawURL, name string) (int64, error) {
	body, err := f.FetchEvidence(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add %s: %w", name, err)
	}

	n, err := io.Copy(entry, body)
	if err != nil {
		return n, fmt.Errorf("failed to write %s: %w", name, err)
	}
	return n, nil
}

func uniqueName(seen map[string]bool, name string) string {
	ext := path.Ext(name)
	candidate := name
	for i := 2; seen[candidate]; i++ {
		candidate = strings.TrimSuffix(name, ext) + "-" + strconv.Itoa(i) + ext
	}
	seen[candidate] = true
	return candidate
}
