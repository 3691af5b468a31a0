// Package directory loads the data broker directory: a CSV of broker names
// and privacy contact addresses, downloaded once from the public Optery
// list when no local copy exists.
package directory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"

	"github.com/optout-tools/optout/pkg/metrics"
	"github.com/optout-tools/optout/pkg/version"
)

var ErrDirectory = errors.New("broker directory unavailable")

// Broker is one mail-reachable directory entry. ID is its 1-based position
// in the loaded file.
type Broker struct {
	ID    int    `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

type brokerRow struct {
	Title string `csv:"title"`
	Email string `csv:"email"`
}

var requiredColumns = []string{"title", "email"}

type Directory struct {
	Path       string
	URL        string
	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
}

func (d *Directory) logger() *zap.SugaredLogger {
	if d.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return d.Logger
}

func (d *Directory) client() *http.Client {
	if d.HTTPClient == nil {
		return &http.Client{Timeout: 30 * time.Second}
	}
	return d.HTTPClient
}

// Load parses the local file, downloading it first when it does not exist.
func (d *Directory) Load(ctx context.Context) ([]Broker, error) {
	f, err := os.Open(d.Path)
	if errors.Is(err, fs.ErrNotExist) {
		d.logger().Infow("Broker directory not found locally, downloading", "path", d.Path, "url", d.URL)
		if ferr := d.fetch(ctx); ferr != nil {
			return nil, fmt.Errorf("%w: %s is missing and download failed: %w", ErrDirectory, d.Path, ferr)
		}
		f, err = os.Open(d.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirectory, err)
	}
	defer f.Close()

	brokers, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Path, err)
	}
	d.logger().Debugw("Loaded broker directory", "path", d.Path, "brokers", len(brokers))
	return brokers, nil
}

// Refresh replaces the local file with a fresh download.
func (d *Directory) Refresh(ctx context.Context) error {
	if err := d.fetch(ctx); err != nil {
		return fmt.Errorf("%w: refresh from %s: %w", ErrDirectory, d.URL, err)
	}
	return nil
}

func (d *Directory) fetch(ctx context.Context) (err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.DirectoryFetches.WithLabelValues(result).Inc()
	}()

	if d.URL == "" {
		return errors.New("no directory URL configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := d.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	dir := filepath.Dir(d.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".data-brokers-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), d.Path); err != nil {
		return err
	}
	d.logger().Infow("Downloaded broker directory", "path", d.Path, "bytes", n)
	return nil
}

// headerCheckReader fails on the header row unless every required column is present.
type headerCheckReader struct {
	*csv.Reader
	checked bool
}

func (r *headerCheckReader) Read() ([]string, error) {
	rec, err := r.Reader.Read()
	if err != nil || r.checked {
		return rec, err
	}
	r.checked = true
	seen := make(map[string]bool, len(rec))
	for i, h := range rec {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		rec[i] = h
		seen[h] = true
	}
	for _, col := range requiredColumns {
		if !seen[col] {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}
	return rec, nil
}

func (r *headerCheckReader) ReadAll() ([][]string, error) {
	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

// Parse reads the directory CSV. Rows whose email column is blank or holds
// no address (web-form-only brokers) are skipped before ids are assigned;
// any other malformed row fails the whole parse.
func Parse(r io.Reader) ([]Broker, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	var rows []*brokerRow
	if err := gocsv.UnmarshalCSV(&headerCheckReader{Reader: cr}, &rows); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirectory, err)
	}

	brokers := make([]Broker, 0, len(rows))
	for i, row := range rows {
		email := strings.TrimSpace(row.Email)
		if !strings.Contains(email, "@") {
			continue
		}
		name := strings.TrimSpace(row.Title)
		if name == "" {
			// header is line 1
			return nil, fmt.Errorf("%w: row %d: broker name is empty", ErrDirectory, i+2)
		}
		brokers = append(brokers, Broker{ID: len(brokers) + 1, Name: name, Email: email})
	}
	return brokers, nil
}
