package directory

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optout-tools/optout/pkg/metrics"
)

const sampleCSV = `title,url,email
Acme Data,https://acme.example,privacy@acme.example
Web Form Only,https://form.example,
Beta People Search,https://beta.example,optout@beta.example
"Gamma, Inc.",https://gamma.example,  dsar@gamma.example
`

func directoryServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Contains(t, r.Header.Get("User-Agent"), "optout/")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestParse(t *testing.T) {
	brokers, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Equal(t, []Broker{
		{ID: 1, Name: "Acme Data", Email: "privacy@acme.example"},
		{ID: 2, Name: "Beta People Search", Email: "optout@beta.example"},
		{ID: 3, Name: "Gamma, Inc.", Email: "dsar@gamma.example"},
	}, brokers)
}

func TestParse_SkipsRowsWithoutAddress(t *testing.T) {
	brokers, err := Parse(strings.NewReader("title,email\nA,privacy@a.example\nB,see website\nC,c@c.example\n"))
	require.NoError(t, err)
	require.Equal(t, []Broker{
		{ID: 1, Name: "A", Email: "privacy@a.example"},
		{ID: 2, Name: "C", Email: "c@c.example"},
	}, brokers)
}

func TestParse_HeaderVariants(t *testing.T) {
	brokers, err := Parse(strings.NewReader("\ufeffTitle, Email\nAcme,privacy@acme.example\n"))
	require.NoError(t, err)
	require.Len(t, brokers, 1)
	assert.Equal(t, "Acme", brokers[0].Name)
	assert.Equal(t, "privacy@acme.example", brokers[0].Email)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"empty file", ""},
		{"missing email column", "title,url\nAcme,https://acme.example\n"},
		{"missing title column", "name,email\nAcme,privacy@acme.example\n"},
		{"wrong field count", "title,email\nAcme,privacy@acme.example,extra\n"},
		{"blank name", "title,email\nAcme,privacy@acme.example\n ,optout@beta.example\n"},
		{"unterminated quote", "title,email\n\"Acme,privacy@acme.example\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.csv))
			require.ErrorIs(t, err, ErrDirectory)
		})
	}
}

func TestParse_NoDeduplication(t *testing.T) {
	brokers, err := Parse(strings.NewReader("title,email\nA,same@example.com\nB,same@example.com\n"))
	require.NoError(t, err)
	require.Len(t, brokers, 2)
}

func TestLoad_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data-brokers.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))
	srv, hits := directoryServer(t, http.StatusOK, sampleCSV)

	d := &Directory{Path: path, URL: srv.URL}
	brokers, err := d.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, brokers, 3)
	assert.Equal(t, int32(0), atomic.LoadInt32(hits), "an existing file is never re-downloaded")
}

func TestLoad_DownloadsOnceWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "data-brokers.csv")
	srv, hits := directoryServer(t, http.StatusOK, sampleCSV)
	before := testutil.ToFloat64(metrics.DirectoryFetches.WithLabelValues("ok"))

	d := &Directory{Path: path, URL: srv.URL}
	first, err := d.Load(context.Background())
	require.NoError(t, err)
	require.FileExists(t, path)

	second, err := d.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.DirectoryFetches.WithLabelValues("ok")))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, string(content))
}

func TestLoad_MissingAndFetchFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data-brokers.csv")
	srv, hits := directoryServer(t, http.StatusNotFound, "not found")
	before := testutil.ToFloat64(metrics.DirectoryFetches.WithLabelValues("error"))

	d := &Directory{Path: path, URL: srv.URL}
	_, err := d.Load(context.Background())
	require.ErrorIs(t, err, ErrDirectory)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.NoFileExists(t, path)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.DirectoryFetches.WithLabelValues("error")))
}

func TestLoad_MissingAndNoURL(t *testing.T) {
	d := &Directory{Path: filepath.Join(t.TempDir(), "data-brokers.csv")}
	_, err := d.Load(context.Background())
	require.ErrorIs(t, err, ErrDirectory)
}

func TestRefresh_ReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data-brokers.csv")
	require.NoError(t, os.WriteFile(path, []byte("title,email\nOld,old@example.com\n"), 0o600))
	srv, hits := directoryServer(t, http.StatusOK, sampleCSV)

	d := &Directory{Path: path, URL: srv.URL}
	require.NoError(t, d.Refresh(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	brokers, err := d.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, brokers, 3)
	assert.Equal(t, "Acme Data", brokers[0].Name)
}

func TestRefresh_FailureKeepsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data-brokers.csv")
	old := "title,email\nOld,old@example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(old), 0o600))
	srv, _ := directoryServer(t, http.StatusInternalServerError, "boom")

	d := &Directory{Path: path, URL: srv.URL}
	require.ErrorIs(t, d.Refresh(context.Background()), ErrDirectory)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, old, string(content))
}
