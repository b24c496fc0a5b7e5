package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"test-solver/internal/config"
	"test-solver/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(config.LoggerConfig{Level: "error"}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newTestStorage(t *testing.T) *LocalFileStorage {
	t.Helper()
	fs, err := NewLocalFileStorage(config.StorageConfig{
		BaseDir:       t.TempDir(),
		PublicBaseURL: "http://localhost:8080/files",
	})
	require.NoError(t, err)
	return fs.(*LocalFileStorage)
}

func TestLocalFileStorage_UploadDownloadRoundtrip(t *testing.T) {
	fs := newTestStorage(t)
	data := []byte("%PDF-1.4 fake content")

	url, err := fs.Upload(context.Background(), "my exam.pdf", "application/pdf", data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/files/"))
	assert.True(t, strings.HasSuffix(url, "_my_exam.pdf"), "spaces are folded into underscores: %s", url)

	got, err := fs.Download(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestLocalFileStorage_DownloadExternalURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote bytes"))
	}))
	defer server.Close()

	fs := newTestStorage(t)

	got, err := fs.Download(context.Background(), server.URL+"/exam.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("remote bytes"), got)
}

func TestLocalFileStorage_DownloadExternalError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fs := newTestStorage(t)

	_, err := fs.Download(context.Background(), server.URL+"/missing.pdf")
	assert.Error(t, err)
}

func TestLocalFileStorage_DeleteIsIdempotent(t *testing.T) {
	fs := newTestStorage(t)

	url, err := fs.Upload(context.Background(), "exam.pdf", "application/pdf", []byte("x"))
	require.NoError(t, err)

	assert.NoError(t, fs.Delete(context.Background(), url))
	// Second delete of the same URL is a no-op.
	assert.NoError(t, fs.Delete(context.Background(), url))
	// Foreign URLs are ignored.
	assert.NoError(t, fs.Delete(context.Background(), "http://elsewhere.example/exam.pdf"))
}

func TestLocalFileStorage_LocalNameRejectsTraversal(t *testing.T) {
	fs := newTestStorage(t)

	_, ok := fs.localName("http://localhost:8080/files/../secrets")
	assert.False(t, ok)
	_, ok = fs.localName("http://localhost:8080/files/")
	assert.False(t, ok)
	name, ok := fs.localName("http://localhost:8080/files/abc_exam.pdf")
	assert.True(t, ok)
	assert.Equal(t, "abc_exam.pdf", name)
}
