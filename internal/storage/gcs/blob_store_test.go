package gcs_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gstorage "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/leadfinch/contact-crawler/internal/storage"
	"github.com/leadfinch/contact-crawler/internal/storage/gcs"
)

// newTestStore points a real storage client at a fake GCS endpoint.
func newTestStore(t *testing.T, handler http.Handler) *gcs.BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := gstorage.NewClient(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if closeErr := client.Close(); closeErr != nil {
			t.Logf("close client: %v", closeErr)
		}
	})

	store, err := gcs.New(client, gcs.Config{Bucket: "test-bucket"})
	require.NoError(t, err)
	return store
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := gcs.New(nil, gcs.Config{Bucket: "b"})
	assert.Error(t, err)

	client, err := gstorage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() {
		if closeErr := client.Close(); closeErr != nil {
			t.Logf("close client: %v", closeErr)
		}
	})

	_, err = gcs.New(client, gcs.Config{})
	assert.Error(t, err)
}

func TestPutObject(t *testing.T) {
	objectName := "results_0189aefb.csv"
	objectData := []byte("URL,Contact Page,Emails,Phones,Error\n")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/test-bucket/o")
		assert.Equal(t, objectName, r.URL.Query().Get("name"))
		assert.Equal(t, "multipart", r.URL.Query().Get("uploadType"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), string(objectData))
		assert.Contains(t, string(body), "text/csv")

		fmt.Fprintln(w, `{ "name": "`+objectName+`" }`)
	})

	store := newTestStore(t, handler)
	uri, err := store.PutObject(context.Background(), objectName, "text/csv", bytes.NewReader(objectData))
	require.NoError(t, err)
	assert.Equal(t, "gs://test-bucket/"+objectName, uri)
}

func TestPutObjectServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	store := newTestStore(t, handler)
	_, err := store.PutObject(context.Background(), "results_err.csv", "text/csv", bytes.NewReader([]byte("x")))
	assert.Error(t, err)
}

func TestGetObject(t *testing.T) {
	objectName := "results_roundtrip.csv"
	objectData := []byte("URL,Contact Page,Emails,Phones,Error\nhttps://a.example,,,,Site not reachable\n")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && strings.Contains(r.URL.Path, objectName) {
			w.Header().Set("Content-Type", "text/csv")
			if _, err := w.Write(objectData); err != nil {
				t.Logf("write fake object: %v", err)
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":404,"message":"object not found"}}`)
	})

	store := newTestStore(t, handler)

	got, err := store.GetObject(context.Background(), objectName)
	require.NoError(t, err)
	assert.Equal(t, objectData, got)

	_, err = store.GetObject(context.Background(), "results_missing.csv")
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
}

func TestPathValidation(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	store := newTestStore(t, handler)

	_, err := store.PutObject(context.Background(), "  ", "text/csv", bytes.NewReader(nil))
	assert.Error(t, err)

	_, err = store.GetObject(context.Background(), "")
	assert.Error(t, err)
}
