package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3StoreRequiresBucketAndRegion(t *testing.T) {
	_, err := NewS3Store(S3Options{Region: "us-east-1"})
	assert.Error(t, err)

	_, err = NewS3Store(S3Options{Bucket: "uploads", Region: " "})
	assert.Error(t, err)
}

func TestS3StoreSaveUsesPathStyleEndpoint(t *testing.T) {
	var gotMethod, gotPath, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewS3Store(S3Options{
		Bucket:    "uploads",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
	})
	require.NoError(t, err)

	location, err := store.Save(context.Background(), ObjectKey("d1", "report.pdf"), []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "s3://uploads/documents/d1/report.pdf", location)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/uploads/documents/d1/report.pdf", gotPath)
	assert.Equal(t, "application/pdf", gotType)
}

func TestS3StoreSaveReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	store, err := NewS3Store(S3Options{Bucket: "uploads", Region: "us-east-1", Endpoint: srv.URL, AccessKey: "k", SecretKey: "s"})
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "documents/d1/a.txt", []byte("x"), "")
	assert.ErrorContains(t, err, "failed to upload documents/d1/a.txt")
}
