package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/azure-ai-gateway/services"
	"github.com/upb/azure-ai-gateway/services/blob"
	"go.uber.org/zap"
)

type fakeBlob struct {
	uploadedName string
	uploadedType string
	uploadedBody []byte
	uploadErr    error
	downloadBody string
	downloadInfo *blob.BlobInfo
	downloadErr  error
	blobs        []blob.BlobInfo
	listErr      error
	deleted      string
	deleteErr    error
	sasInfo      *blob.SASInfo
	sasErr       error
	sasValidFor  time.Duration
}

func (f *fakeBlob) Container() string { return "documents" }

func (f *fakeBlob) Upload(ctx context.Context, name, contentType string, body io.Reader) (*blob.BlobInfo, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	data, _ := io.ReadAll(body)
	f.uploadedName = name
	f.uploadedType = contentType
	f.uploadedBody = data
	return &blob.BlobInfo{Name: name, Size: int64(len(data)), ContentType: contentType}, nil
}

func (f *fakeBlob) UploadText(ctx context.Context, name, contentType, content string) (*blob.BlobInfo, error) {
	return f.Upload(ctx, name, contentType, strings.NewReader(content))
}

func (f *fakeBlob) Download(ctx context.Context, name string) (io.ReadCloser, *blob.BlobInfo, error) {
	if f.downloadErr != nil {
		return nil, nil, f.downloadErr
	}
	return io.NopCloser(strings.NewReader(f.downloadBody)), f.downloadInfo, nil
}

func (f *fakeBlob) List(ctx context.Context) ([]blob.BlobInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.blobs, nil
}

func (f *fakeBlob) Delete(ctx context.Context, name string) error {
	f.deleted = name
	return f.deleteErr
}

func (f *fakeBlob) GenerateSAS(name string, validFor time.Duration) (*blob.SASInfo, error) {
	f.sasValidFor = validFor
	if f.sasErr != nil {
		return nil, f.sasErr
	}
	return f.sasInfo, nil
}

func newBlobHandler(svc *fakeBlob) *BlobHandler {
	return NewBlobHandler(svc, zap.NewNop())
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandleUpload(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &fakeBlob{}
		h := newBlobHandler(svc)

		body, contentType := multipartBody(t, "file", "report.txt", "hello blob")
		req := httptest.NewRequest(http.MethodPost, "/api/BlobStorage/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		h.HandleUpload(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "report.txt", svc.uploadedName)
		assert.Equal(t, []byte("hello blob"), svc.uploadedBody)
	})

	t.Run("missing file field", func(t *testing.T) {
		h := newBlobHandler(&fakeBlob{})

		body, contentType := multipartBody(t, "other", "report.txt", "hello")
		req := httptest.NewRequest(http.MethodPost, "/api/BlobStorage/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		h.HandleUpload(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		h := newBlobHandler(&fakeBlob{})

		req := httptest.NewRequest(http.MethodPost, "/api/BlobStorage/upload", strings.NewReader("plain"))
		rec := httptest.NewRecorder()
		h.HandleUpload(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleUploadText(t *testing.T) {
	svc := &fakeBlob{}
	h := newBlobHandler(svc)

	body := `{"name":"notes.md","content":"# Notes","contentType":"text/markdown"}`
	req := httptest.NewRequest(http.MethodPost, "/api/BlobStorage/upload-text", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleUploadText(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "notes.md", svc.uploadedName)
	assert.Equal(t, "text/markdown", svc.uploadedType)
	assert.Equal(t, []byte("# Notes"), svc.uploadedBody)
}

func TestHandleUploadTextValidation(t *testing.T) {
	h := newBlobHandler(&fakeBlob{})

	req := httptest.NewRequest(http.MethodPost, "/api/BlobStorage/upload-text",
		strings.NewReader(`{"name":"","content":""}`))
	rec := httptest.NewRecorder()
	h.HandleUploadText(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDownload(t *testing.T) {
	t.Run("streams raw content", func(t *testing.T) {
		svc := &fakeBlob{
			downloadBody: "file contents",
			downloadInfo: &blob.BlobInfo{Name: "report.txt", Size: 13, ContentType: "text/plain"},
		}
		h := newBlobHandler(svc)

		r := chi.NewRouter()
		r.Get("/api/BlobStorage/download/{name}", h.HandleDownload)

		req := httptest.NewRequest(http.MethodGet, "/api/BlobStorage/download/report.txt", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
		assert.Equal(t, "13", rec.Header().Get("Content-Length"))
		assert.Equal(t, "file contents", rec.Body.String())
	})

	t.Run("missing blob maps to 404", func(t *testing.T) {
		h := newBlobHandler(&fakeBlob{downloadErr: services.ErrBlobNotFound})

		r := chi.NewRouter()
		r.Get("/api/BlobStorage/download/{name}", h.HandleDownload)

		req := httptest.NewRequest(http.MethodGet, "/api/BlobStorage/download/nope.txt", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleList(t *testing.T) {
	svc := &fakeBlob{blobs: []blob.BlobInfo{
		{Name: "a.txt", Size: 10},
		{Name: "b.txt", Size: 20},
	}}
	h := newBlobHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/BlobStorage/list", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
	assert.Contains(t, rec.Body.String(), `"documents"`)
}

func TestHandleGenerateSAS(t *testing.T) {
	t.Run("custom validity", func(t *testing.T) {
		svc := &fakeBlob{sasInfo: &blob.SASInfo{
			URL:       "https://acct.blob.core.windows.net/documents/a.txt?sig=abc",
			ExpiresAt: time.Now().Add(30 * time.Minute),
		}}
		h := newBlobHandler(svc)

		r := chi.NewRouter()
		r.Post("/api/BlobStorage/sas/{name}", h.HandleGenerateSAS)

		req := httptest.NewRequest(http.MethodPost, "/api/BlobStorage/sas/a.txt",
			strings.NewReader(`{"expiryMinutes":30}`))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 30*time.Minute, svc.sasValidFor)
		assert.Contains(t, rec.Body.String(), "sig=abc")
	})

	t.Run("default validity without body", func(t *testing.T) {
		svc := &fakeBlob{sasInfo: &blob.SASInfo{URL: "https://example/sas"}}
		h := newBlobHandler(svc)

		r := chi.NewRouter()
		r.Post("/api/BlobStorage/sas/{name}", h.HandleGenerateSAS)

		req := httptest.NewRequest(http.MethodPost, "/api/BlobStorage/sas/a.txt", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, time.Hour, svc.sasValidFor)
	})

	t.Run("unavailable under token auth", func(t *testing.T) {
		h := newBlobHandler(&fakeBlob{sasErr: services.ErrSASUnavailable})

		r := chi.NewRouter()
		r.Post("/api/BlobStorage/sas/{name}", h.HandleGenerateSAS)

		req := httptest.NewRequest(http.MethodPost, "/api/BlobStorage/sas/a.txt", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleDelete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &fakeBlob{}
		h := newBlobHandler(svc)

		r := chi.NewRouter()
		r.Delete("/api/BlobStorage/{name}", h.HandleDelete)

		req := httptest.NewRequest(http.MethodDelete, "/api/BlobStorage/old.txt", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "old.txt", svc.deleted)
	})

	t.Run("missing blob maps to 404", func(t *testing.T) {
		h := newBlobHandler(&fakeBlob{deleteErr: services.ErrBlobNotFound})

		r := chi.NewRouter()
		r.Delete("/api/BlobStorage/{name}", h.HandleDelete)

		req := httptest.NewRequest(http.MethodDelete, "/api/BlobStorage/nope.txt", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
