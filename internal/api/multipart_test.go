package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framedrop/framedrop/internal/finalize"
	"github.com/framedrop/framedrop/internal/storage"
	"github.com/framedrop/framedrop/pkg/types"
)

// fakeObjectStore implements both ObjectStore and MultipartStore so the
// handler's capability check passes without a real S3 endpoint.
type fakeObjectStore struct {
	created   []string
	completed []storage.CompletedPart
	aborted   bool
}

func (f *fakeObjectStore) Exists(ctx context.Context, key string) (bool, error) { return false, nil }
func (f *fakeObjectStore) Move(ctx context.Context, src, dst string) error      { return nil }
func (f *fakeObjectStore) ReadAll(ctx context.Context, key string) ([]byte, error) {
	return nil, nil
}
func (f *fakeObjectStore) Store(ctx context.Context, key string, content io.Reader) error {
	return nil
}
func (f *fakeObjectStore) Delete(ctx context.Context, key string) error { return nil }
func (f *fakeObjectStore) GenerateKey(clientCode, projectName, filename string) string {
	return clientCode + "/" + projectName + "/" + filename
}
func (f *fakeObjectStore) Kind() string { return "s3" }

func (f *fakeObjectStore) CreateMultipart(ctx context.Context, key, contentType string) (string, error) {
	f.created = append(f.created, key)
	return "mpu-1", nil
}

func (f *fakeObjectStore) PresignPart(ctx context.Context, key, uploadID string, partNumber int32, expires time.Duration) (string, error) {
	return fmt.Sprintf("https://signed.example/%s/%d", uploadID, partNumber), nil
}

func (f *fakeObjectStore) CompleteMultipart(ctx context.Context, key, uploadID string, parts []storage.CompletedPart) error {
	f.completed = parts
	return nil
}

func (f *fakeObjectStore) AbortMultipart(ctx context.Context, key, uploadID string) error {
	f.aborted = true
	return nil
}

type staticResolver struct{ link *types.UploadLink }

func (r *staticResolver) ResolveToken(ctx context.Context, token string) (*types.UploadLink, error) {
	if r.link == nil || token != r.link.Token {
		return nil, finalize.ErrTokenInvalid
	}
	return r.link, nil
}

func multipartRouter(t *testing.T, store storage.ObjectStore) (*gin.Engine, *fakeObjectStore) {
	gin.SetMode(gin.TestMode)

	fake, _ := store.(*fakeObjectStore)
	resolver := &staticResolver{link: &types.UploadLink{
		ID:    uuid.New(),
		Token: "T",
		Project: types.Project{
			Name:   "promo",
			Client: types.Client{Name: "Acme Post", Code: "acme"},
		},
	}}

	router := gin.New()
	handler := NewMultipartHandler(store, resolver, time.Minute)
	router.POST("/api/multipart", handler.Create)
	router.GET("/api/multipart/part", handler.SignPart)
	router.POST("/api/multipart/complete", handler.Complete)
	router.POST("/api/multipart/abort", handler.Abort)
	return router, fake
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateMultipart(t *testing.T) {
	router, fake := multipartRouter(t, &fakeObjectStore{})

	w := postJSON(t, router, "/api/multipart", map[string]string{
		"token":       "T",
		"filename":    "raw footage.mov",
		"contentType": "video/quicktime",
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "mpu-1", resp["uploadId"])
	assert.Equal(t, "acme/promo/raw footage.mov", resp["key"])
	assert.Equal(t, []string{"acme/promo/raw footage.mov"}, fake.created)
}

func TestCreateMultipart_InvalidToken(t *testing.T) {
	router, _ := multipartRouter(t, &fakeObjectStore{})

	w := postJSON(t, router, "/api/multipart", map[string]string{
		"token":    "bogus",
		"filename": "a.mov",
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateMultipart_LocalBackendNotImplemented(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	router, _ := multipartRouter(t, store)

	w := postJSON(t, router, "/api/multipart", map[string]string{
		"token":    "T",
		"filename": "a.mov",
	})

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestSignPart(t *testing.T) {
	router, _ := multipartRouter(t, &fakeObjectStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/multipart/part?key=k&uploadId=mpu-1&partNumber=3", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://signed.example/mpu-1/3", resp["url"])
}

func TestSignPart_InvalidPartNumber(t *testing.T) {
	router, _ := multipartRouter(t, &fakeObjectStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/multipart/part?key=k&uploadId=mpu-1&partNumber=0", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompleteMultipart(t *testing.T) {
	router, fake := multipartRouter(t, &fakeObjectStore{})

	w := postJSON(t, router, "/api/multipart/complete", map[string]interface{}{
		"key":      "acme/promo/a.mov",
		"uploadId": "mpu-1",
		"parts": []storage.CompletedPart{
			{PartNumber: 2, ETag: "b"},
			{PartNumber: 1, ETag: "a"},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, fake.completed, 2)
}

func TestAbortMultipart(t *testing.T) {
	router, fake := multipartRouter(t, &fakeObjectStore{})

	w := postJSON(t, router, "/api/multipart/abort", map[string]string{
		"key":      "acme/promo/a.mov",
		"uploadId": "mpu-1",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, fake.aborted)
}
