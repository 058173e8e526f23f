package storage

import (
	"context"
	"hash/crc64"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/newsdesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tencentyun/cos-go-sdk-v5"
	"go.uber.org/zap"
)

func TestLocalPutAndDeleteByURL(t *testing.T) {
	dir := t.TempDir()
	local, err := NewLocal(config.LocalStorageConfig{Dir: dir, URLPath: "uploads"})
	require.NoError(t, err)

	ctx := context.Background()
	obj, err := local.Put(ctx, "Photo.JPG", strings.NewReader("jpeg-bytes"), 10, "image/jpeg")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(obj.URL, "/uploads/"))
	assert.True(t, strings.HasSuffix(obj.Key, ".jpg"))

	content, err := os.ReadFile(filepath.Join(dir, obj.Key))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(content))

	key, ok := local.KeyFromURL(obj.URL)
	require.True(t, ok)
	assert.Equal(t, obj.Key, key)

	require.NoError(t, DeleteByURL(ctx, local, obj.URL))
	_, err = os.Stat(filepath.Join(dir, obj.Key))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, DeleteByURL(ctx, local, obj.URL), ErrObjectNotFound)
}

func TestLocalRejectsForeignURLs(t *testing.T) {
	local, err := NewLocal(config.LocalStorageConfig{Dir: t.TempDir(), URLPath: "/uploads", BaseURL: "https://cdn.example.com"})
	require.NoError(t, err)

	for _, raw := range []string{
		"https://other.example.com/uploads/a.jpg",
		"/static/a.jpg",
		"/uploads/../secret.txt",
		"/uploads/",
	} {
		_, ok := local.KeyFromURL(raw)
		assert.False(t, ok, raw)
	}

	assert.ErrorIs(t, DeleteByURL(context.Background(), local, "/static/a.jpg"), ErrForeignURL)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(config.StorageConfig{Driver: "s3"}, nil)
	require.Error(t, err)
}

func TestNewCOSRequiresCredentials(t *testing.T) {
	_, err := NewCOS(config.COSConfig{BucketName: "news"}, zap.NewNop())
	require.Error(t, err)
}

func TestCOSPutAndDelete(t *testing.T) {
	var (
		mu      sync.Mutex
		stored  = map[string]string{}
		methods []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		methods = append(methods, r.Method)
		key := strings.TrimPrefix(r.URL.Path, "/")
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			stored[key] = string(body)
			// SDK 默认校验上传内容的 CRC64
			sum := crc64.Checksum(body, crc64.MakeTable(crc64.ECMA))
			w.Header().Set("x-cos-hash-crc64ecma", strconv.FormatUint(sum, 10))
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			delete(stored, key)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer server.Close()

	bucketURL, err := url.Parse(server.URL)
	require.NoError(t, err)
	publicBase, err := url.Parse("https://cdn.example.com/assets")
	require.NoError(t, err)

	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, server.Client())
	store := newCOSWithClient(client, publicBase, "media", zap.NewNop())

	ctx := context.Background()
	obj, err := store.Put(ctx, "clip.mp4", strings.NewReader("video"), 5, "video/mp4")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.Key, "media/"))
	assert.Equal(t, "https://cdn.example.com/assets/"+obj.Key, obj.URL)

	mu.Lock()
	assert.Equal(t, "video", stored[obj.Key])
	mu.Unlock()

	require.NoError(t, DeleteByURL(ctx, store, obj.URL))

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, stored, obj.Key)
	assert.Equal(t, []string{http.MethodPut, http.MethodDelete}, methods)

	_, ok := store.KeyFromURL("https://elsewhere.example.com/assets/x.jpg")
	assert.False(t, ok)
}
