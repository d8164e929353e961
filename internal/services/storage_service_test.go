// internal/services/storage_service_test.go
package services

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmatrix/gmatrix-backend/internal/config"
)

func newLocalStorage(t *testing.T) *StorageService {
	t.Helper()
	svc, err := NewStorageService(&config.Config{Environment: "development"})
	require.NoError(t, err)
	return svc
}

func pngPhoto() []byte {
	return append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0x02}, 32)...)
}

func TestUploadProductImageLocalFallback(t *testing.T) {
	svc := newLocalStorage(t)

	result, err := svc.UploadProductImage(pngPhoto(), "image/png", "front")
	require.NoError(t, err)
	assert.Contains(t, result.Key, "products/front/")
	assert.Contains(t, result.URL, result.Key)
	assert.Equal(t, int64(len(pngPhoto())), result.Size)
}

func TestUploadKeyIsContentAddressed(t *testing.T) {
	svc := newLocalStorage(t)

	first, err := svc.UploadProductImage(pngPhoto(), "image/png", "back")
	require.NoError(t, err)
	second, err := svc.UploadProductImage(pngPhoto(), "image/png", "back")
	require.NoError(t, err)

	assert.Equal(t, first.Key, second.Key)
	assert.Contains(t, first.Key, "products/back/")
}

func TestUploadRejectsMislabeledPayload(t *testing.T) {
	svc := newLocalStorage(t)

	// Claims to be a PNG but carries no image magic bytes.
	_, err := svc.UploadProductImage([]byte("plain text"), "image/png", "front")
	assert.ErrorIs(t, err, ErrUnsupportedImageType)
}

func TestUploadRejectsOversizedPhoto(t *testing.T) {
	svc := newLocalStorage(t)

	_, err := svc.UploadProductImage(make([]byte, maxImageBytes+1), "image/png", "front")
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestImageKeyFromURL(t *testing.T) {
	assert.Equal(t, "products/front/abc123.jpg",
		ImageKeyFromURL("http://localhost:8080/uploads/products/front/abc123.jpg"))
	assert.Equal(t, "products/back/abc123.png",
		ImageKeyFromURL("https://bucket.s3.eu-central-1.amazonaws.com/products/back/abc123.png"))
	assert.Equal(t, "products/front/abc123.webp",
		ImageKeyFromURL("https://cdn.example.com/products/front/abc123.webp"))
	assert.Empty(t, ImageKeyFromURL("https://elsewhere.example.com/logo.png"))
	assert.Empty(t, ImageKeyFromURL(""))
}

func TestResolveImageURLWithoutS3ReturnsStoredURL(t *testing.T) {
	svc := newLocalStorage(t)

	stored := "http://localhost:8080/uploads/products/front/abc123.jpg"
	url, err := svc.ResolveImageURL(stored, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, stored, url)
}

func TestImageMagicBytes(t *testing.T) {
	assert.True(t, hasImageMagicBytes([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
	assert.True(t, hasImageMagicBytes(pngPhoto()))
	assert.True(t, hasImageMagicBytes(append([]byte("RIFF1234WEBP"), 0x00)))
	assert.False(t, hasImageMagicBytes([]byte("GIF89a")))
	assert.False(t, hasImageMagicBytes(nil))
}
