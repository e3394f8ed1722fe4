package rembg

import (
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteRemover(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "png", r.URL.Query().Get("format"))
		assert.Equal(t, "req-1", r.Header.Get("X-Request-Id"))

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer func() {
			_ = file.Close()
		}()
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))

		img, err := png.Decode(file)
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// 按路径返回不同尺寸，便于区分
		b := img.Bounds()
		if r.URL.Path == MaskPath {
			_ = png.Encode(w, image.NewGray(b))
			return
		}
		_ = png.Encode(w, image.NewNRGBA(b))
	}))
	defer server.Close()

	rr := NewRemoteRemover(server.URL+"/", nil)
	ctx := WithRequestID(context.Background(), "req-1")

	out, err := rr.Remove(ctx, testImage(9, 4))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 9, 4), out.Bounds())
	assert.IsType(t, &image.NRGBA{}, out)

	data, err := rr.Fetch(ctx, MaskPath, testImage(9, 4), FormatPNG)
	require.NoError(t, err)
	mask, _, err := Decode(data)
	require.NoError(t, err)
	assert.IsType(t, &image.Gray{}, mask)
}

func TestRemoteRemover_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"image processing failed"}`))
	}))
	defer server.Close()

	_, err := NewRemoteRemover(server.URL, nil).Remove(context.Background(), testImage(2, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 422")
}
