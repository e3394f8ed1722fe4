package rembg

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/rembg/session"
	"github.com/chaos-io/rembg/tensor"
)

// fakeModel 左半边是主体，右半边是背景
type fakeModel struct {
	err error
}

func (m *fakeModel) ModelName() string { return "fake" }

func (m *fakeModel) Run(img image.Image) (*tensor.Tensor[uint8], error) {
	if m.err != nil {
		return nil, m.err
	}
	b := img.Bounds()
	mask := tensor.New[uint8](b.Dy(), b.Dx(), 1)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx()/2; x++ {
			mask.Set(255, y, x, 0)
		}
	}
	return mask, nil
}

func (m *fakeModel) PostProcess(mask *tensor.Tensor[uint8], img image.Image) (*tensor.Tensor[uint8], error) {
	rgba, err := tensor.FromImageRGBA(img)
	if err != nil {
		return nil, err
	}
	return tensor.ApplyMask(rgba, mask, tensor.MaskBackground)
}

func testImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	return img
}

func TestService_Mask(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeModel{}, NewMetrics(nil))
	mask, err := svc.Mask(context.Background(), testImage(8, 6))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{6, 8, 1}, mask.Shape())
	assert.Equal(t, uint8(255), mask.At(0, 0, 0))
	assert.Equal(t, uint8(0), mask.At(0, 7, 0))
	assert.Equal(t, "fake", svc.ModelName())
}

func TestService_Cutout(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeModel{}, nil)
	out, err := svc.Cutout(context.Background(), testImage(8, 6))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{6, 8, 4}, out.Shape())
	assert.Equal(t, uint8(10), out.At(3, 7, 0))
	assert.Equal(t, uint8(255), out.At(3, 0, 3))
	assert.Equal(t, uint8(0), out.At(3, 7, 3))

	img, err := svc.Remove(context.Background(), testImage(8, 6))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
}

func TestService_Errors(t *testing.T) {
	t.Parallel()

	t.Run("上下文已取消", func(t *testing.T) {
		svc := NewService(&fakeModel{}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := svc.Mask(ctx, testImage(2, 2))
		assert.ErrorIs(t, err, context.Canceled)
		_, err = svc.Cutout(ctx, testImage(2, 2))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("模型错误透传", func(t *testing.T) {
		svc := NewService(&fakeModel{err: session.ErrNoOutput}, nil)
		_, err := svc.Remove(context.Background(), testImage(2, 2))
		assert.True(t, errors.Is(err, session.ErrNoOutput))
	})
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	ok := NewService(&fakeModel{}, m)
	bad := NewService(&fakeModel{err: session.ErrPredict}, m)

	_, _ = ok.Mask(context.Background(), testImage(4, 4))
	_, _ = ok.Cutout(context.Background(), testImage(4, 4))
	_, _ = bad.Mask(context.Background(), testImage(4, 4))

	stats := m.Stats()
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(0), stats.InFlight)

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]int{}
	for _, mf := range families {
		counts[mf.GetName()] = len(mf.GetMetric())
	}
	// mask/ok、cutout/ok、mask/error
	assert.Equal(t, 3, counts["rembg_inference_total"])
	assert.Equal(t, 2, counts["rembg_inference_duration_seconds"])

	var nilMetrics *Metrics
	assert.Equal(t, Stats{}, nilMetrics.Stats())
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	assert.Empty(t, RequestID(context.Background()))

	id := NewRequestID()
	assert.Len(t, id, 27)
	assert.Equal(t, id, RequestID(WithRequestID(context.Background(), id)))
}
