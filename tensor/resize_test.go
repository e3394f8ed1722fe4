package tensor

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResizeBilinear(t *testing.T) {
	t.Parallel()

	src := New[float32](4, 6, 1)
	for i := range src.Data() {
		src.Data()[i] = float32(i%7) / 6
	}

	tests := []struct {
		name         string
		width        int
		height       int
		proportional bool
		wantShape    Shape
	}{
		{name: "原尺寸", width: 6, height: 4, wantShape: Shape{4, 6, 1}},
		{name: "放大", width: 12, height: 10, wantShape: Shape{10, 12, 1}},
		{name: "缩小", width: 3, height: 2, wantShape: Shape{2, 3, 1}},
		{name: "等比缩小", width: 3, height: 3, proportional: true, wantShape: Shape{3, 3, 1}},
		{name: "零尺寸", width: 0, height: 5, wantShape: Shape{5, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResizeBilinear(src, tt.width, tt.height, tt.proportional)
			require.NoError(t, err)
			assert.Equal(t, tt.wantShape, got.Shape())

			// 插值结果不会超出源值范围
			for _, v := range got.Data() {
				assert.GreaterOrEqual(t, v, float32(0))
				assert.LessOrEqual(t, v, float32(1))
			}
		})
	}
}

func TestResizeBilinear_Identity(t *testing.T) {
	t.Parallel()

	src, err := FromSlice([]float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, 2, 3, 1)
	require.NoError(t, err)

	got, err := ResizeBilinear(src, 3, 2, false)
	require.NoError(t, err)
	assert.InDeltaSlice(t, src.Data(), got.Data(), 1e-6)
}

func TestResizeBilinear_Errors(t *testing.T) {
	t.Parallel()

	_, err := ResizeBilinear(New[float32](4, 4), 2, 2, false)
	assert.ErrorIs(t, err, ErrRank)

	_, err = ResizeBilinear(New[float32](4, 4, 1), -1, 2, false)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

// rampTensor 4x6 单通道，值依次为 1..24
func rampTensor(t *testing.T) *Tensor[float32] {
	t.Helper()
	data := make([]float32, 24)
	for i := range data {
		data[i] = float32(i + 1)
	}
	src, err := FromSlice(data, 4, 6, 1)
	require.NoError(t, err)
	return src
}

func TestResizeBilinear_Proportional(t *testing.T) {
	t.Parallel()

	src := rampTensor(t)

	// 放大时两轴共用较小的系数 0.4
	up, err := ResizeBilinear(src, 12, 10, true)
	require.NoError(t, err)
	require.Equal(t, Shape{10, 12, 1}, up.Shape())
	assert.InDeltaSlice(t, []float32{3.4, 3.8, 4.2, 4.6}, up.Data()[12:16], 1e-4)

	// 缩小时共用较大的系数 2，最后一行读到越界邻居得 0
	down, err := ResizeBilinear(src, 3, 3, true)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, 3, 5, 13, 15, 17, 0, 0, 0}, down.Data(), 1e-5)
}

func TestResizeBilinear_WithinNeighbours(t *testing.T) {
	t.Parallel()

	src := rampTensor(t)
	srcH, srcW := src.Dim(0), src.Dim(1)

	tests := []struct {
		name   string
		width  int
		height int
	}{
		{name: "放大", width: 12, height: 10},
		{name: "缩小", width: 4, height: 3},
		{name: "单轴拉伸", width: 9, height: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ResizeBilinear(src, tt.width, tt.height, false)
			require.NoError(t, err)

			scaleX := float64(srcW) / float64(tt.width)
			scaleY := float64(srcH) / float64(tt.height)
			for y := 0; y < tt.height; y++ {
				sy := float64(y) * scaleY
				y1, y2 := int(math.Floor(sy)), min(int(math.Ceil(sy)), srcH-1)
				for x := 0; x < tt.width; x++ {
					sx := float64(x) * scaleX
					x1, x2 := int(math.Floor(sx)), min(int(math.Ceil(sx)), srcW-1)

					n := []float32{src.At(y1, x1, 0), src.At(y1, x2, 0), src.At(y2, x1, 0), src.At(y2, x2, 0)}
					lo, hi := slices.Min(n), slices.Max(n)
					v := got.At(y, x, 0)
					assert.GreaterOrEqual(t, v, lo-1e-4, "pixel (%d,%d)", y, x)
					assert.LessOrEqual(t, v, hi+1e-4, "pixel (%d,%d)", y, x)
				}
			}
		})
	}
}
