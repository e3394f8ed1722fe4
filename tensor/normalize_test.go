package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

func TestNormalize_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		scale float32
		mean  [3]float32
		std   [3]float32
	}{
		{name: "0-1 输入", scale: 1.0 / 255, mean: imagenetMean, std: imagenetStd},
		{name: "0-255 原始值", scale: 1, mean: [3]float32{123.675, 116.28, 103.53}, std: [3]float32{58.395, 57.12, 57.375}},
	}

	src, err := FromSlice([]uint8{0, 127, 255, 255, 0, 127}, 1, 2, 3)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			norm, err := Normalize(src, tt.scale, tt.mean, tt.std)
			require.NoError(t, err)

			back, err := Denormalize(norm, tt.scale, tt.mean, tt.std)
			require.NoError(t, err)
			assert.Equal(t, src.Data(), back.Data())
		})
	}
}

func TestNormalize_PerChannel(t *testing.T) {
	t.Parallel()

	src, err := FromSlice([]uint8{255, 255, 255}, 1, 1, 3)
	require.NoError(t, err)

	norm, err := Normalize(src, 1.0/255, imagenetMean, imagenetStd)
	require.NoError(t, err)

	for c := 0; c < 3; c++ {
		want := (1 - imagenetMean[c]) / imagenetStd[c]
		assert.InDelta(t, want, norm.At(0, 0, c), 1e-5)
	}

	_, err = Normalize(New[uint8](2, 2, 4), 1, imagenetMean, imagenetStd)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestHWCToBCHW(t *testing.T) {
	t.Parallel()

	src := New[uint8](4, 5, 3)
	got, err := HWCToBCHW(src, [3]float32{}, [3]float32{1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, Shape{1, 3, 4, 5}, got.Shape())
}

func TestToUint8_Saturation(t *testing.T) {
	t.Parallel()

	src, err := FromSlice([]float32{-0.5, 0, 0.5, 1, 1.7, float32(math.NaN())}, 6)
	require.NoError(t, err)

	tests := []struct {
		name string
		r    Rounding
		want []uint8
	}{
		{name: "截断", r: Truncate, want: []uint8{0, 0, 127, 255, 255, 0}},
		{name: "四舍五入", r: RoundNearest, want: []uint8{0, 0, 128, 255, 255, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToUint8(src, tt.r).Data())
		})
	}
}

func TestToFloat32(t *testing.T) {
	t.Parallel()

	src, err := FromSlice([]uint8{0, 255}, 2)
	require.NoError(t, err)

	got := ToFloat32(src)
	assert.Equal(t, []float32{0, 1}, got.Data())
}
