package tensor

import (
	"fmt"
	"math"
)

// Rounding 浮点转字节时的取整规则
type Rounding int

const (
	// Truncate 直接截断小数部分
	Truncate Rounding = iota
	// RoundNearest 四舍五入（远离零）
	RoundNearest
)

func (r Rounding) String() string {
	if r == RoundNearest {
		return "round"
	}
	return "truncate"
}

// saturate 饱和转换：NaN 和负数得 0，超过 255 得 255
func saturate(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

// ToFloat32 字节张量缩放到 [0,1]
func ToFloat32(t *Tensor[uint8]) *Tensor[float32] {
	return Map(t, func(v uint8) float32 { return float32(v) / 255.0 })
}

// ToUint8 浮点张量乘 255 后按 r 取整并饱和到字节
func ToUint8(t *Tensor[float32], r Rounding) *Tensor[uint8] {
	return Map(t, func(v float32) uint8 {
		x := float64(v * 255.0)
		if r == RoundNearest {
			x = math.Round(x)
		}
		return saturate(x)
	})
}

// Normalize 对 HWC 字节张量逐通道归一化：(v*scale - mean[c]) / std[c]。
//
// scale 为 1/255 时对应 [0,1] 输入的均值方差（BiRefNet），
// 为 1 时直接使用 0-255 原始值（U2Net 的训练约定）。
func Normalize(t *Tensor[uint8], scale float32, mean, std [3]float32) (*Tensor[float32], error) {
	if t.Rank() != 3 || t.shape[2] != 3 {
		return nil, fmt.Errorf("%w: normalize wants HWC with 3 channels, got %s", ErrShapeMismatch, t.shape)
	}
	out := make([]float32, len(t.data))
	for i, v := range t.data {
		c := i % 3
		out[i] = (float32(v)*scale - mean[c]) / std[c]
	}
	return &Tensor[float32]{shape: t.shape.clone(), data: out}, nil
}

// Denormalize Normalize 的逆运算，四舍五入并饱和到字节
func Denormalize(t *Tensor[float32], scale float32, mean, std [3]float32) (*Tensor[uint8], error) {
	if t.Rank() != 3 || t.shape[2] != 3 {
		return nil, fmt.Errorf("%w: denormalize wants HWC with 3 channels, got %s", ErrShapeMismatch, t.shape)
	}
	out := make([]uint8, len(t.data))
	for i, v := range t.data {
		c := i % 3
		x := (float64(v)*float64(std[c]) + float64(mean[c])) / float64(scale)
		out[i] = saturate(math.Round(x))
	}
	return &Tensor[uint8]{shape: t.shape.clone(), data: out}, nil
}

// HWCToBCHW 原始 0-255 值归一化后转成 1xCxHxW
func HWCToBCHW(t *Tensor[uint8], mean, std [3]float32) (*Tensor[float32], error) {
	norm, err := Normalize(t, 1, mean, std)
	if err != nil {
		return nil, err
	}
	chw, err := HWCToCHW(norm)
	if err != nil {
		return nil, err
	}
	return chw.Unsqueeze(0)
}
