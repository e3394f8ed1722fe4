package session

import (
	"fmt"
	"strings"

	"github.com/chaos-io/rembg/tensor"
)

// Family 模型族
type Family string

const (
	FamilyBiRefNet Family = "birefnet"
	FamilyU2Net    Family = "u2net"
)

// ParseFamily 大小写不敏感
func ParseFamily(s string) (Family, error) {
	switch Family(strings.ToLower(strings.TrimSpace(s))) {
	case FamilyBiRefNet:
		return FamilyBiRefNet, nil
	case FamilyU2Net:
		return FamilyU2Net, nil
	default:
		return "", fmt.Errorf("unknown model family %q", s)
	}
}

// MaskResize mask 缩放回原图尺寸的方式
type MaskResize int

const (
	// ResizeLanczos 先量化成 8 位灰度图再做 Lanczos3 缩放
	ResizeLanczos MaskResize = iota
	// ResizeBilinear 先对浮点 mask 做双线性缩放再量化
	ResizeBilinear
)

// Descriptor 描述一个模型变体的全部差异，推理流程本身是通用的
type Descriptor struct {
	ModelName string
	Family    Family
	InputSize int

	// 归一化：(v*Scale - Mean[c]) / Std[c]
	Scale float32
	Mean  [3]float32
	Std   [3]float32

	// InputName 为空时按位置喂给计算图的第一个输入
	InputName string

	Rounding   tensor.Rounding
	MaskResize MaskResize
	MaskType   tensor.MaskType
}

var BiRefNet = Descriptor{
	ModelName:  "BiRefNet-general-bb_swin_v1_tiny-epoch_232",
	Family:     FamilyBiRefNet,
	InputSize:  1024,
	Scale:      1.0 / 255.0,
	Mean:       [3]float32{0.485, 0.456, 0.406},
	Std:        [3]float32{0.229, 0.224, 0.225},
	Rounding:   tensor.RoundNearest,
	MaskResize: ResizeLanczos,
	MaskType:   tensor.MaskBackground,
}

var U2Net = Descriptor{
	ModelName:  "u2net",
	Family:     FamilyU2Net,
	InputSize:  320,
	Scale:      1,
	Mean:       [3]float32{123.675, 116.28, 103.53},
	Std:        [3]float32{58.395, 57.12, 57.375},
	InputName:  "input.1",
	Rounding:   tensor.Truncate,
	MaskResize: ResizeBilinear,
	MaskType:   tensor.MaskBackground,
}

// DescriptorFor 按模型族取内置描述
func DescriptorFor(f Family) (Descriptor, error) {
	switch f {
	case FamilyBiRefNet:
		return BiRefNet, nil
	case FamilyU2Net:
		return U2Net, nil
	default:
		return Descriptor{}, fmt.Errorf("%w: model family %q", ErrNotImplemented, f)
	}
}
