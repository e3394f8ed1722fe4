package tensor

import "fmt"

// MaskType 抠图语义：保留主体还是保留背景
type MaskType int

const (
	MaskObject MaskType = iota
	MaskBackground
)

func (m MaskType) String() string {
	if m == MaskObject {
		return "object"
	}
	return "background"
}

// ApplyMask 用单通道 mask 替换 RGBA 图像的 alpha 通道，RGB 原样保留。
//
//	Background: mask 非 0 时 alpha = mask，否则 0
//	Object:     mask 非 0 时 alpha = 0，否则 255 - mask
//
// mask 缺失的像素按 0 处理。
func ApplyMask(img *Tensor[uint8], mask *Tensor[uint8], mt MaskType) (*Tensor[uint8], error) {
	if img.Rank() != 3 || img.shape[2] != 4 {
		return nil, fmt.Errorf("%w: image must be HxWx4, got %s", ErrShapeMismatch, img.shape)
	}
	if mask.Rank() != 3 {
		return nil, fmt.Errorf("%w: mask must be HxWx1, got %s", ErrRank, mask.shape)
	}

	out := img.Clone()
	h, w := img.shape[0], img.shape[1]
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m, _ := mask.Get(y, x, 0)

			var alpha uint8
			switch mt {
			case MaskObject:
				if m != 0 {
					alpha = 0
				} else {
					alpha = 255 - m
				}
			default:
				if m != 0 {
					alpha = m
				} else {
					alpha = 0
				}
			}
			out.data[(y*w+x)*4+3] = alpha
		}
	}
	return out, nil
}
