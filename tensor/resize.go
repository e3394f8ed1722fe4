package tensor

import (
	"fmt"
	"math"
)

// ResizeBilinear 对 HWC 浮点张量做双线性插值缩放到 newHeight x newWidth。
//
// 每个目标像素映射回源坐标，取上下左右四个整数邻居（夹在源图范围内）做加权混合。
// proportional 为 true 时两个轴使用同一个缩放系数：缩小时取较大者，放大时取较小者。
// 越界的邻居按 0 处理，退化输入的边缘会因此变暗。
func ResizeBilinear(t *Tensor[float32], newWidth, newHeight int, proportional bool) (*Tensor[float32], error) {
	if t.Rank() != 3 {
		return nil, fmt.Errorf("%w: bilinear resize wants HWC, got %s", ErrRank, t.shape)
	}
	if newWidth < 0 || newHeight < 0 {
		return nil, fmt.Errorf("%w: negative target size %dx%d", ErrShapeMismatch, newWidth, newHeight)
	}

	srcHeight, srcWidth, channels := t.shape[0], t.shape[1], t.shape[2]
	out := New[float32](newHeight, newWidth, channels)
	if newWidth == 0 || newHeight == 0 {
		return out, nil
	}

	scaleX := float64(srcWidth) / float64(newWidth)
	scaleY := float64(srcHeight) / float64(newHeight)

	if proportional {
		if math.Max(scaleX, scaleY) > 1.0 {
			scaleY = math.Max(scaleX, scaleY)
		} else {
			scaleY = math.Min(scaleX, scaleY)
		}
		scaleX = scaleY
	}

	get := func(y, x, c int) float64 {
		if y < 0 || y >= srcHeight || x < 0 || x >= srcWidth {
			return 0
		}
		return float64(t.data[(y*srcWidth+x)*channels+c])
	}

	for y := 0; y < newHeight; y++ {
		srcY := float64(y) * scaleY
		y1 := math.Max(math.Floor(srcY), 0)
		y2 := math.Min(math.Ceil(srcY), float64(srcHeight)-1)
		dy := srcY - y1

		for x := 0; x < newWidth; x++ {
			srcX := float64(x) * scaleX
			x1 := math.Max(math.Floor(srcX), 0)
			x2 := math.Min(math.Ceil(srcX), float64(srcWidth)-1)
			dx := srcX - x1

			base := (y*newWidth + x) * channels
			for c := 0; c < channels; c++ {
				p1 := get(int(y1), int(x1), c)
				p2 := get(int(y1), int(x2), c)
				p3 := get(int(y2), int(x1), c)
				p4 := get(int(y2), int(x2), c)

				v := (1-dx)*(1-dy)*p1 +
					dx*(1-dy)*p2 +
					(1-dx)*dy*p3 +
					dx*dy*p4
				out.data[base+c] = float32(v)
			}
		}
	}

	return out, nil
}
