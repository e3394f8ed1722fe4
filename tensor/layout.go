package tensor

import "fmt"

// Permute 按 axes 重新排列轴，返回新张量。
// 例如 HWC -> CHW 为 Permute(t, 2, 0, 1)。
func Permute[T Element](t *Tensor[T], axes ...int) (*Tensor[T], error) {
	rank := len(t.shape)
	if len(axes) != rank {
		return nil, fmt.Errorf("%w: %d axes for rank %d", ErrAxis, len(axes), rank)
	}
	seen := make([]bool, rank)
	for _, a := range axes {
		if a < 0 || a >= rank || seen[a] {
			return nil, fmt.Errorf("%w: bad permutation %v", ErrAxis, axes)
		}
		seen[a] = true
	}

	srcStrides := t.shape.strides()
	dstShape := make(Shape, rank)
	permStrides := make([]int, rank)
	for i, a := range axes {
		dstShape[i] = t.shape[a]
		permStrides[i] = srcStrides[a]
	}

	out := make([]T, len(t.data))
	if len(out) == 0 {
		return &Tensor[T]{shape: dstShape, data: out}, nil
	}

	// 逐个目标位置累加源偏移，避免每个元素都重新计算下标
	idx := make([]int, rank)
	src := 0
	for i := range out {
		out[i] = t.data[src]
		for d := rank - 1; d >= 0; d-- {
			idx[d]++
			src += permStrides[d]
			if idx[d] < dstShape[d] {
				break
			}
			src -= permStrides[d] * idx[d]
			idx[d] = 0
		}
	}
	return &Tensor[T]{shape: dstShape, data: out}, nil
}

// HWCToCHW height-width-channel 转 channel-height-width
func HWCToCHW[T Element](t *Tensor[T]) (*Tensor[T], error) {
	if t.Rank() != 3 {
		return nil, fmt.Errorf("%w: want HWC, got %s", ErrRank, t.shape)
	}
	return Permute(t, 2, 0, 1)
}

// CHWToHWC channel-height-width 转 height-width-channel
func CHWToHWC[T Element](t *Tensor[T]) (*Tensor[T], error) {
	if t.Rank() != 3 {
		return nil, fmt.Errorf("%w: want CHW, got %s", ErrRank, t.shape)
	}
	return Permute(t, 1, 2, 0)
}
