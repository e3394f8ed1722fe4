package tensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrShapeMismatch = errors.New("tensor: shape mismatch")
	ErrRank          = errors.New("tensor: unexpected rank")
	ErrAxis          = errors.New("tensor: invalid axis")
)

// Element 张量支持的元素类型：8 位无符号整数或 32 位浮点
type Element interface {
	uint8 | float32
}

type DType int

const (
	Uint8 DType = iota
	Float32
)

func (d DType) String() string {
	switch d {
	case Uint8:
		return "uint8"
	case Float32:
		return "float32"
	default:
		return "unknown"
	}
}

// Shape 张量形状，例如 HWC 的 {h, w, c} 或 NCHW 的 {1, c, h, w}
type Shape []int

// Size 元素总数
func (s Shape) Size() int {
	if len(s) == 0 {
		return 0
	}
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func (s Shape) clone() Shape {
	return append(Shape(nil), s...)
}

// strides 行主序步长
func (s Shape) strides() []int {
	st := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		st[i] = acc
		acc *= s[i]
	}
	return st
}

// Tensor 带形状的多维数组，数据按行主序平铺存储。
//
// 形状是张量身份的一部分：所有改变布局或类型的操作都返回新的张量，
// 不会原地修改，也不会和输入共享底层数组。
type Tensor[T Element] struct {
	shape Shape
	data  []T
}

// New 创建一个全零张量
func New[T Element](shape ...int) *Tensor[T] {
	s := Shape(shape).clone()
	return &Tensor[T]{shape: s, data: make([]T, s.Size())}
}

// FromSlice 用已有数据构造张量，数据长度必须和形状匹配。
// data 由张量接管，调用方之后不应再修改它。
func FromSlice[T Element](data []T, shape ...int) (*Tensor[T], error) {
	s := Shape(shape).clone()
	if len(data) != s.Size() {
		return nil, fmt.Errorf("%w: %d elements cannot fill shape %s", ErrShapeMismatch, len(data), s)
	}
	return &Tensor[T]{shape: s, data: data}, nil
}

func (t *Tensor[T]) Shape() Shape { return t.shape.clone() }

func (t *Tensor[T]) Rank() int { return len(t.shape) }

func (t *Tensor[T]) Dim(i int) int { return t.shape[i] }

func (t *Tensor[T]) Len() int { return len(t.data) }

// Data 返回底层数据，只读使用
func (t *Tensor[T]) Data() []T { return t.data }

func (t *Tensor[T]) DType() DType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return Float32
	default:
		return Uint8
	}
}

func (t *Tensor[T]) offset(idx []int) (int, bool) {
	if len(idx) != len(t.shape) {
		return 0, false
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			return 0, false
		}
		off = off*t.shape[i] + v
	}
	return off, true
}

// At 按下标取值，越界会 panic
func (t *Tensor[T]) At(idx ...int) T {
	off, ok := t.offset(idx)
	if !ok {
		panic(fmt.Sprintf("tensor: index %v out of range for shape %s", idx, t.shape))
	}
	return t.data[off]
}

// Get 按下标取值，越界返回零值和 false
func (t *Tensor[T]) Get(idx ...int) (T, bool) {
	off, ok := t.offset(idx)
	if !ok {
		var zero T
		return zero, false
	}
	return t.data[off], true
}

func (t *Tensor[T]) Set(v T, idx ...int) {
	off, ok := t.offset(idx)
	if !ok {
		panic(fmt.Sprintf("tensor: index %v out of range for shape %s", idx, t.shape))
	}
	t.data[off] = v
}

func (t *Tensor[T]) Clone() *Tensor[T] {
	return &Tensor[T]{shape: t.shape.clone(), data: append([]T(nil), t.data...)}
}

// Equal 形状和数据都相同
func (t *Tensor[T]) Equal(o *Tensor[T]) bool {
	if o == nil || !t.shape.Equal(o.shape) {
		return false
	}
	for i := range t.data {
		if t.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

// Reshape 返回新形状的副本，元素总数必须不变
func (t *Tensor[T]) Reshape(shape ...int) (*Tensor[T], error) {
	s := Shape(shape)
	if s.Size() != len(t.data) {
		return nil, fmt.Errorf("%w: cannot reshape %s into %s", ErrShapeMismatch, t.shape, s)
	}
	return &Tensor[T]{shape: s.clone(), data: append([]T(nil), t.data...)}, nil
}

// Squeeze 删除一个长度为 1 的轴
func (t *Tensor[T]) Squeeze(axis int) (*Tensor[T], error) {
	if axis < 0 || axis >= len(t.shape) {
		return nil, fmt.Errorf("%w: %d for rank %d", ErrAxis, axis, len(t.shape))
	}
	if t.shape[axis] != 1 {
		return nil, fmt.Errorf("%w: axis %d has length %d", ErrShapeMismatch, axis, t.shape[axis])
	}
	s := make(Shape, 0, len(t.shape)-1)
	s = append(s, t.shape[:axis]...)
	s = append(s, t.shape[axis+1:]...)
	return &Tensor[T]{shape: s, data: append([]T(nil), t.data...)}, nil
}

// Unsqueeze 在 axis 位置插入一个长度为 1 的轴
func (t *Tensor[T]) Unsqueeze(axis int) (*Tensor[T], error) {
	if axis < 0 || axis > len(t.shape) {
		return nil, fmt.Errorf("%w: %d for rank %d", ErrAxis, axis, len(t.shape))
	}
	s := make(Shape, 0, len(t.shape)+1)
	s = append(s, t.shape[:axis]...)
	s = append(s, 1)
	s = append(s, t.shape[axis:]...)
	return &Tensor[T]{shape: s, data: append([]T(nil), t.data...)}, nil
}

// Map 对每个元素做变换，生成新张量（可换类型）
func Map[T, U Element](t *Tensor[T], fn func(T) U) *Tensor[U] {
	out := make([]U, len(t.data))
	for i, v := range t.data {
		out[i] = fn(v)
	}
	return &Tensor[U]{shape: t.shape.clone(), data: out}
}
