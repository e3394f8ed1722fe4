package tensor

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// ToNRGBA 转为原点在 (0,0) 的 NRGBA，方便按 Pix 直接索引
func ToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Opaque 拷贝成 alpha 全为 255 的 NRGBA，透明像素保留原有 RGB
func Opaque(img image.Image) *image.NRGBA {
	src := ToNRGBA(img)
	dst := image.NewNRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// ResizeLanczos 用 Lanczos3 把图片缩放到 width x height，不保持宽高比
func ResizeLanczos(img image.Image, width, height int) image.Image {
	switch src := img.(type) {
	case *image.Gray:
		return resize.Resize(uint(width), uint(height), toGray(src), resize.Lanczos3)
	default:
		return resize.Resize(uint(width), uint(height), ToNRGBA(img), resize.Lanczos3)
	}
}

// FromImageRGB 图片转 HxWx3 字节张量，alpha 被丢弃
func FromImageRGB(img image.Image) (*Tensor[uint8], error) {
	src := ToNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	data := make([]uint8, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			data = append(data, row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	return FromSlice(data, h, w, 3)
}

// FromImageRGBA 图片转 HxWx4 字节张量（非预乘 alpha）
func FromImageRGBA(img image.Image) (*Tensor[uint8], error) {
	src := ToNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	data := make([]uint8, 0, w*h*4)
	for y := 0; y < h; y++ {
		data = append(data, src.Pix[y*src.Stride:y*src.Stride+w*4]...)
	}
	return FromSlice(data, h, w, 4)
}

// FromGray 灰度图转 HxWx1 字节张量
func FromGray(img image.Image) (*Tensor[uint8], error) {
	src := toGray(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	data := make([]uint8, 0, w*h)
	for y := 0; y < h; y++ {
		data = append(data, src.Pix[y*src.Stride:y*src.Stride+w]...)
	}
	return FromSlice(data, h, w, 1)
}

// ToImage HxWxC 字节张量转图片：1 通道得到 Gray，3/4 通道得到 NRGBA
func ToImage(t *Tensor[uint8]) (image.Image, error) {
	if t.Rank() != 3 {
		return nil, fmt.Errorf("%w: want HxWxC, got %s", ErrRank, t.shape)
	}
	h, w, c := t.shape[0], t.shape[1], t.shape[2]
	switch c {
	case 1:
		g := image.NewGray(image.Rect(0, 0, w, h))
		copy(g.Pix, t.data)
		return g, nil
	case 3:
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		for i := 0; i < w*h; i++ {
			dst.Pix[i*4] = t.data[i*3]
			dst.Pix[i*4+1] = t.data[i*3+1]
			dst.Pix[i*4+2] = t.data[i*3+2]
			dst.Pix[i*4+3] = 255
		}
		return dst, nil
	case 4:
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		copy(dst.Pix, t.data)
		return dst, nil
	default:
		return nil, fmt.Errorf("%w: %d channels cannot form an image", ErrShapeMismatch, c)
	}
}
