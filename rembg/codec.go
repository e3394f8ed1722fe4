package rembg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/chaos-io/rembg/tensor"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrDecode            = errors.New("decode image failed")
)

const jpegQuality = 80

// Format 输出编码格式
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

func (f Format) Ext() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// Decode 解码上传的图片，返回图片和识别出的格式名
func Decode(data []byte) (image.Image, string, error) {
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return img, name, nil
}

// Encode 把 HxWxC 字节张量编码成 f 格式。png 使用最高压缩，jpeg 质量 80。
func Encode(w io.Writer, t *tensor.Tensor[uint8], f Format) error {
	img, err := tensor.ToImage(t)
	if err != nil {
		return err
	}
	switch f {
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

func EncodeBytes(t *tensor.Tensor[uint8], f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, t, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
