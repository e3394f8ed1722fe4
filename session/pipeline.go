package session

import (
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/chaos-io/rembg/logger"
	"github.com/chaos-io/rembg/tensor"
)

// Model 背景移除模型对外暴露的能力
type Model interface {
	// Run 生成和原图同尺寸的 HxWx1 alpha mask
	Run(img image.Image) (*tensor.Tensor[uint8], error)
	// PostProcess 用 mask 替换原图 alpha，得到 HxWx4 结果
	PostProcess(mask *tensor.Tensor[uint8], img image.Image) (*tensor.Tensor[uint8], error)
	ModelName() string
}

// Pipeline 由 Descriptor 驱动的通用推理流程：
// 缩放 -> 归一化 -> NCHW -> 推理 -> mask 还原到原图尺寸 -> 合成 alpha。
//
// Pipeline 构造后只读，可以被任意多个 goroutine 同时调用，
// 每次调用的中间张量都是新分配的。
type Pipeline struct {
	desc Descriptor
	base *BaseSession
}

var _ Model = (*Pipeline)(nil)

// NewPipeline 加载 desc 对应的模型文件
func NewPipeline(engine Engine, debug bool, opts *Options, desc Descriptor) (*Pipeline, error) {
	base, err := NewBaseSession(engine, debug, opts, desc.ModelName)
	if err != nil {
		return nil, err
	}
	return &Pipeline{desc: desc, base: base}, nil
}

func NewBiRefNet(engine Engine, debug bool, opts *Options) (*Pipeline, error) {
	return NewPipeline(engine, debug, opts, BiRefNet)
}

func NewU2Net(engine Engine, debug bool, opts *Options) (*Pipeline, error) {
	return NewPipeline(engine, debug, opts, U2Net)
}

func (p *Pipeline) ModelName() string { return p.desc.ModelName }

func (p *Pipeline) Descriptor() Descriptor { return p.desc }

func (p *Pipeline) Close() error { return p.base.Close() }

// Preprocess 把任意尺寸的图片转成 1x3xSxS 的模型输入，不保持宽高比。
// 缩放前 alpha 置为 255，透明像素的 RGB 原样参与缩放。
func (p *Pipeline) Preprocess(img image.Image) (*tensor.Tensor[float32], error) {
	size := p.desc.InputSize
	resized := tensor.ResizeLanczos(tensor.Opaque(img), size, size)

	rgb, err := tensor.FromImageRGB(resized)
	if err != nil {
		return nil, p.imageError("preprocess", err)
	}
	norm, err := tensor.Normalize(rgb, p.desc.Scale, p.desc.Mean, p.desc.Std)
	if err != nil {
		return nil, p.imageError("preprocess", err)
	}
	chw, err := tensor.HWCToCHW(norm)
	if err != nil {
		return nil, p.imageError("preprocess", err)
	}
	input, err := chw.Unsqueeze(0)
	if err != nil {
		return nil, p.imageError("preprocess", err)
	}
	return input, nil
}

// Invoke 调用一次计算图。引擎返回的错误原样透出。
func (p *Pipeline) Invoke(input *tensor.Tensor[float32]) ([]*tensor.Tensor[float32], error) {
	graph := p.base.Graph()
	if graph == nil {
		return nil, wrapError("predict", p.desc.ModelName, fmt.Errorf("%w: session not loaded", ErrPredict))
	}

	name := p.desc.InputName
	if name == "" {
		names := graph.InputNames()
		if len(names) == 0 {
			return nil, wrapError("predict", p.desc.ModelName, fmt.Errorf("%w: graph has no inputs", ErrPredict))
		}
		name = names[0]
	}

	outputs, err := graph.Run(map[string]*tensor.Tensor[float32]{name: input})
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 || outputs[0] == nil {
		return nil, wrapError("predict", p.desc.ModelName, ErrNoOutput)
	}
	return outputs, nil
}

func (p *Pipeline) Run(img image.Image) (*tensor.Tensor[uint8], error) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	logger.Log().Info("original image size",
		zap.String("model", p.desc.ModelName),
		zap.Int("width", width),
		zap.Int("height", height),
	)

	start := time.Now()
	input, err := p.Preprocess(img)
	if err != nil {
		return nil, err
	}
	outputs, err := p.Invoke(input)
	if err != nil {
		return nil, err
	}
	mask, err := p.restoreMask(outputs[0], width, height)
	if err != nil {
		return nil, err
	}

	if p.base.Debug() {
		logger.Log().Debug("mask generated",
			zap.String("model", p.desc.ModelName),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return mask, nil
}

// restoreMask 把 SxS 的模型输出还原成 height x width x 1 的字节 mask
func (p *Pipeline) restoreMask(out *tensor.Tensor[float32], width, height int) (*tensor.Tensor[uint8], error) {
	size := p.desc.InputSize
	batched, err := out.Reshape(1, 1, size, size)
	if err != nil {
		return nil, p.imageError("postprocess", err)
	}
	chw, err := batched.Squeeze(0)
	if err != nil {
		return nil, p.imageError("postprocess", err)
	}
	hwc, err := tensor.CHWToHWC(chw)
	if err != nil {
		return nil, p.imageError("postprocess", err)
	}

	var mask *tensor.Tensor[uint8]
	switch p.desc.MaskResize {
	case ResizeBilinear:
		resized, err := tensor.ResizeBilinear(hwc, width, height, false)
		if err != nil {
			return nil, p.imageError("postprocess", err)
		}
		mask = tensor.ToUint8(resized, p.desc.Rounding)
	default:
		gray, err := tensor.ToImage(tensor.ToUint8(hwc, p.desc.Rounding))
		if err != nil {
			return nil, p.imageError("postprocess", err)
		}
		mask, err = tensor.FromGray(tensor.ResizeLanczos(gray, width, height))
		if err != nil {
			return nil, p.imageError("postprocess", err)
		}
	}

	if !mask.Shape().Equal(tensor.Shape{height, width, 1}) {
		return nil, p.imageError("postprocess",
			fmt.Errorf("mask shape %s does not match image %dx%d", mask.Shape(), width, height))
	}
	return mask, nil
}

func (p *Pipeline) PostProcess(mask *tensor.Tensor[uint8], img image.Image) (*tensor.Tensor[uint8], error) {
	rgba, err := tensor.FromImageRGBA(img)
	if err != nil {
		return nil, p.imageError("compose", err)
	}
	if mask.Rank() != 3 || mask.Dim(0) != rgba.Dim(0) || mask.Dim(1) != rgba.Dim(1) {
		return nil, p.imageError("compose",
			fmt.Errorf("mask shape %s does not match image %s", mask.Shape(), rgba.Shape()))
	}
	out, err := tensor.ApplyMask(rgba, mask, p.desc.MaskType)
	if err != nil {
		return nil, p.imageError("compose", err)
	}
	return out, nil
}

func (p *Pipeline) imageError(op string, err error) error {
	return wrapError(op, p.desc.ModelName, fmt.Errorf("%w: %w", ErrImageProcessing, err))
}
