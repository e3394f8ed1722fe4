package rembg

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/chaos-io/rembg/logger"
	"github.com/chaos-io/rembg/session"
	"github.com/chaos-io/rembg/tensor"
)

type Remover interface {
	Remove(ctx context.Context, img image.Image) (image.Image, error)
}

// Service 对外的两个操作：生成 mask 和生成去背景合成图。
// 模型在进程启动时注入，Service 本身无状态，可并发使用。
type Service struct {
	model   session.Model
	metrics *Metrics
}

var _ Remover = (*Service)(nil)

func NewService(model session.Model, metrics *Metrics) *Service {
	return &Service{model: model, metrics: metrics}
}

func (s *Service) ModelName() string { return s.model.ModelName() }

func (s *Service) Metrics() *Metrics { return s.metrics }

// Mask 生成 HxWx1 的 alpha mask，尺寸和输入图片一致。
// ctx 只在开始前检查，推理过程本身不可取消。
func (s *Service) Mask(ctx context.Context, img image.Image) (mask *tensor.Tensor[uint8], err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := s.metrics.begin(s.model.ModelName(), "mask")
	defer func() { done(err) }()

	mask, err = s.model.Run(img)
	if err != nil {
		s.logError(ctx, "mask", err)
		return nil, err
	}
	return mask, nil
}

// Cutout 生成 HxWx4 的合成图，alpha 通道来自 mask
func (s *Service) Cutout(ctx context.Context, img image.Image) (out *tensor.Tensor[uint8], err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := s.metrics.begin(s.model.ModelName(), "cutout")
	defer func() { done(err) }()

	mask, err := s.model.Run(img)
	if err != nil {
		s.logError(ctx, "cutout", err)
		return nil, err
	}
	out, err = s.model.PostProcess(mask, img)
	if err != nil {
		s.logError(ctx, "cutout", err)
		return nil, err
	}
	return out, nil
}

func (s *Service) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	out, err := s.Cutout(ctx, img)
	if err != nil {
		return nil, err
	}
	res, err := tensor.ToImage(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrImageProcessing, err)
	}
	return res, nil
}

func (s *Service) logError(ctx context.Context, op string, err error) {
	logger.Log().Error("background removal failed",
		zap.String("requestId", RequestID(ctx)),
		zap.String("model", s.model.ModelName()),
		zap.String("op", op),
		zap.Error(err),
	)
}
