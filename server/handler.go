package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chaos-io/rembg/logger"
	"github.com/chaos-io/rembg/rembg"
	"github.com/chaos-io/rembg/session"
	"github.com/chaos-io/rembg/tensor"
)

const formFileField = "file"

var errBadUpload = errors.New("bad upload")

// Service 处理请求需要的核心能力，rembg.Service 实现了它
type Service interface {
	Mask(ctx context.Context, img image.Image) (*tensor.Tensor[uint8], error)
	Cutout(ctx context.Context, img image.Image) (*tensor.Tensor[uint8], error)
	ModelName() string
}

type produceFunc func(ctx context.Context, img image.Image) (*tensor.Tensor[uint8], error)

type handler struct {
	svc       Service
	limiter   *Limiter
	maxUpload int64
}

// image POST /rembg/image 返回去背景后的 png
func (h *handler) image(c *gin.Context) {
	h.process(c, "cutout", rembg.FormatPNG, h.svc.Cutout)
}

// mask POST /rembg/mask 返回灰度 mask，默认 jpeg
func (h *handler) mask(c *gin.Context) {
	h.process(c, "mask", rembg.FormatJPEG, h.svc.Mask)
}

func (h *handler) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
		"model":   h.svc.ModelName(),
		"inUse":   h.limiter.InUse(),
	})
}

func (h *handler) process(c *gin.Context, op string, format rembg.Format, produce produceFunc) {
	ctx := c.Request.Context()

	// 格式在派发前校验
	if q := c.Query("format"); q != "" {
		f, err := rembg.ParseFormat(q)
		if err != nil {
			h.fail(c, op, err)
			return
		}
		format = f
	}

	img, err := h.readImage(c)
	if err != nil {
		h.fail(c, op, err)
		return
	}

	release, err := h.limiter.Acquire(ctx)
	if err != nil {
		h.fail(c, op, err)
		return
	}
	defer release()

	out, err := produce(ctx, img)
	if err != nil {
		h.fail(c, op, err)
		return
	}

	data, err := rembg.EncodeBytes(out, format)
	if err != nil {
		h.fail(c, op, fmt.Errorf("encode %s: %w", format, err))
		return
	}
	c.Data(http.StatusOK, format.ContentType(), data)
}

func (h *handler) readImage(c *gin.Context) (image.Image, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	fh, err := c.FormFile(formFileField)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadUpload, err)
	}
	if ct := fh.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: content type %q is not an image", errBadUpload, ct)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadUpload, err)
	}
	defer func() {
		_ = f.Close()
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadUpload, err)
	}
	img, _, err := rembg.Decode(data)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (h *handler) fail(c *gin.Context, op string, err error) {
	status := statusOf(err)
	log := logger.Log()
	fields := []zap.Field{
		zap.String("requestId", rembg.RequestID(c.Request.Context())),
		zap.String("op", op),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
	} else {
		log.Warn("request rejected", fields...)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadUpload),
		errors.Is(err, rembg.ErrDecode),
		errors.Is(err, rembg.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrImageProcessing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrBusy):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
