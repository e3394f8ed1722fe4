//go:build !cgo

package session

import (
	"fmt"

	"github.com/chaos-io/rembg/logger"
)

type stubEngine struct{}

// NewONNXEngine 不支持 cgo 的构建里 onnxruntime 不可用，Commit 总是失败
func NewONNXEngine(_ string) Engine {
	logger.Log().Warn("onnxruntime requires cgo, model loading is disabled")
	return stubEngine{}
}

func (stubEngine) Commit(req CommitRequest) (Graph, error) {
	return nil, fmt.Errorf("%w: onnxruntime unavailable without cgo (%s)", ErrModelLoad, req.ModelPath)
}
