package session

import (
	"errors"
	"fmt"
)

var (
	// ErrModelLoad 模型文件缺失或引擎无法提交计算图
	ErrModelLoad = errors.New("model load failed")
	// ErrPredict 推理失败
	ErrPredict = errors.New("predict failed")
	// ErrNoOutput 推理成功但没有任何输出
	ErrNoOutput = errors.New("model returned no output")
	// ErrImageProcessing 图片和张量之间转换失败
	ErrImageProcessing = errors.New("image processing failed")
	ErrNotImplemented  = errors.New("not implemented")
)

// SessionError 带上下文的会话错误
type SessionError struct {
	Op    string
	Model string
	Err   error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s[%s]: %v", e.Op, e.Model, e.Err)
}

// Unwrap 支持 errors.Is/As
func (e *SessionError) Unwrap() error {
	return e.Err
}

func wrapError(op, model string, err error) error {
	if err == nil {
		return nil
	}
	return &SessionError{Op: op, Model: model, Err: err}
}
