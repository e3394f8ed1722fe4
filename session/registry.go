package session

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/chaos-io/rembg/logger"
)

// Factory 构造一个模型，Registry 保证每个模型族最多调用一次
type Factory func() (Model, error)

type entry struct {
	once    sync.Once
	factory Factory
	model   Model
	err     error
}

// Registry 按模型族懒加载模型。
// 同一个族的并发 Get 要么都拿到同一个模型，要么都拿到同一个错误。
type Registry struct {
	mu      sync.Mutex
	entries map[Family]*entry
}

// NewRegistry 注册内置的 BiRefNet 和 U2Net，共用同一个引擎和配置
func NewRegistry(engine Engine, debug bool, opts *Options) *Registry {
	r := &Registry{entries: make(map[Family]*entry)}
	r.Register(FamilyBiRefNet, func() (Model, error) {
		return NewBiRefNet(engine, debug, opts)
	})
	r.Register(FamilyU2Net, func() (Model, error) {
		return NewU2Net(engine, debug, opts)
	})
	return r
}

// Register 覆盖已有的同名工厂，已经构造过的模型会被关闭
func (r *Registry) Register(f Family, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[f]; ok {
		// 等正在进行的构造结束，之后才能安全读取 model
		old.once.Do(func() {
			old.err = fmt.Errorf("%w: model family %q replaced", ErrModelLoad, f)
		})
		if c, ok := old.model.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Log().Warn("close replaced model", zap.String("family", string(f)), zap.Error(err))
			}
		}
	}
	r.entries[f] = &entry{factory: factory}
}

func (r *Registry) Get(f Family) (Model, error) {
	r.mu.Lock()
	e, ok := r.entries[f]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: model family %q", ErrNotImplemented, f)
	}

	e.once.Do(func() {
		e.model, e.err = e.factory()
	})
	return e.model, e.err
}

// Close 释放已经加载的模型
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, e := range r.entries {
		// 还没加载的先占住 once，之后的 Get 不会再去构造
		e.once.Do(func() {
			e.err = fmt.Errorf("%w: registry closed", ErrModelLoad)
		})
		if c, ok := e.model.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
