package session

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/chaos-io/rembg/logger"
)

// BaseSession 持有一个已加载的模型计算图和加载它时使用的配置
type BaseSession struct {
	modelName string
	modelPath string
	debug     bool
	options   *Options
	graph     Graph
}

// ModelPath 模型文件路径：{modelRoot}/{modelName}.onnx
func ModelPath(opts *Options, modelName string) string {
	return filepath.Join(opts.ModelRoot(), modelName+".onnx")
}

// NewBaseSession 按配置加载模型。provider 标识无法识别时记录告警并退回 CPU。
func NewBaseSession(engine Engine, debug bool, opts *Options, modelName string) (*BaseSession, error) {
	if engine == nil {
		return nil, wrapError("load", modelName, fmt.Errorf("%w: no engine", ErrModelLoad))
	}
	if opts == nil {
		opts = NewOptions()
	}
	opts, _ = opts.Build()

	path := ModelPath(opts, modelName)
	if _, err := os.Stat(path); err != nil {
		return nil, wrapError("load", modelName, fmt.Errorf("%w: %w", ErrModelLoad, err))
	}

	log := logger.Log().With(zap.String("model", modelName))

	providers := make([]Provider, 0, len(opts.Providers()))
	for _, id := range opts.Providers() {
		p, ok := parseProvider(id)
		if !ok {
			log.Warn("unknown execution provider, falling back to cpu", zap.String("provider", id))
		}
		providers = append(providers, p)
	}

	req := CommitRequest{
		ModelPath:  path,
		Threads:    opts.Threads(),
		Parallel:   opts.ParallelExecution(),
		MemPattern: opts.MemoryPattern(),
		Providers:  providers,
	}
	if level, ok := opts.OptLevel(); ok {
		req.OptLevel = &level
	}

	if debug {
		log.Debug("committing model",
			zap.String("path", path),
			zap.Int("threads", req.Threads),
			zap.Bool("parallel", req.Parallel),
			zap.Bool("memPattern", req.MemPattern),
			zap.Stringers("providers", providers),
		)
	}

	graph, err := engine.Commit(req)
	if err != nil {
		return nil, wrapError("load", modelName, fmt.Errorf("%w: %w", ErrModelLoad, err))
	}

	log.Info("model loaded", zap.String("path", path), zap.Strings("inputs", graph.InputNames()))
	return &BaseSession{
		modelName: modelName,
		modelPath: path,
		debug:     debug,
		options:   opts,
		graph:     graph,
	}, nil
}

// Graph 只读访问计算图，未加载时为 nil
func (s *BaseSession) Graph() Graph {
	if s == nil {
		return nil
	}
	return s.graph
}

func (s *BaseSession) ModelName() string { return s.modelName }

func (s *BaseSession) ModelPath() string { return s.modelPath }

func (s *BaseSession) Options() *Options { return s.options }

func (s *BaseSession) Debug() bool { return s.debug }

func (s *BaseSession) Close() error {
	if s == nil || s.graph == nil {
		return nil
	}
	return s.graph.Close()
}
