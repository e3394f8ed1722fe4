//go:build cgo

package session

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/chaos-io/rembg/logger"
	"github.com/chaos-io/rembg/tensor"
)

var (
	envOnce sync.Once
	envErr  error
)

// initEnvironment 进程内只初始化一次 ONNX Runtime 环境
func initEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("initialize onnxruntime environment: %w", err)
			return
		}
		logger.Log().Info("onnxruntime environment initialized", zap.String("library", libraryPath))
	})
	return envErr
}

type ortEngine struct {
	libraryPath string
}

// NewONNXEngine 基于 onnxruntime 的引擎。libraryPath 为空时使用系统默认的共享库。
func NewONNXEngine(libraryPath string) Engine {
	return &ortEngine{libraryPath: libraryPath}
}

func (e *ortEngine) Commit(req CommitRequest) (Graph, error) {
	if err := initEnvironment(e.libraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(req.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("read model io info: %w", err)
	}
	inNames := make([]string, len(inputs))
	for i, info := range inputs {
		inNames[i] = info.Name
	}
	outNames := make([]string, len(outputs))
	for i, info := range outputs {
		outNames[i] = info.Name
	}

	opts, err := sessionOptions(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = opts.Destroy()
	}()

	s, err := ort.NewDynamicAdvancedSession(req.ModelPath, inNames, outNames, opts)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return &ortGraph{session: s, inputs: inNames, outputs: outNames}, nil
}

func sessionOptions(req CommitRequest) (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	fail := func(err error) (*ort.SessionOptions, error) {
		_ = opts.Destroy()
		return nil, err
	}

	if req.OptLevel != nil {
		if err := opts.SetGraphOptimizationLevel(graphOptLevel(*req.OptLevel)); err != nil {
			return fail(fmt.Errorf("set optimization level: %w", err))
		}
	}
	if err := opts.SetIntraOpNumThreads(req.Threads); err != nil {
		return fail(fmt.Errorf("set intra op threads: %w", err))
	}
	mode := ort.ExecutionModeSequential
	if req.Parallel {
		mode = ort.ExecutionModeParallel
	}
	if err := opts.SetExecutionMode(mode); err != nil {
		return fail(fmt.Errorf("set execution mode: %w", err))
	}
	if err := opts.SetMemPattern(req.MemPattern); err != nil {
		return fail(fmt.Errorf("set memory pattern: %w", err))
	}

	for _, p := range req.Providers {
		switch p {
		case ProviderCoreML:
			if err := opts.AppendExecutionProviderCoreML(0); err != nil {
				return fail(fmt.Errorf("append coreml provider: %w", err))
			}
		case ProviderCUDA:
			cuda, err := ort.NewCUDAProviderOptions()
			if err != nil {
				return fail(fmt.Errorf("create cuda options: %w", err))
			}
			err = opts.AppendExecutionProviderCUDA(cuda)
			_ = cuda.Destroy()
			if err != nil {
				return fail(fmt.Errorf("append cuda provider: %w", err))
			}
		default:
			// cpu 是 onnxruntime 的默认后端，无需追加
		}
	}
	return opts, nil
}

func graphOptLevel(l OptLevel) ort.GraphOptimizationLevel {
	switch l {
	case OptDisable:
		return ort.GraphOptimizationLevelDisableAll
	case OptLevel1:
		return ort.GraphOptimizationLevelEnableBasic
	case OptLevel2:
		return ort.GraphOptimizationLevelEnableExtended
	default:
		return ort.GraphOptimizationLevelEnableAll
	}
}

type ortGraph struct {
	session *ort.DynamicAdvancedSession
	inputs  []string
	outputs []string
}

func (g *ortGraph) InputNames() []string { return append([]string(nil), g.inputs...) }

func (g *ortGraph) OutputNames() []string { return append([]string(nil), g.outputs...) }

func (g *ortGraph) Run(inputs map[string]*tensor.Tensor[float32]) ([]*tensor.Tensor[float32], error) {
	values := make([]ort.Value, len(g.inputs))
	defer func() {
		for _, v := range values {
			if v != nil {
				_ = v.Destroy()
			}
		}
	}()

	for i, name := range g.inputs {
		in, ok := inputs[name]
		if !ok {
			return nil, fmt.Errorf("missing input %q", name)
		}
		dims := make([]int64, in.Rank())
		for d := range dims {
			dims[d] = int64(in.Dim(d))
		}
		// onnxruntime 直接引用这块内存，传副本避免和调用方共享
		data := append([]float32(nil), in.Data()...)
		t, err := ort.NewTensor(ort.NewShape(dims...), data)
		if err != nil {
			return nil, fmt.Errorf("create input tensor %q: %w", name, err)
		}
		values[i] = t
	}

	// 输出交给 onnxruntime 按模型元数据分配
	outputs := make([]ort.Value, len(g.outputs))
	defer func() {
		for _, v := range outputs {
			if v != nil {
				_ = v.Destroy()
			}
		}
	}()

	if err := g.session.Run(values, outputs); err != nil {
		return nil, err
	}

	result := make([]*tensor.Tensor[float32], 0, len(outputs))
	for i, v := range outputs {
		ft, ok := v.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("output %q is not a float32 tensor", g.outputs[i])
		}
		shape := ft.GetShape()
		dims := make([]int, len(shape))
		for d, n := range shape {
			dims[d] = int(n)
		}
		t, err := tensor.FromSlice(append([]float32(nil), ft.GetData()...), dims...)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, nil
}

func (g *ortGraph) Close() error {
	if g.session == nil {
		return nil
	}
	return g.session.Destroy()
}
