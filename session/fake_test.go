package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chaos-io/rembg/tensor"
)

// fakeEngine 不依赖 onnxruntime 的引擎：输出是输入红色通道的阈值 mask
type fakeEngine struct {
	desc    Descriptor
	inputs  []string
	err     error
	runErr  error
	empty   bool
	commits atomic.Int32

	mu   sync.Mutex
	last CommitRequest
}

func (e *fakeEngine) Commit(req CommitRequest) (Graph, error) {
	e.commits.Add(1)
	e.mu.Lock()
	e.last = req
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	inputs := e.inputs
	if len(inputs) == 0 {
		inputs = []string{"input_image"}
	}
	return &fakeGraph{engine: e, inputs: inputs}, nil
}

func (e *fakeEngine) lastRequest() CommitRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

type fakeGraph struct {
	engine *fakeEngine
	inputs []string
	closed atomic.Bool
}

func (g *fakeGraph) InputNames() []string  { return g.inputs }
func (g *fakeGraph) OutputNames() []string { return []string{"mask"} }
func (g *fakeGraph) Close() error          { g.closed.Store(true); return nil }

func (g *fakeGraph) Run(inputs map[string]*tensor.Tensor[float32]) ([]*tensor.Tensor[float32], error) {
	e := g.engine
	if e.runErr != nil {
		return nil, e.runErr
	}
	if e.empty {
		return nil, nil
	}

	var in *tensor.Tensor[float32]
	for _, name := range g.inputs {
		if t, ok := inputs[name]; ok {
			in = t
			break
		}
	}
	if in == nil {
		return nil, fmt.Errorf("no input among %v", g.inputs)
	}

	size := e.desc.InputSize
	if !in.Shape().Equal(tensor.Shape{1, 3, size, size}) {
		return nil, fmt.Errorf("unexpected input shape %s", in.Shape())
	}

	out := make([]float32, size*size)
	red := in.Data()[:size*size]
	for i, v := range red {
		raw := (v*e.desc.Std[0] + e.desc.Mean[0]) / e.desc.Scale
		if raw > 127 {
			out[i] = 1
		}
	}
	t, err := tensor.FromSlice(out, 1, 1, size, size)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor[float32]{t}, nil
}

var errEngine = errors.New("engine exploded")

// modelDir 建一个带空模型文件的目录
func modelDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".onnx"), []byte("onnx"), 0o644))
	}
	return dir
}
