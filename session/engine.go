package session

import (
	"strings"

	"github.com/chaos-io/rembg/tensor"
)

// Provider 执行后端
type Provider int

const (
	ProviderCPU Provider = iota
	ProviderCoreML
	ProviderCUDA
)

func (p Provider) String() string {
	switch p {
	case ProviderCoreML:
		return "coreml"
	case ProviderCUDA:
		return "cuda"
	default:
		return "cpu"
	}
}

// parseProvider 未识别的标识返回 false，由调用方决定如何回退
func parseProvider(id string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "coreml":
		return ProviderCoreML, true
	case "cuda":
		return ProviderCUDA, true
	case "cpu":
		return ProviderCPU, true
	default:
		return ProviderCPU, false
	}
}

// CommitRequest 提交计算图所需的全部参数
type CommitRequest struct {
	ModelPath  string
	OptLevel   *OptLevel
	Threads    int
	Parallel   bool
	MemPattern bool
	Providers  []Provider
}

// Engine 推理引擎，把模型文件提交成可执行的计算图
type Engine interface {
	Commit(req CommitRequest) (Graph, error)
}

// Graph 已提交的计算图。Run 需要支持并发调用。
type Graph interface {
	InputNames() []string
	OutputNames() []string
	// Run 按输入名传入张量，按图声明顺序返回输出
	Run(inputs map[string]*tensor.Tensor[float32]) ([]*tensor.Tensor[float32], error)
	Close() error
}
