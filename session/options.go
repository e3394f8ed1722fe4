package session

import (
	"fmt"
	"strings"
)

// OptLevel 计算图优化级别
type OptLevel int

const (
	OptDisable OptLevel = iota
	OptLevel1
	OptLevel2
	OptLevel3
)

func (l OptLevel) String() string {
	switch l {
	case OptDisable:
		return "disable"
	case OptLevel1:
		return "1"
	case OptLevel2:
		return "2"
	case OptLevel3:
		return "3"
	default:
		return fmt.Sprintf("OptLevel(%d)", int(l))
	}
}

// ParseOptLevel 解析 disable|0|1|2|3
func ParseOptLevel(s string) (OptLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disable", "0":
		return OptDisable, nil
	case "1":
		return OptLevel1, nil
	case "2":
		return OptLevel2, nil
	case "3":
		return OptLevel3, nil
	default:
		return 0, fmt.Errorf("unknown optimization level %q", s)
	}
}

const DefaultModelRoot = "models/onnx"

// Options 会话配置。所有 With* 方法返回修改后的副本，不会改动接收者，
// 同一份配置可以安全地在多个会话之间共享。
type Options struct {
	optLevel          *OptLevel
	numThreads        int
	parallelExecution bool
	memoryPattern     bool
	providers         []string
	modelRoot         string
}

// NewOptions 默认配置
func NewOptions() *Options {
	level := OptLevel3
	return &Options{
		optLevel:          &level,
		numThreads:        32,
		parallelExecution: true,
		memoryPattern:     true,
		providers:         []string{"coreml"},
		modelRoot:         DefaultModelRoot,
	}
}

func (o *Options) clone() *Options {
	c := *o
	if o.optLevel != nil {
		level := *o.optLevel
		c.optLevel = &level
	}
	c.providers = append([]string(nil), o.providers...)
	return &c
}

func (o *Options) WithOptLevel(level OptLevel) *Options {
	c := o.clone()
	c.optLevel = &level
	return c
}

// WithoutOptLevel 清除优化级别，交给引擎默认值
func (o *Options) WithoutOptLevel() *Options {
	c := o.clone()
	c.optLevel = nil
	return c
}

func (o *Options) WithNumThreads(n int) *Options {
	c := o.clone()
	c.numThreads = n
	return c
}

func (o *Options) WithParallelExecution(on bool) *Options {
	c := o.clone()
	c.parallelExecution = on
	return c
}

func (o *Options) WithMemoryPattern(on bool) *Options {
	c := o.clone()
	c.memoryPattern = on
	return c
}

func (o *Options) WithProviders(providers ...string) *Options {
	c := o.clone()
	c.providers = append([]string(nil), providers...)
	return c
}

func (o *Options) WithModelRoot(root string) *Options {
	c := o.clone()
	c.modelRoot = root
	return c
}

// Build 目前不做校验，返回一份独立副本
func (o *Options) Build() (*Options, error) {
	return o.clone(), nil
}

// OptLevel 未设置时 ok 为 false
func (o *Options) OptLevel() (level OptLevel, ok bool) {
	if o.optLevel == nil {
		return 0, false
	}
	return *o.optLevel, true
}

func (o *Options) NumThreads() int { return o.numThreads }

// Threads 实际交给引擎的线程数，非正数按 1 处理
func (o *Options) Threads() int {
	if o.numThreads <= 0 {
		return 1
	}
	return o.numThreads
}

func (o *Options) ParallelExecution() bool { return o.parallelExecution }

func (o *Options) MemoryPattern() bool { return o.memoryPattern }

func (o *Options) Providers() []string { return append([]string(nil), o.providers...) }

func (o *Options) ModelRoot() string {
	if o.modelRoot == "" {
		return DefaultModelRoot
	}
	return o.modelRoot
}
