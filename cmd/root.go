package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chaos-io/rembg/config"
	"github.com/chaos-io/rembg/logger"
	"github.com/chaos-io/rembg/session"
)

// app 各子命令共享的运行时状态，在 PersistentPreRunE 中填充
type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	var configPath string
	a := &app{}

	root := &cobra.Command{
		Use:   "rembg",
		Short: "基于 ONNX 模型的图片背景移除",
		Long: `rembg 使用 BiRefNet 或 U2Net 模型移除图片背景。

子命令:
  serve    启动 HTTP 服务
  cutout   本地推理，输出透明背景图或 mask
  remote   调用远端 rembg 服务

配置优先级: 环境变量(.env) > yaml 配置文件 > 默认值`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.LoggerOptions()); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.cfg = cfg
			logger.S().Debugf("config loaded from %q, model family %s", configPath, cfg.Model.Family)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			logger.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "yaml 配置文件路径")
	root.AddCommand(newServeCmd(a), newCutoutCmd(a), newRemoteCmd(a))
	return root
}

// Execute 执行根命令
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

// loadModel 按配置创建引擎并取出模型，family 非空时覆盖配置。
// 调用方负责关闭返回的注册表。
func (a *app) loadModel(family string) (session.Model, *session.Registry, error) {
	if family != "" {
		a.cfg.Model.Family = family
	}
	f, err := a.cfg.ModelFamily()
	if err != nil {
		return nil, nil, err
	}
	desc, err := session.DescriptorFor(f)
	if err != nil {
		return nil, nil, err
	}
	logger.Log().Info("loading model",
		zap.String("family", string(f)),
		zap.String("model", desc.ModelName),
		zap.Int("inputSize", desc.InputSize),
	)
	opts, err := a.cfg.SessionOptions()
	if err != nil {
		return nil, nil, err
	}

	engine := session.NewONNXEngine(a.cfg.Model.LibraryPath)
	models := session.NewRegistry(engine, a.cfg.Model.Debug, opts)
	model, err := models.Get(f)
	if err != nil {
		_ = models.Close()
		return nil, nil, err
	}
	return model, models, nil
}
