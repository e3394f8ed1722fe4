package cmd

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chaos-io/rembg/logger"
	"github.com/chaos-io/rembg/rembg"
	"github.com/chaos-io/rembg/tensor"
	"github.com/chaos-io/rembg/util"
	nhttp "github.com/chaos-io/rembg/util/http"
)

const defaultOutputDir = "output"

// outputFlags cutout 和 remote 共用的输出参数
type outputFlags struct {
	output string
	mask   bool
	format string
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "输出文件或目录，默认写到 ./output/<id>.<ext>")
	cmd.Flags().BoolVar(&f.mask, "mask", false, "只输出灰度 mask")
	cmd.Flags().StringVar(&f.format, "format", "", "输出格式 png|jpeg，默认合成图 png、mask jpeg")
}

func newCutoutCmd(a *app) *cobra.Command {
	var (
		out    outputFlags
		family string
	)
	cmd := &cobra.Command{
		Use:   "cutout <图片路径或URL>",
		Short: "本地推理移除图片背景",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer util.Trace("cutout")()

			format, err := resolveFormat(out.format, out.mask)
			if err != nil {
				return err
			}
			img, err := loadInput(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			model, models, err := a.loadModel(family)
			if err != nil {
				return err
			}
			defer func() {
				_ = models.Close()
			}()

			svc := rembg.NewService(model, rembg.NewMetrics(nil))
			ctx := rembg.WithRequestID(cmd.Context(), rembg.NewRequestID())

			var result *tensor.Tensor[uint8]
			if out.mask {
				result, err = svc.Mask(ctx, img)
			} else {
				result, err = svc.Cutout(ctx, img)
			}
			if err != nil {
				return err
			}

			data, err := rembg.EncodeBytes(result, format)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out.output, format, data)
		},
	}
	out.register(cmd)
	cmd.Flags().StringVarP(&family, "model", "m", "", "模型族 birefnet|u2net，覆盖配置")
	return cmd
}

// resolveFormat 未指定时合成图用 png，mask 用 jpeg，与 HTTP 接口一致
func resolveFormat(s string, mask bool) (rembg.Format, error) {
	if s != "" {
		return rembg.ParseFormat(s)
	}
	if mask {
		return rembg.FormatJPEG, nil
	}
	return rembg.FormatPNG, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func loadInput(ctx context.Context, src string) (image.Image, error) {
	if isURL(src) {
		_, img, err := util.DownloadImage(ctx, nhttp.NewHTTPClient(), src)
		return img, err
	}
	img, err := util.OpenImage(src)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src, err)
	}
	return img, nil
}

// outputPath 为空或指向目录时生成 ksuid 文件名
func outputPath(out string, f rembg.Format) string {
	name := ksuid.New().String() + f.Ext()
	if out == "" {
		return filepath.Join(defaultOutputDir, name)
	}
	if strings.HasSuffix(out, string(os.PathSeparator)) {
		return filepath.Join(out, name)
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, name)
	}
	return out
}

func writeOutput(cmd *cobra.Command, out string, f rembg.Format, data []byte) error {
	path := outputPath(out, f)
	if err := util.WriteFile(path, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logger.Log().Info("output written", zap.String("path", path), zap.Int("bytes", len(data)))
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
