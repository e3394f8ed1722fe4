package util

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/chaos-io/rembg/logger"
	nhttp "github.com/chaos-io/rembg/util/http"
)

// DownloadImage 下载图片，返回原始字节和解码后的图片
func DownloadImage(ctx context.Context, cli nhttp.IClient, url string) ([]byte, image.Image, error) {
	var imgData []byte
	err := cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: url,
		Method:     "GET",
		Response:   &imgData,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("download %s: %w", url, err)
	}

	img, _, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return imgData, img, nil
}

// OpenImage 打开本地图片
func OpenImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()

	img, _, err := image.Decode(file)
	return img, err
}

// WriteFile 写文件，目录不存在时自动创建
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Trace 记录一段操作的耗时，用法：defer util.Trace("name")()
func Trace(name string) func() {
	start := time.Now()
	return func() {
		logger.Log().Info("trace", zap.String("name", name), zap.Duration("elapsed", time.Since(start)))
	}
}
