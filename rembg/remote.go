package rembg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/chaos-io/rembg/logger"
	nhttp "github.com/chaos-io/rembg/util/http"
)

const (
	ImagePath = "/rembg/image"
	MaskPath  = "/rembg/mask"
)

// RemoteRemover 通过 HTTP 调用另一个 rembg 服务
type RemoteRemover struct {
	baseURL string
	cli     nhttp.IClient
}

var _ Remover = (*RemoteRemover)(nil)

func NewRemoteRemover(baseURL string, cli nhttp.IClient) *RemoteRemover {
	if cli == nil {
		cli = nhttp.NewHTTPClient()
	}
	return &RemoteRemover{baseURL: strings.TrimRight(baseURL, "/"), cli: cli}
}

func (r *RemoteRemover) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	data, err := r.Fetch(ctx, ImagePath, img, FormatPNG)
	if err != nil {
		return nil, err
	}
	out, _, err := Decode(data)
	return out, err
}

// Fetch 以 multipart 上传图片，返回编码后的原始结果
func (r *RemoteRemover) Fetch(ctx context.Context, path string, img image.Image, f Format) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	// file 字段，服务端要求 image/* 类型
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="upload.png"`)
	h.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}
	_ = writer.Close()

	q := url.Values{}
	q.Set("format", string(f))

	var resp []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: r.baseURL + path + "?" + q.Encode(),
		Method:     "POST",
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   &resp,
	}
	if id := RequestID(ctx); id != "" {
		reqParam.Header["X-Request-Id"] = id
	}

	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	logger.Log().Debug("get the response", zap.String("path", path), zap.Int("bytes", len(resp)))
	return resp, nil
}
