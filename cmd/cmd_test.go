package cmd

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/rembg/rembg"
	"github.com/chaos-io/rembg/session"
)

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, "input.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	require.NoError(t, png.Encode(f, image.NewNRGBA(image.Rect(0, 0, w, h))))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return strings.TrimSpace(out.String()), err
}

func TestRootCmd_Commands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "cutout", "remote"})
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestResolveFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		format  string
		mask    bool
		want    rembg.Format
		wantErr bool
	}{
		{name: "合成图默认 png", want: rembg.FormatPNG},
		{name: "mask 默认 jpeg", mask: true, want: rembg.FormatJPEG},
		{name: "显式 jpg", format: "jpg", want: rembg.FormatJPEG},
		{name: "mask 显式 png", format: "png", mask: true, want: rembg.FormatPNG},
		{name: "不支持的格式", format: "gif", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := resolveFormat(tt.format, tt.mask)
			if tt.wantErr {
				assert.ErrorIs(t, err, rembg.ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutputPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	got := outputPath("", rembg.FormatPNG)
	assert.Equal(t, defaultOutputDir, filepath.Dir(got))
	assert.Equal(t, ".png", filepath.Ext(got))

	got = outputPath(dir, rembg.FormatJPEG)
	assert.Equal(t, dir, filepath.Dir(got))
	assert.Equal(t, ".jpg", filepath.Ext(got))

	got = outputPath("out"+string(os.PathSeparator), rembg.FormatPNG)
	assert.Equal(t, "out", filepath.Dir(got))

	file := filepath.Join(dir, "result.png")
	assert.Equal(t, file, outputPath(file, rembg.FormatPNG))
}

func TestIsURLAndServerURL(t *testing.T) {
	t.Parallel()

	assert.True(t, isURL("https://example.com/a.png"))
	assert.True(t, isURL("http://example.com/a.png"))
	assert.False(t, isURL("input/a.png"))

	assert.Equal(t, "http://127.0.0.1:3080", serverURL(":3080"))
	assert.Equal(t, "http://rembg:8080", serverURL("rembg:8080"))
}

func TestRemoteCmd(t *testing.T) {
	type request struct{ path, format, id string }
	got := make(chan request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- request{path: r.URL.Path, format: r.URL.Query().Get("format"), id: r.Header.Get("X-Request-Id")}
		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, image.NewGray(image.Rect(0, 0, 6, 4)))
	}))
	defer srv.Close()

	dir := t.TempDir()
	input := writePNG(t, dir, 6, 4)
	output := filepath.Join(dir, "mask.png")

	stdout, err := execute(t, "remote", input, "--url", srv.URL, "--mask", "--format", "png", "-o", output)
	require.NoError(t, err)
	assert.Equal(t, output, stdout)

	req := <-got
	assert.Equal(t, rembg.MaskPath, req.path)
	assert.Equal(t, "png", req.format)
	assert.NotEmpty(t, req.id)

	f, err := os.Open(output)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 4), img.Bounds())
}

func TestCutoutCmd_Errors(t *testing.T) {
	t.Setenv("REMBG_MODEL_ROOT", t.TempDir())
	dir := t.TempDir()
	input := writePNG(t, dir, 4, 4)

	_, err := execute(t, "cutout", input, "-o", filepath.Join(dir, "out.png"))
	assert.ErrorIs(t, err, session.ErrModelLoad)

	_, err = execute(t, "cutout", filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = execute(t, "cutout", input, "--format", "bmp")
	assert.ErrorIs(t, err, rembg.ErrUnsupportedFormat)

	_, err = execute(t, "cutout", input, "--model", "sam")
	assert.ErrorContains(t, err, "unknown model family")

	_, err = execute(t, "cutout")
	assert.Error(t, err)
}
