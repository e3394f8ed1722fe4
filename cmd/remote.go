package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/chaos-io/rembg/rembg"
	"github.com/chaos-io/rembg/util"
	nhttp "github.com/chaos-io/rembg/util/http"
)

func newRemoteCmd(a *app) *cobra.Command {
	var (
		out     outputFlags
		baseURL string
	)
	cmd := &cobra.Command{
		Use:   "remote <图片路径或URL>",
		Short: "调用远端 rembg 服务移除背景",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer util.Trace("remote")()

			format, err := resolveFormat(out.format, out.mask)
			if err != nil {
				return err
			}
			img, err := loadInput(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if baseURL == "" {
				baseURL = serverURL(a.cfg.Server.Addr)
			}
			remover := rembg.NewRemoteRemover(baseURL, nhttp.NewHTTPClient())

			path := rembg.ImagePath
			if out.mask {
				path = rembg.MaskPath
			}
			ctx := rembg.WithRequestID(cmd.Context(), rembg.NewRequestID())
			data, err := remover.Fetch(ctx, path, img, format)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out.output, format, data)
		},
	}
	out.register(cmd)
	cmd.Flags().StringVar(&baseURL, "url", "", "服务地址，默认按 server.addr 访问本机")
	return cmd
}

// serverURL ":3080" 这类只有端口的地址指向本机
func serverURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}
