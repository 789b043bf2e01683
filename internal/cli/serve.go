package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/davidthor/smartcfg/internal/server"
	"github.com/davidthor/smartcfg/pkg/service"
)

func newServeCmd() *cobra.Command {
	var (
		addr       string
		watch      bool
		initAction string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve resolved values over HTTP",
		Long: `Load a config document and serve it over HTTP for one platform.

Routes:
  GET  /v1/values/{key}?type=int|float|bool|string
  GET  /v1/language          PUT /v1/language {"language": "French"}
  GET  /v1/languages
  POST /v1/reload            re-download, falling back to the local file
  GET  /v1/events            websocket stream of load and language events
  GET  /metrics              Prometheus metrics
  GET  /healthz

--init chooses the initial load: "cloud" downloads from the backend with
the local file as fallback, "local" reads the local file, "none" starts
empty until the first reload. --watch reloads the local file when it
changes.

Examples:
  smartcfg serve --platform Android
  smartcfg serve --init local --watch --addr 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := service.ParseInitAction(initAction)
			if err != nil {
				return err
			}

			sess, err := newSession(sessionOptions{
				BackendConfig: backendConfigFlag(cmd),
				WithTransfer:  true,
			})
			if err != nil {
				return err
			}
			defer func() { _ = sess.log.Sync() }()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := sess.svc.Initialize(ctx, action); err != nil {
				return err
			}

			if watch {
				w, err := sess.svc.Watch(ctx)
				if err != nil {
					return err
				}
				defer w.Close()
			}

			srv := server.New(sess.svc, server.Options{
				Addr:    addr,
				Metrics: sess.metrics.Handler(),
				Logger:  sess.log.Named("server"),
			})

			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s config on %s\n", sess.store.Platform(), addr)
			if err := srv.ListenAndServe(ctx); err != nil {
				sess.log.Error("server stopped", zap.Error(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload the local file when it changes")
	cmd.Flags().StringVar(&initAction, "init", string(service.InitLoadFromCloud), "Initial load: cloud, local or none")

	return cmd
}
