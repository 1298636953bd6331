package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/soyeahso/gewebridge/internal/channel/wechat"
	"github.com/soyeahso/gewebridge/internal/delivery"
	"github.com/soyeahso/gewebridge/internal/gateway"
	"github.com/soyeahso/gewebridge/internal/hooks"
	"github.com/soyeahso/gewebridge/internal/responder"
	"github.com/soyeahso/gewebridge/internal/routing"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run the gewechat bridge",
	}

	cmd.AddCommand(newGatewayRunCmd())
	return cmd
}

func newGatewayRunCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the callback server and log in to the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			hookMgr := hooks.NewManager(log)
			if n := hookMgr.RegisterConfigured(cfg.Hooks); n > 0 {
				log.Info().Int("count", n).Msg("shell hooks registered")
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			client, err := newClient(cfg)
			if err != nil {
				return err
			}

			db, journal, err := openJournal(cfg)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
				log.Info().Str("path", paths.Journal).Msg("delivery journal enabled")
			}

			pipeline, temp, err := newPipeline(cfg, pipelineDeps{
				provider: client,
				hooks:    hookMgr,
				journal:  journal,
				metrics:  delivery.NewMetrics(reg),
			})
			if err != nil {
				return err
			}

			router := routing.NewRouter(responder.FromConfig(cfg.Responder, log), pipeline, hookMgr, log)
			maxAge := time.Duration(cfg.Inbound.MaxAgeSeconds) * time.Second
			webhook := wechat.NewHandler(router, maxAge, log)

			srv := gateway.New(cfg, temp.Root(), log,
				gateway.WithWebhook(webhook),
				gateway.WithHooks(hookMgr),
				gateway.WithMetrics(reg),
				gateway.WithWorkDir(paths.Base),
			)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Start(gctx)
			})
			g.Go(func() error {
				return wechat.Bootstrap(gctx, client, cfg.Gewe, paths.Config, srv.Ready(), log)
			})

			err = g.Wait()
			webhook.Wait()
			return err
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override the callback listener port")
	cmd.Flags().StringVar(&bind, "bind", "", "override the callback listener bind address")

	return cmd
}
