package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/surgehq/surge/internal/api"
	"github.com/surgehq/surge/internal/coordinator"
	"github.com/surgehq/surge/internal/metrics"
	"github.com/surgehq/surge/internal/store"
	"github.com/surgehq/surge/internal/worker"
	pkgcontext "github.com/surgehq/surge/pkg/context"
	"github.com/surgehq/surge/pkg/log"
	"golang.org/x/sync/errgroup"
)

// shutdownGrace bounds how long serve waits for stopped runs to report their partial results
const shutdownGrace = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the load testing service",
	Long: `serve starts the api, the coordinator and the store. Runs left marked as running by a previous
process are failed on startup. On SIGINT or SIGTERM every live run is stopped and its partial
result persisted before the process exits`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := pkgcontext.WithInterruptCancellation(context.Background())
		defer cancel()

		st, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close store")
			}
		}()

		sp, err := newSpawner()
		if err != nil {
			return err
		}

		m := metrics.New()
		coord := coordinator.New(st, sp,
			coordinator.HTTPConfig(cfg.HTTP),
			coordinator.ProgressInterval(cfg.Worker.ProgressInterval),
			coordinator.WithMetrics(m),
		)
		if _, err := coord.Recover(ctx); err != nil {
			return err
		}

		log.Info().
			Str("store", cfg.Store.Driver).
			Str("isolation", string(sp.Isolation())).
			Dur("timeout", cfg.HTTP.Timeout).
			Msg("starting surge")

		srv := api.New(coord)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, cfg.Server.Addr)
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer scancel()
			return coord.Shutdown(sctx)
		})
		return g.Wait()
	},
}

// newSpawner creates the spawner for the configured isolation
func newSpawner() (worker.Spawner, error) {
	if cfg.Isolation() == worker.IsolationInProcess {
		return worker.NewInProcessSpawner(), nil
	}
	return worker.NewProcessSpawner(worker.ProcessConfig{
		Executable: cfg.Worker.Executable,
		StopGrace:  cfg.Worker.StopGrace,
	})
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address of the api (default 127.0.0.1:8080)")
	serveCmd.Flags().String("store", "", "store driver. can be sqlite,memory (default sqlite)")
	serveCmd.Flags().String("dsn", "", "sqlite database file (default surge.db)")
	serveCmd.Flags().String("isolation", "", "worker isolation. can be process,inprocess (default process)")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("store.driver", serveCmd.Flags().Lookup("store"))
	viper.BindPFlag("store.dsn", serveCmd.Flags().Lookup("dsn"))
	viper.BindPFlag("worker.isolation", serveCmd.Flags().Lookup("isolation"))
}
