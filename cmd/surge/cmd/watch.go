package cmd

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/surgehq/surge/internal/api"
	"github.com/surgehq/surge/internal/client"
	"github.com/surgehq/surge/pkg/loadtest"
	pkgcontext "github.com/surgehq/surge/pkg/context"
	"github.com/surgehq/surge/pkg/log"
	"github.com/vbauerster/mpb/v6"
	"github.com/vbauerster/mpb/v6/decor"
	"golang.org/x/sync/errgroup"
)

var watchInterval time.Duration

// watchRun drives one bar until the run of id leaves the running state
func watchRun(ctx context.Context, c *client.Client, p *mpb.Progress, id string) error {
	lt, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	d := lt.Definition
	total := d.Rate * d.DurationSeconds

	var state atomic.Value
	state.Store(string(lt.State))
	bar := p.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(d.Name, decor.WC{W: len(d.Name) + 1, C: decor.DidentRight}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.Any(func(decor.Statistics) string { return " " + state.Load().(string) }),
		),
	)

	st, err := c.Wait(ctx, id, watchInterval, func(s *api.Status) {
		state.Store(string(s.State))
		if s.Progress != nil {
			bar.SetCurrent(s.Progress.Total)
		}
	})
	if err != nil {
		bar.Abort(false)
		return err
	}
	state.Store(string(st.State))
	current := total
	if st.Result != nil {
		current = st.Result.Total
		bar.SetCurrent(current)
	}
	// a cancelled or short run completes its bar where it stopped
	bar.SetTotal(current, true)
	if st.State == loadtest.StateFailed {
		log.Warn().Str("id", id).Str("error", st.Error).Msg("load test failed")
	}
	return nil
}

var watchCmd = &cobra.Command{
	Use:   "watch <id>...",
	Short: "follow the progress of running load tests",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := pkgcontext.WithInterruptCancellation(context.Background())
		defer cancel()

		p := mpb.NewWithContext(ctx, mpb.WithOutput(os.Stderr), mpb.WithWidth(48))
		g, gctx := errgroup.WithContext(ctx)
		for _, id := range args {
			id := id
			g.Go(func() error {
				return watchRun(gctx, c, p, id)
			})
		}
		err = g.Wait()
		p.Wait()
		return err
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 500*time.Millisecond, "poll interval")
}
