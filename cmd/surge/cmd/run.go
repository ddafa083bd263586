package cmd

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/surgehq/surge/internal/report"
	"github.com/surgehq/surge/pkg/loadtest"
	pkgcontext "github.com/surgehq/surge/pkg/context"
	"github.com/surgehq/surge/pkg/log"
)

var (
	runFlags  definitionFlags
	runFormat string
)

// progressBar follows the request count of a local run
type progressBar struct {
	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	seen int64
}

func newProgressBar(max int64) *progressBar {
	return &progressBar{
		bar: progressbar.NewOptions64(max,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("req"),
			progressbar.OptionSetDescription("requests"),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(os.Stderr, "\n")
			}),
			progressbar.OptionSpinnerType(14),
		),
	}
}

func (b *progressBar) update(p loadtest.Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d := p.Total - b.seen; d > 0 {
		b.bar.Add64(d)
		b.seen = p.Total
	}
}

func (b *progressBar) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bar.Finish()
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "fire a load test locally without the service",
	Long: `run executes a load test in this process and prints the result. It takes the same flags as create.
Interrupting a run stops it after the current window and still prints the partial result`,
	Example: `  surge run --name smoke --url http://127.0.0.1:14000/ok --rate 50 --duration 5s -f junit > smoke.xml`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := report.FormatFromString(runFormat)
		if err != nil {
			return err
		}
		def, err := runFlags.definition()
		if err != nil {
			return err
		}
		if def.Name == "" {
			def.Name = "run"
		}

		ctx := pkgcontext.Context()
		defer pkgcontext.Cancel()

		bar := newProgressBar(def.Rate * def.DurationSeconds)
		res, err := loadtest.Execute(ctx, def,
			loadtest.HTTPConfig(cfg.HTTP),
			loadtest.ProgressInterval(cfg.Worker.ProgressInterval),
			loadtest.OnProgress(bar.update),
		)
		if err != nil {
			return err
		}
		bar.finish()
		log.Debug().Int64("total", res.Total).Bool("cancelled", res.Cancelled).Msg("local run finished")

		def.Normalize()
		return report.Write(os.Stdout, f, &report.Report{Definition: def, State: res.State(), Result: res})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runFlags.register(runCmd)
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "pretty", "result format. can be pretty,text,json,junit")
}
