package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/surgehq/surge/internal/api"
	"github.com/surgehq/surge/internal/client"
	"github.com/surgehq/surge/internal/report"
	"github.com/surgehq/surge/pkg/loadtest"
	pkgcontext "github.com/surgehq/surge/pkg/context"
)

var (
	statusWait     bool
	statusInterval time.Duration
	statusFormat   string
	reportFormat   string
)

// fetchReport combines the definition and the status of id
func fetchReport(ctx context.Context, c *client.Client, id string, st *api.Status) (*report.Report, error) {
	lt, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		if st, err = c.Status(ctx, id); err != nil {
			return nil, err
		}
	}
	return &report.Report{Definition: lt.Definition, State: st.State, Result: st.Result, Error: st.Error}, nil
}

func printProgress(st *api.Status) {
	if st.Progress == nil {
		return
	}
	p := st.Progress
	fmt.Fprintf(os.Stderr, "%s %s: %d requests, %d succeeded, %d failed, %d windows, %s elapsed\n",
		st.ID, st.State, p.Total, p.Succeeded, p.Failed, p.Windows,
		(time.Duration(p.ElapsedMs) * time.Millisecond).Round(time.Millisecond))
}

var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "show the state and latest result of a load test",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := report.FormatFromString(statusFormat)
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}

		ctx := context.Background()
		var st *api.Status
		if statusWait {
			wctx, cancel := pkgcontext.WithInterruptCancellation(ctx)
			defer cancel()
			if st, err = c.Wait(wctx, args[0], statusInterval, printProgress); err != nil {
				return err
			}
		} else {
			if st, err = c.Status(ctx, args[0]); err != nil {
				return err
			}
			printProgress(st)
		}

		r, err := fetchReport(ctx, c, args[0], st)
		if err != nil {
			return err
		}
		return report.Write(os.Stdout, f, r)
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <id>",
	Short: "render the latest result of a load test",
	Long:  `report renders the latest result as a table, plain text, json or a junit xml test suite for ci systems`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := report.FormatFromString(reportFormat)
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		r, err := fetchReport(context.Background(), c, args[0], nil)
		if err != nil {
			return err
		}
		if err := report.Write(os.Stdout, f, r); err != nil {
			return err
		}
		if f == report.JUnit && r.State == loadtest.StateFailed {
			return fmt.Errorf("load test %s failed: %s", args[0], r.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reportCmd)

	statusCmd.Flags().BoolVarP(&statusWait, "wait", "w", false, "poll until the run is no longer running")
	statusCmd.Flags().DurationVar(&statusInterval, "interval", time.Second, "poll interval used with --wait")
	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "pretty", "result format. can be pretty,text,json,junit")

	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "pretty", "result format. can be pretty,text,json,junit")
}
