package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/surgehq/surge/internal/worker"
	pkgcontext "github.com/surgehq/surge/pkg/context"
	"github.com/surgehq/surge/pkg/log"
)

var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "execute one load test job read from stdin",
	Long:   `worker is spawned by surge serve for every run. It reads the job from stdin and writes its messages to stdout. Logs go to stderr as json`,
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.SetOutput(os.Stderr)
		ctx, cancel := pkgcontext.WithInterruptCancellation(context.Background())
		defer cancel()
		return worker.Serve(ctx, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
