package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "start a run of a load test",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.Start(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%s running\n", args[0])
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop <id>",
	Short: "stop the live run of a load test",
	Long:  `stop asks the worker to finish. The run ends after the current window and keeps its partial result`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.Stop(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%s stopping\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
}
