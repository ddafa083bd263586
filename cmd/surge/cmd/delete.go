package cmd

import (
	"context"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "delete a load test and its result",
	Long:  `delete removes the definition and its latest result. A load test that is running must be stopped first`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		c, err := newClient()
		if err != nil {
			return err
		}
		lt, err := c.Get(context.Background(), id)
		if err != nil {
			return err
		}

		if !deleteYes {
			prompt := promptui.Prompt{
				Label:     fmt.Sprintf("Delete load test %s (%s)", lt.Definition.Name, id),
				IsConfirm: true,
			}
			if _, err := prompt.Run(); err != nil {
				fmt.Println("aborted")
				return nil
			}
		}

		if err := c.Delete(context.Background(), id); err != nil {
			return err
		}
		fmt.Printf("%s deleted\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "do not ask for confirmation")
}
