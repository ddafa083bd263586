package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/surgehq/surge/pkg/log"
)

var createFlags definitionFlags

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "define a new load test",
	Long:  `create stores a load test definition on the service and prints its id. Nothing is fired until the load test is started`,
	Example: `  surge create --name checkout -X POST --url 'http://127.0.0.1:14000/orders/{{seq}}' \
    -H 'Content-Type: application/json' -d '{"id":"{{uuid}}"}' --rate 100 --duration 30s`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := createFlags.definition()
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		lt, err := c.Create(context.Background(), def)
		if err != nil {
			return err
		}
		log.Debug().Str("id", lt.Definition.ID).Str("definition", lt.Definition.String()).Msg("created load test")
		fmt.Println(lt.Definition.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createFlags.register(createCmd)
}
