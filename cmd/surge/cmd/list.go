package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/surgehq/surge/internal/report"
)

var (
	listCollection string
	listFormat     string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list load tests, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := report.FormatFromString(listFormat)
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		lts, err := c.List(context.Background(), listCollection)
		if err != nil {
			return err
		}

		header := []string{"id", "name", "collection", "target", "rate", "duration", "state", "created"}
		rows := make([][]string, 0, len(lts))
		for _, lt := range lts {
			d := lt.Definition
			rows = append(rows, []string{
				d.ID,
				d.Name,
				d.CollectionID,
				d.Request.String(),
				strconv.FormatInt(d.Rate, 10),
				strconv.FormatInt(d.DurationSeconds, 10) + "s",
				string(lt.State),
				humanize.Time(d.CreatedAt),
			})
		}

		switch f {
		case report.Plain:
			for _, r := range rows {
				fmt.Println(report.TabString(r...))
			}
		case report.Pretty:
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader(header)
			table.SetAutoWrapText(false)
			table.AppendBulk(rows)
			table.Render()
		default:
			return fmt.Errorf("list supports the pretty and text formats")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listCollection, "collection", "", "only list load tests of this collection")
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "pretty", "list format. can be pretty,text")
}
