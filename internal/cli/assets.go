package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/upstreamlabs/fieldsync/internal/model"
)

type AssetsCmd struct{}

func NewAssetsCmd() *AssetsCmd {
	return &AssetsCmd{}
}

func (c *AssetsCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Show asset KPI roll-ups",
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL, verbose, err := rootFlags(cmd)
			if err != nil {
				return err
			}
			log := newLogger(verbose)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			client := newAPIClient(serverURL)
			assets, err := getJSON[[]model.Asset](ctx, client, "/api/assets", url.Values{})
			if err != nil {
				log.Error("Failed to get assets", "error", err)
				os.Exit(1)
			}

			printAssets(assets)
			return nil
		},
	}
	return cmd
}

func printAssets(assets []model.Asset) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetRowLine(true)
	table.SetHeader([]string{
		"Asset", "Status",
		"Production", "Target", "Capacity", "Deferment",
		"Trend", "Units\n(active/total)", "Constraints\n(crit/warn)",
	})

	for _, a := range assets {
		table.Append([]string{
			a.Name,
			string(a.Status),
			fmt.Sprintf("%.0f", a.Performance.CurrentProduction),
			fmt.Sprintf("%.0f", a.Performance.BusinessTarget),
			fmt.Sprintf("%.0f", a.Performance.Capacity),
			fmt.Sprintf("%.0f", a.Performance.Deferment),
			string(a.Performance.Trend),
			fmt.Sprintf("%d/%d", a.Summary.ActiveUnits, a.Summary.TotalUnits),
			fmt.Sprintf("%d/%d", a.Constraints.Critical, a.Constraints.Warning),
		})
	}
	table.Render()
}
