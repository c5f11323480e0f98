package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/upstreamlabs/fieldsync/internal/model"
)

type GapDriversCmd struct{}

func NewGapDriversCmd() *GapDriversCmd {
	return &GapDriversCmd{}
}

func (c *GapDriversCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gap-drivers",
		Short: "Show ranked production gap drivers",
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL, verbose, err := rootFlags(cmd)
			if err != nil {
				return err
			}
			asset, err := cmd.Flags().GetString("asset")
			if err != nil {
				return fmt.Errorf("failed to get asset flag: %w", err)
			}
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return fmt.Errorf("failed to get limit flag: %w", err)
			}

			log := newLogger(verbose)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			query := url.Values{}
			if asset != "" {
				query.Set("asset", asset)
			}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}

			client := newAPIClient(serverURL)
			drivers, err := getJSON[[]model.GapDriver](ctx, client, "/api/gap-drivers", query)
			if err != nil {
				log.Error("Failed to get gap drivers", "error", err)
				os.Exit(1)
			}

			printGapDrivers(drivers)
			return nil
		},
	}
	cmd.Flags().String("asset", "", "filter by asset (east, west)")
	cmd.Flags().Int("limit", 0, "truncate to the top N drivers")
	return cmd
}

func printGapDrivers(drivers []model.GapDriver) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetRowLine(true)
	table.SetHeader([]string{
		"Facility", "Asset", "Hub", "Stream", "Type",
		"Lost\nProduction", "Gap\n(%)", "Priority", "Status",
	})

	for _, d := range drivers {
		table.Append([]string{
			d.NodeID,
			string(d.Asset),
			d.UnitID,
			string(d.Network),
			string(d.GapType),
			fmt.Sprintf("%.0f %s", d.Impact.LostProduction, d.Impact.Unit),
			fmt.Sprintf("%.1f", d.Impact.Percentage),
			string(d.Priority),
			string(d.Status),
		})
	}
	table.Render()
}
