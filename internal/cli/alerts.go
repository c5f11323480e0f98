package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/upstreamlabs/fieldsync/internal/model"
)

type AlertsCmd struct{}

func NewAlertsCmd() *AlertsCmd {
	return &AlertsCmd{}
}

func (c *AlertsCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Show operational alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL, verbose, err := rootFlags(cmd)
			if err != nil {
				return err
			}
			asset, err := cmd.Flags().GetString("asset")
			if err != nil {
				return fmt.Errorf("failed to get asset flag: %w", err)
			}
			status, err := cmd.Flags().GetString("status")
			if err != nil {
				return fmt.Errorf("failed to get status flag: %w", err)
			}

			log := newLogger(verbose)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			query := url.Values{}
			if asset != "" {
				query.Set("asset", asset)
			}
			if status != "" {
				query.Set("status", status)
			}

			client := newAPIClient(serverURL)
			alerts, err := getJSON[[]model.Alert](ctx, client, "/api/alerts", query)
			if err != nil {
				log.Error("Failed to get alerts", "error", err)
				os.Exit(1)
			}

			printAlerts(alerts)
			return nil
		},
	}
	cmd.Flags().String("asset", "", "filter by asset (east, west)")
	cmd.Flags().String("status", "", "filter by status (active, acknowledged, investigating, resolved)")
	return cmd
}

func printAlerts(alerts []model.Alert) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetRowLine(true)
	table.SetHeader([]string{
		"ID", "Asset", "Facility", "Stream", "Type", "Priority", "Status", "Title", "Raised",
	})

	for _, a := range alerts {
		table.Append([]string{
			a.ID,
			string(a.Asset),
			a.NodeID,
			string(a.Stream),
			string(a.Type),
			string(a.Priority),
			string(a.Status),
			a.Title,
			a.Timestamp.Format(time.RFC3339),
		})
	}
	table.Render()
}
