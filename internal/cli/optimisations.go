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

type OptimisationsCmd struct{}

func NewOptimisationsCmd() *OptimisationsCmd {
	return &OptimisationsCmd{}
}

func (c *OptimisationsCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimisations",
		Short: "Show optimisation actions",
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
			actions, err := getJSON[[]model.OptimisationAction](ctx, client, "/api/optimisations", query)
			if err != nil {
				log.Error("Failed to get optimisations", "error", err)
				os.Exit(1)
			}

			printOptimisations(actions)
			return nil
		},
	}
	cmd.Flags().String("asset", "", "filter by asset (east, west)")
	cmd.Flags().String("status", "", "filter by status (pending, acknowledged, implementing, completed, dismissed, rejected)")
	return cmd
}

func printOptimisations(actions []model.OptimisationAction) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetRowLine(true)
	table.SetHeader([]string{
		"ID", "Asset", "Facility", "Stream", "Priority", "Status",
		"Potential\nGain", "Title",
	})

	for _, a := range actions {
		table.Append([]string{
			a.ID,
			string(a.Asset),
			a.NodeID,
			string(a.Stream),
			string(a.Priority),
			string(a.Status),
			fmt.Sprintf("%.0f %s", a.PotentialGain, a.Unit),
			a.Title,
		})
	}
	table.Render()
}
