package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stampd-network/stampd/internal/domain"
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().String("store", "", "Show the pending issuance queue for this store id")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Show the running daemon's version and health. With --store, also show
the store's pending issuance queue.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	var version struct {
		Version string `json:"version"`
	}
	if err := apiGet("/api/version", &version); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "stampd %s\n", version.Version)
	fmt.Fprintf(os.Stdout, "API: %s\n", apiBase())

	storeID, _ := cmd.Flags().GetString("store")
	if storeID == "" {
		return nil
	}

	var queue struct {
		Requests []domain.IssuanceRequest `json:"requests"`
		Count    int                      `json:"count"`
	}
	if err := apiGet("/api/issuance?store_id="+storeID+"&status=pending", &queue); err != nil {
		return err
	}

	if queue.Count == 0 {
		fmt.Fprintln(os.Stdout, "No pending issuance requests.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "Pending issuance requests (%d):\n", queue.Count)
	for _, req := range queue.Requests {
		fmt.Fprintf(os.Stdout, "  • %s  %s (%s)  %s\n",
			req.ID, req.RequesterName, req.RequesterPhone,
			req.CreatedAt.Format("15:04:05"))
	}
	return nil
}
