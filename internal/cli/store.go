package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stampd-network/stampd/internal/domain"
)

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeStatusCmd)
	storeCmd.AddCommand(storeToggleCmd)
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and control a store's operational gate",
	Long: `Inspect and control a store's open/closed gate. A closed store refuses
new stamp requests; everything already in flight is unaffected.`,
}

// ─── store status ───────────────────────────────────────────────────────────

var storeStatusCmd = &cobra.Command{
	Use:   "status STORE_ID",
	Short: "Show a store's gate state",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreStatus,
}

func runStoreStatus(cmd *cobra.Command, args []string) error {
	var st domain.Store
	if err := apiGet("/api/stores/"+args[0], &st); err != nil {
		return err
	}
	printStore(st)
	return nil
}

// ─── store toggle ───────────────────────────────────────────────────────────

var storeToggleCmd = &cobra.Command{
	Use:   "toggle STORE_ID",
	Short: "Flip a store's gate between open and closed",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreToggle,
}

func runStoreToggle(cmd *cobra.Command, args []string) error {
	var st domain.Store
	if err := apiPost("/api/stores/"+args[0]+"/toggle", &st); err != nil {
		return err
	}
	printStore(st)
	return nil
}

func printStore(st domain.Store) {
	gate := "closed"
	if st.Open {
		gate = "open"
	}
	fmt.Fprintf(os.Stdout, "%s (%s): %s\n", st.Name, st.ID, gate)
}
