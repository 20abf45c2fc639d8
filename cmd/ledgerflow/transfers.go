package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/calloway/ledgerflow/internal/match"
)

func transfersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfers",
		Short: "Detect transfers between accounts",
		Long: `Transfers scans a recent window of transactions for debit/credit
pairs that look like money moving between your own accounts: matching
amounts, close dates, and descriptions that reference the other side.`,
		RunE: runTransfers,
	}

	cmd.Flags().Int("days", 30, "how many days back to scan")
	cmd.Flags().Float64("min-confidence", 0, "minimum confidence to report (default from config)")
	cmd.Flags().Int("tolerance", 0, "date tolerance in days (default from config)")

	return cmd
}

func runTransfers(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	days, _ := cmd.Flags().GetInt("days")
	to := time.Now()
	from := to.AddDate(0, 0, -days)

	txns, err := store.GetTransactionsInWindow(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}

	cfg := match.DefaultTransferConfig()
	if minConf, _ := cmd.Flags().GetFloat64("min-confidence"); minConf > 0 {
		cfg.MinConfidence = minConf
	}
	if tol, _ := cmd.Flags().GetInt("tolerance"); tol > 0 {
		cfg.DateToleranceDays = tol
	}

	detector := match.NewTransferDetector(cfg)
	candidates, err := detector.FindCandidates(ctx, txns)
	if err != nil {
		return fmt.Errorf("transfer detection failed: %w", err)
	}

	if len(candidates) == 0 {
		cmd.Printf("No transfer candidates found in the last %d days.\n", days)
		return nil
	}

	cmd.Printf("Found %d transfer candidate(s):\n\n", len(candidates))
	for _, c := range candidates {
		cmd.Printf("  %s  $%.2f  %.0f%%  %s -> %s\n",
			c.Date.Format("2006-01-02"), c.Amount, c.Confidence*100,
			c.SourceID, c.TargetID)
		cmd.Printf("      criteria: %s\n", strings.Join(c.MatchingCriteria, ", "))
	}
	return nil
}
