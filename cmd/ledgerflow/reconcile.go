package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/calloway/ledgerflow/internal/match"
	"github.com/calloway/ledgerflow/internal/ofx"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile <statement.ofx>",
		Short: "Reconcile recorded transactions against a bank statement",
		Long: `Reconcile matches the transactions already in the database against
the lines of a bank statement, reporting confident pairs and the
statement lines nothing matched.`,
		Args: cobra.ExactArgs(1),
		RunE: runReconcile,
	}

	cmd.Flags().Int("days", 45, "how many days back to consider recorded transactions")
	cmd.Flags().Float64("min-confidence", 0, "minimum confidence to report (default from config)")

	return cmd
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer func() { _ = file.Close() }()

	external, err := ofx.NewParser().ParseStatement(ctx, file)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}
	if len(external) == 0 {
		cmd.Println("Statement contains no transactions.")
		return nil
	}

	days, _ := cmd.Flags().GetInt("days")
	to := time.Now()
	from := to.AddDate(0, 0, -days)
	internal, err := store.GetTransactionsInWindow(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}

	cfg := match.DefaultReconcileConfig()
	if minConf, _ := cmd.Flags().GetFloat64("min-confidence"); minConf > 0 {
		cfg.MinConfidence = minConf
	}

	matches, err := match.NewReconciler(cfg).FindMatches(ctx, internal, external)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	matchedExternal := make(map[string]bool, len(matches))
	for _, m := range matches {
		matchedExternal[m.TargetID] = true
	}

	cmd.Printf("Matched %d of %d statement line(s):\n\n", len(matchedExternal), len(external))
	for _, m := range matches {
		cmd.Printf("  %s  $%.2f  %.0f%%  %s <-> %s\n",
			m.Date.Format("2006-01-02"), m.Amount, m.Confidence*100,
			m.SourceID, m.TargetID)
		cmd.Printf("      criteria: %s\n", strings.Join(m.MatchingCriteria, ", "))
	}

	var unmatched int
	for _, line := range external {
		if !matchedExternal[line.ID] {
			unmatched++
		}
	}
	if unmatched > 0 {
		cmd.Printf("\nUnmatched statement lines (%d):\n", unmatched)
		for _, line := range external {
			if matchedExternal[line.ID] {
				continue
			}
			cmd.Printf("  %s  $%.2f  %s\n",
				line.PostedDate.Format("2006-01-02"), line.Amount, line.DisplayDescription())
		}
	}
	return nil
}
