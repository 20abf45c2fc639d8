package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/calloway/ledgerflow/internal/model"
	"github.com/calloway/ledgerflow/internal/storage"
	"github.com/calloway/ledgerflow/internal/suggest"
)

func suggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Mine and manage rule suggestions",
		Long: `Suggest mines your categorized history for recurring description
patterns and proposes rules. Accepting a suggestion creates an active
rule; rejecting one keeps the pattern out of mining for a while.`,
	}

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Mine new rule suggestions from categorized history",
		RunE:  runSuggestGenerate,
	}
	generate.Flags().Int("limit", 10, "maximum suggestions to generate")
	generate.Flags().Float64("min-confidence", 0, "minimum pattern confidence (default from config)")

	cmd.AddCommand(generate)
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending suggestions",
		RunE:  runSuggestList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "accept <suggestion-id>",
		Short: "Accept a suggestion and create the rule",
		Args:  cobra.ExactArgs(1),
		RunE:  runSuggestAccept,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reject <suggestion-id>",
		Short: "Reject a suggestion",
		Args:  cobra.ExactArgs(1),
		RunE:  runSuggestReject,
	})

	return cmd
}

func runSuggestGenerate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	limit, _ := cmd.Flags().GetInt("limit")
	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")

	miner := suggest.NewMiner(store, store, suggest.DefaultConfig())
	suggestions, err := miner.GenerateSuggestions(ctx, currentUser(), limit, minConfidence)
	if err != nil {
		return fmt.Errorf("mining failed: %w", err)
	}
	if len(suggestions) == 0 {
		cmd.Println("No new suggestions found.")
		return nil
	}

	saved, err := store.SaveSuggestions(ctx, suggestions)
	if err != nil {
		return fmt.Errorf("failed to save suggestions: %w", err)
	}

	cmd.Printf("Generated %d suggestion(s) (%d new):\n\n", len(suggestions), saved)
	printSuggestions(cmd, suggestions)
	return nil
}

func runSuggestList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	suggestions, err := store.ListPendingSuggestions(ctx, currentUser())
	if err != nil {
		return fmt.Errorf("failed to list suggestions: %w", err)
	}
	if len(suggestions) == 0 {
		cmd.Println("No pending suggestions.")
		return nil
	}

	printSuggestions(cmd, suggestions)
	return nil
}

func runSuggestAccept(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	rule, err := store.AcceptSuggestion(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to accept suggestion: %w", err)
	}

	cmd.Printf("Created rule %d: %q -> category %s\n", rule.ID, rule.Pattern, rule.CategoryID)
	return nil
}

func runSuggestReject(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	if err := store.RejectSuggestion(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to reject suggestion: %w", err)
	}

	cmd.Println("Suggestion rejected.")
	return nil
}

func printSuggestions(cmd *cobra.Command, suggestions []model.RuleSuggestion) {
	for _, s := range suggestions {
		cmd.Printf("  %s  %q -> category %s (%d matches, %.0f%% confidence)\n",
			s.ID, s.Pattern, s.SuggestedCategoryID, s.MatchCount, s.Confidence*100)
		for _, sample := range s.SampleTransactions {
			cmd.Printf("      %s  $%.2f  %s\n",
				sample.PostedDate.Format("2006-01-02"), sample.Amount, sample.DisplayDescription())
		}
	}
}

func closeStorage(store *storage.SQLiteStorage) {
	if err := store.Close(); err != nil {
		slog.Error("failed to close storage", "error", err)
	}
}
