package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calloway/ledgerflow/internal/model"
)

// unhealthyCorrectionRatio flags rules users override often enough that
// they probably misfire.
const unhealthyCorrectionRatio = 0.2

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage categorization rules",
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a categorization rule",
		RunE:  runRulesAdd,
	}
	add.Flags().String("name", "", "rule name")
	add.Flags().String("pattern", "", "description pattern to match")
	add.Flags().String("type", string(model.MatchContains), "match type (contains, exact, starts_with, ends_with, regex)")
	add.Flags().String("category", "", "category to assign")
	add.Flags().Int("priority", 0, "evaluation priority (lower runs first)")
	add.Flags().Float64("confidence", 0, "confidence override (0 uses the match-type default)")
	_ = add.MarkFlagRequired("pattern")
	_ = add.MarkFlagRequired("category")

	cmd.AddCommand(add)
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List rules",
		RunE:  runRulesList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Report rules that users frequently correct",
		RunE:  runRulesHealth,
	})

	return cmd
}

func runRulesAdd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	name, _ := cmd.Flags().GetString("name")
	pattern, _ := cmd.Flags().GetString("pattern")
	matchType, _ := cmd.Flags().GetString("type")
	category, _ := cmd.Flags().GetString("category")
	priority, _ := cmd.Flags().GetInt("priority")
	confidence, _ := cmd.Flags().GetFloat64("confidence")

	if name == "" {
		name = pattern
	}

	rule := &model.Rule{
		UserID:          currentUser(),
		Name:            name,
		Pattern:         pattern,
		Type:            model.MatchType(matchType),
		CategoryID:      category,
		Priority:        priority,
		ConfidenceScore: confidence,
		IsActive:        true,
	}

	if err := store.CreateRule(ctx, rule); err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	cmd.Printf("Created rule %d: %q -> category %s (%.0f%% confidence)\n",
		rule.ID, rule.Pattern, rule.CategoryID, rule.EffectiveConfidence()*100)
	return nil
}

func runRulesList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	ruleList, err := store.ListRules(ctx, currentUser())
	if err != nil {
		return fmt.Errorf("failed to list rules: %w", err)
	}
	if len(ruleList) == 0 {
		cmd.Println("No rules defined.")
		return nil
	}

	for _, rule := range ruleList {
		state := "active"
		if !rule.IsActive {
			state = "inactive"
		}
		cmd.Printf("  %4d  [%s] %s: %q (%s) -> %s  priority %d, %d matches\n",
			rule.ID, state, rule.Name, rule.Pattern, rule.Type,
			rule.CategoryID, rule.Priority, rule.MatchCount)
	}
	return nil
}

func runRulesHealth(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	ruleList, err := store.ListRules(ctx, currentUser())
	if err != nil {
		return fmt.Errorf("failed to list rules: %w", err)
	}

	var unhealthy int
	for _, rule := range ruleList {
		ratio := rule.CorrectionRatio()
		if ratio < unhealthyCorrectionRatio {
			continue
		}
		unhealthy++
		cmd.Printf("  %4d  %s: corrected %d of %d matches (%.0f%%)\n",
			rule.ID, rule.Name, rule.CorrectionCount, rule.MatchCount, ratio*100)
	}

	if unhealthy == 0 {
		cmd.Println("All rules look healthy.")
	} else {
		cmd.Printf("\n%d rule(s) may need attention. Consider tightening their patterns or deactivating them.\n", unhealthy)
	}
	return nil
}
