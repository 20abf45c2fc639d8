package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/calloway/ledgerflow/internal/engine"
	"github.com/calloway/ledgerflow/internal/llm"
	"github.com/calloway/ledgerflow/internal/ml"
	"github.com/calloway/ledgerflow/internal/storage"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify unclassified transactions",
		Long: `Classify runs every unclassified transaction through the staged
pipeline. High-confidence results are applied immediately; weaker ones
are stored as candidates for review with "ledgerflow resolve".`,
		RunE: runClassify,
	}

	cmd.Flags().String("since", "", "only classify transactions posted on or after this date (YYYY-MM-DD)")
	cmd.Flags().Int("batch-size", 100, "transactions per pipeline batch")
	cmd.Flags().Bool("dry-run", false, "classify but do not persist outcomes")
	_ = viper.BindPFlag("classify.batch_size", cmd.Flags().Lookup("batch-size"))

	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	var since *time.Time
	if sinceStr, _ := cmd.Flags().GetString("since"); sinceStr != "" {
		parsed, parseErr := time.Parse("2006-01-02", sinceStr)
		if parseErr != nil {
			return fmt.Errorf("invalid --since date %q: %w", sinceStr, parseErr)
		}
		since = &parsed
	}

	txns, err := store.GetUnclassifiedTransactions(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}
	if len(txns) == 0 {
		cmd.Println("No unclassified transactions found.")
		return nil
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	batchSize := viper.GetInt("classify.batch_size")
	if batchSize <= 0 {
		batchSize = 100
	}
	userID := currentUser()

	mlStage, llmStage, err := buildClassifierStages(ctx, store, userID)
	if err != nil {
		return err
	}

	pipeline := engine.New(store, store, store, mlStage, llmStage, engine.DefaultConfig())

	bar := progressbar.NewOptions(len(txns),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Classifying transactions..."),
	)

	var totals engine.BatchMetrics
	totals.ByStage = make(map[string]int)

	for start := 0; start < len(txns); start += batchSize {
		end := min(start+batchSize, len(txns))
		batch := txns[start:end]

		outcomes, metrics, batchErr := pipeline.ClassifyBatch(ctx, batch, userID)
		if batchErr != nil {
			return fmt.Errorf("classification failed: %w", batchErr)
		}

		if !dryRun {
			if saveErr := store.SaveOutcomes(ctx, outcomes); saveErr != nil {
				return fmt.Errorf("failed to save outcomes: %w", saveErr)
			}
		}

		mergeMetrics(&totals, metrics)
		_ = bar.Add(len(batch))
	}
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	cmd.Printf("Classified %d transactions:\n", totals.Total)
	cmd.Printf("  auto-applied: %d\n", totals.AutoApplied)
	cmd.Printf("  candidates:   %d\n", totals.Candidates)
	cmd.Printf("  unresolved:   %d\n", totals.Unresolved)
	for stage, n := range totals.ByStage {
		cmd.Printf("  via %s: %d\n", stage, n)
	}
	if totals.StageFailures > 0 {
		cmd.Printf("  stage failures: %d (see logs)\n", totals.StageFailures)
	}
	if dryRun {
		cmd.Println("Dry run: no outcomes were saved.")
	}
	return nil
}

// buildClassifierStages assembles the optional pipeline stages: the
// statistical model when there is enough categorized history to train on,
// and the language model when an API key is configured. Either may come
// back nil, which disables that stage.
func buildClassifierStages(ctx context.Context, store *storage.SQLiteStorage, userID string) (mlStage, llmStage engine.StageClassifier, err error) {
	history, err := store.GetCategorizedTransactions(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load categorized history: %w", err)
	}
	if trained := ml.Train(history, ml.DefaultConfig()); trained != nil {
		mlStage = trained
	}

	if apiKey := viper.GetString("llm.api_key"); apiKey != "" {
		categories, catErr := store.ListCategories(ctx)
		if catErr != nil {
			return nil, nil, fmt.Errorf("failed to load categories: %w", catErr)
		}
		classifier, llmErr := llm.NewClassifier(llm.Config{
			APIKey: apiKey,
			Model:  viper.GetString("llm.model"),
		}, categories)
		if llmErr != nil {
			return nil, nil, fmt.Errorf("failed to configure language model: %w", llmErr)
		}
		llmStage = classifier
	}

	return mlStage, llmStage, nil
}

func mergeMetrics(total *engine.BatchMetrics, batch engine.BatchMetrics) {
	total.Total += batch.Total
	total.AutoApplied += batch.AutoApplied
	total.Candidates += batch.Candidates
	total.Unresolved += batch.Unresolved
	total.StageFailures += batch.StageFailures
	for stage, n := range batch.ByStage {
		total.ByStage[stage] += n
	}
}
