package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/calloway/ledgerflow/internal/ofx"
)

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <statement.ofx> [more.ofx...]",
		Short: "Import transactions from OFX/QFX statement files",
		Long: `Import parses one or more OFX/QFX statement files and stores their
transactions. Re-importing the same statement is safe: transactions are
deduplicated by content hash.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	parser := ofx.NewParser()
	var parsed, saved int

	for _, path := range args {
		file, openErr := os.Open(path)
		if openErr != nil {
			return fmt.Errorf("failed to open %s: %w", path, openErr)
		}

		txns, parseErr := parser.ParseStatement(ctx, file)
		_ = file.Close()
		if parseErr != nil {
			return fmt.Errorf("failed to parse %s: %w", path, parseErr)
		}

		n, saveErr := store.SaveTransactions(ctx, txns)
		if saveErr != nil {
			return fmt.Errorf("failed to save transactions from %s: %w", path, saveErr)
		}

		parsed += len(txns)
		saved += n
		slog.Info("imported statement", "file", path, "transactions", len(txns), "new", n)
	}

	cmd.Printf("Imported %d new transactions (%d parsed, %d duplicates skipped).\n",
		saved, parsed, parsed-saved)
	return nil
}
