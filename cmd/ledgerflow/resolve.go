package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <transaction-id>",
		Short: "Accept or reject a candidate classification",
		Long: `Resolve finalizes a candidate classification left by "ledgerflow
classify". Accepting applies the suggested category; rejecting leaves
the transaction unclassified.`,
		Args: cobra.ExactArgs(1),
		RunE: runResolve,
	}

	cmd.Flags().Bool("reject", false, "reject the candidate instead of accepting it")

	return cmd
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	reject, _ := cmd.Flags().GetBool("reject")
	if err := store.ResolveCandidate(ctx, args[0], !reject); err != nil {
		return fmt.Errorf("failed to resolve candidate: %w", err)
	}

	if reject {
		cmd.Println("Candidate rejected.")
	} else {
		cmd.Println("Candidate accepted and category applied.")
	}
	return nil
}
