package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Inspect and delete processed documents",
}

var documentsShowCmd = &cobra.Command{
	Use:   "show <document-id>",
	Short: "Show a document and its metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		doc, err := env.Service.GetDocument(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "documents show")
		}
		return writeJSON(os.Stdout, doc)
	},
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document with its covenants and alerts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Service.DeleteDocument(ctx, args[0]); err != nil {
			return eris.Wrap(err, "documents delete")
		}
		fmt.Fprintf(os.Stdout, "Document %s deleted.\n", args[0])
		return nil
	},
}

func init() {
	documentsCmd.AddCommand(documentsShowCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	rootCmd.AddCommand(documentsCmd)
}
