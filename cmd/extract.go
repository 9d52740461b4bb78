package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/covenant-monitor/internal/monitor"
)

var (
	extractFile       string
	extractUser       string
	extractDocumentID string
	extractProject    string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract covenants from a document's text and start monitoring them",
	Long:  "Reads plain document text, extracts covenants, stores them with the document and evaluates their compliance. Re-running with the same --document-id replaces the document's covenants.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		text, err := os.ReadFile(extractFile)
		if err != nil {
			return eris.Wrapf(err, "read %s", extractFile)
		}

		env, err := initEnv(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		out, err := env.Service.ExtractAndStore(ctx, monitor.DocumentInput{
			Text:       string(text),
			DocumentID: extractDocumentID,
			UserID:     extractUser,
			Filename:   filepath.Base(extractFile),
			ProjectID:  extractProject,
		})
		if err != nil {
			return eris.Wrap(err, "extract")
		}

		fmt.Fprintf(os.Stdout, "Document %s (%s): %d covenants\n",
			out.Document.ID, out.Document.ProcessingStatus, len(out.Covenants))
		for _, w := range out.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		if len(out.Covenants) > 0 {
			formatCovenantsList(os.Stdout, out.Covenants)
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractFile, "file", "", "path to the document text")
	extractCmd.Flags().StringVar(&extractUser, "user", "", "owning user id")
	extractCmd.Flags().StringVar(&extractDocumentID, "document-id", "", "existing document id (default: new id)")
	extractCmd.Flags().StringVar(&extractProject, "project", "", "project id")
	_ = extractCmd.MarkFlagRequired("file")
	_ = extractCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(extractCmd)
}
