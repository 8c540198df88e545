package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"Pylon/internal/calc/envelope"
	"Pylon/internal/calc/report"
)

func reportCmd(o *options) *cobra.Command {
	var (
		out  string
		doc  report.Document
		date string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render an envelope as a PDF calculation sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var env envelope.Envelope
			if err := o.readInput(cmd, &env); err != nil {
				return err
			}
			doc.Envelope = env

			when := time.Now().UTC()
			if date != "" {
				t, err := time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("--date: %w", err)
				}
				when = t
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := report.Render(f, doc, when); err != nil {
				f.Close()
				os.Remove(out)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "report.pdf", "output PDF path")
	cmd.Flags().StringVar(&doc.Project, "project", "", "project name")
	cmd.Flags().StringVar(&doc.Author, "author", "", "author")
	cmd.Flags().StringVar(&doc.Title, "title", "", "report title")
	cmd.Flags().StringVar(&doc.Notes, "notes", "", "free-text notes")
	cmd.Flags().StringVar(&date, "date", "", "report date YYYY-MM-DD (default today)")
	return cmd
}
