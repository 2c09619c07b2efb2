package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/csvstore/internal/core"
	"github.com/JonMunkholm/csvstore/internal/store"
	"github.com/spf13/cobra"
)

func ingestCommand(a *app) *cobra.Command {
	var (
		migrate bool
		name    string
	)

	cmd := &cobra.Command{
		Use:   "ingest <file.csv>",
		Short: "Store a local CSV file as a new dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			if name == "" {
				name = filepath.Base(path)
			}
			out := cmd.OutOrStdout()

			if a.offline {
				return checkFile(out, f, name, a.cfg.Upload.MaxFileSize)
			}

			repo, err := store.Open(cmd.Context(), a.cfg.Database, a.cfg.Storage)
			if err != nil {
				return err
			}
			defer repo.Close()

			if migrate {
				if err := repo.Migrate(cmd.Context()); err != nil {
					return err
				}
			}

			ingester := core.NewIngestService(repo, core.IngestOptions{
				MaxFileSize: a.cfg.Upload.MaxFileSize,
				Timeout:     a.cfg.Upload.Timeout,
			})
			result, err := ingester.Ingest(cmd.Context(), f, name)
			if err != nil {
				return reportIngestError(cmd.ErrOrStderr(), err)
			}

			fmt.Fprintf(out, "stored %s as %s: %d rows, columns %s\n",
				result.Filename, result.DatasetID, result.RowCount, strings.Join(result.Columns, ", "))
			return nil
		},
	}

	cmd.Flags().BoolVar(&a.offline, "dry-run", false, "parse and validate only, without connecting to the database")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "create missing tables before storing")
	cmd.Flags().StringVar(&name, "name", "", "dataset filename (default: base name of the file)")

	return cmd
}

// checkFile parses r the way an upload would and reports the outcome.
func checkFile(out io.Writer, r io.Reader, name string, maxSize int64) error {
	parsed, err := core.Parse(core.NewSizeCapReader(r, maxSize))
	if err != nil {
		return reportIngestError(out, err)
	}
	if len(parsed.Errors) > 0 {
		return reportIngestError(out, &core.ValidationError{Errors: parsed.Errors})
	}

	fmt.Fprintf(out, "%s is valid: %d rows, columns %s\n",
		name, len(parsed.Rows), strings.Join(parsed.Columns, ", "))
	return nil
}

// reportIngestError lists validation errors one per line; other errors get
// the mapped user message with its support code.
func reportIngestError(w io.Writer, err error) error {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		for _, e := range ve.Errors {
			fmt.Fprintln(w, e)
		}
		return fmt.Errorf("%d validation errors", len(ve.Errors))
	}
	if core.IsUserFacing(err) {
		fmt.Fprintln(w, core.FormatUserError(err))
	}
	return err
}
