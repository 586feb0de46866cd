package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sternrassler/isbndb-books/pkg/printer"
	"github.com/Sternrassler/isbndb-books/pkg/store"
)

func newPrintCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "print [--file <path/to/books.json>]",
		Short: "Prints title, publisher and authors of every book in the collection file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			books, err := store.New(a.cfg.Store.File).Load()
			if err != nil {
				return err
			}
			return printer.Flatten(cmd.OutOrStdout(), books)
		},
	}
}
