package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/isbndb-books/internal/config"
	"github.com/Sternrassler/isbndb-books/pkg/facets"
	"github.com/Sternrassler/isbndb-books/pkg/store"
)

func newStatsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [--top <n>]",
		Short: "Prints the most frequent authors and publishers in the collection file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			books, err := store.New(a.cfg.Store.File).Load()
			if err != nil {
				return err
			}
			return writeStats(cmd.OutOrStdout(), books, a.cfg.Stats.Top)
		},
	}
	cmd.Flags().Int("top", config.DefaultStatsTop, "Number of values per facet.")
	return cmd
}

func writeStats(w io.Writer, books store.Collection, top int) error {
	authors, err := facets.Authors(books, top)
	if err != nil {
		return err
	}
	publishers, err := facets.Publishers(books, top)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Books: %d\n", len(books))
	renderFacets(w, "Author", authors)
	renderFacets(w, "Publisher", publishers)
	return nil
}

func renderFacets(w io.Writer, title string, values []facets.Facet) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{title, "Books"})
	for _, f := range values {
		t.AppendRow(table.Row{f.Value, f.Count})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
