package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/isbndb-books/pkg/keys"
)

func newKeysCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys [--keys-file <path>] [--redis-url <url>]",
		Short: "Lists the API keys in file order with secrets masked and the stored cursor marked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.cfg.KeyFile()
			if err != nil {
				return err
			}
			keySet, err := keys.Load(path)
			if err != nil {
				return err
			}

			current := ""
			if a.cfg.Redis.URL != "" {
				rdb, err := connectRedis(cmd.Context(), a.cfg.Redis.URL)
				if err != nil {
					return err
				}
				defer rdb.Close()

				key, ok, err := keys.NewRotator(keySet, keys.NewRedisStore(rdb, 0), a.logger).Current(cmd.Context())
				if err != nil {
					return err
				}
				if ok {
					current = key.Label
				}
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"#", "Label", "Key", "Current"})
			for i, k := range keySet.Keys() {
				mark := ""
				if k.Label == current {
					mark = "yes"
				}
				t.AppendRow(table.Row{i + 1, k.Label, k.Masked(), mark})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}

	cmd.Flags().String("keys-file", "", "The YAML key file (default ~/.isbndb.yml).")
	cmd.Flags().String("redis-url", "", "Redis URL of the stored key cursor.")
	return cmd
}
