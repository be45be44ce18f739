package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jalad-shrimali/cdr-sociometer/profile"
	"github.com/jalad-shrimali/cdr-sociometer/store"
)

func newShowCmd() *cobra.Command {
	var (
		dataset string
		user    string
	)
	cmd := &cobra.Command{
		Use:   "show <parquet_file|sqlite_db>",
		Short: "Print stored baskets",
		Long: `Print the baskets of a parquet part file, or of one dataset of a SQLite
profile database (select it with --dataset).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				baskets []profile.Basket
				err     error
			)
			switch strings.ToLower(filepath.Ext(args[0])) {
			case ".db", ".sqlite", ".sqlite3":
				if dataset == "" {
					return fmt.Errorf("--dataset is required for a SQLite database")
				}
				if _, err := os.Stat(args[0]); err != nil {
					return err
				}
				s, err := store.OpenSQLiteSink(args[0])
				if err != nil {
					return err
				}
				defer s.Close()
				if baskets, err = s.Load(cmd.Context(), dataset); err != nil {
					return err
				}
			default:
				if baskets, err = store.ReadParquet(cmd.Context(), args[0]); err != nil {
					return err
				}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USER\tREGION\tVECTOR")
			for _, b := range baskets {
				if user != "" && b.UserID != user {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", b.UserID, b.Region, formatVector(b.Vector))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset name inside a SQLite database")
	cmd.Flags().StringVar(&user, "user", "", "only show this user's baskets")
	return cmd
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', 4, 64)
	}
	return strings.Join(parts, " ")
}
