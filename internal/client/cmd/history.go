package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/rudransh-shrivastava/pitshare/internal/db"
	"github.com/rudransh-shrivastava/pitshare/internal/store"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "list past transfers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := db.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		records, err := store.NewTransferStore(gdb).List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		return printHistory(os.Stdout, records)
	},
}

func printHistory(out io.Writer, records []db.TransferRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No transfers yet.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tDIRECTION\tFILE\tSIZE\tPEER\tRESULT")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(r.EndedAt), r.Direction, r.FileName,
			humanize.Bytes(uint64(r.Size)), r.Peer, r.Reason)
	}
	return w.Flush()
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of transfers to show (0 for all)")
}
