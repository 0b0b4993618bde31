package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List every file in the shared namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		files, err := newClient().ListFiles(ctx, nodeAddr)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tSIZE\tCHUNKS\tADDED\tHASH")
		for _, f := range files {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
				f.Path, f.Record.Size, len(f.Record.ChunkHashes),
				f.Record.DateAdded.Local().Format("2006-01-02 15:04:05"), f.Record.FileHash.Short())
		}
		return w.Flush()
	},
}

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Show the node's routing table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		table, err := newClient().RoutingTable(ctx, nodeAddr)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "self %s at %s\n", table.Self.ID, table.Self.Address())
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "BUCKET\tPEER\tADDRESS\tLAST SEEN")
		for _, bucket := range table.Buckets {
			for _, p := range bucket.Peers {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", bucket.Index, p.ID.Short(), p.Address(), p.LastSeen.Local().Format("15:04:05"))
			}
		}
		return w.Flush()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a summary of the node",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		status, err := newClient().Status(ctx, nodeAddr)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "id:           %s\n", status.ID)
		fmt.Fprintf(out, "address:      %s\n", status.Address)
		fmt.Fprintf(out, "peers:        %d\n", status.Peers)
		fmt.Fprintf(out, "files:        %d\n", status.Files)
		fmt.Fprintf(out, "chunks:       %d\n", status.Chunks)
		fmt.Fprintf(out, "fingerprint:  %s\n", status.Fingerprint)
		fmt.Fprintf(out, "merge policy: %s\n", status.MergePolicy)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lsCmd, tableCmd, statusCmd)
}
