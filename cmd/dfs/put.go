package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	putFile string
	putDir  string
	putName string
)

var putCmd = &cobra.Command{
	Use:   "put",
	Short: "Add a local file to the shared namespace",
	Long: `Uploads --file to the node, which chunks it, stores the chunks and
publishes the record under --dir (created as needed).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := os.Open(putFile)
		if err != nil {
			return err
		}
		defer file.Close()

		name := putName
		if name == "" {
			name = filepath.Base(putFile)
		}

		ctx, cancel := requestContext(cmd)
		defer cancel()

		record, err := newClient().PutFile(ctx, nodeAddr, putDir, name, file)
		if err != nil {
			return fmt.Errorf("put %s: %w", putFile, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %s (%d bytes, %d chunks, hash %s)\n",
			name, record.Size, len(record.ChunkHashes), record.FileHash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
	putCmd.Flags().StringVarP(&putFile, "file", "f", "", "Path of the local file")
	putCmd.Flags().StringVarP(&putDir, "dir", "d", "/", "Directory in the shared namespace")
	putCmd.Flags().StringVar(&putName, "name", "", "Name in the namespace (default: the local file name)")
	putCmd.MarkFlagRequired("file")
}
