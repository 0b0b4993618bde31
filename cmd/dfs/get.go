package main

import (
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"
)

var (
	getPath string
	getOut  string
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Download a file from the shared namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		data, err := newClient().GetFile(ctx, nodeAddr, getPath)
		if err != nil {
			return fmt.Errorf("get %s: %w", getPath, err)
		}

		out := getOut
		if out == "" {
			out = path.Base(getPath)
		}
		if out == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s\n", len(data), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringVarP(&getPath, "path", "p", "", "Path of the file in the shared namespace")
	getCmd.Flags().StringVarP(&getOut, "out", "o", "", "Local output file, - for stdout (default: the file name)")
	getCmd.MarkFlagRequired("path")
}
