package main

import (
	"io"

	"github.com/spf13/cobra"
)

func catCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <image> <file>",
		Short: "Write the content of a file to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fat, closer, err := opts.mount(args[0])
			if err != nil {
				return err
			}
			defer closer.Close()

			f, err := fat.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			n, err := io.Copy(cmd.OutOrStdout(), f)
			opts.log.WithField("file", args[1]).Debugf("copied %d bytes", n)
			return err
		},
	}
}
