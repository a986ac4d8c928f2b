package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/aligator/tinyfat"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func lsCmd(opts *options) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "ls <image> [dir]",
		Short: "List the short entries of a directory",
		Long: `List the short (8.3) entries of a directory of the image.
Without dir the root directory is listed. Hidden entries are only shown with --all.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "/"
			if len(args) == 2 {
				dir = args[1]
			}

			fat, closer, err := opts.mount(args[0])
			if err != nil {
				return err
			}
			defer closer.Close()

			infos, err := afero.ReadDir(fat, dir)
			if err != nil {
				return err
			}
			opts.log.WithField("dir", dir).Debugf("found %d entries", len(infos))

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, info := range infos {
				if !all && isHidden(info) {
					continue
				}

				modTime := "-"
				if !info.ModTime().IsZero() {
					modTime = info.ModTime().Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", info.Mode(), info.Size(), modTime, info.Name())
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "also list hidden entries")
	return cmd
}

func isHidden(info os.FileInfo) bool {
	entry, ok := info.Sys().(tinyfat.DirEntry)
	return ok && entry.IsHidden()
}
