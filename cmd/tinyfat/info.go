package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func infoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info <image>",
		Short: "Print the geometry and label of a volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fat, closer, err := opts.mount(args[0])
			if err != nil {
				return err
			}
			defer closer.Close()

			bs := fat.BootSector()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Label:\t%s\n", fat.Label())
			fmt.Fprintf(w, "Type:\t%s\n", bs.FSTypeName())
			fmt.Fprintf(w, "Volume ID:\t%08X\n", bs.VolumeID)
			fmt.Fprintf(w, "Bytes per sector:\t%d\n", bs.BytesPerSector)
			fmt.Fprintf(w, "Sectors per cluster:\t%d\n", bs.SectorsPerCluster)
			fmt.Fprintf(w, "Reserved sectors:\t%d\n", bs.ReservedSectorCount)
			fmt.Fprintf(w, "FATs:\t%d\n", bs.NumFATs)
			fmt.Fprintf(w, "Sectors per FAT:\t%d\n", bs.SectorsPerFAT32())
			fmt.Fprintf(w, "Total sectors:\t%d\n", bs.TotalSectors())
			fmt.Fprintf(w, "Root cluster:\t%d\n", bs.RootCluster)
			fmt.Fprintf(w, "FAT LBA:\t%d\n", fat.FATLBA())
			fmt.Fprintf(w, "Data LBA:\t%d\n", fat.FirstDataLBA())
			return w.Flush()
		},
	}
}
