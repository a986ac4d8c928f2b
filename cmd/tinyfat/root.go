package main

import (
	"fmt"
	"io"

	"github.com/aligator/tinyfat"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const appName = "tinyfat"

// options are shared by all sub commands.
type options struct {
	fs  afero.Fs
	log *log.Logger

	logLevel       string
	partitionStart uint32
	partitionSize  uint32
	maxChainLength uint32
}

// newRootCmd builds the command tree. Images are opened from fs.
func newRootCmd(fs afero.Fs) *cobra.Command {
	opts := &options{
		fs:  fs,
		log: log.New(),
	}

	cmd := &cobra.Command{
		Use:          appName,
		Short:        appName + " - inspect FAT32 images without mounting them",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			opts.log.SetLevel(level)
			opts.log.SetOutput(cmd.ErrOrStderr())
			opts.log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "warning", "log level (trace, debug, info, warning, error)")
	flags.Uint32Var(&opts.partitionStart, "partition-start", 0, "first sector of the FAT32 partition inside the image")
	flags.Uint32Var(&opts.partitionSize, "partition-size", 0, "sector count of the partition, 0 means until the end of the image")
	flags.Uint32Var(&opts.maxChainLength, "max-chain-length", 0, "limit for cluster chains, 0 derives it from the FAT size")

	cmd.AddCommand(infoCmd(opts))
	cmd.AddCommand(lsCmd(opts))
	cmd.AddCommand(catCmd(opts))

	return cmd
}

// mount opens the image and mounts the volume inside of it.
// The returned closer releases the image file.
func (o *options) mount(image string) (*tinyfat.Fs, io.Closer, error) {
	dev, err := tinyfat.OpenImage(o.fs, image)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open %v: %w", image, err)
	}

	var blockDev tinyfat.BlockDevice = dev
	if o.partitionStart != 0 || o.partitionSize != 0 {
		o.log.WithFields(log.Fields{
			"start": o.partitionStart,
			"size":  o.partitionSize,
		}).Debug("using partition")
		blockDev = tinyfat.NewPartitionDevice(dev, o.partitionStart, o.partitionSize)
	}

	var mountOpts []tinyfat.Option
	if o.maxChainLength != 0 {
		mountOpts = append(mountOpts, tinyfat.WithMaxChainLength(o.maxChainLength))
	}

	fat, err := tinyfat.Mount(blockDev, mountOpts...)
	if err != nil {
		_ = dev.Close()
		return nil, nil, fmt.Errorf("could not mount %v: %w", image, err)
	}

	o.log.WithFields(log.Fields{
		"image":        image,
		"label":        fat.Label(),
		"clusterSize":  fat.ClusterSize(),
		"fatLBA":       fat.FATLBA(),
		"firstDataLBA": fat.FirstDataLBA(),
	}).Debug("mounted volume")

	return fat, dev, nil
}
