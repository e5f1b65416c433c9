package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/soypat/fat32vol"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fatctl:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fatctl",
		Short: "fatctl inspects and edits FAT32 disk images",
	}
	root.AddCommand(newFormatCmd())
	root.AddCommand(newLsCmd())
	root.AddCommand(newCatCmd())
	root.AddCommand(newMkdirCmd())
	root.AddCommand(newRmCmd())
	root.AddCommand(newScandiskCmd())
	return root
}

func mountImage(path string) (*fat32.Volume, *fileDevice, error) {
	dev, err := openDevice(path)
	if err != nil {
		return nil, nil, err
	}
	vol, err := fat32.Mount(dev, "img")
	if err != nil {
		dev.Close()
		return nil, nil, err
	}
	return vol, dev, nil
}

func newFormatCmd() *cobra.Command {
	var spc uint8
	var label string
	cmd := &cobra.Command{
		Use:   "format <image> <size>",
		Short: "lay down a fresh FAT32 image of the given size (e.g. 64MB)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := humanize.ParseBytes(args[1])
			if err != nil {
				return fmt.Errorf("parsing size: %w", err)
			}
			f, err := os.OpenFile(args[0], os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := f.Truncate(int64(size)); err != nil {
				return err
			}
			dev := &fileDevice{f: f}
			sectors := uint32(size / 512)
			if err := fat32.Format(context.Background(), dev, sectors, fat32.FormatConfig{
				SectorsPerCluster: spc,
				VolumeLabel:       label,
			}); err != nil {
				return err
			}
			fmt.Printf("formatted %s (%s, %d sectors)\n", args[0], humanize.Bytes(size), sectors)
			return nil
		},
	}
	cmd.Flags().Uint8Var(&spc, "spc", 0, "sectors per cluster (power of two, 0 = auto)")
	cmd.Flags().StringVar(&label, "label", "", "volume label")
	return cmd
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <image> [path]",
		Short: "list a directory's contents",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vol, dev, err := mountImage(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()
			path := ""
			if len(args) == 2 {
				path = args[1]
			}
			entries, err := vol.ReadDir(path)
			if err != nil {
				return err
			}
			for _, e := range entries {
				kind := "-"
				if e.IsDir() {
					kind = "d"
				}
				fmt.Printf("%s %10s  %s\n", kind, humanize.Bytes(uint64(e.Size)), e.Name)
			}
			return nil
		},
	}
}

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <image> <path>",
		Short: "print a file's contents to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vol, dev, err := mountImage(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()
			f, err := vol.OpenFile(args[1], fat32.ModeRead)
			if err != nil {
				return err
			}
			defer f.Close()
			buf := make([]byte, 4096)
			for {
				n, rerr := f.Read(buf)
				if n > 0 {
					os.Stdout.Write(buf[:n])
				}
				if rerr != nil {
					break
				}
			}
			return nil
		},
	}
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <image> <path>",
		Short: "create a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vol, dev, err := mountImage(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()
			return vol.Mkdir(args[1])
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <image> <path>",
		Short: "remove a file or empty directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vol, dev, err := mountImage(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()
			return vol.Remove(args[1])
		},
	}
}

func newScandiskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scandisk <image>",
		Short: "walk the volume checking FAT and directory consistency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vol, dev, err := mountImage(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()
			report, err := vol.Scandisk(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("clusters used: %d  orphan: %d\n", report.ClustersUsed, report.ClustersOrphan)
			if report.Findings != nil {
				fmt.Println(report.Findings)
				os.Exit(1)
			}
			return nil
		},
	}
}
