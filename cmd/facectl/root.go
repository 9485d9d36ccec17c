package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Options holds the input files shared by payload and render.
type Options struct {
	ImagePath        string
	SegmentationPath string
	LandmarksPath    string
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "facectl",
	Short: "Face segmentation payload and rendering tool",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func addInputFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().StringVar(&opts.ImagePath, "image", "original_image.png", "Path to the face image")
	cmd.Flags().StringVar(&opts.SegmentationPath, "segmentation", "segmentation_map.png", "Path to the segmentation map")
	cmd.Flags().StringVar(&opts.LandmarksPath, "landmarks", "landmarks.txt", "Path to the landmarks file, one x,y per line")
}
