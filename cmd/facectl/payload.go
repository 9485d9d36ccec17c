package main

import (
	"fmt"

	"github.com/ds124wfegd/facesvg/internal/pkg/payload"
	"github.com/spf13/cobra"
)

var (
	payloadOpts   Options
	payloadOutput string
)

var payloadCmd = &cobra.Command{
	Use:   "payload",
	Short: "Build a submit request body from image, segmentation map and landmarks files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		in, err := payload.Input(payloadOpts.ImagePath, payloadOpts.SegmentationPath, payloadOpts.LandmarksPath)
		if err != nil {
			return err
		}
		if err := payload.Write(payloadOutput, payload.FromInput(in)); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s with %d landmarks\n", payloadOutput, len(in.Landmarks))
		return nil
	},
}

func init() {
	addInputFlags(payloadCmd, &payloadOpts)
	payloadCmd.Flags().StringVarP(&payloadOutput, "output", "o", "payload.json", "Where to write the JSON body")
	rootCmd.AddCommand(payloadCmd)
}
