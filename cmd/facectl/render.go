package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ds124wfegd/facesvg/internal/pkg/facedetect"
	"github.com/ds124wfegd/facesvg/internal/pkg/payload"
	"github.com/ds124wfegd/facesvg/internal/pkg/processor"
	"github.com/spf13/cobra"
)

var (
	renderOpts     Options
	renderSVG      string
	renderContours string
	renderDetector string
	renderCascade  string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Run the segmentation pipeline locally and write the SVG and contours",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		in, err := payload.Input(renderOpts.ImagePath, renderOpts.SegmentationPath, renderOpts.LandmarksPath)
		if err != nil {
			return err
		}

		detector, err := facedetect.New(renderDetector, renderCascade)
		if err != nil {
			return err
		}

		result, err := processor.NewFaceProcessor(detector).Process(in)
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}

		svg, err := base64.StdEncoding.DecodeString(result.SVG)
		if err != nil {
			return err
		}
		if err := os.WriteFile(renderSVG, svg, 0644); err != nil {
			return err
		}

		contours, err := json.MarshalIndent(result.MaskContours, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(renderContours, contours, 0644); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s (%d regions, %d contours)\n",
			renderSVG, renderContours, len(result.MaskContours), result.MaskContours.Count())
		return nil
	},
}

func init() {
	addInputFlags(renderCmd, &renderOpts)
	renderCmd.Flags().StringVar(&renderSVG, "svg", "output.svg", "Where to write the SVG")
	renderCmd.Flags().StringVar(&renderContours, "contours", "contours.json", "Where to write the contours JSON")
	renderCmd.Flags().StringVar(&renderDetector, "detector", facedetect.KindSkinTone, "Face detector: skintone, pigo or none")
	renderCmd.Flags().StringVar(&renderCascade, "cascade", "./cascade/facefinder", "Pigo cascade file, used with --detector pigo")
	rootCmd.AddCommand(renderCmd)
}
