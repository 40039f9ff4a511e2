package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"ocrapi/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "ocrapi",
	Short: "OCR API - extract text from images via Google Cloud Vision",
	Long: `OCR API is a service that extracts text from uploaded images using
Google Cloud Vision API (with Document AI and local Tesseract as alternate
backends).

Run "ocrapi serve" to start the HTTP service, or "ocrapi extract" to run a
single local image through the same extraction pipeline.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("OCR API executed")

		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
