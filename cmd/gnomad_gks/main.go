// Package main provides the entry point for the gnomAD GKS/VRS annotation
// batch tool.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gnomad_gks",
	Short: "gnomAD VRS annotation batch orchestrator",
	Long:  "gnomad_gks annotates gnomAD sites VCFs with GA4GH VRS identifiers, one chromosome per batch job: the annotate command runs the streaming pipeline for a single chromosome/source pair, and the submit command fans the full set out as Cloud Run jobs.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
