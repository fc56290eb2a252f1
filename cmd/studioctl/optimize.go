package main

import (
	"os"

	"github.com/spf13/cobra"

	"cert-studio/studio-backend/internal/optimizer"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize <archive.zip>",
	Short: "Re-serialize every PDF inside a ZIP",
	Args:  cobra.ExactArgs(1),
	RunE:  runOptimize,
}

func init() {
	optimizeCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output archive (default "+optimizer.ArchiveName+")")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	out, err := optimizer.NewOptimizer(cfg.Studio.CompressionLevel, logger).Optimize(cmd.Context(), data, progressPrinter(cmd, "optimizing"))
	if err != nil {
		return err
	}
	return writeArchive(cmd, out, optimizer.ArchiveName)
}
