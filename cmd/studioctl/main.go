// Command studioctl runs the studio tools against local files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cert-studio/studio-backend/internal/config"
	"cert-studio/studio-backend/pkg/archive"
)

var (
	configPath string
	outputPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "studioctl",
	Short: "Generate, organize and optimize certificate documents",
	Long: `studioctl runs the certificate studio tools offline.

Available subcommands:
  generate - render one document per spreadsheet row
  organize - split documents into one file per identifier
  optimize - re-serialize every PDF inside a ZIP
  token    - issue a bearer token for the template API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger = zap.NewNop()
		}
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "path to the JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress to stderr")

	rootCmd.AddCommand(generateCmd, organizeCmd, optimizeCmd, tokenCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// writeArchive stores out at outputPath, or at fallback when no -o was given.
func writeArchive(cmd *cobra.Command, out *archive.Archive, fallback string) error {
	path := outputPath
	if path == "" {
		path = fallback
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := out.Write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d files to %s\n", out.Len(), path)
	return nil
}

func progressPrinter(cmd *cobra.Command, label string) func(int, int) {
	return func(current, total int) {
		fmt.Fprintf(cmd.ErrOrStderr(), "\r%s %d/%d", label, current, total)
		if current == total {
			fmt.Fprintln(cmd.ErrOrStderr())
		}
	}
}

func readInputs(paths []string) ([]namedFile, error) {
	out := make([]namedFile, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		out[i] = namedFile{name: filepath.Base(p), data: data}
	}
	return out, nil
}

type namedFile struct {
	name string
	data []byte
}
