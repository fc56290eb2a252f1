package main

import (
	"os"

	"github.com/spf13/cobra"

	"cert-studio/studio-backend/internal/certificates"
	"cert-studio/studio-backend/pkg/pdfdoc"
)

var generateFlags struct {
	spreadsheet string
	sheet       string
	front       string
	back        string
	fields      string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render one document per spreadsheet row",
	Long: `Render every data row of a spreadsheet onto the front background (and the
optional back background) using the placed fields, and write the documents
to a ZIP archive.`,
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&generateFlags.spreadsheet, "spreadsheet", "", "roster workbook (.xlsx)")
	f.StringVar(&generateFlags.sheet, "sheet", "", "sheet name (default: first sheet)")
	f.StringVar(&generateFlags.front, "front", "", "front page background image or PDF template (pages 1 and 2)")
	f.StringVar(&generateFlags.back, "back", "", "back page background image")
	f.StringVar(&generateFlags.fields, "fields", "", `field layout JSON {"front":[...],"back":[...]}`)
	f.StringVarP(&outputPath, "output", "o", "", "output archive (default "+certificates.ArchiveName+")")
	_ = generateCmd.MarkFlagRequired("spreadsheet")
	_ = generateCmd.MarkFlagRequired("front")
	_ = generateCmd.MarkFlagRequired("fields")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	in := certificates.GenerateInput{Sheet: generateFlags.sheet}
	var err error
	if in.Spreadsheet, err = os.ReadFile(generateFlags.spreadsheet); err != nil {
		return err
	}
	if in.Front, err = os.ReadFile(generateFlags.front); err != nil {
		return err
	}
	if generateFlags.back != "" {
		if in.Back, err = os.ReadFile(generateFlags.back); err != nil {
			return err
		}
	}
	if in.Fields, err = os.ReadFile(generateFlags.fields); err != nil {
		return err
	}

	composer := certificates.NewComposer(certificates.ComposerOptions{
		PageSize:    cfg.Studio.PageSize,
		JPEGQuality: cfg.Studio.JPEGQuality,
	})
	service := certificates.NewService(certificates.NewAssembler(composer, cfg.Studio.CompressionLevel), newRasterizer(), logger)

	req, err := service.Prepare(cmd.Context(), in)
	if err != nil {
		return err
	}
	out, err := service.Generate(cmd.Context(), req, progressPrinter(cmd, "rendering"))
	if err != nil {
		return err
	}
	return writeArchive(cmd, out, certificates.ArchiveName)
}

func newRasterizer() pdfdoc.Rasterizer {
	if cfg.Studio.Rasterizer == "" {
		return nil
	}
	return pdfdoc.NewPoppler(cfg.Studio.Rasterizer, cfg.Studio.RasterWidth)
}
