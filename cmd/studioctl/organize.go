package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"cert-studio/studio-backend/internal/conversion"
	"cert-studio/studio-backend/internal/pipeline"
)

var organizeFlags struct {
	correlative  string
	spreadsheets []string
	documents    []string
	order        []int
	check        bool
}

var organizeCmd = &cobra.Command{
	Use:   "organize",
	Short: "Split documents into one file per identifier",
	Long: `Pair each identifier spreadsheet with the document at the same position,
verify that identifier and page counts agree, and write every page as its own
file named after the correlative and identifier, grouped in folders of 50.

Word documents are converted through the configured converter service.`,
	RunE: runOrganize,
}

func init() {
	f := organizeCmd.Flags()
	f.StringVar(&organizeFlags.correlative, "correlative", "", "correlative prefix for every output file")
	f.StringArrayVar(&organizeFlags.spreadsheets, "spreadsheet", nil, "identifier workbook, repeat in pairing order")
	f.StringArrayVar(&organizeFlags.documents, "document", nil, "source document (.pdf, .doc, .docx), repeat in pairing order")
	f.IntSliceVar(&organizeFlags.order, "order", nil, "document permutation, e.g. 1,0")
	f.BoolVar(&organizeFlags.check, "check", false, "only print the pairing report")
	f.StringVarP(&outputPath, "output", "o", "", "output archive")
	_ = organizeCmd.MarkFlagRequired("spreadsheet")
	_ = organizeCmd.MarkFlagRequired("document")
}

func runOrganize(cmd *cobra.Command, args []string) error {
	spreadsheets, err := readInputs(organizeFlags.spreadsheets)
	if err != nil {
		return err
	}
	documents, err := readInputs(organizeFlags.documents)
	if err != nil {
		return err
	}

	var converter pipeline.Converter
	if cfg.Converter.URL != "" {
		converter = conversion.NewClient(conversion.Options{
			URL:        cfg.Converter.URL,
			Timeout:    cfg.Converter.Timeout,
			MaxRetries: cfg.Converter.MaxRetries,
		}, logger)
	}
	service := pipeline.NewService(converter, pipeline.Options{
		MaxConcurrentIngest: cfg.Jobs.MaxConcurrentIngest,
		CompressionLevel:    cfg.Studio.CompressionLevel,
	}, logger)

	req := pipeline.Request{
		Correlative:  organizeFlags.correlative,
		Spreadsheets: toPipelineInputs(spreadsheets),
		Documents:    toPipelineInputs(documents),
		Order:        organizeFlags.order,
	}

	if organizeFlags.check {
		report, err := service.Check(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printReport(cmd, report)
	}

	out, _, err := service.Run(cmd.Context(), req, progressPrinter(cmd, "organizing"))
	if err != nil {
		if report := pipeline.ReportOf(err); report != nil {
			_ = printReport(cmd, report)
		}
		return err
	}
	return writeArchive(cmd, out, pipeline.ArchiveName(req.Correlative))
}

func toPipelineInputs(files []namedFile) []pipeline.Input {
	out := make([]pipeline.Input, len(files))
	for i, f := range files {
		out[i] = pipeline.Input{Name: f.name, Data: f.data}
	}
	return out
}

func printReport(cmd *cobra.Command, report *pipeline.Report) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to print report: %w", err)
	}
	return nil
}
