package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cert-studio/studio-backend/internal/organizer"
	"cert-studio/studio-backend/pkg/apperr"
	"cert-studio/studio-backend/pkg/archive"
)

// Request is an immutable organize job.
type Request struct {
	Correlative  string
	Spreadsheets []Input
	Documents    []Input
	// Order optionally permutes documents: position k gets Documents[Order[k]].
	Order []int
}

// Failure describes one item that could not be used.
type Failure struct {
	Item  string      `json:"item"`
	Code  apperr.Code `json:"code"`
	Error string      `json:"error"`
}

// Report is the reconciliation outcome of a request.
type Report struct {
	Pairs    []organizer.PairStatus `json:"pairs"`
	Failures []Failure              `json:"failures,omitempty"`
	Ready    bool                   `json:"ready"`
}

// Error carries the report of a request that could not be organized.
type Error struct {
	Report *Report
	Err    error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// ReportOf returns the report attached to err, if any.
func ReportOf(err error) *Report {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Report
	}
	return nil
}

// Options configures the organize service.
type Options struct {
	MaxConcurrentIngest int
	CompressionLevel    int
}

type Service struct {
	converter Converter
	organizer *organizer.Organizer
	options   Options
	logger    *zap.Logger
}

func NewService(converter Converter, opts Options, logger *zap.Logger) *Service {
	if opts.MaxConcurrentIngest <= 0 {
		opts.MaxConcurrentIngest = 4
	}
	return &Service{
		converter: converter,
		organizer: organizer.NewOrganizer(opts.CompressionLevel),
		options:   opts,
		logger:    logger,
	}
}

// Check ingests every input and reports how the pairs reconcile.
func (s *Service) Check(ctx context.Context, req Request) (*Report, error) {
	_, report, err := s.ingest(ctx, req)
	if err != nil && report == nil {
		return nil, err
	}
	return report, nil
}

// Run ingests, reconciles and organizes. Any reconciliation problem blocks
// the whole request; the returned error then carries the report.
func (s *Service) Run(ctx context.Context, req Request, progress organizer.ProgressFunc) (*archive.Archive, *Report, error) {
	start := time.Now()
	pairs, report, err := s.ingest(ctx, req)
	if err != nil {
		return nil, report, err
	}

	total := 0
	for _, p := range pairs {
		total += p.Document.PageCount
	}
	s.logger.Info("organizing documents",
		zap.String("correlative", req.Correlative),
		zap.Int("pairs", len(pairs)),
		zap.Int("pages", total),
	)

	out, err := s.organizer.Organize(ctx, req.Correlative, pairs, progress)
	if err != nil {
		s.logger.Error("organize failed", zap.Error(err))
		return nil, report, err
	}

	s.logger.Info("documents organized",
		zap.Int("files", out.Len()),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return out, report, nil
}

func (s *Service) ingest(ctx context.Context, req Request) ([]organizer.PairedUnit, *Report, error) {
	if len(req.Spreadsheets) == 0 || len(req.Documents) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one spreadsheet and one document are required", apperr.ErrInvalidInput)
	}

	session := NewSession(ctx, s.converter, s.options.MaxConcurrentIngest, req.Spreadsheets, req.Documents)
	defer session.Close()
	session.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if len(req.Order) > 0 {
		if err := session.Reorder(req.Order); err != nil {
			return nil, nil, err
		}
	}

	pairs, err := session.Pairs()
	report := buildReport(session.Statuses(), err)
	if err != nil {
		s.logger.Warn("organize request not ready", zap.Error(err))
		return nil, report, &Error{Report: report, Err: err}
	}
	return pairs, report, nil
}

func buildReport(statuses []organizer.PairStatus, err error) *Report {
	report := &Report{Pairs: statuses, Ready: err == nil}

	var rerr *organizer.ReconcileError
	if errors.As(err, &rerr) {
		for _, e := range rerr.Errs {
			report.Failures = append(report.Failures, Failure{
				Item:  apperr.ItemOf(e),
				Code:  failureCode(e),
				Error: e.Error(),
			})
		}
	} else if err != nil {
		report.Failures = append(report.Failures, Failure{
			Code:  apperr.Classify(err),
			Error: err.Error(),
		})
	}
	return report
}

// causes are checked past a pending marker so a failed side reports why.
var causes = []error{
	apperr.ErrExternalConversion,
	apperr.ErrUnreadableSpreadsheet,
	apperr.ErrNoIdentifierColumn,
	apperr.ErrUnreadableDocument,
	apperr.ErrInvalidInput,
}

func failureCode(err error) apperr.Code {
	code := apperr.Classify(err)
	if code != apperr.CodePending {
		return code
	}
	for _, cause := range causes {
		if errors.Is(err, cause) {
			return apperr.Classify(cause)
		}
	}
	return code
}
