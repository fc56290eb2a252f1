// Package pipeline runs the organize tool: it ingests identifier spreadsheets
// and source documents concurrently, reconciles them and organizes the result.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"cert-studio/studio-backend/internal/conversion"
	"cert-studio/studio-backend/internal/identifiers"
	"cert-studio/studio-backend/internal/organizer"
	"cert-studio/studio-backend/pkg/apperr"
	"cert-studio/studio-backend/pkg/pdfdoc"
)

// Input is one uploaded file.
type Input struct {
	Name string
	Data []byte
}

// Converter turns a word-processing document into PDF bytes.
type Converter interface {
	ConvertToPDF(ctx context.Context, name string, data []byte) ([]byte, error)
}

type slotState struct {
	generation int
	cancel     context.CancelFunc
}

// Session owns one organize batch while its inputs are being read. Each
// upload is read by its own task; replacing an upload cancels the old task
// and drops its result when it arrives.
type Session struct {
	ctx       context.Context
	converter Converter
	group     errgroup.Group

	mu     sync.Mutex
	batch  *organizer.Batch
	sheets []slotState
	docs   []slotState
}

// NewSession starts reading every input, at most limit at a time.
func NewSession(ctx context.Context, converter Converter, limit int, spreadsheets, documents []Input) *Session {
	s := &Session{
		ctx:       ctx,
		converter: converter,
		batch:     organizer.NewBatch(names(spreadsheets), names(documents)),
		sheets:    make([]slotState, len(spreadsheets)),
		docs:      make([]slotState, len(documents)),
	}
	if limit > 0 {
		s.group.SetLimit(limit)
	}
	for i, in := range spreadsheets {
		s.startSpreadsheet(i, in)
	}
	for i, in := range documents {
		s.startDocument(i, in)
	}
	return s
}

func names(inputs []Input) []string {
	out := make([]string, len(inputs))
	for i, in := range inputs {
		out[i] = in.Name
	}
	return out
}

func (s *Session) startSpreadsheet(i int, in Input) {
	s.mu.Lock()
	slot := &s.sheets[i]
	if slot.cancel != nil {
		slot.cancel()
	}
	slot.generation++
	generation := slot.generation
	ctx, cancel := context.WithCancel(s.ctx)
	slot.cancel = cancel
	s.mu.Unlock()

	s.group.Go(func() error {
		defer cancel()
		result, err := readSpreadsheet(ctx, in)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.sheets[i].generation != generation {
			return nil
		}
		s.batch.ResolveIdentifiers(i, result, err)
		return nil
	})
}

func (s *Session) startDocument(id int, in Input) {
	s.mu.Lock()
	slot := &s.docs[id]
	if slot.cancel != nil {
		slot.cancel()
	}
	slot.generation++
	generation := slot.generation
	ctx, cancel := context.WithCancel(s.ctx)
	slot.cancel = cancel
	s.mu.Unlock()

	s.group.Go(func() error {
		defer cancel()
		doc, err := readDocument(ctx, s.converter, in)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.docs[id].generation != generation {
			return nil
		}
		s.batch.ResolveDocument(id, doc, err)
		return nil
	})
}

func readSpreadsheet(ctx context.Context, in Input) (*identifiers.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Item(in.Name, err)
	}
	return identifiers.ExtractFile(bytes.NewReader(in.Data), in.Name)
}

func readDocument(ctx context.Context, converter Converter, in Input) (organizer.SourceDocument, error) {
	if err := ctx.Err(); err != nil {
		return organizer.SourceDocument{}, apperr.Item(in.Name, err)
	}

	data := in.Data
	switch {
	case conversion.IsWordDocument(in.Name):
		if converter == nil {
			return organizer.SourceDocument{}, apperr.Item(in.Name, fmt.Errorf("%w: no converter configured", apperr.ErrExternalConversion))
		}
		converted, err := converter.ConvertToPDF(ctx, in.Name, in.Data)
		if err != nil {
			return organizer.SourceDocument{}, apperr.Item(in.Name, err)
		}
		data = converted
	case strings.EqualFold(path.Ext(in.Name), ".pdf"):
	default:
		return organizer.SourceDocument{}, apperr.Item(in.Name, fmt.Errorf("%w: expected .pdf, .doc or .docx", apperr.ErrInvalidInput))
	}

	pages, err := pdfdoc.PageCount(data)
	if err != nil {
		return organizer.SourceDocument{}, apperr.Item(in.Name, err)
	}
	return organizer.SourceDocument{Name: in.Name, Data: data, PageCount: pages}, nil
}

// ReplaceSpreadsheet swaps in a new upload for spreadsheet i.
func (s *Session) ReplaceSpreadsheet(i int, in Input) error {
	s.mu.Lock()
	err := s.batch.ResetIdentifiers(i, in.Name)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.startSpreadsheet(i, in)
	return nil
}

// ReplaceDocument swaps in a new upload for the document uploaded at index id.
func (s *Session) ReplaceDocument(id int, in Input) error {
	s.mu.Lock()
	err := s.batch.ResetDocument(id, in.Name)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.startDocument(id, in)
	return nil
}

// Swap exchanges two document positions.
func (s *Session) Swap(i, j int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch.Swap(i, j)
}

// Reorder applies a full document permutation.
func (s *Session) Reorder(order []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch.Reorder(order)
}

// Wait blocks until every dispatched task has settled.
func (s *Session) Wait() {
	s.group.Wait()
}

// Statuses reconciles the current state; unsettled sides are pending.
func (s *Session) Statuses() []organizer.PairStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch.Statuses()
}

// Pairs waits for every task and returns the pairs if organization may run.
func (s *Session) Pairs() ([]organizer.PairedUnit, error) {
	s.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch.Pairs()
}

// Close cancels all in-flight tasks.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range s.sheets {
		if slot.cancel != nil {
			slot.cancel()
		}
	}
	for _, slot := range s.docs {
		if slot.cancel != nil {
			slot.cancel()
		}
	}
}
