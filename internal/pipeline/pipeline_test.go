package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cert-studio/studio-backend/internal/organizer"
	"cert-studio/studio-backend/internal/testutil"
	"cert-studio/studio-backend/pkg/apperr"
	"cert-studio/studio-backend/pkg/archive"
)

// MockConverter is a mock implementation of the Converter interface
type MockConverter struct {
	mock.Mock
}

func (m *MockConverter) ConvertToPDF(ctx context.Context, name string, data []byte) ([]byte, error) {
	args := m.Called(ctx, name, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func idSheet(t *testing.T, name string, ids ...int) Input {
	rows := [][]any{{"N°", "DNI", "NOMBRE"}}
	for i, id := range ids {
		rows = append(rows, []any{i + 1, id, fmt.Sprintf("Persona %d", i+1)})
	}
	return Input{Name: name, Data: testutil.Workbook(t, testutil.Sheet{Name: "Hoja1", Rows: rows})}
}

func pdfInput(t *testing.T, name string, pages int) Input {
	return Input{Name: name, Data: testutil.PDF(t, pages)}
}

func newTestService(converter Converter) *Service {
	return NewService(converter, Options{MaxConcurrentIngest: 2, CompressionLevel: archive.DefaultLevel}, zap.NewNop())
}

func TestRunEndToEnd(t *testing.T) {
	req := Request{
		Correlative:  "29",
		Spreadsheets: []Input{idSheet(t, "a.xlsx", 10010001, 10010002), idSheet(t, "b.xlsx", 20010001)},
		Documents:    []Input{pdfInput(t, "A.pdf", 2), pdfInput(t, "B.pdf", 1)},
	}

	var last [2]int
	out, report, err := newTestService(nil).Run(context.Background(), req, func(current, total int) {
		last = [2]int{current, total}
	})
	require.NoError(t, err)

	assert.True(t, report.Ready)
	assert.Equal(t, []string{
		"A/001-050/29_10010001.pdf",
		"A/001-050/29_10010002.pdf",
		"B/001-050/29_20010001.pdf",
	}, out.Paths())
	assert.Equal(t, [2]int{3, 3}, last)
}

func TestRunAppliesOrder(t *testing.T) {
	req := Request{
		Correlative:  "5",
		Spreadsheets: []Input{idSheet(t, "a.xlsx", 10010001, 10010002), idSheet(t, "b.xlsx", 20010001)},
		Documents:    []Input{pdfInput(t, "B.pdf", 1), pdfInput(t, "A.pdf", 2)},
		Order:        []int{1, 0},
	}

	out, _, err := newTestService(nil).Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, "A/001-050/5_10010001.pdf", out.Paths()[0])
}

func TestRunBlocksOnMismatch(t *testing.T) {
	req := Request{
		Correlative:  "29",
		Spreadsheets: []Input{idSheet(t, "a.xlsx", 10010001, 10010002, 10010003, 10010004, 10010005), idSheet(t, "b.xlsx", 20010001)},
		Documents:    []Input{pdfInput(t, "A.pdf", 4), pdfInput(t, "B.pdf", 1)},
	}

	out, report, err := newTestService(nil).Run(context.Background(), req, nil)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, apperr.ErrCountMismatch)
	require.NotNil(t, report)
	assert.False(t, report.Ready)

	require.Len(t, report.Pairs, 2)
	assert.Equal(t, organizer.StatusMismatch, report.Pairs[0].Kind)
	assert.Equal(t, 5, report.Pairs[0].IdentifierCount)
	assert.Equal(t, 4, report.Pairs[0].PageCount)
	assert.Equal(t, organizer.StatusMatch, report.Pairs[1].Kind)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, apperr.CodeCountMismatch, report.Failures[0].Code)
	assert.Equal(t, "pair 1 (a.xlsx / A.pdf)", report.Failures[0].Item)
	assert.Same(t, report, ReportOf(err))
}

func TestRunBlocksOnCardinality(t *testing.T) {
	req := Request{
		Correlative:  "29",
		Spreadsheets: []Input{idSheet(t, "a.xlsx", 10010001)},
		Documents:    []Input{pdfInput(t, "A.pdf", 1), pdfInput(t, "B.pdf", 1)},
	}
	_, report, err := newTestService(nil).Run(context.Background(), req, nil)
	assert.ErrorIs(t, err, apperr.ErrPairCardinality)
	require.NotNil(t, report)
	assert.Len(t, report.Pairs, 2)
}

func TestWordDocumentsAreConverted(t *testing.T) {
	converter := new(MockConverter)
	converter.On("ConvertToPDF", mock.Anything, "acta.docx", []byte("word")).Return(testutil.PDF(t, 2), nil)

	req := Request{
		Correlative:  "3",
		Spreadsheets: []Input{idSheet(t, "a.xlsx", 10010001, 10010002)},
		Documents:    []Input{{Name: "acta.docx", Data: []byte("word")}},
	}
	out, _, err := newTestService(converter).Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"001-050/3_10010001.pdf", "001-050/3_10010002.pdf"}, out.Paths())
	converter.AssertExpectations(t)
}

func TestConversionFailureIsPerItem(t *testing.T) {
	converter := new(MockConverter)
	converter.On("ConvertToPDF", mock.Anything, "roto.docx", mock.Anything).
		Return(nil, fmt.Errorf("%w: converter returned status 500", apperr.ErrExternalConversion))

	req := Request{
		Correlative:  "3",
		Spreadsheets: []Input{idSheet(t, "a.xlsx", 10010001), idSheet(t, "b.xlsx", 20010001)},
		Documents:    []Input{pdfInput(t, "ok.pdf", 1), {Name: "roto.docx", Data: []byte("x")}},
	}

	report, err := newTestService(converter).Check(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, report.Ready)
	assert.Equal(t, organizer.StatusMatch, report.Pairs[0].Kind)
	assert.Equal(t, organizer.StatusPending, report.Pairs[1].Kind)
	assert.Contains(t, report.Pairs[1].Reason, "roto.docx")

	require.Len(t, report.Failures, 1)
	assert.Equal(t, apperr.CodeConversion, report.Failures[0].Code)
}

func TestUnreadableInputsAreReported(t *testing.T) {
	req := Request{
		Correlative:  "3",
		Spreadsheets: []Input{{Name: "roto.xlsx", Data: []byte("garbage")}},
		Documents:    []Input{{Name: "notas.txt", Data: []byte("x")}},
	}

	report, err := newTestService(nil).Check(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Error, "roto.xlsx")
	assert.Contains(t, report.Failures[0].Error, "notas.txt")
}

func TestRunRequiresInputs(t *testing.T) {
	_, _, err := newTestService(nil).Run(context.Background(), Request{Correlative: "1"}, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

// slowConverter blocks until released, ignoring cancellation, then returns a
// five-page document.
type slowConverter struct {
	started chan struct{}
	release chan struct{}
	pdf     []byte
}

func (s *slowConverter) ConvertToPDF(ctx context.Context, name string, data []byte) ([]byte, error) {
	close(s.started)
	<-s.release
	return s.pdf, nil
}

func TestReplacedDocumentDiscardsStaleResult(t *testing.T) {
	slow := &slowConverter{started: make(chan struct{}), release: make(chan struct{}), pdf: testutil.PDF(t, 5)}

	session := NewSession(context.Background(), slow, 4,
		[]Input{idSheet(t, "a.xlsx", 10010001, 10010002)},
		[]Input{{Name: "viejo.docx", Data: []byte("old")}},
	)
	<-slow.started

	require.NoError(t, session.ReplaceDocument(0, pdfInput(t, "nuevo.pdf", 2)))
	close(slow.release)

	pairs, err := session.Pairs()
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "nuevo.pdf", pairs[0].Document.Name)
	assert.Equal(t, 2, pairs[0].Document.PageCount)
}

func TestSessionSwapBeforeSettle(t *testing.T) {
	session := NewSession(context.Background(), nil, 1,
		[]Input{idSheet(t, "a.xlsx", 10010001), idSheet(t, "b.xlsx", 20010001, 20010002)},
		[]Input{pdfInput(t, "dos.pdf", 2), pdfInput(t, "uno.pdf", 1)},
	)
	require.NoError(t, session.Swap(0, 1))

	pairs, err := session.Pairs()
	require.NoError(t, err)
	assert.Equal(t, "uno.pdf", pairs[0].Document.Name)
	assert.Equal(t, "dos.pdf", pairs[1].Document.Name)
}
