package organizer

import (
	"errors"
	"fmt"
	"strings"

	"cert-studio/studio-backend/internal/identifiers"
	"cert-studio/studio-backend/pkg/apperr"
)

// SourceDocument is a page-based document and its decoded page count.
type SourceDocument struct {
	Name      string
	Data      []byte
	PageCount int
}

// PairedUnit binds one identifier list to one document by position.
type PairedUnit struct {
	Extraction identifiers.ExtractionResult
	Document   SourceDocument
}

type identifierSlot struct {
	name     string
	result   *identifiers.ExtractionResult
	err      error
	resolved bool
}

type documentSlot struct {
	id       int
	name     string
	doc      SourceDocument
	err      error
	resolved bool
}

// Batch tracks both upload lists of the organize tool. Identifier sets keep
// their upload order; documents can be reordered freely before organizing and
// are addressed by upload index when their results arrive.
type Batch struct {
	identifiers []identifierSlot
	documents   []documentSlot
	docPos      []int
}

// NewBatch creates unresolved slots for the named uploads.
func NewBatch(spreadsheets, documents []string) *Batch {
	b := &Batch{
		identifiers: make([]identifierSlot, len(spreadsheets)),
		documents:   make([]documentSlot, len(documents)),
		docPos:      make([]int, len(documents)),
	}
	for i, name := range spreadsheets {
		b.identifiers[i].name = name
	}
	for i, name := range documents {
		b.documents[i] = documentSlot{id: i, name: name}
		b.docPos[i] = i
	}
	return b
}

func checkIndex(i, n int, what string) error {
	if i < 0 || i >= n {
		return fmt.Errorf("%w: %s position %d out of range 1-%d", apperr.ErrInvalidInput, what, i+1, n)
	}
	return nil
}

// ResolveIdentifiers records the outcome of extracting spreadsheet i.
func (b *Batch) ResolveIdentifiers(i int, result *identifiers.ExtractionResult, err error) error {
	if err := checkIndex(i, len(b.identifiers), "spreadsheet"); err != nil {
		return err
	}
	s := &b.identifiers[i]
	s.result, s.err, s.resolved = result, err, true
	return nil
}

// ResetIdentifiers replaces spreadsheet i with a new, unresolved upload.
func (b *Batch) ResetIdentifiers(i int, name string) error {
	if err := checkIndex(i, len(b.identifiers), "spreadsheet"); err != nil {
		return err
	}
	b.identifiers[i] = identifierSlot{name: name}
	return nil
}

// ResolveDocument records the outcome of reading the document uploaded at
// index id, wherever it currently sits.
func (b *Batch) ResolveDocument(id int, doc SourceDocument, err error) error {
	if err := checkIndex(id, len(b.docPos), "document"); err != nil {
		return err
	}
	s := &b.documents[b.docPos[id]]
	s.doc, s.err, s.resolved = doc, err, true
	if doc.Name == "" {
		s.doc.Name = s.name
	}
	return nil
}

// ResetDocument replaces the document uploaded at index id with a new,
// unresolved upload at the same position.
func (b *Batch) ResetDocument(id int, name string) error {
	if err := checkIndex(id, len(b.docPos), "document"); err != nil {
		return err
	}
	b.documents[b.docPos[id]] = documentSlot{id: id, name: name}
	return nil
}

// Swap exchanges two document positions without re-reading either document.
func (b *Batch) Swap(i, j int) error {
	if err := checkIndex(i, len(b.documents), "document"); err != nil {
		return err
	}
	if err := checkIndex(j, len(b.documents), "document"); err != nil {
		return err
	}
	b.documents[i], b.documents[j] = b.documents[j], b.documents[i]
	b.docPos[b.documents[i].id] = i
	b.docPos[b.documents[j].id] = j
	return nil
}

// Reorder arranges documents so that new position k holds the document
// previously at order[k].
func (b *Batch) Reorder(order []int) error {
	if len(order) != len(b.documents) {
		return fmt.Errorf("%w: order has %d entries for %d documents", apperr.ErrInvalidInput, len(order), len(b.documents))
	}
	seen := make([]bool, len(order))
	for _, idx := range order {
		if idx < 0 || idx >= len(order) || seen[idx] {
			return fmt.Errorf("%w: order %v is not a permutation", apperr.ErrInvalidInput, order)
		}
		seen[idx] = true
	}

	reordered := make([]documentSlot, len(order))
	for k, idx := range order {
		reordered[k] = b.documents[idx]
		b.docPos[reordered[k].id] = k
	}
	b.documents = reordered
	return nil
}

// DocumentNames returns the document names in current order.
func (b *Batch) DocumentNames() []string {
	out := make([]string, len(b.documents))
	for i, d := range b.documents {
		out[i] = d.name
	}
	return out
}

// Statuses reconciles every position. Positions with only one side are
// pending; a side that failed is pending with its error as the reason.
func (b *Batch) Statuses() []PairStatus {
	n := max(len(b.identifiers), len(b.documents))
	inputs := make([]PairInput, n)
	for i := range inputs {
		var reasons []string
		if i < len(b.identifiers) {
			s := b.identifiers[i]
			inputs[i].Identifiers = s.result
			inputs[i].IdentifiersResolved = s.resolved && s.err == nil
			if s.err != nil {
				reasons = append(reasons, s.err.Error())
			}
		} else {
			reasons = append(reasons, "no spreadsheet at this position")
		}
		if i < len(b.documents) {
			s := b.documents[i]
			inputs[i].PageCount = s.doc.PageCount
			inputs[i].PagesResolved = s.resolved && s.err == nil
			if s.err != nil {
				reasons = append(reasons, s.err.Error())
			}
		} else {
			reasons = append(reasons, "no document at this position")
		}
		inputs[i].PendingReason = strings.Join(reasons, "; ")
	}

	statuses := Reconcile(inputs)
	for i := range statuses {
		if i < len(b.identifiers) {
			statuses[i].Spreadsheet = b.identifiers[i].name
		}
		if i < len(b.documents) {
			statuses[i].Document = b.documents[i].name
		}
	}
	return statuses
}

// ReconcileError lists every pair that blocks organization.
type ReconcileError struct {
	Statuses []PairStatus
	Errs     []error
}

func (e *ReconcileError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d pair(s) not ready: %s", len(e.Errs), strings.Join(msgs, "; "))
}

func (e *ReconcileError) Unwrap() []error { return e.Errs }

func pairLabel(s PairStatus) string {
	return fmt.Sprintf("pair %d (%s / %s)", s.Position, s.Spreadsheet, s.Document)
}

// Pairs returns the paired units when the batch may be organized: equal list
// lengths and every pair matching. Otherwise nothing is returned.
func (b *Batch) Pairs() ([]PairedUnit, error) {
	if len(b.identifiers) != len(b.documents) {
		return nil, fmt.Errorf("%w: %d identifier sets, %d documents",
			apperr.ErrPairCardinality, len(b.identifiers), len(b.documents))
	}
	if len(b.documents) == 0 {
		return nil, fmt.Errorf("%w: nothing to organize", apperr.ErrInvalidInput)
	}

	statuses := b.Statuses()
	var errs []error
	for i, s := range statuses {
		switch s.Kind {
		case StatusMismatch:
			errs = append(errs, apperr.Item(pairLabel(s), fmt.Errorf("%w: %d identifiers, %d pages",
				apperr.ErrCountMismatch, s.IdentifierCount, s.PageCount)))
		case StatusPending:
			cause := errors.Join(b.identifiers[i].err, b.documents[i].err)
			if cause == nil {
				errs = append(errs, apperr.Item(pairLabel(s), fmt.Errorf("%w: %s", apperr.ErrPending, s.Reason)))
			} else {
				errs = append(errs, apperr.Item(pairLabel(s), fmt.Errorf("%w: %w", apperr.ErrPending, cause)))
			}
		}
	}
	if len(errs) > 0 {
		return nil, &ReconcileError{Statuses: statuses, Errs: errs}
	}

	pairs := make([]PairedUnit, len(statuses))
	for i := range pairs {
		pairs[i] = PairedUnit{
			Extraction: *b.identifiers[i].result,
			Document:   b.documents[i].doc,
		}
	}
	return pairs, nil
}
