package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by the generation and organize tools.
var (
	// ErrExternalConversion: the Word -> PDF collaborator failed or timed out.
	ErrExternalConversion = errors.New("external conversion failure")
	// ErrUnreadableSpreadsheet: spreadsheet bytes could not be parsed.
	ErrUnreadableSpreadsheet = errors.New("unreadable spreadsheet")
	// ErrNoIdentifierColumn: no recognized document-number header in any sheet.
	ErrNoIdentifierColumn = errors.New("no identifier column found")
	// ErrCountMismatch: identifier count differs from page count for a pair.
	ErrCountMismatch = errors.New("identifier count does not match page count")
	// ErrPairCardinality: number of identifier sets differs from number of documents.
	ErrPairCardinality = errors.New("identifier set count does not match document count")
	// ErrPending: at least one pair still has an unresolved side.
	ErrPending = errors.New("pair not ready")
	// ErrRenderFailure: a row could not be rendered or composed.
	ErrRenderFailure = errors.New("render failure")
	// ErrUnreadableDocument: a page-based document could not be decoded.
	ErrUnreadableDocument = errors.New("unreadable document")

	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// ItemError attributes an error to the file or pair that caused it.
type ItemError struct {
	Item string
	Err  error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Item, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Item wraps err so that it names the offending item. A nil err stays nil.
func Item(item string, err error) error {
	if err == nil {
		return nil
	}
	return &ItemError{Item: item, Err: err}
}

// ItemOf returns the innermost item name attached to err, if any.
func ItemOf(err error) string {
	var ie *ItemError
	if errors.As(err, &ie) {
		return ie.Item
	}
	return ""
}

// Code is a short, stable classification used in API payloads and logs.
type Code string

const (
	CodeUnknown            Code = "unknown"
	CodeConversion         Code = "external_conversion_failure"
	CodeSpreadsheet        Code = "unreadable_spreadsheet"
	CodeDocument           Code = "unreadable_document"
	CodeNoIdentifierColumn Code = "no_identifier_column"
	CodeCountMismatch      Code = "count_mismatch"
	CodePairCardinality    Code = "pair_cardinality_mismatch"
	CodePending            Code = "pending"
	CodeRender             Code = "render_failure"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeUnauthorized       Code = "unauthorized"
	CodeCancelled          Code = "cancelled"
)

// Classify maps err onto a Code using only sentinel matching.
func Classify(err error) Code {
	switch {
	case err == nil:
		return CodeUnknown
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	case errors.Is(err, ErrPairCardinality):
		return CodePairCardinality
	case errors.Is(err, ErrCountMismatch):
		return CodeCountMismatch
	case errors.Is(err, ErrPending):
		return CodePending
	case errors.Is(err, ErrExternalConversion):
		return CodeConversion
	case errors.Is(err, ErrUnreadableSpreadsheet):
		return CodeSpreadsheet
	case errors.Is(err, ErrUnreadableDocument):
		return CodeDocument
	case errors.Is(err, ErrNoIdentifierColumn):
		return CodeNoIdentifierColumn
	case errors.Is(err, ErrRenderFailure):
		return CodeRender
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	default:
		return CodeUnknown
	}
}

// HTTPStatus picks the response status for err.
func HTTPStatus(err error) int {
	switch Classify(err) {
	case CodeInvalidInput, CodeSpreadsheet, CodeDocument, CodeNoIdentifierColumn:
		return http.StatusUnprocessableEntity
	case CodeCountMismatch, CodePairCardinality, CodePending:
		return http.StatusConflict
	case CodeConversion:
		return http.StatusBadGateway
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
