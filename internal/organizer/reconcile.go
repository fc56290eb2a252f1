package organizer

import (
	"fmt"
	"strings"

	"cert-studio/studio-backend/internal/identifiers"
)

// StatusKind classifies a pair.
type StatusKind string

const (
	StatusMatch    StatusKind = "match"
	StatusMismatch StatusKind = "mismatch"
	StatusPending  StatusKind = "pending"
)

// PairStatus is the reconciliation outcome of one position.
type PairStatus struct {
	Position        int        `json:"position"`
	Kind            StatusKind `json:"status"`
	IdentifierCount int        `json:"identifier_count"`
	PageCount       int        `json:"page_count"`
	Reason          string     `json:"reason,omitempty"`
	Spreadsheet     string     `json:"spreadsheet,omitempty"`
	Document        string     `json:"document,omitempty"`
}

func Match(count int) PairStatus {
	return PairStatus{Kind: StatusMatch, IdentifierCount: count, PageCount: count}
}

func Mismatch(identifierCount, pageCount int) PairStatus {
	return PairStatus{Kind: StatusMismatch, IdentifierCount: identifierCount, PageCount: pageCount}
}

func Pending(reason string) PairStatus {
	return PairStatus{Kind: StatusPending, Reason: reason}
}

// PairInput is one position's two sides as known so far.
type PairInput struct {
	Identifiers         *identifiers.ExtractionResult
	IdentifiersResolved bool
	PageCount           int
	PagesResolved       bool
	// PendingReason overrides the default reason of an unresolved pair.
	PendingReason string
}

// Reconcile compares identifier and page counts position by position. A pair
// is pending until both sides resolve; a document without pages never
// matches.
func Reconcile(inputs []PairInput) []PairStatus {
	out := make([]PairStatus, len(inputs))
	for i, in := range inputs {
		out[i] = reconcileOne(in)
		out[i].Position = i + 1
	}
	return out
}

func reconcileOne(in PairInput) PairStatus {
	if !in.IdentifiersResolved || !in.PagesResolved || in.Identifiers == nil {
		if in.PendingReason != "" {
			return Pending(in.PendingReason)
		}
		var waiting []string
		if !in.IdentifiersResolved || in.Identifiers == nil {
			waiting = append(waiting, "identifiers")
		}
		if !in.PagesResolved {
			waiting = append(waiting, "page count")
		}
		return Pending(fmt.Sprintf("waiting for %s", strings.Join(waiting, " and ")))
	}

	n := len(in.Identifiers.Identifiers)
	if n != in.PageCount || in.PageCount == 0 {
		return Mismatch(n, in.PageCount)
	}
	return Match(n)
}
