// Package organizer pairs identifier lists with page-based documents, checks
// that they line up and splits each document into one file per page, named
// by the identifier at the same position.
package organizer

import (
	"context"
	"fmt"
	"strings"

	"cert-studio/studio-backend/pkg/apperr"
	"cert-studio/studio-backend/pkg/archive"
	"cert-studio/studio-backend/pkg/pdfdoc"
)

const (
	// BucketSize is the number of primary pages per folder.
	BucketSize = 50
	// DuplicatesFolder receives second and later occurrences of an identifier.
	DuplicatesFolder = "DUPLICATES"
)

// ProgressFunc receives (pages done, total pages) across all pairs.
type ProgressFunc func(current, total int)

// PageSource gives access to the individual pages of a document.
type PageSource interface {
	PageCount() int
	ExtractPage(n int) ([]byte, error)
}

// OpenFunc parses document bytes into a PageSource.
type OpenFunc func(data []byte) (PageSource, error)

func openPDF(data []byte) (PageSource, error) {
	doc, err := pdfdoc.Open(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Organizer splits paired documents into a bucketed archive.
type Organizer struct {
	open  OpenFunc
	level int
}

func NewOrganizer(level int) *Organizer {
	return &Organizer{open: openPDF, level: level}
}

// BucketFolder names the folder for the page at 0-based index i within its
// pair, e.g. "001-050".
func BucketFolder(i int) string {
	start := i/BucketSize*BucketSize + 1
	return fmt.Sprintf("%03d-%03d", start, start+BucketSize-1)
}

// Organize writes one file per page. Pairs are handled in order and pages in
// ascending order; page i is named after identifier i. With more than one
// pair, every path is prefixed by the document's name.
func (o *Organizer) Organize(ctx context.Context, correlative string, pairs []PairedUnit, progress ProgressFunc) (*archive.Archive, error) {
	corr := archive.Sanitize(strings.TrimSpace(correlative))
	if strings.TrimSpace(corr) == "" {
		return nil, fmt.Errorf("%w: correlative is required", apperr.ErrInvalidInput)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: nothing to organize", apperr.ErrInvalidInput)
	}

	total := 0
	for i, pair := range pairs {
		if n := len(pair.Extraction.Identifiers); n != pair.Document.PageCount || n == 0 {
			return nil, apperr.Item(pairName(i, pair), fmt.Errorf("%w: %d identifiers, %d pages",
				apperr.ErrCountMismatch, n, pair.Document.PageCount))
		}
		total += pair.Document.PageCount
	}

	prefixes := documentPrefixes(pairs)
	out := archive.NewWithLevel(o.level)
	done := 0
	for pi, pair := range pairs {
		src, err := o.open(pair.Document.Data)
		if err != nil {
			return nil, apperr.Item(pairName(pi, pair), err)
		}
		if src.PageCount() != pair.Document.PageCount {
			return nil, apperr.Item(pairName(pi, pair), fmt.Errorf("%w: document now has %d pages, expected %d",
				apperr.ErrCountMismatch, src.PageCount(), pair.Document.PageCount))
		}

		occurrences := make(map[string]int)
		for i, id := range pair.Extraction.Identifiers {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			page, err := src.ExtractPage(i + 1)
			if err != nil {
				return nil, apperr.Item(pairName(pi, pair), fmt.Errorf("%w: page %d: %v", apperr.ErrUnreadableDocument, i+1, err))
			}

			occurrences[id]++
			out.Put(prefixes[pi]+pagePath(corr, id, i, occurrences[id]), page)

			done++
			if progress != nil {
				progress(done, total)
			}
		}
	}
	return out, nil
}

// pagePath places a primary occurrence in its bucket and the n-th occurrence
// (n > 1) in the duplicates folder with an _n suffix.
func pagePath(corr, id string, index, occurrence int) string {
	base := corr + "_" + archive.Sanitize(id)
	if occurrence == 1 {
		return BucketFolder(index) + "/" + base + ".pdf"
	}
	return fmt.Sprintf("%s/%s_%d.pdf", DuplicatesFolder, base, occurrence)
}

// documentPrefixes returns "" for a single pair, otherwise a unique
// "{document stem}/" per pair.
func documentPrefixes(pairs []PairedUnit) []string {
	prefixes := make([]string, len(pairs))
	if len(pairs) < 2 {
		return prefixes
	}

	used := make(map[string]bool)
	for i, pair := range pairs {
		stem := strings.TrimSpace(archive.Sanitize(archive.Stem(pair.Document.Name)))
		if stem == "" || stem == "." || stem == ".." {
			stem = fmt.Sprintf("document_%d", i+1)
		}
		name := stem
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s_%d", stem, n)
		}
		used[name] = true
		prefixes[i] = name + "/"
	}
	return prefixes
}

func pairName(i int, pair PairedUnit) string {
	return fmt.Sprintf("pair %d (%s)", i+1, pair.Document.Name)
}
