// Package chunker splits extracted document text into overlapping,
// section-aware chunks sized by a length-tiered policy.
package chunker

import (
	"regexp"
	"strings"

	"github.com/northbound-policy/ingest/internal/model"
)

// sizePolicy returns (target, overlap) in characters for a document of the
// given total length, per the size-tier table.
func sizePolicy(totalLen int) (target, overlap int) {
	switch {
	case totalLen <= 5000:
		return 1200, 250
	case totalLen <= 20000:
		return 1800, 350
	case totalLen <= 50000:
		return 2500, 500
	default:
		return 3000, 600
	}
}

// sectionPattern recognizes the line-start section header shapes named in
// the chunking design: "Section N[.N[.N]]", "N[.N[.N]] Capitalized",
// ALL-CAPS headers ending in ":", "Chapter N", "Article N", "Part [IVX]+",
// "N) Capitalized".
var sectionPattern = regexp.MustCompile(
	`(?m)^(` +
		`Section\s+\d+(\.\d+){0,2}` +
		`|\d+(\.\d+){0,2}\s+[A-Z][^\n]*` +
		`|[A-Z][A-Z \t]{3,}:` +
		`|Chapter\s+\d+` +
		`|Article\s+\d+` +
		`|Part\s+[IVX]+` +
		`|\d+\)\s+[A-Z][^\n]*` +
		`)`)

type section struct {
	start  int
	header string
}

func detectSections(text string) []section {
	matches := sectionPattern.FindAllStringIndex(text, -1)
	out := make([]section, 0, len(matches))
	for _, m := range matches {
		header := strings.TrimSpace(firstLine(text[m[0]:m[1]]))
		out = append(out, section{start: m[0], header: header})
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var sentenceEnd = regexp.MustCompile(`[.?!]\s`)

// Chunk splits text into model.Chunk values per the size-tiered, section-
// aware break-point policy.
func Chunk(docID, text string) []model.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	target, overlap := sizePolicy(len(text))
	sections := detectSections(text)

	var chunks []model.Chunk
	start := 0
	index := 0
	for start < len(text) {
		idealEnd := start + target
		if idealEnd >= len(text) {
			idealEnd = len(text)
		}

		breakAt := chooseBreak(text, start, idealEnd, target, sections)

		header, hasSection := governingSection(sections, start)
		chunks = append(chunks, model.Chunk{
			DocID: docID, ChunkIndex: index, Text: strings.TrimSpace(text[start:breakAt]),
			SectionHeader: header, HasSection: hasSection,
			CharOffsetStart: start, CharOffsetEnd: breakAt,
		})
		index++

		if breakAt >= len(text) {
			break
		}

		nextStart := breakAt - overlap
		if nextStart <= start {
			nextStart = breakAt
		}
		nextStart = truncateOverlapAtSection(sections, nextStart, breakAt)
		start = nextStart
	}
	return chunks
}

// chooseBreak implements the priority order: a section boundary inside
// (start + 0.5*target, idealEnd]; else the sentence boundary nearest
// idealEnd; else idealEnd itself.
func chooseBreak(text string, start, idealEnd, target int, sections []section) int {
	if idealEnd >= len(text) {
		return len(text)
	}

	lowerBound := start + target/2
	bestSection := -1
	for _, s := range sections {
		if s.start > lowerBound && s.start <= idealEnd && s.start > start {
			bestSection = s.start
		}
	}
	if bestSection != -1 {
		return bestSection
	}

	window := text[start:idealEnd]
	loc := sentenceEnd.FindAllStringIndex(window, -1)
	if len(loc) > 0 {
		last := loc[len(loc)-1]
		return start + last[1]
	}
	return idealEnd
}

// truncateOverlapAtSection prevents overlap from crossing a section
// boundary between nextStart and breakAt, which would duplicate a header.
func truncateOverlapAtSection(sections []section, nextStart, breakAt int) int {
	for _, s := range sections {
		if s.start > nextStart && s.start < breakAt {
			return s.start
		}
	}
	return nextStart
}

// governingSection returns the header that applies at offset start: the
// last detected section whose start is <= start.
func governingSection(sections []section, start int) (string, bool) {
	var current section
	found := false
	for _, s := range sections {
		if s.start <= start {
			current = s
			found = true
		}
	}
	return current.header, found
}
