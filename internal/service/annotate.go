package service

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nmedina/skulens/internal/domain"
)

// mentionSpan is one catalog name located inside a transcript segment.
type mentionSpan struct {
	start, end int // byte offsets into the segment text
	productID  string
	name       string // the text as it appears in the segment
}

// Annotator joins transcript mentions with visual detections and rewrites
// segment text with SKU annotations.
type Annotator struct {
	window        float64
	requireVisual bool
}

// NewAnnotator creates an Annotator. window widens each segment's time span
// when looking for corroborating visual detections. When requireVisual is
// set, a mention with no corroborating detection keeps its original text.
func NewAnnotator(window float64, requireVisual bool) *Annotator {
	return &Annotator{window: window, requireVisual: requireVisual}
}

// Annotate produces the final annotated transcript. catalog maps lowercased
// product names to product IDs, as returned by the feature store state.
func (a *Annotator) Annotate(segments []domain.TranscriptSegment, detections []domain.VisualDetection, catalog map[string]string) []domain.AnnotatedSegment {
	out := make([]domain.AnnotatedSegment, 0, len(segments))
	for _, seg := range segments {
		spans := findMentions(seg.Text, catalog)

		annotated := domain.AnnotatedSegment{Start: seg.Start, End: seg.End, Text: seg.Text}
		var annotate []mentionSpan
		for _, span := range spans {
			corroborated := a.corroborated(span.productID, seg, detections)
			annotated.Mentions = append(annotated.Mentions, domain.Mention{
				ProductID:    span.productID,
				Name:         span.name,
				Corroborated: corroborated,
			})
			if corroborated || !a.requireVisual {
				annotate = append(annotate, span)
			}
		}
		annotated.Text = insertAnnotations(seg.Text, annotate)
		out = append(out, annotated)
	}
	return out
}

// corroborated reports whether any detection of the product falls inside
// the segment's widened time span.
func (a *Annotator) corroborated(productID string, seg domain.TranscriptSegment, detections []domain.VisualDetection) bool {
	for _, d := range detections {
		if d.ProductID != productID {
			continue
		}
		if d.Timestamp >= seg.Start-a.window && d.Timestamp <= seg.End+a.window {
			return true
		}
	}
	return false
}

// findMentions locates catalog names in the text, case-insensitively and on
// word boundaries. Longer names win overlaps: "Cola Light" must not also
// produce a "Cola" mention over the same characters.
func findMentions(text string, catalog map[string]string) []mentionSpan {
	if len(catalog) == 0 || text == "" {
		return nil
	}

	names := make([]string, 0, len(catalog))
	for name := range catalog {
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	var spans []mentionSpan
	for _, name := range names {
		for from := 0; from < len(text); {
			start, end := foldIndex(text, name, from)
			if start < 0 {
				break
			}
			from = end
			if !wordBoundary(text, start, end) || overlaps(spans, start, end) {
				continue
			}
			spans = append(spans, mentionSpan{
				start:     start,
				end:       end,
				productID: catalog[name],
				name:      text[start:end],
			})
		}
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	return spans
}

// foldIndex locates the next case-insensitive occurrence of name in text at
// or after byte offset from. Matching walks the original text rune by rune,
// so the returned offsets slice text correctly even when case folding
// changes a rune's byte length. Returns (-1, -1) when there is no match.
func foldIndex(text, name string, from int) (int, int) {
	for i := from; i < len(text); {
		if n, ok := foldMatch(text[i:], name); ok {
			return i, i + n
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return -1, -1
}

// foldMatch reports whether text starts with name under simple case folding
// and returns the byte length of the matched prefix of text.
func foldMatch(text, name string) (int, bool) {
	i := 0
	for _, want := range name {
		if i >= len(text) {
			return 0, false
		}
		got, size := utf8.DecodeRuneInString(text[i:])
		if !runesEqualFold(got, want) {
			return 0, false
		}
		i += size
	}
	return i, true
}

func runesEqualFold(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}

func wordBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func overlaps(spans []mentionSpan, start, end int) bool {
	for _, s := range spans {
		if start < s.end && end > s.start {
			return true
		}
	}
	return false
}

// insertAnnotations rewrites the text with a SKU suffix after each span.
// Spans must be sorted by start offset.
func insertAnnotations(text string, spans []mentionSpan) string {
	if len(spans) == 0 {
		return text
	}
	var b strings.Builder
	prev := 0
	for _, span := range spans {
		b.WriteString(text[prev:span.end])
		b.WriteString(" (SKU: ")
		b.WriteString(span.productID)
		b.WriteString(")")
		prev = span.end
	}
	b.WriteString(text[prev:])
	return b.String()
}
