package service

import (
	"testing"

	"github.com/nmedina/skulens/internal/domain"
)

func TestFindMentionsLongestMatchWins(t *testing.T) {
	catalog := map[string]string{
		"cola":       "id-cola",
		"cola light": "id-light",
	}

	spans := findMentions("Prueba la Cola Light y después la cola normal", catalog)
	if len(spans) != 2 {
		t.Fatalf("findMentions() returned %d spans, want 2: %+v", len(spans), spans)
	}
	if spans[0].productID != "id-light" || spans[0].name != "Cola Light" {
		t.Errorf("span 0 = %+v, want Cola Light as id-light", spans[0])
	}
	if spans[1].productID != "id-cola" || spans[1].name != "cola" {
		t.Errorf("span 1 = %+v, want cola as id-cola", spans[1])
	}
}

func TestFindMentionsWordBoundaries(t *testing.T) {
	catalog := map[string]string{"cola": "id-cola"}

	tests := []struct {
		name string
		text string
		want int
	}{
		{"exact word", "me gusta la cola fría", 1},
		{"prefix of longer word", "una colada caliente", 0},
		{"suffix of longer word", "la chocola no existe", 0},
		{"punctuation boundary", "¿Quieres Cola?", 1},
		{"start and end of text", "cola", 1},
		{"empty text", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findMentions(tt.text, catalog); len(got) != tt.want {
				t.Errorf("findMentions(%q) found %d mentions, want %d", tt.text, len(got), tt.want)
			}
		})
	}
}

func TestFindMentionsLengthChangingCaseFolds(t *testing.T) {
	// Runes whose case mapping changes byte length must not shift mention
	// offsets: "İ" (U+0130) lowercases to two runes, "Ⱥ" (U+023A) lowercases
	// to a rune one byte longer than itself.
	catalog := map[string]string{"cola": "id-cola"}

	spans := findMentions("İ cola", catalog)
	if len(spans) != 1 {
		t.Fatalf("findMentions() returned %d spans, want 1: %+v", len(spans), spans)
	}
	if spans[0].name != "cola" {
		t.Errorf("mention text = %q, want %q", spans[0].name, "cola")
	}

	a := NewAnnotator(1.0, false)
	tests := []struct {
		name string
		text string
		want string
	}{
		{"uppercase dotted I before mention", "İ cola", "İ cola (SKU: id-cola)"},
		{"lowercase-widening rune before mention", "Ⱥ cola", "Ⱥ cola (SKU: id-cola)"},
		{"mention mid-segment after widening rune", "İtalia vende cola fría", "İtalia vende cola (SKU: id-cola) fría"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments := []domain.TranscriptSegment{{Start: 0, End: 2, Text: tt.text}}
			out := a.Annotate(segments, nil, catalog)
			if out[0].Text != tt.want {
				t.Errorf("annotated text = %q, want %q", out[0].Text, tt.want)
			}
		})
	}
}

func TestAnnotateCorroboratedMention(t *testing.T) {
	a := NewAnnotator(1.0, false)
	catalog := map[string]string{"cola": "id-cola"}
	segments := []domain.TranscriptSegment{
		{Start: 3.0, End: 5.0, Text: "prueba nuestra Cola bien fría"},
	}
	detections := []domain.VisualDetection{
		{Timestamp: 4.0, ProductID: "id-cola", Matches: 150, Confidence: 0.3},
	}

	out := a.Annotate(segments, detections, catalog)
	if len(out) != 1 {
		t.Fatalf("Annotate() returned %d segments, want 1", len(out))
	}
	seg := out[0]
	if seg.Text != "prueba nuestra Cola (SKU: id-cola) bien fría" {
		t.Errorf("annotated text = %q", seg.Text)
	}
	if len(seg.Mentions) != 1 || !seg.Mentions[0].Corroborated {
		t.Errorf("mentions = %+v, want one corroborated mention", seg.Mentions)
	}
}

func TestAnnotateCorrelationWindow(t *testing.T) {
	catalog := map[string]string{"cola": "id-cola"}
	segments := []domain.TranscriptSegment{{Start: 10.0, End: 12.0, Text: "la cola"}}

	tests := []struct {
		name      string
		timestamp float64
		want      bool
	}{
		{"inside segment", 11.0, true},
		{"just before, inside window", 9.1, true},
		{"just after, inside window", 12.9, true},
		{"before window", 8.5, false},
		{"after window", 13.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnnotator(1.0, false)
			detections := []domain.VisualDetection{{Timestamp: tt.timestamp, ProductID: "id-cola"}}
			out := a.Annotate(segments, detections, catalog)
			if got := out[0].Mentions[0].Corroborated; got != tt.want {
				t.Errorf("corroborated = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnnotateRequireVisualPolicy(t *testing.T) {
	catalog := map[string]string{"cola": "id-cola"}
	segments := []domain.TranscriptSegment{{Start: 0, End: 2, Text: "la cola"}}

	// Without a corroborating detection the strict policy leaves the text
	// bare but still reports the mention.
	strict := NewAnnotator(1.0, true)
	out := strict.Annotate(segments, nil, catalog)
	if out[0].Text != "la cola" {
		t.Errorf("strict policy annotated text = %q, want original", out[0].Text)
	}
	if len(out[0].Mentions) != 1 || out[0].Mentions[0].Corroborated {
		t.Errorf("strict policy mentions = %+v", out[0].Mentions)
	}

	// The default policy annotates text-only mentions.
	lenient := NewAnnotator(1.0, false)
	out = lenient.Annotate(segments, nil, catalog)
	if out[0].Text != "la cola (SKU: id-cola)" {
		t.Errorf("lenient policy annotated text = %q", out[0].Text)
	}
}

func TestAnnotateDetectionOfOtherProductDoesNotCorroborate(t *testing.T) {
	a := NewAnnotator(1.0, true)
	catalog := map[string]string{"cola": "id-cola"}
	segments := []domain.TranscriptSegment{{Start: 0, End: 2, Text: "la cola"}}
	detections := []domain.VisualDetection{{Timestamp: 1.0, ProductID: "id-other"}}

	out := a.Annotate(segments, detections, catalog)
	if out[0].Mentions[0].Corroborated {
		t.Error("detection of a different product corroborated the mention")
	}
	if out[0].Text != "la cola" {
		t.Errorf("text = %q, want original", out[0].Text)
	}
}

func TestAnnotateMultipleMentionsInOneSegment(t *testing.T) {
	a := NewAnnotator(1.0, false)
	catalog := map[string]string{
		"cola":         "id-cola",
		"agua mineral": "id-agua",
	}
	segments := []domain.TranscriptSegment{
		{Start: 0, End: 4, Text: "tenemos Cola y Agua Mineral en oferta"},
	}

	out := a.Annotate(segments, nil, catalog)
	want := "tenemos Cola (SKU: id-cola) y Agua Mineral (SKU: id-agua) en oferta"
	if out[0].Text != want {
		t.Errorf("annotated text = %q, want %q", out[0].Text, want)
	}
	if len(out[0].Mentions) != 2 {
		t.Errorf("mentions = %+v, want 2", out[0].Mentions)
	}
}
