package domain

// VisualDetection is a per-frame match of a registered product. Ephemeral:
// produced while a video is analyzed, never persisted.
type VisualDetection struct {
	Timestamp float64 `json:"timestamp"`
	ProductID string  `json:"product_id"`
	Matches   int     `json:"matches"`
	// Confidence is the accepted-correspondence count normalized by the
	// product's reference descriptor count.
	Confidence float64 `json:"confidence"`
}

// TranscriptSegment is one timestamped span of transcribed speech.
// Timestamps are seconds into the video, the same coordinate system the
// frame sampler uses, so correlation is a pure time-window join.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Mention is one product name found in a transcript segment.
type Mention struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	// Corroborated is true when a visual detection of the same product
	// fell inside the segment's correlation window.
	Corroborated bool `json:"corroborated"`
}

// AnnotatedSegment is the final output unit: the original transcript text
// with product mentions suffixed by their SKU annotation.
type AnnotatedSegment struct {
	Start    float64   `json:"start"`
	End      float64   `json:"end"`
	Text     string    `json:"text"`
	Mentions []Mention `json:"mentions,omitempty"`
}

// AnalysisResult is the full outcome of one video analysis run.
type AnalysisResult struct {
	Segments   []AnnotatedSegment `json:"segments"`
	Detections []VisualDetection  `json:"detections"`
	// StoreVersion is the feature store version the whole run was matched
	// against.
	StoreVersion string `json:"store_version,omitempty"`
}
