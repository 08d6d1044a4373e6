package docanalysis

import (
	"regexp"
	"strings"

	"github.com/MegaGrindStone/go-doc-analysis/internal"
)

// ChunkOptions configures the text segmentation.
type ChunkOptions struct {
	// MaxChunkSize is the upper bound in characters for a chunk after merging.
	// The overlap prefix may push the final text length above this bound.
	MaxChunkSize int `json:"maxChunkSize" yaml:"max_chunk_size"`
	// Overlap is the number of characters borrowed from the previous canonical
	// segment's tail, trimmed at the first whitespace boundary.
	Overlap int `json:"overlap" yaml:"overlap"`
}

const (
	defaultMaxChunkSize = 1000
	defaultOverlap      = 200
)

// DefaultChunkOptions returns the standard segmentation settings.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{
		MaxChunkSize: defaultMaxChunkSize,
		Overlap:      defaultOverlap,
	}
}

func (o ChunkOptions) normalized() ChunkOptions {
	if o.MaxChunkSize <= 0 {
		o.MaxChunkSize = defaultMaxChunkSize
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	return o
}

// Chunk is an ordered slice of a document with bit-exact provenance.
// Text may carry a leading overlap prefix from the preceding segment; Start
// and End are the byte offsets of the non-overlapped canonical segment in the
// source document, half-open. Hash is the SHA-256 hex of Text, so a change in
// overlap changes the hash.
type Chunk struct {
	Index         int    `json:"index"`
	Text          string `json:"text"`
	Start         int    `json:"start"`
	End           int    `json:"end"`
	Hash          string `json:"hash"`
	TokenSize     int    `json:"tokenSize,omitempty"`
	SectionTitle  string `json:"sectionTitle,omitempty"`
	SectionPath   string `json:"sectionPath,omitempty"`
	ContextPrefix string `json:"contextPrefix,omitempty"`
}

// TextStats holds the cheap document-level counters.
type TextStats struct {
	TotalCharacters int `json:"totalCharacters"`
	TotalWords      int `json:"totalWords"`
	TotalParagraphs int `json:"totalParagraphs"`
}

// AnalysisResult combines document statistics with the produced chunks and,
// when chunking ran under a hierarchy, the hierarchy itself.
type AnalysisResult struct {
	TextStats
	TotalTokens int           `json:"totalTokens"`
	Chunks      []Chunk       `json:"chunks"`
	Hierarchy   *HierarchyMap `json:"hierarchy,omitempty"`
}

var (
	paragraphSplitRe   = regexp.MustCompile(`\n\s*\n`)
	sentenceBoundaryRe = regexp.MustCompile(`[.!?]\s+`)
)

// ChunkText splits text into chunks bounded by opts.MaxChunkSize. The split is
// language-agnostic: paragraphs first, sentences inside oversized paragraphs,
// then consecutive tiny segments are merged back together. Chunks after the
// first carry an overlap prefix from the previous canonical segment.
// Empty input yields no chunks.
func ChunkText(text string, opts ChunkOptions) []Chunk {
	opts = opts.normalized()

	var segments []string
	for _, p := range splitParagraphs(text) {
		segments = append(segments, breakLongParagraph(p, opts.MaxChunkSize)...)
	}
	segments = mergeTinySegments(segments, opts.MaxChunkSize)

	chunks := make([]Chunk, 0, len(segments))
	searchFrom := 0
	for i, canonical := range segments {
		chunkText := canonical
		if i > 0 && opts.Overlap > 0 {
			if prefix := overlapPrefix(segments[i-1], opts.Overlap); prefix != "" {
				chunkText = prefix + " " + canonical
			}
		}

		// Locate the canonical segment with a forward-moving cursor so repeated
		// content resolves to successive occurrences.
		start, end := 0, searchFrom
		if idx := strings.Index(text[searchFrom:], canonical); idx >= 0 {
			start = searchFrom + idx
			end = start + len(canonical)
			searchFrom = start + 1
		}

		chunks = append(chunks, Chunk{
			Index:     i,
			Text:      chunkText,
			Start:     start,
			End:       end,
			Hash:      HashDocument(chunkText),
			TokenSize: tokenCount(chunkText),
		})
	}

	return chunks
}

// ChunkWithHierarchy splits text along the hierarchy's leaf sections and
// annotates every chunk with the section title, path, and context prefix.
// Offsets are document-relative and the index is monotone across sections.
// Without headings it degrades to plain ChunkText.
func ChunkWithHierarchy(text string, hierarchy HierarchyMap, opts ChunkOptions) []Chunk {
	if len(hierarchy.Headings) == 0 {
		return ChunkText(text, opts)
	}

	var chunks []Chunk
	index := 0
	for _, leaf := range leafSections(hierarchy.Headings) {
		start, end := clampRange(leaf.StartOffset, leaf.EndOffset, len(text))
		path := BuildContextPrefix(leaf.StartOffset, hierarchy.Headings)

		for _, c := range ChunkText(text[start:end], opts) {
			c.Index = index
			c.Start += start
			c.End += start
			c.SectionTitle = leaf.Title
			c.SectionPath = path
			if path != "" {
				c.ContextPrefix = "[" + path + "] "
			}
			chunks = append(chunks, c)
			index++
		}
	}

	return chunks
}

// AnalyzeText computes cheap document statistics. It is pure and never fails.
func AnalyzeText(text string) TextStats {
	return TextStats{
		TotalCharacters: len(text),
		TotalWords:      len(strings.Fields(text)),
		TotalParagraphs: len(splitParagraphs(text)),
	}
}

// AnalyzeDocument composes AnalyzeText with chunking. When hierarchy is
// non-nil the chunks are partitioned along its leaf sections and the hierarchy
// is attached to the result.
func AnalyzeDocument(text string, opts ChunkOptions, hierarchy *HierarchyMap) AnalysisResult {
	var chunks []Chunk
	if hierarchy != nil {
		chunks = ChunkWithHierarchy(text, *hierarchy, opts)
	} else {
		chunks = ChunkText(text, opts)
	}
	if chunks == nil {
		chunks = []Chunk{}
	}

	return AnalysisResult{
		TextStats:   AnalyzeText(text),
		TotalTokens: tokenCount(text),
		Chunks:      chunks,
		Hierarchy:   hierarchy,
	}
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphSplitRe.Split(text, -1) {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// splitSentences cuts after a terminator followed by whitespace, keeping the
// terminator with its sentence and dropping the separating whitespace.
func splitSentences(paragraph string) []string {
	locs := sentenceBoundaryRe.FindAllStringIndex(paragraph, -1)
	if len(locs) == 0 {
		return []string{paragraph}
	}

	var out []string
	prev := 0
	for _, loc := range locs {
		out = append(out, paragraph[prev:loc[0]+1])
		prev = loc[1]
	}
	if prev < len(paragraph) {
		out = append(out, paragraph[prev:])
	}
	return out
}

// breakLongParagraph greedily packs sentences into buffers bounded by
// maxChunkSize. A paragraph with no sentence boundaries stays whole regardless
// of its length.
func breakLongParagraph(paragraph string, maxChunkSize int) []string {
	if len(paragraph) <= maxChunkSize {
		return []string{paragraph}
	}

	var segments []string
	buffer := ""
	for _, sentence := range splitSentences(paragraph) {
		if buffer == "" {
			buffer = sentence
			continue
		}
		if len(buffer)+1+len(sentence) > maxChunkSize {
			segments = append(segments, buffer)
			buffer = sentence
			continue
		}
		buffer += " " + sentence
	}
	if buffer != "" {
		segments = append(segments, buffer)
	}
	return segments
}

// mergeTinySegments packs consecutive small segments, joining with a blank
// line, until appending the next one would exceed maxChunkSize plus the
// two-character separator.
func mergeTinySegments(segments []string, maxChunkSize int) []string {
	var merged []string
	current := ""
	for _, seg := range segments {
		if current == "" {
			current = seg
			continue
		}
		if len(current)+2+len(seg) > maxChunkSize+2 {
			merged = append(merged, current)
			current = seg
			continue
		}
		current += "\n\n" + seg
	}
	if current != "" {
		merged = append(merged, current)
	}
	return merged
}

// overlapPrefix takes the last overlap characters of the previous canonical
// segment, trimmed forward past the first space so the prefix starts on a word
// boundary. With no space the raw slice is kept.
func overlapPrefix(previous string, overlap int) string {
	start := len(previous) - overlap
	if start < 0 {
		start = 0
	}
	slice := previous[start:]
	if idx := strings.IndexByte(slice, ' '); idx >= 0 {
		slice = slice[idx+1:]
	}
	return slice
}

func leafSections(nodes []HeadingNode) []HeadingNode {
	var leaves []HeadingNode
	for _, n := range nodes {
		if len(n.Children) == 0 {
			leaves = append(leaves, n)
			continue
		}
		leaves = append(leaves, leafSections(n.Children)...)
	}
	return leaves
}

func clampRange(start, end, max int) (int, int) {
	if start < 0 {
		start = 0
	}
	if start > max {
		start = max
	}
	if end < start {
		end = start
	}
	if end > max {
		end = max
	}
	return start, end
}

func tokenCount(text string) int {
	n, err := internal.CountTokens(text)
	if err != nil {
		return 0
	}
	return n
}
