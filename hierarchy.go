package docanalysis

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Strategy names reported by ExtractHierarchy.
const (
	StrategyHeading    = "heading"
	StrategyEmbedding  = "embedding-similarity"
	StrategyPositional = "positional"
)

// HeadingNode is a section of the document. Offsets are byte offsets,
// half-open; a node's range covers its own children.
type HeadingNode struct {
	Level       int           `json:"level"`
	Title       string        `json:"title"`
	StartOffset int           `json:"startOffset"`
	EndOffset   int           `json:"endOffset"`
	Children    []HeadingNode `json:"children"`
}

// HierarchyMap is the full structural description of a document: the section
// tree, a rendered outline, extractive summaries, and the strategy that
// produced the tree.
type HierarchyMap struct {
	Headings         []HeadingNode     `json:"headings"`
	Outline          string            `json:"outline"`
	DocumentSummary  string            `json:"documentSummary"`
	SectionSummaries map[string]string `json:"sectionSummaries"`
	Strategy         string            `json:"strategy"`
}

// HierarchyOptions configures hierarchy extraction.
type HierarchyOptions struct {
	// SimilarityThreshold is the z-score multiplier for the adaptive boundary
	// threshold: a boundary opens where adjacent-paragraph similarity drops
	// below mean - SimilarityThreshold*stdev.
	SimilarityThreshold float64 `json:"similarityThreshold" yaml:"similarity_threshold"`
	// MinSectionSize is the minimum total paragraph-text length of an
	// embedding-derived section; smaller leading sections absorb into the
	// prior one.
	MinSectionSize             int `json:"minSectionSize" yaml:"min_section_size"`
	DocSummaryMaxSentences     int `json:"docSummaryMaxSentences" yaml:"doc_summary_max_sentences"`
	SectionSummaryMaxSentences int `json:"sectionSummaryMaxSentences" yaml:"section_summary_max_sentences"`
	MaxOutlineDepth            int `json:"maxOutlineDepth" yaml:"max_outline_depth"`
}

// DefaultHierarchyOptions returns the standard extraction settings.
func DefaultHierarchyOptions() HierarchyOptions {
	return HierarchyOptions{
		SimilarityThreshold:        0.5,
		MinSectionSize:             200,
		DocSummaryMaxSentences:     3,
		SectionSummaryMaxSentences: 1,
		MaxOutlineDepth:            6,
	}
}

func (o HierarchyOptions) normalized() HierarchyOptions {
	def := DefaultHierarchyOptions()
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = def.SimilarityThreshold
	}
	if o.MinSectionSize <= 0 {
		o.MinSectionSize = def.MinSectionSize
	}
	if o.DocSummaryMaxSentences <= 0 {
		o.DocSummaryMaxSentences = def.DocSummaryMaxSentences
	}
	if o.SectionSummaryMaxSentences <= 0 {
		o.SectionSummaryMaxSentences = def.SectionSummaryMaxSentences
	}
	if o.MaxOutlineDepth <= 0 {
		o.MaxOutlineDepth = def.MaxOutlineDepth
	}
	return o
}

var (
	markdownHeadingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	// A plain number must carry a separator ("1. Title", "2) Title") so prose
	// lines that happen to start with a number stay prose; dotted sub-numbers
	// ("1.1 Title") are unambiguous and may omit it.
	numberedHeadingRe = regexp.MustCompile(`^(\d+(?:\.\d+)+[.)]?|\d+[.)])\s+(.+)$`)
	extractSentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// ExtractHierarchy derives the section structure of text. Explicit headings
// win; without them the document is segmented by embedding similarity when an
// embedder is available, and by position otherwise. Only the embedding path
// can fail.
func ExtractHierarchy(ctx context.Context, text string, embedder Embedder, opts HierarchyOptions) (HierarchyMap, error) {
	opts = opts.normalized()

	var nodes []HeadingNode
	strategy := StrategyPositional

	switch {
	case strings.TrimSpace(text) == "":
		nodes = positionalSections(len(text))
	case len(detectHeadings(text)) > 0:
		nodes = nestHeadings(detectHeadings(text), len(text))
		strategy = StrategyHeading
	case embedder != nil:
		var err error
		nodes, err = embeddingSections(ctx, text, embedder, opts)
		if err != nil {
			return HierarchyMap{}, err
		}
		strategy = StrategyEmbedding
	default:
		nodes = positionalSections(len(text))
	}

	return HierarchyMap{
		Headings:         nodes,
		Outline:          renderOutline(nodes, opts.MaxOutlineDepth),
		DocumentSummary:  extractSentences(text, opts.DocSummaryMaxSentences),
		SectionSummaries: topSectionSummaries(text, nodes, opts.SectionSummaryMaxSentences),
		Strategy:         strategy,
	}, nil
}

// BuildContextPrefix returns the "A > B > C" path of section titles whose
// ranges contain offset, walking from the roots down. An offset outside every
// section yields "".
func BuildContextPrefix(offset int, nodes []HeadingNode) string {
	var titles []string
	current := nodes
	for len(current) > 0 {
		found := false
		for _, n := range current {
			if offset >= n.StartOffset && offset < n.EndOffset {
				titles = append(titles, n.Title)
				current = n.Children
				found = true
				break
			}
		}
		if !found {
			break
		}
	}
	return strings.Join(titles, " > ")
}

type detectedHeading struct {
	level  int
	title  string
	offset int
}

// detectHeadings scans line by line for markdown headings, ALL-CAPS title
// lines, and numbered headings, in that order of precedence.
func detectHeadings(text string) []detectedHeading {
	var out []detectedHeading
	offset := 0
	for _, line := range strings.Split(text, "\n") {
		switch {
		case markdownHeadingRe.MatchString(line):
			m := markdownHeadingRe.FindStringSubmatch(line)
			out = append(out, detectedHeading{
				level:  len(m[1]),
				title:  strings.TrimSpace(m[2]),
				offset: offset,
			})
		case isAllCapsHeading(line):
			out = append(out, detectedHeading{
				level:  1,
				title:  titleCase(strings.TrimSpace(line)),
				offset: offset,
			})
		case numberedHeadingRe.MatchString(line):
			m := numberedHeadingRe.FindStringSubmatch(line)
			num := strings.TrimRight(m[1], ".)")
			depth := strings.Count(num, ".") + 1
			if depth > 6 {
				depth = 6
			}
			out = append(out, detectedHeading{
				level:  depth,
				title:  strings.TrimSpace(m[2]),
				offset: offset,
			})
		}
		offset += len(line) + 1
	}
	return out
}

// isAllCapsHeading reports whether the line reads as a shouted section title:
// at least five characters, at least three words, equal to its upper-case
// form, and starting with an ASCII capital.
func isAllCapsHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 5 {
		return false
	}
	if trimmed[0] < 'A' || trimmed[0] > 'Z' {
		return false
	}
	if trimmed != strings.ToUpper(trimmed) {
		return false
	}
	return len(strings.Fields(trimmed)) >= 3
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// nestHeadings turns the flat heading list into a forest. A heading's section
// runs to the next heading at the same or shallower level, or to the end of
// the document; its children are the deeper headings inside that range.
func nestHeadings(flat []detectedHeading, docLen int) []HeadingNode {
	ends := make([]int, len(flat))
	for i := range flat {
		ends[i] = docLen
		for j := i + 1; j < len(flat); j++ {
			if flat[j].level <= flat[i].level {
				ends[i] = flat[j].offset
				break
			}
		}
	}

	var nest func(lo, hi int) []HeadingNode
	nest = func(lo, hi int) []HeadingNode {
		var nodes []HeadingNode
		i := lo
		for i < hi {
			j := i + 1
			for j < hi && flat[j].level > flat[i].level {
				j++
			}
			nodes = append(nodes, HeadingNode{
				Level:       flat[i].level,
				Title:       flat[i].title,
				StartOffset: flat[i].offset,
				EndOffset:   ends[i],
				Children:    nest(i+1, j),
			})
			i = j
		}
		return nodes
	}

	return nest(0, len(flat))
}

type paragraphSpan struct {
	text  string
	start int
	end   int
}

func splitParagraphSpans(text string) []paragraphSpan {
	var spans []paragraphSpan
	cursor := 0
	for _, p := range paragraphSplitRe.Split(text, -1) {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		start := cursor
		if idx := strings.Index(text[cursor:], trimmed); idx >= 0 {
			start = cursor + idx
		}
		end := start + len(trimmed)
		spans = append(spans, paragraphSpan{text: trimmed, start: start, end: end})
		cursor = end
	}
	return spans
}

// embeddingSections segments the document where the cosine similarity between
// adjacent paragraph embeddings drops below an adaptive threshold derived from
// the similarity distribution.
func embeddingSections(ctx context.Context, text string, embedder Embedder, opts HierarchyOptions) ([]HeadingNode, error) {
	spans := splitParagraphSpans(text)
	if len(spans) <= 1 {
		return []HeadingNode{{
			Level:       1,
			Title:       "Section 1 of 1",
			StartOffset: 0,
			EndOffset:   len(text),
		}}, nil
	}

	texts := make([]string, len(spans))
	for i, s := range spans {
		texts[i] = s.text
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed paragraphs: %w", err)
	}
	if len(vectors) != len(spans) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d paragraphs", len(vectors), len(spans))
	}

	similarities := make([]float64, len(vectors)-1)
	for i := 1; i < len(vectors); i++ {
		similarities[i-1] = cosineSimilarity(vectors[i-1], vectors[i])
	}

	mean, stdev := meanStdev(similarities)
	threshold := mean - opts.SimilarityThreshold*stdev

	boundaries := []int{0}
	for i, s := range similarities {
		if s < threshold {
			boundaries = append(boundaries, i+1)
		}
	}
	boundaries = mergeTinySections(boundaries, spans, opts.MinSectionSize)

	nodes := make([]HeadingNode, 0, len(boundaries))
	for k, b := range boundaries {
		endIdx := len(spans)
		if k+1 < len(boundaries) {
			endIdx = boundaries[k+1]
		}
		end := spans[endIdx-1].end
		if k == len(boundaries)-1 {
			end = len(text)
		}
		nodes = append(nodes, HeadingNode{
			Level:       1,
			Title:       fmt.Sprintf("Section %d of %d", k+1, len(boundaries)),
			StartOffset: spans[b].start,
			EndOffset:   end,
		})
	}
	return nodes, nil
}

// mergeTinySections drops boundary candidates whose preceding section would be
// smaller than minSize, absorbing the small section into the prior one.
func mergeTinySections(boundaries []int, spans []paragraphSpan, minSize int) []int {
	kept := []int{0}
	for _, b := range boundaries[1:] {
		prev := kept[len(kept)-1]
		size := 0
		for i := prev; i < b; i++ {
			size += len(spans[i].text)
		}
		if size < minSize {
			continue
		}
		kept = append(kept, b)
	}
	return kept
}

// positionalSections slices the document into equal character ranges, one
// section per 500 characters, clamped to [1, 5].
func positionalSections(textLen int) []HeadingNode {
	count := (textLen + 499) / 500
	if count < 1 {
		count = 1
	}
	if count > 5 {
		count = 5
	}

	nodes := make([]HeadingNode, 0, count)
	for i := 0; i < count; i++ {
		nodes = append(nodes, HeadingNode{
			Level:       1,
			Title:       fmt.Sprintf("Section %d of %d", i+1, count),
			StartOffset: i * textLen / count,
			EndOffset:   (i + 1) * textLen / count,
		})
	}
	return nodes
}

// renderOutline prints the tree with two-space indentation per level beyond
// the first and dotted sibling numbering ("1", "1.1", "1.2", "2"). Nodes
// deeper than maxDepth are omitted together with their subtrees.
func renderOutline(nodes []HeadingNode, maxDepth int) string {
	var lines []string
	var walk func(nodes []HeadingNode, prefix string)
	walk = func(nodes []HeadingNode, prefix string) {
		num := 0
		for _, n := range nodes {
			if n.Level > maxDepth {
				continue
			}
			num++
			number := strconv.Itoa(num)
			if prefix != "" {
				number = prefix + "." + number
			}
			indent := strings.Repeat("  ", n.Level-1)
			lines = append(lines, fmt.Sprintf("%s%s. %s", indent, number, n.Title))
			walk(n.Children, number)
		}
	}
	walk(nodes, "")
	return strings.Join(lines, "\n")
}

// extractSentences returns the first maxSentences terminator-ended sentences
// of text joined by single spaces, or the whole trimmed text when none end
// with a terminator.
func extractSentences(text string, maxSentences int) string {
	matches := extractSentenceRe.FindAllString(text, maxSentences)
	if len(matches) == 0 {
		return strings.TrimSpace(text)
	}
	for i := range matches {
		matches[i] = strings.TrimSpace(matches[i])
	}
	return strings.Join(matches, " ")
}

// topSectionSummaries builds an extractive summary for every root node at the
// shallowest level present, keyed by title.
func topSectionSummaries(text string, nodes []HeadingNode, maxSentences int) map[string]string {
	summaries := make(map[string]string)
	if len(nodes) == 0 {
		return summaries
	}

	minLevel := nodes[0].Level
	for _, n := range nodes[1:] {
		if n.Level < minLevel {
			minLevel = n.Level
		}
	}

	for _, n := range nodes {
		if n.Level != minLevel {
			continue
		}
		start, end := clampRange(n.StartOffset, n.EndOffset, len(text))
		summaries[n.Title] = extractSentences(text[start:end], maxSentences)
	}
	return summaries
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// meanStdev computes the population mean and standard deviation.
func meanStdev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
