package chunking

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/aniketgiri96/Ragnetic/internal/core/domain"
)

var (
	mdHeadingRe       = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)
	numberedHeadingRe = regexp.MustCompile(`^(\d+(?:\.\d+){0,5})[.)]?\s+(.+?)\s*$`)
	whitespaceRe      = regexp.MustCompile(`\s+`)
)

type Options struct {
	MaxChunkChars    int
	OverlapChars     int
	OverlapSentences int
	MinChunkChars    int
}

// Chunker splits document text into bounded, semantically coherent passages
// with heading provenance and sentence-level overlap. It is pure and
// deterministic: the same input always yields the same chunk list.
type Chunker struct {
	opts Options
}

func New(opts Options) *Chunker {
	if opts.MaxChunkChars <= 0 {
		opts.MaxChunkChars = 600
	}
	if opts.OverlapChars < 0 {
		opts.OverlapChars = 0
	}
	if opts.OverlapSentences < 0 {
		opts.OverlapSentences = 0
	}
	if opts.MinChunkChars <= 0 {
		opts.MinChunkChars = 180
	}
	if opts.MinChunkChars > opts.MaxChunkChars {
		opts.MinChunkChars = opts.MaxChunkChars / 3
	}
	return &Chunker{opts: opts}
}

type segment struct {
	text        string
	start       int
	end         int
	sectionPath string
}

func (c *Chunker) Chunk(text string, metadataBase map[string]any) []domain.Chunk {
	paragraphs := paragraphSegments(text)
	if len(paragraphs) == 0 {
		return nil
	}

	segments := make([]segment, 0, len(paragraphs))
	for _, para := range paragraphs {
		for _, part := range splitLongSegment(para.text, para.start, c.opts.MaxChunkChars, c.opts.MinChunkChars) {
			part.sectionPath = para.sectionPath
			segments = append(segments, part)
		}
	}

	var (
		chunks         []domain.Chunk
		currentText    string
		currentStart   int
		currentEnd     int
		paragraphCount int
		sectionPaths   []string
	)

	emit := func() {
		body := strings.TrimSpace(currentText)
		if body == "" {
			return
		}
		uniquePaths := make([]string, 0, len(sectionPaths))
		for _, path := range sectionPaths {
			normalized := strings.TrimSpace(path)
			if normalized == "" || containsString(uniquePaths, normalized) {
				continue
			}
			uniquePaths = append(uniquePaths, normalized)
		}

		meta := make(map[string]any, len(metadataBase)+5)
		for k, v := range metadataBase {
			meta[k] = v
		}
		meta["paragraph_count"] = paragraphCount
		meta["char_length"] = len(body)
		if len(uniquePaths) > 0 {
			last := uniquePaths[len(uniquePaths)-1]
			meta["section_path"] = last
			meta["section_paths"] = uniquePaths
			parts := strings.Split(last, " > ")
			meta["section_title"] = parts[len(parts)-1]
		}

		chunks = append(chunks, domain.Chunk{
			Text:      body,
			Metadata:  meta,
			StartChar: currentStart,
			EndChar:   currentEnd,
		})

		overlap := tailOverlapSentences(body, c.opts.OverlapSentences, c.opts.OverlapChars)
		currentText = overlap
		if overlap != "" {
			currentStart = max(currentEnd-len(overlap), 0)
		} else {
			currentStart = currentEnd
		}
		paragraphCount = 0
		if overlap != "" && len(uniquePaths) > 0 {
			sectionPaths = uniquePaths[len(uniquePaths)-1:]
		} else {
			sectionPaths = nil
		}
	}

	for _, seg := range segments {
		if currentText == "" {
			currentText = seg.text
			currentStart = seg.start
			currentEnd = seg.end
			paragraphCount = 1
			if seg.sectionPath != "" {
				sectionPaths = []string{seg.sectionPath}
			}
			continue
		}

		candidate := strings.TrimSpace(currentText + "\n\n" + seg.text)
		if len(candidate) > c.opts.MaxChunkChars && len(currentText) >= c.opts.MinChunkChars {
			emit()
			if currentText != "" {
				candidate = strings.TrimSpace(currentText + "\n\n" + seg.text)
			} else {
				candidate = seg.text
			}
		}
		currentText = candidate
		currentEnd = max(currentEnd, seg.end)
		paragraphCount++
		if seg.sectionPath != "" {
			if len(sectionPaths) == 0 || sectionPaths[len(sectionPaths)-1] != seg.sectionPath {
				sectionPaths = append(sectionPaths, seg.sectionPath)
			}
		}
	}
	emit()

	// Repeated boilerplate sections produce identical chunk text; keep only
	// the first occurrence so retrieval does not surface duplicate hits.
	deduped := chunks[:0]
	seen := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		normalized := strings.ToLower(strings.TrimSpace(whitespaceRe.ReplaceAllString(chunk.Text, " ")))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		deduped = append(deduped, chunk)
	}
	chunks = deduped

	total := len(chunks)
	for i := range chunks {
		chunks[i].Metadata["chunk_index"] = i
		chunks[i].Metadata["chunk_count"] = total
	}
	return chunks
}

type paragraph struct {
	text        string
	start       int
	end         int
	sectionPath string
}

// paragraphSegments splits on blank-line boundaries and tracks the heading
// stack so every paragraph carries the breadcrumb of its enclosing sections.
// A heading at level N replaces level N and drops all deeper stale levels.
func paragraphSegments(sourceText string) []paragraph {
	if sourceText == "" {
		return nil
	}
	lines := strings.SplitAfter(sourceText, "\n")

	headingStack := make(map[int]string)
	var buffer []string
	searchCursor := 0
	var out []paragraph

	sectionPath := func() string {
		if len(headingStack) == 0 {
			return ""
		}
		levels := make([]int, 0, len(headingStack))
		for level := range headingStack {
			levels = append(levels, level)
		}
		sort.Ints(levels)
		titles := make([]string, 0, len(levels))
		for _, level := range levels {
			titles = append(titles, headingStack[level])
		}
		return strings.Join(titles, " > ")
	}

	flush := func() {
		raw := strings.Join(buffer, "")
		buffer = buffer[:0]
		body := strings.TrimSpace(raw)
		if body == "" {
			return
		}
		idx := strings.Index(sourceText[searchCursor:], body)
		if idx < 0 {
			idx = searchCursor
		} else {
			idx += searchCursor
		}
		end := idx + len(body)
		searchCursor = end
		out = append(out, paragraph{text: body, start: idx, end: end, sectionPath: sectionPath()})
	}

	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if level, title, ok := headingLevelAndTitle(stripped); ok {
			flush()
			headingStack[level] = title
			for key := range headingStack {
				if key > level {
					delete(headingStack, key)
				}
			}
			continue
		}

		buffer = append(buffer, line)
		if stripped == "" {
			flush()
		}
	}
	flush()
	return out
}

func headingLevelAndTitle(line string) (int, string, bool) {
	if m := mdHeadingRe.FindStringSubmatch(line); m != nil {
		title := strings.TrimSpace(m[2])
		if title != "" {
			return len(m[1]), title, true
		}
	}
	if m := numberedHeadingRe.FindStringSubmatch(line); m != nil {
		title := strings.TrimSpace(m[2])
		if title != "" {
			return strings.Count(m[1], ".") + 1, title, true
		}
	}
	return 0, "", false
}

// splitLongSegment re-splits oversized text at sentence boundaries, falling
// back to word wrapping when no boundaries exist. A trailing fragment
// shorter than minChunkChars is merged into its predecessor.
func splitLongSegment(text string, startChar, maxChunkChars, minChunkChars int) []segment {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if len(clean) <= maxChunkChars {
		return []segment{{text: clean, start: startChar, end: startChar + len(clean)}}
	}

	pieces := SplitSentences(clean)
	if len(pieces) <= 1 {
		words := strings.Fields(clean)
		var out []segment
		buf := ""
		cursor := startChar
		for _, word := range words {
			candidate := strings.TrimSpace(buf + " " + word)
			if buf != "" && len(candidate) > maxChunkChars {
				part := strings.TrimSpace(buf)
				out = append(out, segment{text: part, start: cursor, end: cursor + len(part)})
				cursor += len(part) + 1
				buf = word
			} else {
				buf = candidate
			}
		}
		if buf != "" {
			out = append(out, segment{text: buf, start: cursor, end: cursor + len(buf)})
		}
		return out
	}

	var out []segment
	current := ""
	currentStart := startChar
	cursor := startChar
	for _, sentence := range pieces {
		candidate := sentence
		if current != "" {
			candidate = strings.TrimSpace(current + " " + sentence)
		}
		if current != "" && len(candidate) > maxChunkChars {
			part := strings.TrimSpace(current)
			out = append(out, segment{text: part, start: currentStart, end: currentStart + len(part)})
			current = sentence
			currentStart = cursor
		} else {
			current = candidate
		}
		cursor += len(sentence) + 1
	}
	if part := strings.TrimSpace(current); part != "" {
		out = append(out, segment{text: part, start: currentStart, end: currentStart + len(part)})
	}

	// Merge tiny trailing parts to avoid retrieval fragmentation.
	if len(out) > 1 && len(out[len(out)-1].text) < minChunkChars {
		prev := out[len(out)-2]
		tail := out[len(out)-1]
		merged := strings.TrimSpace(prev.text + "\n" + tail.text)
		out[len(out)-2] = segment{text: merged, start: prev.start, end: tail.end}
		out = out[:len(out)-1]
	}
	return out
}

// SplitSentences cuts text after runs of sentence terminators followed by
// whitespace. Trailing text without a terminator is returned as-is.
func SplitSentences(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isSentenceTerminator(runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && isSentenceTerminator(runes[j]) {
			j++
		}
		if j >= len(runes) || !unicode.IsSpace(runes[j]) {
			i = j - 1
			continue
		}
		if piece := strings.TrimSpace(string(runes[start:j])); piece != "" {
			out = append(out, piece)
		}
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		if piece := strings.TrimSpace(string(runes[start:])); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

func tailOverlapChars(text string, overlapChars int) string {
	if overlapChars <= 0 || text == "" {
		return ""
	}
	tail := text
	if len(tail) > overlapChars {
		// Count runes so multi-byte text is never cut mid-rune.
		runes := []rune(tail)
		if len(runes) > overlapChars {
			tail = string(runes[len(runes)-overlapChars:])
		}
	}
	// Avoid cutting mid-word.
	if firstSpace := strings.Index(tail, " "); firstSpace > 0 && firstSpace < len(tail)-1 {
		tail = tail[firstSpace+1:]
	}
	return strings.TrimSpace(tail)
}

func tailOverlapSentences(text string, overlapSentences, overlapChars int) string {
	if text == "" || overlapChars <= 0 {
		return ""
	}
	if overlapSentences <= 0 {
		return tailOverlapChars(text, overlapChars)
	}
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return tailOverlapChars(text, overlapChars)
	}
	from := len(sentences) - overlapSentences
	if from < 0 {
		from = 0
	}
	overlap := strings.TrimSpace(strings.Join(sentences[from:], " "))
	if len(overlap) > overlapChars {
		overlap = tailOverlapChars(overlap, overlapChars)
	}
	return strings.TrimSpace(overlap)
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func isSentenceTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
