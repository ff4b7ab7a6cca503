package usecase

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/aniketgiri96/Ragnetic/internal/core/domain"
)

const citationLegendHeader = "Source references"

var (
	citationMarkerRe = regexp.MustCompile(`(?i)\[Source\s+(\d+)\]`)
	citationGroupRe  = regexp.MustCompile(`(?i)\[Source\s+\d+(?:\s*,\s*\d+)*\]`)
)

func hasCitation(answer string) bool {
	return citationMarkerRe.MatchString(answer)
}

// citationIndices returns the sorted zero-based source indices the answer
// cites, ignoring out-of-range markers.
func citationIndices(answer string, sourceCount int) []int {
	seen := make(map[int]struct{})
	for _, match := range citationMarkerRe.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		idx := n - 1
		if idx < 0 || idx >= sourceCount {
			continue
		}
		seen[idx] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// enforceCitationFormat appends a generic citation line when the model wrote
// none at all. It never rewrites citations the model produced.
func enforceCitationFormat(answer string, sources []domain.ContextSource, enabled bool) string {
	normalized := strings.TrimSpace(answer)
	if !enabled || len(sources) == 0 {
		return normalized
	}
	if hasCitation(normalized) {
		return normalized
	}
	n := len(sources)
	if n > 3 {
		n = 3
	}
	refs := make([]string, n)
	for i := 0; i < n; i++ {
		refs[i] = fmt.Sprintf("[Source %d]", i+1)
	}
	return strings.TrimSpace(normalized + "\n\nCitations: " + strings.Join(refs, ", "))
}

// appendCitationLegend maps cited indices back to human-readable source names
// at the end of the answer. A no-op when the answer already carries a legend
// or cites nothing.
func appendCitationLegend(answer string, sources []domain.ContextSource, maxItems int) string {
	normalized := strings.TrimSpace(answer)
	if normalized == "" || len(sources) == 0 {
		return normalized
	}

	headerLine := citationLegendHeader + ":"
	if strings.Contains(strings.ToLower(normalized), strings.ToLower(headerLine)) {
		return normalized
	}

	used := citationIndices(normalized, len(sources))
	if len(used) == 0 {
		return normalized
	}

	maxGroups := maxItems
	if maxGroups < 1 {
		maxGroups = 1
	}
	grouped := make(map[string][]int)
	var order []string
	for _, idx := range used {
		name := sourceName(sources[idx], idx)
		if _, ok := grouped[name]; !ok {
			if len(order) >= maxGroups {
				continue
			}
			grouped[name] = nil
			order = append(order, name)
		}
		grouped[name] = append(grouped[name], idx)
	}

	lines := []string{headerLine}
	for _, name := range order {
		refs := make([]string, len(grouped[name]))
		for i, idx := range grouped[name] {
			refs[i] = strconv.Itoa(idx + 1)
		}
		lines = append(lines, fmt.Sprintf("[Source %s] %s", strings.Join(refs, ", "), name))
	}
	return normalized + "\n\n" + strings.Join(lines, "\n")
}

func sourceName(source domain.ContextSource, index int) string {
	for _, key := range []string{"source", "filename", "title"} {
		if value, ok := source.Metadata[key]; ok {
			if name, ok := value.(string); ok && strings.TrimSpace(name) != "" {
				return strings.TrimSpace(name)
			}
		}
	}
	return fmt.Sprintf("Source %d", index+1)
}
