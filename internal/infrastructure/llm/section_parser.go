package llm

import (
	"strings"

	"apigen/internal/domain/entity"
	"apigen/internal/infrastructure/metrics"
)

const codeFence = "```"

// ParseSections splits a raw generator response into sections.
//
// The text is cut on entity.MarkerToken. Each fragment whose first line names
// a known section contributes the rest of the fragment, trimmed and with any
// wrapping code fence removed. Fragments naming nothing are dropped, a later
// fragment for the same section replaces an earlier one, and fragments with
// no content are treated as absent. A response without a single recognized
// section is entity.ErrParseFailure.
func ParseSections(raw string) (entity.SectionSet, error) {
	text := stripCodeFence(raw)

	sections := make(entity.SectionSet)
	for _, fragment := range strings.Split(text, entity.MarkerToken) {
		header, body, _ := strings.Cut(fragment, "\n")
		id, ok := matchSection(header)
		if !ok {
			continue
		}
		content := stripCodeFence(body)
		if content == "" {
			continue
		}
		sections[id] = content
	}

	metrics.ObserveSectionsParsed(len(sections))
	if len(sections) == 0 {
		return nil, entity.ErrParseFailure
	}
	return sections, nil
}

// compoundNames are multi-word headers that contain another identifier.
var compoundNames = map[string]entity.SectionID{
	"APPLICATION PROPERTIES": entity.SectionProperties,
	"APPLICATION.PROPERTIES": entity.SectionProperties,
	"APPLICATION_PROPERTIES": entity.SectionProperties,
}

// matchSection prefers an exact name ("MODEL---" trims to "MODEL"). Otherwise
// the name that starts earliest in the line wins, and on a tie the longer
// one, so "CONTROLLER (uses SERVICE)" is CONTROLLER and
// "APPLICATION PROPERTIES" is PROPERTIES.
func matchSection(header string) (entity.SectionID, bool) {
	name := strings.Trim(strings.TrimSpace(header), "-#*/: \t\r")
	for _, id := range entity.Sections {
		if name == string(id) {
			return id, true
		}
	}

	var best entity.SectionID
	bestAt, bestLen := -1, 0
	consider := func(candidate string, id entity.SectionID) {
		at := strings.Index(name, candidate)
		if at < 0 {
			return
		}
		if bestAt < 0 || at < bestAt || (at == bestAt && len(candidate) > bestLen) {
			best, bestAt, bestLen = id, at, len(candidate)
		}
	}
	for _, id := range entity.Sections {
		consider(string(id), id)
	}
	for candidate, id := range compoundNames {
		consider(candidate, id)
	}
	return best, bestAt >= 0
}

// stripCodeFence removes an opening fence line (with or without a language
// tag) and a closing fence. Either may be missing.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, codeFence) {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = ""
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, codeFence)
	return strings.TrimSpace(s)
}
