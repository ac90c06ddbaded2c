// Package metadata fetches descriptive metadata of bibliographic resources
// from OpenCitations Meta and parses the delimited author, venue and
// identifier lists it returns.
package metadata

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/identifier"
)

var whitespace = regexp.MustCompile(`\s+`)

// CleanText NFC-normalizes s, collapses runs of whitespace and trims it.
func CleanText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(norm.NFC.String(s), " "))
}

// ParseIdentifiers parses a whitespace separated identifier list. The
// " __ " separator used by aggregated SPARQL results is accepted as well.
func ParseIdentifiers(s string) []domain.Identifier {
	seen := make(domain.IdentifierSet)
	var out []domain.Identifier
	for _, tok := range strings.Fields(s) {
		if tok == identifier.CompoundSeparator {
			continue
		}
		id := identifier.ParseLiteral(tok)
		if id.IsZero() || seen.Has(id) {
			continue
		}
		seen.Add(id)
		out = append(out, id)
	}
	return out
}

// ParseAgent parses one "Name [scheme:value ...]" entry.
func ParseAgent(entry string) domain.Agent {
	entry = strings.TrimSpace(entry)
	if strings.HasSuffix(entry, "]") {
		if i := strings.LastIndex(entry, "["); i >= 0 {
			return domain.Agent{
				Name:        CleanText(entry[:i]),
				Identifiers: ParseIdentifiers(entry[i+1 : len(entry)-1]),
			}
		}
	}
	return domain.Agent{Name: CleanText(entry)}
}

// ParseAgents parses a ";" separated agent list, keeping source order.
// Order is significant for authors.
func ParseAgents(s string) []domain.Agent {
	var out []domain.Agent
	for _, entry := range strings.Split(s, ";") {
		a := ParseAgent(entry)
		if a.Name == "" && len(a.Identifiers) == 0 {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ParseVenue parses a "Title [scheme:value ...]" venue string.
func ParseVenue(s string) domain.Venue {
	a := ParseAgent(s)
	return domain.Venue{Title: a.Name, Identifiers: a.Identifiers}
}
