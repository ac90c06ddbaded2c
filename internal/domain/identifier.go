// Package domain provides the bibliographic domain model shared by the
// citation index pipeline: identifiers, resources, metadata and errors.
package domain

import "strings"

// Scheme names an identifier namespace.
type Scheme string

// Supported identifier schemes.
const (
	SchemeDOI       Scheme = "doi"
	SchemePMID      Scheme = "pmid"
	SchemePMCID     Scheme = "pmcid"
	SchemeISBN      Scheme = "isbn"
	SchemeISSN      Scheme = "issn"
	SchemeOMID      Scheme = "omid"
	SchemeURL       Scheme = "url"
	SchemeWikidata  Scheme = "wikidata"
	SchemeWikipedia Scheme = "wikipedia"
	SchemeJID       Scheme = "jid"
	SchemeArXiv     Scheme = "arxiv"
	SchemeORCID     Scheme = "orcid"
	SchemeOpenAlex  Scheme = "openalex"
	SchemeCrossref  Scheme = "crossref"
)

var knownSchemes = map[Scheme]bool{
	SchemeDOI:       true,
	SchemePMID:      true,
	SchemePMCID:     true,
	SchemeISBN:      true,
	SchemeISSN:      true,
	SchemeOMID:      true,
	SchemeURL:       true,
	SchemeWikidata:  true,
	SchemeWikipedia: true,
	SchemeJID:       true,
	SchemeArXiv:     true,
	SchemeORCID:     true,
	SchemeOpenAlex:  true,
	SchemeCrossref:  true,
}

// Known reports whether s is one of the supported schemes.
func (s Scheme) Known() bool {
	return knownSchemes[s]
}

// Identifier is a (scheme, literal value) pair. The value is never
// percent-encoded. An identifier with an empty scheme is an opaque value
// whose namespace could not be recognised.
type Identifier struct {
	Scheme Scheme `json:"scheme"`
	Value  string `json:"value"`
}

// NewIdentifier creates an identifier.
func NewIdentifier(scheme Scheme, value string) Identifier {
	return Identifier{Scheme: scheme, Value: value}
}

// String returns the "scheme:value" form, or the bare value for opaque
// identifiers.
func (id Identifier) String() string {
	if id.Scheme == "" {
		return id.Value
	}
	return string(id.Scheme) + ":" + id.Value
}

// IsZero reports whether the identifier carries no value.
func (id Identifier) IsZero() bool {
	return id.Value == ""
}

// IsOpaque reports whether the identifier has no recognised scheme.
func (id Identifier) IsOpaque() bool {
	return id.Scheme == ""
}

// IsVenue reports whether the identifier names a venue (journal, series)
// rather than a single work.
func (id Identifier) IsVenue() bool {
	return id.Scheme == SchemeISSN || id.Scheme == SchemeJID
}

// JoinIdentifiers renders identifiers space separated, the way identifier
// lists appear in output cells.
func JoinIdentifiers(ids []Identifier) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		parts = append(parts, id.String())
	}
	return strings.Join(parts, " ")
}

// IdentifierSet is a membership set keyed by the identifier's string form.
type IdentifierSet map[string]struct{}

// NewIdentifierSet builds a set from ids, skipping empty identifiers.
func NewIdentifierSet(ids ...Identifier) IdentifierSet {
	s := make(IdentifierSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id into the set.
func (s IdentifierSet) Add(id Identifier) {
	if id.IsZero() {
		return
	}
	s[id.String()] = struct{}{}
}

// Has reports whether id is in the set.
func (s IdentifierSet) Has(id Identifier) bool {
	_, ok := s[id.String()]
	return ok
}

// Intersects reports whether the two sets share at least one identifier.
func (s IdentifierSet) Intersects(other IdentifierSet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for k := range small {
		if _, ok := large[k]; ok {
			return true
		}
	}
	return false
}
