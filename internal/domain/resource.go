package domain

import "strings"

// ResourceRef is the resolution result for one bibliographic resource: its
// canonical OMID and every identifier known to denote it.
type ResourceRef struct {
	ID      Identifier
	Aliases []Identifier
}

// AliasSet returns the resource's aliases, canonical id included, as a set.
func (r ResourceRef) AliasSet() IdentifierSet {
	s := NewIdentifierSet(r.Aliases...)
	s.Add(r.ID)
	return s
}

// Agent is an author, editor or publisher together with the identifiers
// embedded in its bracketed suffix (ORCID, OMID, ...).
type Agent struct {
	Name        string       `json:"name"`
	Identifiers []Identifier `json:"identifiers,omitempty"`
}

// String renders the agent as "Name [scheme:value scheme:value]".
func (a Agent) String() string {
	ids := JoinIdentifiers(a.Identifiers)
	if ids == "" {
		return a.Name
	}
	if a.Name == "" {
		return "[" + ids + "]"
	}
	return a.Name + " [" + ids + "]"
}

// Venue is the container a work is published in.
type Venue struct {
	Title       string       `json:"title"`
	Identifiers []Identifier `json:"identifiers,omitempty"`
}

// String renders the venue as "Title [scheme:value ...]".
func (v Venue) String() string {
	return Agent{Name: v.Title, Identifiers: v.Identifiers}.String()
}

// IsZero reports whether nothing is known about the venue.
func (v Venue) IsZero() bool {
	return v.Title == "" && len(v.Identifiers) == 0
}

// ResourceMetadata describes a bibliographic resource. Optional string
// fields are empty when unknown, never absent.
type ResourceMetadata struct {
	ID          Identifier   `json:"id"`
	Identifiers []Identifier `json:"identifiers"`
	Title       string       `json:"title"`
	Authors     []Agent      `json:"authors"`
	Editors     []Agent      `json:"editors"`
	PubDate     string       `json:"pub_date"`
	Venue       Venue        `json:"venue"`
	Volume      string       `json:"volume"`
	Issue       string       `json:"issue"`
	Page        string       `json:"page"`
	Publisher   string       `json:"publisher"`
	Type        string       `json:"type"`
}

// AuthorString joins the authors in source order with "; ".
func (m ResourceMetadata) AuthorString() string {
	return joinAgents(m.Authors)
}

// EditorString joins the editors in source order with "; ".
func (m ResourceMetadata) EditorString() string {
	return joinAgents(m.Editors)
}

// AuthorIdentifiers returns the union of the authors' embedded identifiers.
func (m ResourceMetadata) AuthorIdentifiers() IdentifierSet {
	s := IdentifierSet{}
	for _, a := range m.Authors {
		for _, id := range a.Identifiers {
			s.Add(id)
		}
	}
	return s
}

// VenueIdentifiers returns the venue's identifiers as a set.
func (m ResourceMetadata) VenueIdentifiers() IdentifierSet {
	return NewIdentifierSet(m.Venue.Identifiers...)
}

func joinAgents(agents []Agent) string {
	parts := make([]string, 0, len(agents))
	for _, a := range agents {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, "; ")
}

// CitationFact is a citing/cited pair with its derived attributes. It is
// computed per request and never persisted.
type CitationFact struct {
	OCI                 string
	Citing              Identifier
	Cited               Identifier
	Creation            string
	Timespan            string
	JournalSelfCitation bool
	AuthorSelfCitation  bool
}
