package identifier

import (
	"net/url"
	"strings"

	"github.com/helixir/citation-index-service/internal/domain"
)

// EscapePath percent-encodes v for use inside a URL path while keeping "/"
// intact. Characters such as "(", ")", "<" and ">" that occur in real DOIs
// are encoded here and nowhere else.
func EscapePath(v string) string {
	return strings.ReplaceAll(url.PathEscape(v), "%2F", "/")
}

// PathSegment renders id as it appears in an outbound REST path.
func PathSegment(id domain.Identifier) string {
	if id.IsOpaque() {
		return EscapePath(id.Value)
	}
	return string(id.Scheme) + ":" + EscapePath(id.Value)
}

// JoinPath renders several identifiers as one compound path segment.
func JoinPath(ids []domain.Identifier) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = PathSegment(id)
	}
	return strings.Join(parts, CompoundSeparator)
}

var sparqlEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// SPARQLString renders v as a quoted SPARQL string literal.
func SPARQLString(v string) string {
	return `"` + sparqlEscaper.Replace(v) + `"`
}

// SPARQLIRI renders iri in angle brackets, escaping characters that are not
// allowed inside an IRIREF.
func SPARQLIRI(iri string) string {
	var b strings.Builder
	b.Grow(len(iri) + 2)
	b.WriteByte('<')
	for _, r := range iri {
		switch r {
		case '<', '>', '"', '{', '}', '|', '^', '`', '\\', ' ':
			b.WriteString(url.PathEscape(string(r)))
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('>')
	return b.String()
}

// DOIIRI returns the resolver IRI used by the index for a DOI.
func DOIIRI(doi string) string {
	return "http://dx.doi.org/" + EscapePath(strings.ToLower(doi))
}

// PubMedIRI returns the PubMed IRI used by the index for a PMID or PMCID.
func PubMedIRI(pmid string) string {
	return "https://pubmed.ncbi.nlm.nih.gov/" + EscapePath(pmid)
}

// SearchIRI returns the quoted index search literal for id, or "" when the
// index does not key resources by that scheme.
func SearchIRI(id domain.Identifier) string {
	switch id.Scheme {
	case domain.SchemeDOI:
		return `"` + DOIIRI(id.Value) + `"`
	case domain.SchemePMID, domain.SchemePMCID:
		return `"` + PubMedIRI(id.Value) + `"`
	default:
		return ""
	}
}

// OMIDIRI returns the IRI of a canonical OMID such as "br/0612345".
func OMIDIRI(id domain.Identifier) string {
	return OMIDBase + id.Value
}

// OMIDFromIRI maps an OpenCitations Meta IRI back to its canonical id.
func OMIDFromIRI(iri string) (domain.Identifier, bool) {
	rest, ok := strings.CutPrefix(iri, OMIDBase)
	if !ok || rest == "" {
		return domain.Identifier{}, false
	}
	return domain.NewIdentifier(domain.SchemeOMID, rest), true
}

// OMIDNumber returns the numeric part of an OMID ("br/0612" -> "0612").
func OMIDNumber(id domain.Identifier) string {
	if i := strings.LastIndexByte(id.Value, '/'); i >= 0 {
		return id.Value[i+1:]
	}
	return id.Value
}
