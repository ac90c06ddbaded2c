// Package identifier canonicalizes heterogeneous bibliographic identifier
// strings (DOI, PMID, ISSN, OMID, URLs, ...) into domain.Identifier values
// and builds their outbound query forms.
package identifier

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/helixir/citation-index-service/internal/domain"
)

// CompoundSeparator joins several identifiers in a single request parameter.
const CompoundSeparator = "__"

// OMIDBase is the IRI namespace of canonical OpenCitations Meta ids.
const OMIDBase = "https://w3id.org/oc/meta/"

type urlPrefix struct {
	prefix string
	scheme domain.Scheme
}

// urlPrefixes are matched case-insensitively, longest first within a host.
var urlPrefixes = []urlPrefix{
	{"http://dx.doi.org/", domain.SchemeDOI},
	{"https://dx.doi.org/", domain.SchemeDOI},
	{"http://doi.org/", domain.SchemeDOI},
	{"https://doi.org/", domain.SchemeDOI},
	{"http://pubmed.ncbi.nlm.nih.gov/", domain.SchemePMID},
	{"https://pubmed.ncbi.nlm.nih.gov/", domain.SchemePMID},
	{"http://w3id.org/oc/meta/", domain.SchemeOMID},
	{OMIDBase, domain.SchemeOMID},
	{"http://orcid.org/", domain.SchemeORCID},
	{"https://orcid.org/", domain.SchemeORCID},
	{"https://openalex.org/", domain.SchemeOpenAlex},
	{"http://www.wikidata.org/entity/", domain.SchemeWikidata},
	{"https://www.wikidata.org/wiki/", domain.SchemeWikidata},
	{"https://arxiv.org/abs/", domain.SchemeArXiv},
}

// legacyAliases maps scheme prefixes used by older index versions.
var legacyAliases = map[string]domain.Scheme{
	"meta":   domain.SchemeOMID,
	"pubmed": domain.SchemePMID,
}

var bareDOI = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// Normalize parses raw into an identifier. Known URL prefixes are stripped,
// the literal is percent-decoded and DOIs are lower-cased. Strings whose
// scheme is not recognised come back as opaque identifiers holding raw
// unchanged.
func Normalize(raw string) domain.Identifier {
	s := strings.TrimSpace(raw)
	if s == "" {
		return domain.Identifier{}
	}

	lower := strings.ToLower(s)
	for _, p := range urlPrefixes {
		if strings.HasPrefix(lower, p.prefix) {
			return build(p.scheme, s[len(p.prefix):])
		}
	}

	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return build(domain.SchemeURL, s)
	}

	if prefix, rest, ok := strings.Cut(s, ":"); ok {
		scheme := domain.Scheme(strings.ToLower(prefix))
		if alias, ok := legacyAliases[string(scheme)]; ok {
			scheme = alias
		}
		if scheme.Known() {
			return build(scheme, rest)
		}
	}

	if bareDOI.MatchString(s) {
		return build(domain.SchemeDOI, s)
	}

	return domain.Identifier{Value: norm.NFC.String(s)}
}

func build(scheme domain.Scheme, value string) domain.Identifier {
	v := norm.NFC.String(decode(value))
	switch scheme {
	case domain.SchemeDOI:
		v = strings.ToLower(v)
	case domain.SchemePMID:
		v = strings.TrimSuffix(v, "/")
	}
	return domain.NewIdentifier(scheme, v)
}

func decode(v string) string {
	out, err := url.PathUnescape(v)
	if err != nil {
		return v
	}
	return out
}

// FromLiteral builds an identifier from a scheme name and a stored literal
// value as returned by the triplestore. Unlike Normalize the literal is
// taken verbatim and never percent-decoded.
func FromLiteral(scheme, literal string) domain.Identifier {
	sc := domain.Scheme(strings.ToLower(strings.TrimSpace(scheme)))
	if alias, ok := legacyAliases[string(sc)]; ok {
		sc = alias
	}
	literal = strings.TrimSpace(literal)
	if !sc.Known() {
		if sc == "" {
			return domain.Identifier{Value: norm.NFC.String(literal)}
		}
		return domain.Identifier{Value: norm.NFC.String(string(sc) + ":" + literal)}
	}
	v := norm.NFC.String(literal)
	if sc == domain.SchemeDOI {
		v = strings.ToLower(v)
	}
	return domain.NewIdentifier(sc, v)
}

// ParseLiteral splits a stored "scheme:literal" string at its first colon
// and calls FromLiteral.
func ParseLiteral(s string) domain.Identifier {
	scheme, literal, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return FromLiteral("", scheme)
	}
	return FromLiteral(scheme, literal)
}

// Denormalize renders id back into a string that Normalize maps to id.
func Denormalize(id domain.Identifier) string {
	if id.IsOpaque() {
		return id.Value
	}
	return string(id.Scheme) + ":" + literalEscaper.Replace(id.Value)
}

var literalEscaper = strings.NewReplacer("%", "%25", " ", "%20")

// Split breaks a compound "a__b__c" parameter into normalized identifiers,
// dropping empties and duplicates while keeping first-seen order.
func Split(param string) []domain.Identifier {
	return NormalizeAll(strings.Split(param, CompoundSeparator))
}

// NormalizeAll normalizes every raw value, dropping empties and duplicates
// while keeping first-seen order.
func NormalizeAll(raws []string) []domain.Identifier {
	seen := make(map[string]bool, len(raws))
	out := make([]domain.Identifier, 0, len(raws))
	for _, r := range raws {
		id := Normalize(r)
		if id.IsZero() || seen[id.String()] {
			continue
		}
		seen[id.String()] = true
		out = append(out, id)
	}
	return out
}

// Fields splits a whitespace separated identifier list and normalizes it.
func Fields(s string) []domain.Identifier {
	return NormalizeAll(strings.Fields(s))
}
