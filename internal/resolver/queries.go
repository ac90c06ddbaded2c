package resolver

import (
	"fmt"
	"strings"

	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/identifier"
)

const (
	dataciteNS = "http://purl.org/spar/datacite/"

	prefixes = `PREFIX datacite: <http://purl.org/spar/datacite/>
PREFIX literal: <http://www.essepuntato.it/2010/06/literalreification/>
PREFIX frbr: <http://purl.org/vocab/frbr/core#>
PREFIX cito: <http://purl.org/spar/cito/>
`

	// lookupQuery finds every resource carrying one of the (scheme,
	// literal) pairs. ORDER BY ?br fixes the candidate order used to break
	// ties.
	lookupQuery = prefixes + `SELECT ?br ?scheme ?literal WHERE {
  VALUES (?scheme ?literal) { %s }
  ?identifier datacite:usesIdentifierScheme ?scheme ;
              literal:hasLiteralValue ?literal .
  ?br datacite:hasIdentifier ?identifier .
}
ORDER BY ?br`

	aliasQuery = prefixes + `SELECT ?br ?scheme ?literal WHERE {
  VALUES ?br { %s }
  ?br datacite:hasIdentifier ?identifier .
  ?identifier datacite:usesIdentifierScheme ?scheme ;
              literal:hasLiteralValue ?literal .
}`

	// venueQuery lists the leaves of the partOf+ tree below a venue, i.e.
	// the works published in it rather than its volumes and issues.
	venueQuery = prefixes + `SELECT DISTINCT ?br WHERE {
  ?identifier datacite:usesIdentifierScheme %s ;
              literal:hasLiteralValue %s .
  ?venue datacite:hasIdentifier ?identifier .
  ?br frbr:partOf+ ?venue .
  FILTER NOT EXISTS { ?part frbr:partOf ?br }
}
ORDER BY ?br`

	countQuery = prefixes + `SELECT ?cited (COUNT(DISTINCT ?citation) AS ?count) WHERE {
  VALUES ?cited { %s }
  ?citation cito:hasCitedEntity ?cited .
}
GROUP BY ?cited`
)

func schemeIRI(s domain.Scheme) string {
	return identifier.SPARQLIRI(dataciteNS + string(s))
}

func buildLookupQuery(ids []domain.Identifier) string {
	pairs := make([]string, len(ids))
	for i, id := range ids {
		pairs[i] = "(" + schemeIRI(id.Scheme) + " " + identifier.SPARQLString(id.Value) + ")"
	}
	return fmt.Sprintf(lookupQuery, strings.Join(pairs, " "))
}

func buildAliasQuery(omids []domain.Identifier) string {
	return fmt.Sprintf(aliasQuery, omidValues(omids))
}

func buildVenueQuery(id domain.Identifier) string {
	return fmt.Sprintf(venueQuery, schemeIRI(id.Scheme), identifier.SPARQLString(id.Value))
}

func buildCountQuery(omids []domain.Identifier) string {
	return fmt.Sprintf(countQuery, omidValues(omids))
}

func omidValues(omids []domain.Identifier) string {
	values := make([]string, len(omids))
	for i, id := range omids {
		values[i] = identifier.SPARQLIRI(identifier.OMIDIRI(id))
	}
	return strings.Join(values, " ")
}

// literalIdentifier maps a (?scheme ?literal) binding back to an identifier.
func literalIdentifier(schemeIRI, literal string) domain.Identifier {
	return identifier.FromLiteral(strings.TrimPrefix(schemeIRI, dataciteNS), literal)
}
