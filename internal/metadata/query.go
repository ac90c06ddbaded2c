package metadata

import (
	"fmt"
	"strings"

	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/identifier"
)

// Fact kinds produced by metadataQuery. Agent kinds are the local names of
// the pro: roles.
const (
	kindDate      = "date"
	kindTitle     = "title"
	kindType      = "type"
	kindID        = "id"
	kindPage      = "page"
	kindAuthor    = "author"
	kindEditor    = "editor"
	kindPublisher = "publisher"
	kindAgentID   = "agent-id"
	kindVenue     = "venue"
	kindVenueType = "venue-type"
	kindVenueSeq  = "venue-seq"
	kindVenueID   = "venue-id"
)

// metadataQuery returns one row per fact about every resource in the
// VALUES block: (?val ?kind ?key ?ref ?value ?agent). UNION branches keep the
// result linear in the number of facts instead of their product. Venue
// facts cover every container on the frbr:partOf+ chain.
const metadataQuery = `PREFIX datacite: <http://purl.org/spar/datacite/>
PREFIX literal: <http://www.essepuntato.it/2010/06/literalreification/>
PREFIX prism: <http://prismstandard.org/namespaces/basic/2.0/>
PREFIX frbr: <http://purl.org/vocab/frbr/core#>
PREFIX fabio: <http://purl.org/spar/fabio/>
PREFIX pro: <http://purl.org/spar/pro/>
PREFIX oco: <https://w3id.org/oc/ontology/>
PREFIX foaf: <http://xmlns.com/foaf/0.1/>
PREFIX dcterms: <http://purl.org/dc/terms/>
SELECT ?val ?kind ?key ?ref ?value ?agent WHERE {
  VALUES ?val { %s }
  {
    ?val prism:publicationDate ?d .
    BIND("date" AS ?kind) BIND(STR(?d) AS ?value)
  } UNION {
    ?val dcterms:title ?t .
    BIND("title" AS ?kind) BIND(STR(?t) AS ?value)
  } UNION {
    ?val a ?type .
    BIND("type" AS ?kind) BIND(STR(?type) AS ?value)
  } UNION {
    ?val datacite:hasIdentifier ?i .
    ?i datacite:usesIdentifierScheme ?s ; literal:hasLiteralValue ?l .
    BIND("id" AS ?kind) BIND(CONCAT(STRAFTER(STR(?s), "http://purl.org/spar/datacite/"), ":", STR(?l)) AS ?value)
  } UNION {
    ?val frbr:embodiment ?re .
    ?re prism:startingPage ?sp .
    OPTIONAL { ?re prism:endingPage ?ep }
    BIND("page" AS ?kind)
    BIND(IF(BOUND(?ep) && STR(?ep) != STR(?sp), CONCAT(STR(?sp), "-", STR(?ep)), STR(?sp)) AS ?value)
  } UNION {
    ?val pro:isDocumentContextFor ?ar .
    ?ar pro:withRole ?role ; pro:isHeldBy ?ra .
    OPTIONAL { ?ar oco:hasNext ?next }
    OPTIONAL { ?ra foaf:familyName ?fam }
    OPTIONAL { ?ra foaf:givenName ?giv }
    OPTIONAL { ?ra foaf:name ?nm }
    BIND(STRAFTER(STR(?role), "http://purl.org/spar/pro/") AS ?kind)
    BIND(STR(?ar) AS ?key) BIND(STR(?ra) AS ?agent)
    BIND(IF(BOUND(?next), STR(?next), "") AS ?ref)
    BIND(IF(BOUND(?fam), IF(BOUND(?giv), CONCAT(STR(?fam), ", ", STR(?giv)), STR(?fam)), IF(BOUND(?nm), STR(?nm), "")) AS ?value)
  } UNION {
    ?val pro:isDocumentContextFor ?ar .
    ?ar pro:isHeldBy ?ra .
    ?ra datacite:hasIdentifier ?i .
    ?i datacite:usesIdentifierScheme ?s ; literal:hasLiteralValue ?l .
    BIND("agent-id" AS ?kind) BIND(STR(?ar) AS ?key)
    BIND(CONCAT(STRAFTER(STR(?s), "http://purl.org/spar/datacite/"), ":", STR(?l)) AS ?value)
  } UNION {
    ?val frbr:partOf+ ?v .
    OPTIONAL { ?v frbr:partOf ?parent }
    OPTIONAL { ?v dcterms:title ?vt }
    BIND("venue" AS ?kind) BIND(STR(?v) AS ?key)
    BIND(IF(BOUND(?parent), STR(?parent), "") AS ?ref)
    BIND(IF(BOUND(?vt), STR(?vt), "") AS ?value)
  } UNION {
    ?val frbr:partOf+ ?v .
    ?v a ?vtype .
    BIND("venue-type" AS ?kind) BIND(STR(?v) AS ?key) BIND(STR(?vtype) AS ?value)
  } UNION {
    ?val frbr:partOf+ ?v .
    ?v fabio:hasSequenceIdentifier ?seq .
    BIND("venue-seq" AS ?kind) BIND(STR(?v) AS ?key) BIND(STR(?seq) AS ?value)
  } UNION {
    ?val frbr:partOf+ ?v .
    ?v datacite:hasIdentifier ?i .
    ?i datacite:usesIdentifierScheme ?s ; literal:hasLiteralValue ?l .
    BIND("venue-id" AS ?kind) BIND(STR(?v) AS ?key)
    BIND(CONCAT(STRAFTER(STR(?s), "http://purl.org/spar/datacite/"), ":", STR(?l)) AS ?value)
  }
}`

// buildMetadataQuery renders the fact query for a chunk of OMIDs.
func buildMetadataQuery(omids []domain.Identifier) string {
	values := make([]string, len(omids))
	for i, id := range omids {
		values[i] = identifier.SPARQLIRI(identifier.OMIDIRI(id))
	}
	return fmt.Sprintf(metadataQuery, strings.Join(values, " "))
}
