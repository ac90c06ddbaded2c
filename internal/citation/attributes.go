package citation

import (
	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/identifier"
)

// Attributes are the derived fields of a citation.
type Attributes struct {
	Creation            string
	Timespan            string
	JournalSelfCitation bool
	AuthorSelfCitation  bool
}

// Compute derives the citation attributes of a citing/cited pair. It is
// deterministic and performs no I/O.
func Compute(citing, cited domain.ResourceMetadata) Attributes {
	return Attributes{
		Creation:            citing.PubDate,
		Timespan:            Timespan(citing.PubDate, cited.PubDate),
		JournalSelfCitation: JournalSelfCitation(citing, cited),
		AuthorSelfCitation:  AuthorSelfCitation(citing, cited),
	}
}

// JournalSelfCitation reports whether the two resources share a venue
// identifier.
func JournalSelfCitation(a, b domain.ResourceMetadata) bool {
	return a.VenueIdentifiers().Intersects(b.VenueIdentifiers())
}

// AuthorSelfCitation reports whether the two resources share an author
// identifier. Names are not compared.
func AuthorSelfCitation(a, b domain.ResourceMetadata) bool {
	return a.AuthorIdentifiers().Intersects(b.AuthorIdentifiers())
}

// YesNo renders a boolean signal the way citation tables carry it.
func YesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// OCI builds the Open Citation Identifier of a pair of OMIDs.
func OCI(citing, cited domain.Identifier) string {
	return identifier.OMIDNumber(citing) + "-" + identifier.OMIDNumber(cited)
}

// Fact assembles the full citation fact for a citing/cited pair.
func Fact(citing, cited domain.ResourceMetadata) domain.CitationFact {
	attrs := Compute(citing, cited)
	return domain.CitationFact{
		OCI:                 OCI(citing.ID, cited.ID),
		Citing:              citing.ID,
		Cited:               cited.ID,
		Creation:            attrs.Creation,
		Timespan:            attrs.Timespan,
		JournalSelfCitation: attrs.JournalSelfCitation,
		AuthorSelfCitation:  attrs.AuthorSelfCitation,
	}
}
