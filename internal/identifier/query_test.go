package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helixir/citation-index-service/internal/domain"
)

func TestEscapePath(t *testing.T) {
	assert.Equal(t, "10.1002/%28sici%29%3C693%3E", EscapePath("10.1002/(sici)<693>"))
	assert.Equal(t, "10.1/a%20b", EscapePath("10.1/a b"))
}

func TestJoinPath(t *testing.T) {
	ids := []domain.Identifier{
		domain.NewIdentifier(domain.SchemeDOI, "10.1/(a)"),
		domain.NewIdentifier(domain.SchemePMID, "42"),
	}
	assert.Equal(t, "doi:10.1/%28a%29__pmid:42", JoinPath(ids))
}

func TestSPARQLString(t *testing.T) {
	assert.Equal(t, `"10.1/a\"b\\c"`, SPARQLString(`10.1/a"b\c`))
}

func TestSPARQLIRI(t *testing.T) {
	assert.Equal(t, "<https://w3id.org/oc/meta/br/1>", SPARQLIRI("https://w3id.org/oc/meta/br/1"))
	assert.Equal(t, "<http://dx.doi.org/a%3Cb%3E>", SPARQLIRI("http://dx.doi.org/a<b>"))
}

func TestSearchIRI(t *testing.T) {
	assert.Equal(t, `"http://dx.doi.org/10.1/abc"`, SearchIRI(domain.NewIdentifier(domain.SchemeDOI, "10.1/ABC")))
	assert.Equal(t, `"https://pubmed.ncbi.nlm.nih.gov/42"`, SearchIRI(domain.NewIdentifier(domain.SchemePMID, "42")))
	assert.Equal(t, "", SearchIRI(domain.NewIdentifier(domain.SchemeISSN, "1234-5678")))
}

func TestOMID(t *testing.T) {
	id := domain.NewIdentifier(domain.SchemeOMID, "br/0612058700")
	assert.Equal(t, "https://w3id.org/oc/meta/br/0612058700", OMIDIRI(id))
	assert.Equal(t, "0612058700", OMIDNumber(id))

	back, ok := OMIDFromIRI(OMIDIRI(id))
	assert.True(t, ok)
	assert.Equal(t, id, back)

	_, ok = OMIDFromIRI("https://example.org/br/1")
	assert.False(t, ok)
}
