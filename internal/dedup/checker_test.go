package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-index-service/internal/domain"
)

func doi(v string) domain.Identifier  { return domain.NewIdentifier(domain.SchemeDOI, v) }
func pmid(v string) domain.Identifier { return domain.NewIdentifier(domain.SchemePMID, v) }
func omid(v string) domain.Identifier { return domain.NewIdentifier(domain.SchemeOMID, v) }

func TestComponents(t *testing.T) {
	t.Parallel()

	sets := []domain.IdentifierSet{
		domain.NewIdentifierSet(doi("10.1/a")),
		domain.NewIdentifierSet(pmid("1")),
		domain.NewIdentifierSet(doi("10.1/a"), pmid("2")),
		domain.NewIdentifierSet(pmid("2"), pmid("1")),
		domain.NewIdentifierSet(doi("10.1/z")),
	}

	groups := Components(sets)

	assert.Equal(t, [][]int{{0, 1, 2, 3}, {4}}, groups)
}

func TestComponents_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Components(nil))

	groups := Components([]domain.IdentifierSet{{}, {}})
	assert.Equal(t, [][]int{{0}, {1}}, groups, "empty alias sets never match")
}

func TestResources_KeepsFirstOfTransitiveChain(t *testing.T) {
	t.Parallel()

	refs := []domain.ResourceRef{
		{ID: omid("br/1"), Aliases: []domain.Identifier{doi("10.1/a")}},
		{ID: omid("br/2"), Aliases: []domain.Identifier{doi("10.1/a"), pmid("9")}},
		{ID: omid("br/3"), Aliases: []domain.Identifier{pmid("9")}},
		{ID: omid("br/4"), Aliases: []domain.Identifier{doi("10.1/b")}},
	}

	out := Resources(refs)

	require.Len(t, out, 2)
	assert.Equal(t, omid("br/1"), out[0].ID)
	assert.ElementsMatch(t, []domain.Identifier{doi("10.1/a"), omid("br/2"), pmid("9"), omid("br/3")}, out[0].Aliases)
	assert.Equal(t, omid("br/4"), out[1].ID)
}

func TestResources_UnionsAliases(t *testing.T) {
	t.Parallel()

	refs := []domain.ResourceRef{
		{ID: omid("br/1"), Aliases: []domain.Identifier{doi("10.1/a")}},
		{ID: omid("br/2"), Aliases: []domain.Identifier{doi("10.1/a"), pmid("7")}},
		{ID: omid("br/3"), Aliases: []domain.Identifier{doi("10.1/c")}},
		{ID: omid("br/1"), Aliases: nil},
	}

	out := Resources(refs)

	require.Len(t, out, 2)
	assert.Equal(t, omid("br/1"), out[0].ID)
	assert.Equal(t, []domain.Identifier{doi("10.1/a"), omid("br/2"), pmid("7")}, out[0].Aliases)
	assert.Equal(t, omid("br/3"), out[1].ID)
}

func TestResources_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	refs := []domain.ResourceRef{
		{ID: omid("br/1"), Aliases: []domain.Identifier{doi("10.1/a")}},
		{ID: omid("br/2"), Aliases: []domain.Identifier{doi("10.1/a")}},
	}

	_ = Resources(refs)

	assert.Equal(t, []domain.Identifier{doi("10.1/a")}, refs[0].Aliases)
}
