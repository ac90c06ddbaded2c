package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/upstream/sparql"
)

const meta = "https://w3id.org/oc/meta/"

type fakeQuerier struct {
	queries []string
	respond func(query string) (*sparql.Results, error)
}

func (q *fakeQuerier) Select(_ context.Context, query string) (*sparql.Results, error) {
	q.queries = append(q.queries, query)
	return q.respond(query)
}

func (q *fakeQuerier) Name() string { return "fake-meta" }

type fakeCounter struct {
	counts map[domain.Identifier]int
	err    error
	calls  int
}

func (c *fakeCounter) CitationCounts(_ context.Context, _ []domain.Identifier) (map[domain.Identifier]int, error) {
	c.calls++
	return c.counts, c.err
}

func binding(br, scheme, literal string) sparql.Solution {
	return sparql.Solution{
		"br":      {Type: "uri", Value: meta + br},
		"scheme":  {Type: "uri", Value: dataciteNS + scheme},
		"literal": {Type: "literal", Value: literal},
	}
}

func doi(v string) domain.Identifier  { return domain.NewIdentifier(domain.SchemeDOI, v) }
func omid(v string) domain.Identifier { return domain.NewIdentifier(domain.SchemeOMID, v) }

// store answers lookup and alias queries from a fixed set of
// (br, scheme, literal) triples.
func store(triples ...sparql.Solution) func(string) (*sparql.Results, error) {
	return func(query string) (*sparql.Results, error) {
		var out []sparql.Solution
		for _, t := range triples {
			if strings.Contains(query, "VALUES (?scheme ?literal)") {
				if strings.Contains(query, `"`+t.Value("literal")+`"`) {
					out = append(out, t)
				}
				continue
			}
			if strings.Contains(query, "<"+t.Value("br")+">") {
				out = append(out, t)
			}
		}
		return &sparql.Results{Solutions: out}, nil
	}
}

func TestResolve_UniqueMatch(t *testing.T) {
	q := &fakeQuerier{respond: store(
		binding("br/061", "doi", "10.1016/j.compedu.2018.11.010"),
		binding("br/061", "pmid", "123"),
	)}
	r := New(q, nil, Config{}, zerolog.Nop(), nil)

	in := doi("10.1016/j.compedu.2018.11.010")
	got, err := r.Resolve(context.Background(), []domain.Identifier{in, doi("10.9/missing")})
	require.NoError(t, err)

	require.Len(t, got, 1)
	ref := got[in]
	assert.Equal(t, omid("br/061"), ref.ID)
	assert.True(t, ref.AliasSet().Has(domain.NewIdentifier(domain.SchemePMID, "123")))
	assert.True(t, ref.AliasSet().Has(in))
}

func TestResolve_OMIDsMapToThemselves(t *testing.T) {
	q := &fakeQuerier{respond: store(binding("br/7", "doi", "10.1/seven"))}
	r := New(q, nil, Config{}, zerolog.Nop(), nil)

	got, err := r.Resolve(context.Background(), []domain.Identifier{omid("br/7")})
	require.NoError(t, err)

	assert.Equal(t, omid("br/7"), got[omid("br/7")].ID)
	assert.Equal(t, []domain.Identifier{doi("10.1/seven")}, got[omid("br/7")].Aliases)
	// only the alias query runs
	require.Len(t, q.queries, 1)
	assert.NotContains(t, q.queries[0], "VALUES (?scheme ?literal)")
}

func TestResolve_SkipsVenueAndOpaqueIdentifiers(t *testing.T) {
	q := &fakeQuerier{respond: store()}
	r := New(q, nil, Config{}, zerolog.Nop(), nil)

	got, err := r.Resolve(context.Background(), []domain.Identifier{
		domain.NewIdentifier(domain.SchemeISSN, "0138-9130"),
		domain.NewIdentifier("", "whatever"),
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, q.queries)
}

func TestResolve_AmbiguousPicksMostCited(t *testing.T) {
	in := doi("10.1/dup")
	q := &fakeQuerier{respond: store(
		binding("br/1", "doi", "10.1/dup"),
		binding("br/2", "doi", "10.1/dup"),
		binding("br/3", "doi", "10.1/dup"),
	)}
	counter := &fakeCounter{counts: map[domain.Identifier]int{omid("br/2"): 5, omid("br/3"): 5}}
	r := New(q, counter, Config{}, zerolog.Nop(), nil)

	got, err := r.Resolve(context.Background(), []domain.Identifier{in})
	require.NoError(t, err)

	// br/2 and br/3 tie on count; the earlier candidate wins
	assert.Equal(t, omid("br/2"), got[in].ID)
	assert.Equal(t, 1, counter.calls)
}

func TestResolve_AmbiguousWithFailingCounterTakesFirst(t *testing.T) {
	in := doi("10.1/dup")
	q := &fakeQuerier{respond: store(
		binding("br/1", "doi", "10.1/dup"),
		binding("br/2", "doi", "10.1/dup"),
	)}
	counter := &fakeCounter{err: domain.NewExternalAPIError("index", 503, "down", nil)}
	r := New(q, counter, Config{}, zerolog.Nop(), nil)

	got, err := r.Resolve(context.Background(), []domain.Identifier{in})
	require.NoError(t, err)
	assert.Equal(t, omid("br/1"), got[in].ID)
}

func TestResolve_DegradedChunkResolvesToNothing(t *testing.T) {
	calls := 0
	q := &fakeQuerier{respond: func(query string) (*sparql.Results, error) {
		calls++
		if calls == 1 {
			return nil, domain.NewMalformedResponseError("fake-meta", "bad json", nil)
		}
		return store(binding("br/2", "doi", "10.1/b"))(query)
	}}
	r := New(q, nil, Config{ChunkSize: 1}, zerolog.Nop(), nil)

	got, err := r.Resolve(context.Background(), []domain.Identifier{doi("10.1/a"), doi("10.1/b")})
	require.NoError(t, err)
	assert.NotContains(t, got, doi("10.1/a"))
	assert.Equal(t, omid("br/2"), got[doi("10.1/b")].ID)
}

func TestResolve_ReturnsCancellation(t *testing.T) {
	q := &fakeQuerier{respond: func(string) (*sparql.Results, error) {
		return nil, context.Canceled
	}}
	r := New(q, nil, Config{}, zerolog.Nop(), nil)

	_, err := r.Resolve(context.Background(), []domain.Identifier{doi("10.1/a")})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCandidates(t *testing.T) {
	q := &fakeQuerier{respond: store(
		binding("br/1", "doi", "10.1/dup"),
		binding("br/2", "doi", "10.1/dup"),
	)}
	r := New(q, nil, Config{}, zerolog.Nop(), nil)

	got, err := r.Candidates(context.Background(), doi("10.1/dup"))
	require.NoError(t, err)
	assert.Equal(t, []domain.Identifier{omid("br/1"), omid("br/2")}, got)

	got, err = r.Candidates(context.Background(), omid("br/9"))
	require.NoError(t, err)
	assert.Equal(t, []domain.Identifier{omid("br/9")}, got)
}

func TestCandidates_UpstreamFailureYieldsNothing(t *testing.T) {
	failures := []error{
		domain.NewExternalAPIError("fake-meta", 503, "unavailable", nil),
		domain.NewRateLimitError("fake-meta", 0),
		domain.NewMalformedResponseError("fake-meta", "bad json", nil),
	}
	for _, failure := range failures {
		t.Run(failure.Error(), func(t *testing.T) {
			q := &fakeQuerier{respond: func(string) (*sparql.Results, error) {
				return nil, failure
			}}
			r := New(q, nil, Config{}, zerolog.Nop(), nil)

			got, err := r.Candidates(context.Background(), doi("10.1/a"))
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestResolveVenue(t *testing.T) {
	q := &fakeQuerier{respond: func(query string) (*sparql.Results, error) {
		return &sparql.Results{Solutions: []sparql.Solution{
			{"br": {Type: "uri", Value: meta + "br/10"}},
			{"br": {Type: "uri", Value: meta + "br/11"}},
		}}, nil
	}}
	r := New(q, nil, Config{}, zerolog.Nop(), nil)

	got, err := r.ResolveVenue(context.Background(), domain.NewIdentifier(domain.SchemeISSN, "0138-9130"))
	require.NoError(t, err)
	assert.Equal(t, []domain.Identifier{omid("br/10"), omid("br/11")}, got)
	assert.Contains(t, q.queries[0], `"0138-9130"`)
	assert.Contains(t, q.queries[0], "<"+dataciteNS+"issn>")

	_, err = r.ResolveVenue(context.Background(), doi("10.1/a"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndexCounter(t *testing.T) {
	q := &fakeQuerier{respond: func(string) (*sparql.Results, error) {
		return &sparql.Results{Solutions: []sparql.Solution{
			{"cited": {Type: "uri", Value: meta + "br/1"}, "count": {Type: "literal", Value: "4"}},
		}}, nil
	}}
	c := NewIndexCounter(q, 0)

	got, err := c.CitationCounts(context.Background(), []domain.Identifier{omid("br/1"), omid("br/2")})
	require.NoError(t, err)
	assert.Equal(t, 4, got[omid("br/1")])
	assert.Zero(t, got[omid("br/2")])
	assert.Contains(t, q.queries[0], "GROUP BY ?cited")
}

func TestIndexCounter_MalformedCount(t *testing.T) {
	q := &fakeQuerier{respond: func(string) (*sparql.Results, error) {
		return &sparql.Results{Solutions: []sparql.Solution{
			{"cited": {Type: "uri", Value: meta + "br/1"}, "count": {Type: "literal", Value: "many"}},
		}}, nil
	}}

	_, err := NewIndexCounter(q, 0).CitationCounts(context.Background(), []domain.Identifier{omid("br/1")})
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestBuildLookupQuery(t *testing.T) {
	query := buildLookupQuery([]domain.Identifier{doi(`10.1/"q"`), domain.NewIdentifier(domain.SchemePMID, "9")})
	assert.Contains(t, query, `(<http://purl.org/spar/datacite/doi> "10.1/\"q\"")`)
	assert.Contains(t, query, `(<http://purl.org/spar/datacite/pmid> "9")`)
	assert.Contains(t, query, "ORDER BY ?br")
}
