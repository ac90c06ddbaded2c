package operations

import (
	"context"
	"strings"

	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/identifier"
)

// Lower lower-cases the value.
func Lower(_ context.Context, value string) (string, error) {
	return strings.ToLower(value), nil
}

// Encode percent-encodes the value for use in a URL path, keeping "/".
func Encode(_ context.Context, value string) (string, error) {
	return identifier.EscapePath(value), nil
}

// GenerateIDSearch turns a compound identifier parameter into the quoted
// IRIs the index keys resources by. When the metadata source knows the
// first resource, every identifier of that resource is searched;
// otherwise only the given ones. Schemes the index does not key by are
// skipped.
func (p *Pipeline) GenerateIDSearch(ctx context.Context, value string) (string, error) {
	ids := identifier.Split(value)

	records, err := p.lookup(ctx, ids)
	if err != nil {
		return "", err
	}
	if len(records) > 0 {
		ids = records[0].Identifiers
	}

	var out []string
	for _, id := range ids {
		if s := identifier.SearchIRI(id); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, " "), nil
}

// ID2OMIDs replaces an identifier with the IRIs of every resource carrying
// it, space separated. OMIDs are converted without a lookup.
func (p *Pipeline) ID2OMIDs(ctx context.Context, value string) (string, error) {
	iris, err := p.omidIRIs(ctx, []domain.Identifier{identifier.Normalize(value)})
	if err != nil {
		return "", err
	}
	return strings.Join(iris, " "), nil
}

// SplitIDsToOMIDs is ID2OMIDs over a compound "a__b" parameter.
func (p *Pipeline) SplitIDsToOMIDs(ctx context.Context, value string) (string, error) {
	iris, err := p.omidIRIs(ctx, identifier.Split(value))
	if err != nil {
		return "", err
	}
	return strings.Join(iris, " "), nil
}

func (p *Pipeline) omidIRIs(ctx context.Context, ids []domain.Identifier) ([]string, error) {
	seen := make(domain.IdentifierSet)
	var out []string
	add := func(omid domain.Identifier) {
		if seen.Has(omid) {
			return
		}
		seen.Add(omid)
		out = append(out, identifier.SPARQLIRI(identifier.OMIDIRI(omid)))
	}

	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if id.Scheme == domain.SchemeOMID || p.deps.Resolver == nil {
			if id.Scheme == domain.SchemeOMID {
				add(id)
			}
			continue
		}
		cands, err := p.deps.Resolver.Candidates(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, c := range cands {
			add(c)
		}
	}
	return out, nil
}
