package metadata

import (
	"sort"
	"strings"
	"unicode"

	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/identifier"
)

const (
	fabioNS        = "http://purl.org/spar/fabio/"
	typeExpression = "Expression"
	typeVolume     = "JournalVolume"
	typeIssue      = "JournalIssue"
)

// fact is one (?kind ?key ?ref ?value ?agent) row of the metadata query.
type fact struct {
	kind  string
	key   string
	ref   string
	value string
	agent string
}

type agentNode struct {
	name  string
	next  string
	agent string
	ids   []domain.Identifier
}

type container struct {
	parent string
	title  string
	seq    string
	types  []string
	ids    []domain.Identifier
}

// assemble folds the facts of one resource into its metadata record.
func assemble(id domain.Identifier, facts []fact) domain.ResourceMetadata {
	md := domain.ResourceMetadata{ID: id}

	var ids, types []string
	roles := map[string]map[string]*agentNode{
		kindAuthor:    {},
		kindEditor:    {},
		kindPublisher: {},
	}
	agentIDs := make(map[string][]string)
	containers := make(map[string]*container)
	containerOf := func(key string) *container {
		c, ok := containers[key]
		if !ok {
			c = &container{}
			containers[key] = c
		}
		return c
	}

	for _, f := range facts {
		switch f.kind {
		case kindDate:
			md.PubDate = firstNonEmpty(md.PubDate, strings.TrimSpace(f.value))
		case kindTitle:
			md.Title = firstNonEmpty(md.Title, CleanText(f.value))
		case kindType:
			types = append(types, f.value)
		case kindID:
			ids = append(ids, f.value)
		case kindPage:
			md.Page = firstNonEmpty(md.Page, CleanText(f.value))
		case kindAuthor, kindEditor, kindPublisher:
			if _, ok := roles[f.kind][f.key]; !ok {
				roles[f.kind][f.key] = &agentNode{name: CleanText(f.value), next: f.ref, agent: f.agent}
			}
		case kindAgentID:
			agentIDs[f.key] = append(agentIDs[f.key], f.value)
		case kindVenue:
			c := containerOf(f.key)
			c.parent = firstNonEmpty(c.parent, f.ref)
			c.title = firstNonEmpty(c.title, CleanText(f.value))
		case kindVenueType:
			c := containerOf(f.key)
			c.types = append(c.types, localName(f.value))
		case kindVenueSeq:
			c := containerOf(f.key)
			c.seq = firstNonEmpty(c.seq, CleanText(f.value))
		case kindVenueID:
			c := containerOf(f.key)
			c.ids = append(c.ids, identifier.ParseLiteral(f.value))
		}
	}

	md.Identifiers = append([]domain.Identifier{id}, sortedIdentifiers(ids, id)...)
	md.Type = resourceType(types)

	for _, role := range roles {
		for key, n := range role {
			raw := agentIDs[key]
			if omid, ok := identifier.OMIDFromIRI(n.agent); ok {
				raw = append(raw, omid.String())
			}
			n.ids = sortedIdentifiers(raw, domain.Identifier{})
		}
	}
	md.Authors = orderAgents(roles[kindAuthor])
	md.Editors = orderAgents(roles[kindEditor])
	if pubs := orderAgents(roles[kindPublisher]); len(pubs) > 0 {
		parts := make([]string, len(pubs))
		for i, p := range pubs {
			parts[i] = p.String()
		}
		md.Publisher = strings.Join(parts, "; ")
	}

	md.Venue, md.Volume, md.Issue = foldContainers(containers)
	return md
}

// orderAgents follows the oco:hasNext chain from every head. Nodes left
// over by a broken or cyclic chain are appended in key order.
func orderAgents(nodes map[string]*agentNode) []domain.Agent {
	if len(nodes) == 0 {
		return nil
	}
	referenced := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.next != "" {
			referenced[n.next] = true
		}
	}
	keys := sortedKeys(nodes)

	visited := make(map[string]bool, len(nodes))
	out := make([]domain.Agent, 0, len(nodes))
	walk := func(key string) {
		for key != "" && !visited[key] {
			n, ok := nodes[key]
			if !ok {
				return
			}
			visited[key] = true
			out = append(out, domain.Agent{Name: n.name, Identifiers: n.ids})
			key = n.next
		}
	}
	for _, k := range keys {
		if !referenced[k] {
			walk(k)
		}
	}
	for _, k := range keys {
		walk(k)
	}
	return out
}

// foldContainers derives the venue, volume and issue from the partOf+
// chain. The venue is the outermost container; its identifiers are the
// external identifiers of every container on the chain plus the outermost
// container's OMID.
func foldContainers(containers map[string]*container) (domain.Venue, string, string) {
	if len(containers) == 0 {
		return domain.Venue{}, "", ""
	}

	var volume, issue, root, titled string
	seen := make(domain.IdentifierSet)
	var ids []domain.Identifier
	for _, key := range sortedKeys(containers) {
		c := containers[key]
		for _, t := range c.types {
			switch t {
			case typeVolume:
				volume = firstNonEmpty(volume, c.seq)
			case typeIssue:
				issue = firstNonEmpty(issue, c.seq)
			}
		}
		if _, ok := containers[c.parent]; !ok && root == "" {
			root = key
		}
		if c.title != "" && titled == "" {
			titled = key
		}
		for _, id := range c.ids {
			if !seen.Has(id) {
				seen.Add(id)
				ids = append(ids, id)
			}
		}
	}

	venue := domain.Venue{}
	if root != "" && containers[root].title != "" {
		venue.Title = containers[root].title
	} else if titled != "" {
		venue.Title = containers[titled].title
	}
	if omid, ok := identifier.OMIDFromIRI(root); ok && !seen.Has(omid) {
		ids = append(ids, omid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	venue.Identifiers = ids
	return venue, volume, issue
}

// resourceType renders the most specific fabio type as lower-case words
// ("JournalArticle" becomes "journal article").
func resourceType(iris []string) string {
	var names []string
	for _, iri := range iris {
		if !strings.HasPrefix(iri, fabioNS) {
			continue
		}
		if n := localName(iri); n != typeExpression {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return camelToWords(names[0])
}

func camelToWords(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte(' ')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func localName(iri string) string {
	if i := strings.LastIndexAny(iri, "/#"); i >= 0 {
		return iri[i+1:]
	}
	return iri
}

// sortedIdentifiers parses, dedupes and sorts stored identifier strings,
// dropping skip.
func sortedIdentifiers(raw []string, skip domain.Identifier) []domain.Identifier {
	seen := make(domain.IdentifierSet)
	out := make([]domain.Identifier, 0, len(raw))
	for _, r := range raw {
		id := identifier.ParseLiteral(r)
		if id.IsZero() || id == skip || seen.Has(id) {
			continue
		}
		seen.Add(id)
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
