package sparql

// Term is one RDF term bound to a variable in a solution.
type Term struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// Solution maps variable names to their bound terms. Unbound variables are
// absent.
type Solution map[string]Term

// Value returns the lexical value bound to name, or "" when unbound.
func (s Solution) Value(name string) string {
	return s[name].Value
}

// Has reports whether name is bound.
func (s Solution) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Results is a decoded application/sparql-results+json document.
type Results struct {
	Vars      []string
	Solutions []Solution
}

type resultsDocument struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results *struct {
		Bindings []map[string]*Term `json:"bindings"`
	} `json:"results"`
}
