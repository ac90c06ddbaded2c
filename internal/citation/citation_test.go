package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-index-service/internal/domain"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Date
		wantErr  bool
	}{
		{name: "year", input: "2019", expected: Date{Year: 2019, Precision: PrecisionYear}},
		{name: "month", input: "2019-03", expected: Date{Year: 2019, Month: 3, Precision: PrecisionMonth}},
		{name: "day", input: "2010-12-07", expected: Date{Year: 2010, Month: 12, Day: 7, Precision: PrecisionDay}},
		{name: "non leap february 29", input: "2019-02-29", expected: Date{Year: 2019, Month: 2, Day: 28, Precision: PrecisionDay}},
		{name: "leap february 29", input: "2020-02-29", expected: Date{Year: 2020, Month: 2, Day: 29, Precision: PrecisionDay}},
		{name: "april 31", input: "2021-04-31", expected: Date{Year: 2021, Month: 4, Day: 28, Precision: PrecisionDay}},
		{name: "timestamp", input: "2021-04-02T10:00:00", expected: Date{Year: 2021, Month: 4, Day: 2, Precision: PrecisionDay}},
		{name: "empty", input: "", expected: Date{}},
		{name: "bad month", input: "2019-13", wantErr: true},
		{name: "garbage", input: "n/a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestTimespan(t *testing.T) {
	tests := []struct {
		name     string
		citing   string
		cited    string
		expected string
	}{
		{name: "month against day precision", citing: "2019-03", cited: "2010-12-07", expected: "P8Y3M"},
		{name: "same month", citing: "2020-03", cited: "2020-03", expected: "P0Y0M"},
		{name: "years only", citing: "2019", cited: "2010", expected: "P9Y"},
		{name: "year against day precision", citing: "2019", cited: "2010-12-07", expected: "P9Y"},
		{name: "full dates", citing: "2018-03-15", cited: "2010-01-20", expected: "P8Y1M23D"},
		{name: "full dates across leap february", citing: "2020-03-01", cited: "2020-02-15", expected: "P0Y0M15D"},
		{name: "day borrow past short month", citing: "2020-03-01", cited: "2020-01-31", expected: "P0Y1M1D"},
		{name: "day borrow past february", citing: "2021-03-01", cited: "2021-01-30", expected: "P0Y1M1D"},
		{name: "clamped month end", citing: "2021-02-28", cited: "2021-01-31", expected: "P0Y1M0D"},
		{name: "day borrow across year", citing: "2021-01-05", cited: "2020-12-31", expected: "P0Y0M5D"},
		{name: "negative", citing: "2010-01-01", cited: "2011-03-02", expected: "-P1Y2M1D"},
		{name: "negative month", citing: "2020-01", cited: "2020-03", expected: "-P0Y2M"},
		{name: "invalid day falls back", citing: "2019-02-29", cited: "2019-01-28", expected: "P0Y1M0D"},
		{name: "missing citing", citing: "", cited: "2010", expected: ""},
		{name: "missing cited", citing: "2010", cited: "", expected: ""},
		{name: "unparseable", citing: "2010-99", cited: "2010", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Timespan(tt.citing, tt.cited))
		})
	}
}

func TestTimespan_PrecisionLaw(t *testing.T) {
	yearOnly := Timespan("2019", "2001")
	assert.NotContains(t, yearOnly, "M")
	assert.NotContains(t, yearOnly, "D")

	full := Timespan("2019-05-04", "2001-02-03")
	assert.Equal(t, "P18Y3M1D", full)

	for _, pair := range [][2]string{
		{"2020-03-01", "2020-01-31"},
		{"2024-03-01", "2023-01-31"},
		{"2019-05-01", "2019-03-31"},
	} {
		span := Timespan(pair[0], pair[1])
		assert.NotContains(t, span[1:], "-", "%s vs %s", pair[0], pair[1])
	}
}

func resource(omid string, venue []domain.Identifier, authors ...domain.Agent) domain.ResourceMetadata {
	return domain.ResourceMetadata{
		ID:      domain.NewIdentifier(domain.SchemeOMID, omid),
		Venue:   domain.Venue{Title: "Scientometrics", Identifiers: venue},
		Authors: authors,
	}
}

func TestSelfCitation(t *testing.T) {
	issn := domain.NewIdentifier(domain.SchemeISSN, "0138-9130")
	other := domain.NewIdentifier(domain.SchemeISSN, "1588-2861")
	orcid := domain.NewIdentifier(domain.SchemeORCID, "0000-0003-0530-4305")

	peroni := domain.Agent{Name: "Peroni, Silvio", Identifiers: []domain.Identifier{orcid}}
	namesake := domain.Agent{Name: "Peroni, Silvio"}
	shotton := domain.Agent{Name: "Shotton, David", Identifiers: []domain.Identifier{domain.NewIdentifier(domain.SchemeORCID, "0000-0001-5506-523X")}}

	a := resource("br/1", []domain.Identifier{issn}, peroni)
	b := resource("br/2", []domain.Identifier{issn, other}, shotton, peroni)
	c := resource("br/3", []domain.Identifier{other}, namesake)
	d := resource("br/4", nil)

	t.Run("shared venue", func(t *testing.T) {
		assert.True(t, JournalSelfCitation(a, b))
		assert.False(t, JournalSelfCitation(a, c))
		assert.False(t, JournalSelfCitation(a, d))
	})

	t.Run("shared author identifier", func(t *testing.T) {
		assert.True(t, AuthorSelfCitation(a, b))
		assert.False(t, AuthorSelfCitation(a, c), "same name without a shared identifier is not a self-citation")
	})

	t.Run("symmetry", func(t *testing.T) {
		pairs := [][2]domain.ResourceMetadata{{a, b}, {a, c}, {b, c}, {a, d}}
		for _, p := range pairs {
			assert.Equal(t, JournalSelfCitation(p[0], p[1]), JournalSelfCitation(p[1], p[0]))
			assert.Equal(t, AuthorSelfCitation(p[0], p[1]), AuthorSelfCitation(p[1], p[0]))
		}
	})
}

func TestCompute(t *testing.T) {
	issn := domain.NewIdentifier(domain.SchemeISSN, "0138-9130")
	citing := resource("br/0612", []domain.Identifier{issn})
	citing.PubDate = "2020-03"
	cited := resource("br/0613", []domain.Identifier{issn})
	cited.PubDate = "2020-03"

	attrs := Compute(citing, cited)
	assert.Equal(t, "2020-03", attrs.Creation)
	assert.Equal(t, "P0Y0M", attrs.Timespan)
	assert.True(t, attrs.JournalSelfCitation)
	assert.False(t, attrs.AuthorSelfCitation)

	again := Compute(citing, cited)
	assert.Equal(t, attrs, again)
}

func TestFact(t *testing.T) {
	citing := resource("br/06101", nil)
	citing.PubDate = "2019-03"
	cited := resource("br/06202", nil)
	cited.PubDate = "2010-12-07"

	f := Fact(citing, cited)
	assert.Equal(t, "06101-06202", f.OCI)
	assert.Equal(t, "P8Y3M", f.Timespan)
	assert.Equal(t, "2019-03", f.Creation)
	assert.Equal(t, "no", YesNo(f.JournalSelfCitation))
	assert.Equal(t, "yes", YesNo(true))
}
