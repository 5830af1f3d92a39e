package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-risk-service/internal/closure"
	"github.com/couchcryptid/flood-risk-service/internal/facts"
	"github.com/couchcryptid/flood-risk-service/internal/schema"
)

func closedDefault(t *testing.T) (*facts.Store, *schema.Catalog) {
	t.Helper()
	c, err := schema.LoadDefault()
	require.NoError(t, err)
	s := facts.NewStore()
	c.Seed(s)
	_, err = closure.New(c, 0).Materialize(s)
	require.NoError(t, err)
	return s, c
}

const smallSchema = `
kinds:
  - id: Place
  - id: Town
    parents: [Place]
  - id: Gauge
predicates:
  - id: near
    arity: object
    domain: Place
    range: Gauge
  - id: hasName
    arity: literal
`

func small(t *testing.T) (*facts.Store, *schema.Catalog) {
	t.Helper()
	c, err := schema.Build([]byte(smallSchema), nil, "test", time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	s := facts.NewStore()
	s.InsertAll([]facts.Fact{
		facts.TypeFact("T1", "Town"),
		facts.TypeFact("T1", "Place"),
		facts.TypeFact("G1", "Gauge"),
		facts.NewFact("T1", "near", facts.Ref("G1")),
		facts.NewFact("T1", "hasName", facts.String("Town one")),
		facts.NewFact("T1", "near", facts.Ref("Nowhere")),
	})
	return s, c
}

func nodeByID(g Graph, id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

func linksOf(g Graph, typ LinkType) []Link {
	var out []Link
	for _, l := range g.Links {
		if l.Type == typ {
			out = append(out, l)
		}
	}
	return out
}

func TestProject_SmallCatalog(t *testing.T) {
	s, c := small(t)
	g, err := Project(c, s, 0)
	require.NoError(t, err)

	_, ok := nodeByID(g, "class_Thing")
	assert.False(t, ok, "root is not drawn")

	place, ok := nodeByID(g, "class_Place")
	require.True(t, ok)
	assert.Equal(t, NodeClass, place.Type)
	assert.InDelta(t, 2.0, place.Value, 1e-9)

	near, ok := nodeByID(g, "prop_near")
	require.True(t, ok)
	assert.Equal(t, NodeProperty, near.Type)
	assert.InDelta(t, 0.7, near.Value, 1e-9)
	_, ok = nodeByID(g, "prop_hasName")
	assert.False(t, ok, "literal predicates are not drawn")

	town, ok := nodeByID(g, "indiv_T1")
	require.True(t, ok)
	assert.Equal(t, "Town one", town.Label)
	assert.Equal(t, NodeIndividual, town.Type)

	assert.Equal(t, []Link{{Source: "indiv_T1", Target: "class_Town", Type: LinkInstanceOf, Label: "is an instance of", Value: 1}},
		linksOf(g, LinkInstanceOf)[:1], "the most specific kind only")
	assert.Len(t, linksOf(g, LinkInstanceOf), 2)
	assert.Len(t, linksOf(g, LinkSubClassOf), 1, "edges to the root are dropped with it")
	assert.Len(t, linksOf(g, LinkHasDomain), 1)
	assert.Len(t, linksOf(g, LinkHasRange), 1)

	assertions := linksOf(g, LinkPropertyAssertion)
	require.Len(t, assertions, 1, "the link to an unknown entity is dropped")
	assert.Equal(t, "near", assertions[0].Label)
	assert.Equal(t, 2, g.IndividualTotal)
	assert.False(t, g.Truncated)
	assert.Equal(t, DefaultMaxIndividuals, g.MaxIndividuals)
}

func TestProject_DefaultCatalogHasNoDanglingLinks(t *testing.T) {
	s, c := closedDefault(t)
	g, err := Project(c, s, 0)
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, n := range g.Nodes {
		assert.False(t, ids[n.ID], "duplicate node %s", n.ID)
		ids[n.ID] = true
	}
	for _, l := range g.Links {
		assert.True(t, ids[l.Source], "dangling source %s", l.Source)
		assert.True(t, ids[l.Target], "dangling target %s", l.Target)
	}

	assert.Equal(t, 17, g.IndividualTotal)
	assert.Len(t, linksOf(g, LinkInstanceOf), 18, "Tanghin is both a Neighborhood and a RiskArea")

	var tanghin []string
	for _, l := range linksOf(g, LinkInstanceOf) {
		if l.Source == "indiv_Zone_Tanghin" {
			tanghin = append(tanghin, l.Target)
		}
	}
	assert.ElementsMatch(t, []string{"class_Neighborhood", "class_RiskArea"}, tanghin)
}

func TestProject_TruncatesIndividuals(t *testing.T) {
	s, c := closedDefault(t)
	g, err := Project(c, s, 5)
	require.NoError(t, err)

	n := 0
	for _, node := range g.Nodes {
		if node.Type == NodeIndividual {
			n++
		}
	}
	assert.Equal(t, 5, n)
	assert.True(t, g.Truncated)
	assert.Equal(t, 17, g.IndividualTotal)
	_, ok := nodeByID(g, "indiv_Ouagadougou")
	assert.True(t, ok, "individuals keep insertion order")
}

func TestProject_Deterministic(t *testing.T) {
	s, c := closedDefault(t)
	a, err := Project(c, s, 0)
	require.NoError(t, err)
	b, err := Project(c, s, 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestProject_NilCatalog(t *testing.T) {
	_, err := Project(nil, facts.NewStore(), 0)
	assert.ErrorIs(t, err, ErrSchemaUnavailable)
	_, err = Stats(nil, nil)
	assert.ErrorIs(t, err, ErrSchemaUnavailable)
	_, err = Classes(nil, nil)
	assert.ErrorIs(t, err, ErrSchemaUnavailable)
	_, err = Properties(nil, schema.ArityObject)
	assert.ErrorIs(t, err, ErrSchemaUnavailable)
	_, err = Individuals(nil, nil, "")
	assert.ErrorIs(t, err, ErrSchemaUnavailable)
}

func TestProject_SchemaOnly(t *testing.T) {
	_, c := closedDefault(t)
	g, err := Project(c, nil, 0)
	require.NoError(t, err)
	assert.Zero(t, g.IndividualTotal)
	assert.Empty(t, linksOf(g, LinkPropertyAssertion))
	assert.NotEmpty(t, linksOf(g, LinkSubClassOf))
}

func TestStats_DefaultCatalog(t *testing.T) {
	s, c := closedDefault(t)
	st, err := Stats(c, s)
	require.NoError(t, err)

	assert.Equal(t, 20, st.Classes)
	assert.Equal(t, 11, st.ObjectProperties)
	assert.Equal(t, 21, st.DataProperties)
	assert.Equal(t, 17, st.Individuals)
	assert.Equal(t, 7, st.Rules)
	assert.Equal(t, s.Len(), st.TotalTriples)
	assert.Equal(t, c.LoadedAt(), st.LastLoaded)

	types := 0
	for range s.Query(facts.Pattern{Predicate: facts.PredicateType}) {
		types++
	}
	assert.Equal(t, st.TotalTriples, types+st.ObjectPropertyAssertions+st.DataPropertyAssertions)
}

func TestListings(t *testing.T) {
	s, c := closedDefault(t)

	classes, err := Classes(c, s)
	require.NoError(t, err)
	require.Len(t, classes, 20)
	assert.Equal(t, facts.EntityID("GeographicEntity"), classes[0].ID)
	for _, ci := range classes {
		if ci.ID == "Zone" {
			assert.Equal(t, 4, ci.Instances, "the city and three neighbourhoods")
		}
	}

	obj, err := Properties(c, schema.ArityObject)
	require.NoError(t, err)
	assert.Len(t, obj, 11)
	assert.Equal(t, facts.EntityID("Zone"), obj[0].Range)

	data, err := Properties(c, schema.ArityLiteral)
	require.NoError(t, err)
	assert.Len(t, data, 21)

	zones, err := Individuals(c, s, "Zone")
	require.NoError(t, err)
	var ids []facts.EntityID
	for _, z := range zones {
		ids = append(ids, z.ID)
	}
	assert.Equal(t, []facts.EntityID{"Ouagadougou", "Zone_Tanghin", "Zone_Kossodo", "Zone_Ouaga2000"}, ids)

	all, err := Individuals(c, s, "")
	require.NoError(t, err)
	assert.Len(t, all, 17)

	none, err := Individuals(c, s, "Atlantis")
	require.NoError(t, err)
	assert.Empty(t, none)
}
