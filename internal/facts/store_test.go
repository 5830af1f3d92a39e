package facts

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(r Reader, p Pattern) []Fact {
	return slices.Collect(r.Query(p))
}

func TestStore_InsertIsIdempotent(t *testing.T) {
	s := NewStore()
	f := NewFact("Station_Wayen", "hasName", String("Wayen"))

	assert.True(t, s.Insert(f))
	assert.False(t, s.Insert(f))
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains(f))
}

func TestStore_StructuralEquality(t *testing.T) {
	s := NewStore()
	ts := time.Date(2025, 7, 14, 12, 0, 0, 0, time.FixedZone("GMT+1", 3600))

	require.True(t, s.Insert(NewFact("m1", "occursAtTime", Timestamp(ts))))
	assert.False(t, s.Insert(NewFact("m1", "occursAtTime", Timestamp(ts.UTC()))), "same instant in another zone is the same literal")
	assert.True(t, s.Insert(NewFact("m1", "hasValue", Number(1))))
	assert.True(t, s.Insert(NewFact("m1", "hasValue", String("1"))), "number and string literals differ")
	assert.True(t, s.Insert(NewFact("m1", "hasValue", Ref("1"))), "references differ from literals")
	assert.Equal(t, 4, s.Len())
}

func TestStore_NumbersCompareCanonically(t *testing.T) {
	s := NewStore()
	nan := NewFact("m1", "hasValue", Number(math.NaN()))

	assert.True(t, s.Insert(nan))
	assert.False(t, s.Insert(nan), "NaN is one value")
	assert.False(t, s.Insert(NewFact("m1", "hasValue", Number(math.Float64frombits(0x7ff8000000000bad)))))
	assert.True(t, s.Contains(nan))
	assert.Len(t, collect(s, Pattern{Object: Number(math.NaN())}), 1)

	assert.True(t, s.Insert(NewFact("m1", "hasValue", Number(0))))
	assert.False(t, s.Insert(NewFact("m1", "hasValue", Number(math.Copysign(0, -1)))), "-0 equals 0")
	assert.Equal(t, 2, s.Len())

	f, ok := Number(2.5).Number()
	require.True(t, ok)
	assert.InDelta(t, 2.5, f, 1e-12)
}

func TestStore_QueryPatterns(t *testing.T) {
	s := NewStore()
	s.InsertAll([]Fact{
		TypeFact("Ouagadougou", "City"),
		NewFact("Ouagadougou", "hasName", String("Ouagadougou")),
		TypeFact("Station_Wayen", "HydrologicalStation"),
		NewFact("Station_Wayen", "hasName", String("Wayen")),
		NewFact("Ouagadougou", "isDownstreamOf", Ref("Station_Wayen")),
	})

	assert.Len(t, collect(s, Pattern{Subject: "Ouagadougou"}), 3)
	assert.Len(t, collect(s, Pattern{Predicate: "hasName"}), 2)
	assert.Len(t, collect(s, Pattern{Object: Ref("Station_Wayen")}), 1)
	assert.Len(t, collect(s, Pattern{}), 5)

	got := collect(s, Pattern{Subject: "Station_Wayen", Predicate: "hasName"})
	require.Len(t, got, 1)
	name, ok := got[0].Object.Str()
	require.True(t, ok)
	assert.Equal(t, "Wayen", name)

	assert.Empty(t, collect(s, Pattern{Subject: "Nowhere"}))
	assert.Empty(t, collect(s, Pattern{Subject: "Ouagadougou", Object: Ref("City"), Predicate: "hasName"}))
}

func TestStore_QueryIsRecomputedPerCall(t *testing.T) {
	s := NewStore()
	s.Insert(NewFact("a", "p", Number(1)))

	seq := s.Query(Pattern{Predicate: "p"})
	assert.Len(t, slices.Collect(seq), 1)

	s.Insert(NewFact("b", "p", Number(2)))
	assert.Len(t, slices.Collect(s.Query(Pattern{Predicate: "p"})), 2)
}

func TestStore_InsertDuringIterationIsNotVisited(t *testing.T) {
	s := NewStore()
	s.Insert(NewFact("a", "p", Number(1)))

	visited := 0
	for f := range s.Query(Pattern{Predicate: "p"}) {
		visited++
		s.Insert(NewFact(f.Subject+"'", "p", Number(2)))
	}
	assert.Equal(t, 1, visited)
	assert.Equal(t, 2, s.Len())
}

func TestStore_QueryStopsEarly(t *testing.T) {
	s := NewStore()
	for _, id := range []EntityID{"a", "b", "c"} {
		s.Insert(NewFact(id, "p", Bool(true)))
	}
	n := 0
	for range s.Query(Pattern{}) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestLookupHelpers(t *testing.T) {
	s := NewStore()
	s.InsertAll([]Fact{
		TypeFact("Zone_A", "Zone"),
		TypeFact("Zone_A", "RiskArea"),
		TypeFact("Zone_B", "Zone"),
		NewFact("Zone_A", "hasRainfall", Number(120)),
		NewFact("Zone_A", "hasElevation", String("8")),
	})

	assert.Equal(t, []EntityID{"Zone", "RiskArea"}, KindsOf(s, "Zone_A"))
	assert.Equal(t, []EntityID{"Zone_A", "Zone_B"}, Subjects(s, PredicateType, Ref("Zone")))
	assert.True(t, HasKind(s, "Zone_B", "Zone"))
	assert.False(t, HasKind(s, "Zone_B", "RiskArea"))
	assert.True(t, Exists(s, "Zone_B"))
	assert.False(t, Exists(s, "Zone_C"))

	n, ok := FirstNumber(s, "Zone_A", "hasRainfall")
	require.True(t, ok)
	assert.InDelta(t, 120.0, n, 1e-9)

	_, ok = FirstNumber(s, "Zone_A", "hasElevation")
	assert.False(t, ok, "string literals are not number literals")

	v, ok := First(s, "Zone_A", "hasElevation")
	require.True(t, ok)
	num, ok := v.Numeric()
	require.True(t, ok)
	assert.InDelta(t, 8.0, num, 1e-9)
}

func TestValue_Display(t *testing.T) {
	ts := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		v    Value
		want string
	}{
		{Ref("Station_Wayen"), "Station_Wayen"},
		{Number(2.75), "2.75"},
		{String("Wayen"), "Wayen"},
		{Bool(true), "true"},
		{Timestamp(ts), "2025-07-14T12:00:00Z"},
		{Value{}, ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.v.Display(), tc.v.Kind().String())
	}
}

func TestValue_Numeric(t *testing.T) {
	_, ok := String("heavy").Numeric()
	assert.False(t, ok)
	_, ok = Bool(true).Numeric()
	assert.False(t, ok)
	_, ok = Ref("x").Numeric()
	assert.False(t, ok)
	f, ok := String("12.5").Numeric()
	require.True(t, ok)
	assert.InDelta(t, 12.5, f, 1e-9)
}
