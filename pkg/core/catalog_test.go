package core

import (
	"errors"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModDefs = `Symbol	Mass	TargetResidues	Type	MassCorrectionTag	AffectedAtom
*	15.994915	M	D	Plus1Oxy
-	57.021464	C	S	IodoAcet
#	79.966331	STY	D	Phosph
-	42.010565	<	T	Acetyl
-	0.997035	*	I	N15	N
`

func loadTestCatalog(t *testing.T) *ModificationCatalog {
	t.Helper()
	c := NewModificationCatalog()
	require.NoError(t, c.LoadModificationDefinitions(strings.NewReader(testModDefs), "test_ModDefs.txt"))
	return c
}

func TestResolveExistingDefinition(t *testing.T) {
	c := loadTestCatalog(t)

	tests := []struct {
		name     string
		query    Query
		wantTag  string
		wantKind ModificationKind
	}{
		{
			name:     "by mass with float noise",
			query:    Query{Mass: 15.9949146221, Kind: KindDynamic, Residues: "M"},
			wantTag:  "Plus1Oxy",
			wantKind: KindDynamic,
		},
		{
			name:     "by tag",
			query:    Query{Tag: "Phosph", Mass: 79.966331, Kind: KindDynamic, Residues: "Y"},
			wantTag:  "Phosph",
			wantKind: KindDynamic,
		},
		{
			name:     "unknown kind matches a static mod",
			query:    Query{Mass: 57.021464, Residues: "C"},
			wantTag:  "IodoAcet",
			wantKind: KindStatic,
		},
		{
			name:     "subset of a dynamic residue set",
			query:    Query{Mass: 79.966331, Kind: KindDynamic, Residues: "T"},
			wantTag:  "Phosph",
			wantKind: KindDynamic,
		},
		{
			name:     "terminal mod matched by terminus marker",
			query:    Query{Mass: 42.010565, Kind: KindTerminalPeptideStatic, Residues: "A", Termini: "[<"},
			wantTag:  "Acetyl",
			wantKind: KindTerminalPeptideStatic,
		},
		{
			name:     "isotopic mod needs its atom",
			query:    Query{Mass: 0.997035, Kind: KindIsotopic, Atom: 'N'},
			wantTag:  "N15",
			wantKind: KindIsotopic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := c.Len()
			d, created := c.ResolveQuery(tt.query)
			require.NotNil(t, d)
			assert.False(t, created)
			assert.False(t, d.AutoDefined)
			assert.Equal(t, tt.wantTag, d.MassCorrectionTag)
			assert.Equal(t, tt.wantKind, d.Kind)
			assert.Equal(t, before, c.Len())
		})
	}

	oxy, ok := c.LookupByTag("Plus1Oxy")
	require.True(t, ok)
	assert.Equal(t, 1, oxy.OccurrenceCount)
}

func TestFindDoesNotMatchOutsideResidueSet(t *testing.T) {
	c := loadTestCatalog(t)

	_, ok := c.Find(Query{Mass: 15.994915, Kind: KindDynamic, Residues: "W"})
	assert.False(t, ok)

	// terminal mod without the terminus marker at the observed position
	_, ok = c.Find(Query{Mass: 42.010565, Kind: KindTerminalPeptideStatic, Residues: "A"})
	assert.False(t, ok)

	// isotopic mods are never matched by an unknown kind
	_, ok = c.Find(Query{Mass: 0.997035, Atom: 'N'})
	assert.False(t, ok)
}

func TestAutoDefineIsIdempotent(t *testing.T) {
	c := loadTestCatalog(t)
	before := c.Len()

	first, created := c.ResolveQuery(Query{Mass: 12.3456, Residues: "K"})
	require.True(t, created)
	assert.True(t, first.AutoDefined)
	assert.Equal(t, "UnkMod00", first.MassCorrectionTag)
	assert.Equal(t, KindDynamic, first.Kind)
	// '*' and '#' are taken by the loaded definitions
	assert.Equal(t, '@', first.Symbol)
	assert.Equal(t, "12.345600", first.MassText)

	second, created := c.ResolveQuery(Query{Mass: 12.3456, Residues: "K"})
	assert.False(t, created)
	assert.Same(t, first, second)

	// same mass on another residue keeps the tag and symbol
	third, created := c.ResolveQuery(Query{Mass: 12.34560004, Residues: "S"})
	assert.False(t, created)
	assert.Same(t, first, third)
	assert.Equal(t, "KS", first.TargetResidues)
	assert.Equal(t, 3, first.OccurrenceCount)

	assert.Equal(t, before+1, c.Len())
	assert.Len(t, c.AutoDefined(), 1)

	other := c.Resolve("", 20.5, KindDynamic, "K")
	assert.Equal(t, "UnkMod01", other.MassCorrectionTag)
	assert.NotEqual(t, first.Symbol, other.Symbol)
}

func TestAutoDefineUsesKnownTagNames(t *testing.T) {
	c := NewModificationCatalog()

	d, created := c.ResolveQuery(Query{Mass: 79.966331, Kind: KindDynamic, Residues: "S"})
	require.True(t, created)
	assert.Equal(t, "Phosph", d.MassCorrectionTag)
	assert.Equal(t, '*', d.Symbol)

	require.NoError(t, c.LoadMassCorrectionTags(strings.NewReader("Tag\tMass\tAtom\nO18\t2.004246\t-\nC13\t1.003355\tC\n"), "tags.txt"))
	d, created = c.ResolveQuery(Query{Mass: 1.003355, Kind: KindIsotopic, Atom: 'C'})
	require.True(t, created)
	assert.Equal(t, "C13", d.MassCorrectionTag)
	assert.Equal(t, rune(NoSymbol), d.Symbol)
	assert.Equal(t, 'C', d.AffectedAtom)

	mass, ok := c.TagMass("O18")
	require.True(t, ok)
	assert.InDelta(t, 2.004246, mass, 1e-9)
}

func TestSymbolPoolExhaustion(t *testing.T) {
	c := NewModificationCatalog()
	pool := []rune(DefaultSymbolPool)

	seen := make(map[rune]bool)
	for i := range pool {
		d := c.Resolve("", 100.5+float64(i), KindDynamic, "K")
		assert.Equal(t, pool[i], d.Symbol, "definition %d", i)
		assert.False(t, seen[d.Symbol], "symbol %c reused", d.Symbol)
		seen[d.Symbol] = true
	}

	for i := 0; i < 3; i++ {
		d := c.Resolve("", 500.5+float64(i), KindDynamic, "K")
		assert.Equal(t, rune(LastResortSymbol), d.Symbol)
	}
	assert.Equal(t, len(pool)+3, c.Len())
}

func TestSymbolPoolAvoidsAnnotationCharacters(t *testing.T) {
	assert.Len(t, []rune(DefaultSymbolPool), 18)
	for _, r := range DefaultSymbolPool {
		assert.NotContains(t, "+-=.[]<>()_", string(r), "pool symbol %c collides with peptide annotation", r)
		assert.False(t, unicode.IsLetter(r) || unicode.IsDigit(r), "pool symbol %c", r)
	}
}

func TestAddMergesResiduesForSameTag(t *testing.T) {
	c := NewModificationCatalog()

	first, err := c.Add(NewModificationDefinition('#', 79.966331, "ST", KindDynamic, "Phosph"))
	require.NoError(t, err)
	second, err := c.Add(NewModificationDefinition('#', 79.966331, "Y", KindDynamic, "Phosph"))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "STY", first.TargetResidues)
	assert.Equal(t, 1, c.Len())

	// same tag used as a static mod gets its own entry
	static, err := c.Add(NewModificationDefinition(NoSymbol, 79.966331, "S", KindStatic, "Phosph"))
	require.NoError(t, err)
	assert.NotSame(t, first, static)
	assert.Len(t, c.DefinitionsOfKind(KindStatic), 1)
}

func TestAddRejectsConflicts(t *testing.T) {
	c := NewModificationCatalog()
	_, err := c.Add(NewModificationDefinition('*', 15.994915, "M", KindDynamic, "Plus1Oxy"))
	require.NoError(t, err)

	_, err = c.Add(NewModificationDefinition('#', 16.5, "M", KindDynamic, "Plus1Oxy"))
	assert.Error(t, err, "tag bound to another mass")

	_, err = c.Add(NewModificationDefinition('*', 79.966331, "S", KindDynamic, "Phosph"))
	assert.Error(t, err, "symbol bound to another tag")

	_, err = c.Add(NewModificationDefinition('$', 1.0, "S", KindDynamic, "Bad,Tag"))
	assert.Error(t, err)
}

func TestTagForName(t *testing.T) {
	c := NewModificationCatalog()

	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"Phospho", "Phosph", true},
		{"phosphorylation", "Phosph", true},
		{"Oxidation (M)", "Plus1Oxy", true},
		{"Carbamidomethyl (C)", "IodoAcet", true},
		{"Acetyl (Protein N-term)", "Acetyl", true},
		{"Plus1Oxy", "Plus1Oxy", true},
		{"NotAMod", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.TagForName(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	c.AddAlias("MyLabel", "Phosph")
	got, ok := c.TagForName("mylabel")
	assert.True(t, ok)
	assert.Equal(t, "Phosph", got)
}

func TestResolveName(t *testing.T) {
	c := NewModificationCatalog()

	d, created, err := c.ResolveName("Oxidation", Query{Kind: KindDynamic, Residues: "M"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Plus1Oxy", d.MassCorrectionTag)
	assert.InDelta(t, 15.994915, d.Mass, 1e-9)

	again, created, err := c.ResolveName("ox", Query{Kind: KindDynamic, Residues: "M"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, d, again)

	_, _, err = c.ResolveName("NotAMod", Query{})
	assert.True(t, errors.Is(err, ErrUnknownModification))
}

func TestCatalogsAreIndependent(t *testing.T) {
	a := NewModificationCatalog()
	b := NewModificationCatalog()

	da := a.Resolve("", 12.5, KindDynamic, "K")
	db := b.Resolve("", 33.5, KindDynamic, "K")

	assert.Equal(t, "UnkMod00", da.MassCorrectionTag)
	assert.Equal(t, "UnkMod00", db.MassCorrectionTag)
	assert.Equal(t, da.Symbol, db.Symbol)
}
