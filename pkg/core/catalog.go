package core

import (
	"fmt"
	"strings"
)

// DefaultSymbolPool is the ordered alphabet handed out to dynamic modifications.
const DefaultSymbolPool = "*#@$&!%~†‡¤º^`×÷ø¢"

// unknownTagPrefix names auto-defined modifications: UnkMod00, UnkMod01, ...
const unknownTagPrefix = "UnkMod"

// knownTag is a mass correction tag that has no definition in the catalog yet
type knownTag struct {
	Mass float64
	Atom rune
}

// ModificationCatalog stores the modification definitions for one job.
// It is not safe for concurrent use.
type ModificationCatalog struct {
	defs     []*ModificationDefinition
	byTag    map[string]*ModificationDefinition
	bySymbol map[rune]*ModificationDefinition

	// mass correction tags known by name, from builtins and tag files
	known map[string]knownTag
	// lower-cased engine names -> mass correction tag
	aliases map[string]string

	symbolPool       []rune
	nextSymbol       int
	nextUnknownIndex int
}

// NewModificationCatalog creates a catalog seeded with the builtin mass
// correction tags. The builtins only name masses; they define nothing.
func NewModificationCatalog() *ModificationCatalog {
	c := &ModificationCatalog{
		byTag:      make(map[string]*ModificationDefinition),
		bySymbol:   make(map[rune]*ModificationDefinition),
		known:      make(map[string]knownTag),
		aliases:    make(map[string]string),
		symbolPool: []rune(DefaultSymbolPool),
	}

	for _, b := range builtinTags {
		c.known[b.Tag] = knownTag{Mass: b.Mass, Atom: NoAtom}
		c.aliases[strings.ToLower(b.Tag)] = b.Tag
		for _, name := range b.Names {
			c.aliases[strings.ToLower(name)] = b.Tag
		}
	}

	return c
}

// Len returns the number of definitions
func (c *ModificationCatalog) Len() int {
	return len(c.defs)
}

// Definitions returns the definitions in insertion order.
func (c *ModificationCatalog) Definitions() []*ModificationDefinition {
	out := make([]*ModificationDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// AutoDefined returns the definitions created while resolving unseen masses.
func (c *ModificationCatalog) AutoDefined() []*ModificationDefinition {
	var out []*ModificationDefinition
	for _, d := range c.defs {
		if d.AutoDefined {
			out = append(out, d)
		}
	}
	return out
}

// DefinitionsOfKind returns the definitions of one kind in insertion order.
func (c *ModificationCatalog) DefinitionsOfKind(kind ModificationKind) []*ModificationDefinition {
	var out []*ModificationDefinition
	for _, d := range c.defs {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// LookupByTag returns the definition bound to a mass correction tag.
func (c *ModificationCatalog) LookupByTag(tag string) (*ModificationDefinition, bool) {
	d, ok := c.byTag[tag]
	return d, ok
}

// LookupBySymbol returns the dynamic definition displayed with symbol.
func (c *ModificationCatalog) LookupBySymbol(symbol rune) (*ModificationDefinition, bool) {
	d, ok := c.bySymbol[symbol]
	return d, ok
}

// AddKnownTag registers a mass correction tag without defining a modification.
func (c *ModificationCatalog) AddKnownTag(tag string, mass float64, atom rune) error {
	if err := ValidateTag(tag); err != nil {
		return err
	}
	if atom == 0 {
		atom = NoAtom
	}
	c.known[tag] = knownTag{Mass: mass, Atom: atom}
	c.aliases[strings.ToLower(tag)] = tag
	return nil
}

// AddAlias maps an engine-specific modification name to a mass correction tag.
func (c *ModificationCatalog) AddAlias(name, tag string) {
	c.aliases[strings.ToLower(strings.TrimSpace(name))] = tag
}

// TagMass returns the mass associated with a tag, from a definition or a known tag.
func (c *ModificationCatalog) TagMass(tag string) (float64, bool) {
	if d, ok := c.byTag[tag]; ok {
		return d.Mass, true
	}
	if k, ok := c.known[tag]; ok {
		return k.Mass, true
	}
	return 0, false
}

// TagForName maps a modification name (tag, Unimod name or engine alias) to a tag.
// MaxQuant style names such as "Oxidation (M)" are matched without the
// parenthesised site list.
func (c *ModificationCatalog) TagForName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	if _, ok := c.byTag[name]; ok {
		return name, true
	}
	if _, ok := c.known[name]; ok {
		return name, true
	}
	if tag, ok := c.aliases[strings.ToLower(name)]; ok {
		return tag, true
	}
	if idx := strings.Index(name, " ("); idx > 0 {
		return c.TagForName(name[:idx])
	}
	return "", false
}

// Add inserts a definition. A missing tag is filled in from the known tags
// by mass, or with the next unknown tag. Adding a definition whose tag is
// already bound to an equivalent mass merges the target residues instead.
func (c *ModificationCatalog) Add(def *ModificationDefinition) (*ModificationDefinition, error) {
	if def.AffectedAtom == 0 {
		def.AffectedAtom = NoAtom
	}
	if def.Symbol == 0 {
		def.Symbol = NoSymbol
	}
	if def.MassText == "" {
		def.MassText = fmt.Sprintf("%g", def.Mass)
	}
	def.TargetResidues = NormalizeResidues(def.TargetResidues)

	if def.MassCorrectionTag == "" {
		def.MassCorrectionTag = c.tagForMass(def.Mass, def.AffectedAtom)
	}
	if err := ValidateTag(def.MassCorrectionTag); err != nil {
		return nil, err
	}

	if existing, ok := c.byTag[def.MassCorrectionTag]; ok {
		if !MassesEqual(existing.Mass, def.Mass) {
			return nil, fmt.Errorf("mass correction tag '%s' is already bound to mass %s", existing.MassCorrectionTag, existing.MassText)
		}
		if existing.Kind == def.Kind && (def.Symbol == existing.Symbol || def.Symbol == NoSymbol) {
			if existing.TargetResidues != "" {
				existing.TargetResidues = NormalizeResidues(existing.TargetResidues + def.TargetResidues)
				if def.TargetResidues == "" {
					existing.TargetResidues = ""
				}
			}
			return existing, nil
		}
		// Same chemistry used as a different kind (e.g. static C and dynamic K)
		// keeps its own entry; only the first one is reachable by tag.
	}

	if def.Kind == KindDynamic || def.Kind == KindUnknown {
		if def.Symbol == NoSymbol {
			def.Symbol = c.AssignSymbol(def)
		} else if other, ok := c.bySymbol[def.Symbol]; ok && other.MassCorrectionTag != def.MassCorrectionTag && def.Symbol != LastResortSymbol {
			return nil, fmt.Errorf("symbol '%c' is already bound to %s", def.Symbol, other.MassCorrectionTag)
		}
	}

	c.insert(def)
	return def, nil
}

func (c *ModificationCatalog) insert(def *ModificationDefinition) {
	c.defs = append(c.defs, def)
	if _, ok := c.byTag[def.MassCorrectionTag]; !ok {
		c.byTag[def.MassCorrectionTag] = def
	}
	if def.Symbol != NoSymbol {
		if _, ok := c.bySymbol[def.Symbol]; !ok {
			c.bySymbol[def.Symbol] = def
		}
	}
	c.aliases[strings.ToLower(def.MassCorrectionTag)] = def.MassCorrectionTag
}

// AssignSymbol returns the display symbol for a definition: the symbol
// already bound to its tag, else the next unused pool symbol, else the
// last-resort symbol once the pool is exhausted.
func (c *ModificationCatalog) AssignSymbol(def *ModificationDefinition) rune {
	if bound, ok := c.byTag[def.MassCorrectionTag]; ok && bound.Symbol != NoSymbol {
		return bound.Symbol
	}
	if def.Symbol != NoSymbol && def.Symbol != 0 {
		if other, ok := c.bySymbol[def.Symbol]; !ok || other.MassCorrectionTag == def.MassCorrectionTag {
			return def.Symbol
		}
	}

	for c.nextSymbol < len(c.symbolPool) {
		s := c.symbolPool[c.nextSymbol]
		if _, used := c.bySymbol[s]; !used {
			return s
		}
		c.nextSymbol++
	}
	return LastResortSymbol
}

// Query describes an observed modification to resolve.
type Query struct {
	Tag      string
	Mass     float64
	Kind     ModificationKind // KindUnknown matches any non-isotopic kind
	Residues string           // residues the observation sits on
	Termini  string           // terminus markers that apply at the observed position
	Atom     rune
}

// Resolve finds the definition for a tag or mass, auto-defining one if
// nothing matches. It never fails.
func (c *ModificationCatalog) Resolve(tag string, mass float64, kind ModificationKind, residues string) *ModificationDefinition {
	d, _ := c.ResolveQuery(Query{Tag: tag, Mass: mass, Kind: kind, Residues: residues})
	return d
}

// ResolveQuery resolves q and reports whether the result was newly auto-defined.
func (c *ModificationCatalog) ResolveQuery(q Query) (*ModificationDefinition, bool) {
	if d := c.find(q); d != nil {
		d.OccurrenceCount++
		return d, false
	}
	if d := c.findAutoDefined(q); d != nil {
		d.TargetResidues = NormalizeResidues(d.TargetResidues + q.Residues)
		d.OccurrenceCount++
		return d, false
	}
	return c.autoDefine(q), true
}

// Find looks up a definition without defining or counting anything.
func (c *ModificationCatalog) Find(q Query) (*ModificationDefinition, bool) {
	d := c.find(q)
	return d, d != nil
}

func (c *ModificationCatalog) find(q Query) *ModificationDefinition {
	if q.Atom == 0 {
		q.Atom = NoAtom
	}
	q.Residues = NormalizeResidues(q.Residues)

	if q.Tag != "" {
		if d, ok := c.byTag[q.Tag]; ok && (q.Kind == KindUnknown || d.Kind == q.Kind) {
			return d
		}
		// the tag may be bound to a second definition of another kind
		for _, d := range c.defs {
			if d.MassCorrectionTag == q.Tag && d.Kind == q.Kind {
				return d
			}
		}
	}

	for _, d := range c.defs {
		if !MassesEqual(d.Mass, q.Mass) {
			continue
		}
		if q.Kind == KindUnknown {
			if d.Kind == KindIsotopic {
				continue
			}
		} else if d.Kind != q.Kind {
			continue
		}
		if d.AffectedAtom != q.Atom {
			continue
		}
		if residuesMatch(d, q) {
			return d
		}
	}
	return nil
}

// findAutoDefined matches an earlier auto-defined mod by mass alone so that an
// unknown mass seen on a new residue keeps a single tag and symbol.
func (c *ModificationCatalog) findAutoDefined(q Query) *ModificationDefinition {
	if q.Atom == 0 {
		q.Atom = NoAtom
	}
	for _, d := range c.defs {
		if !d.AutoDefined || d.AffectedAtom != q.Atom || !MassesEqual(d.Mass, q.Mass) {
			continue
		}
		if q.Kind != KindUnknown && d.Kind != q.Kind {
			continue
		}
		if q.Tag != "" && d.MassCorrectionTag != q.Tag {
			continue
		}
		return d
	}
	return nil
}

// residuesMatch applies the subset rule to amino acids and accepts terminus
// definitions when the observed position carries one of their markers.
func residuesMatch(d *ModificationDefinition, q Query) bool {
	if d.TargetResidues == "" {
		return true
	}
	if terms := d.TerminusTargets(); terms != "" && q.Termini != "" {
		if strings.ContainsAny(q.Termini, terms) {
			aa := d.AminoAcidTargets()
			if aa == "" || residuesSubset(q.Residues, aa) {
				return true
			}
		}
	}
	if d.Kind == KindDynamic || d.Kind == KindStatic || d.Kind == KindUnknown {
		return residuesSubset(q.Residues, d.TargetResidues)
	}
	return q.Residues == d.TargetResidues
}

func (c *ModificationCatalog) autoDefine(q Query) *ModificationDefinition {
	kind := q.Kind
	if kind == KindUnknown {
		kind = KindDynamic
	}

	tag := q.Tag
	if tag == "" || ValidateTag(tag) != nil {
		tag = c.tagForMass(q.Mass, q.Atom)
	}
	if existing, ok := c.byTag[tag]; ok && !MassesEqual(existing.Mass, q.Mass) {
		tag = c.nextUnknownTag()
	}

	def := NewModificationDefinition(NoSymbol, q.Mass, q.Residues, kind, tag)
	def.MassText = fmt.Sprintf("%.*f", MassPrecision, q.Mass)
	if q.Atom != 0 {
		def.AffectedAtom = q.Atom
	}
	def.AutoDefined = true
	def.OccurrenceCount = 1

	if kind == KindDynamic {
		def.Symbol = c.AssignSymbol(def)
	}

	c.insert(def)
	return def
}

// tagForMass returns a known tag with the same mass, else the next unknown tag.
func (c *ModificationCatalog) tagForMass(mass float64, atom rune) string {
	if atom == 0 {
		atom = NoAtom
	}
	best := ""
	for tag, k := range c.known {
		if k.Atom != atom || !MassesEqual(k.Mass, mass) {
			continue
		}
		if existing, ok := c.byTag[tag]; ok && !MassesEqual(existing.Mass, mass) {
			continue
		}
		// map iteration order is random; pick the smallest tag for determinism
		if best == "" || tag < best {
			best = tag
		}
	}
	if best != "" {
		return best
	}
	return c.nextUnknownTag()
}

func (c *ModificationCatalog) nextUnknownTag() string {
	for {
		tag := fmt.Sprintf("%s%02d", unknownTagPrefix, c.nextUnknownIndex)
		c.nextUnknownIndex++
		if _, used := c.byTag[tag]; !used {
			return tag
		}
	}
}

// ResolveName resolves a named modification (tag, Unimod name or engine alias).
func (c *ModificationCatalog) ResolveName(name string, q Query) (*ModificationDefinition, bool, error) {
	tag, ok := c.TagForName(name)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownModification, name)
	}
	mass, ok := c.TagMass(tag)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownModification, name)
	}
	q.Tag = tag
	q.Mass = mass
	d, created := c.ResolveQuery(q)
	return d, created, nil
}
