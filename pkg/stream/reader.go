// Package stream turns a search engine result file into a stream of
// normalised PSMs with every modification resolved against one catalog.
package stream

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/phrp/pkg/core"
	"github.com/ChrisMcGann/phrp/pkg/detect"
	"github.com/ChrisMcGann/phrp/pkg/reader/engine"
)

// State is the lifecycle position of a Reader.
type State int

const (
	StateCreated State = iota
	StateOpened
	StateReading
	StateExhausted
	StateError
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateOpened:
		return "Opened"
	case StateReading:
		return "Reading"
	case StateExhausted:
		return "Exhausted"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// DefaultMassDisagreementTolerance is the largest difference in Da between the
// engine's mass and the recomputed mass that passes without a warning.
const DefaultMassDisagreementTolerance = 0.1

// Options configures a Reader.
type Options struct {
	// ResultType forces the engine; Unknown means detect from the file.
	ResultType engine.ResultType

	// Optional catalog files, loaded when the reader opens
	ModificationDefinitionsFile string
	MassCorrectionTagsFile      string

	// Catalog to resolve against; a new one is created when nil. A catalog
	// passed in may be pre-seeded, e.g. from a search parameter file.
	Catalog *core.ModificationCatalog

	Enzyme                    core.EnzymeRule
	Deduplicate               bool
	MassDisagreementTolerance float64

	// Detector memoises detection across readers; optional.
	Detector *detect.Detector
}

// Counts summarises what a reader has done so far.
type Counts struct {
	Records    int
	Yielded    int
	Skipped    int
	Duplicates int
}

// Reader yields normalised PSMs from one result file. It is not safe for
// concurrent use; shard by file, each with its own reader.
type Reader struct {
	opts    Options
	state   State
	path    string
	catalog *core.ModificationCatalog

	detection detect.Result
	schema    *engine.Schema
	rows      engine.RowReader
	closer    io.Closer

	current     *core.PSM
	errs        []error
	err         error
	diagnostics []core.Diagnostic

	seen   map[dedupKey]struct{}
	seqIDs map[string]int
	counts Counts
}

type dedupKey struct {
	scan     int
	sequence string
	charge   int
}

// New creates a reader in the Created state.
func New(opts Options) *Reader {
	if opts.Enzyme.Name == "" && !opts.Enzyme.NonSpecific {
		opts.Enzyme = core.Trypsin
	}
	if opts.MassDisagreementTolerance <= 0 {
		opts.MassDisagreementTolerance = DefaultMassDisagreementTolerance
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = core.NewModificationCatalog()
	}
	return &Reader{
		opts:    opts,
		state:   StateCreated,
		catalog: catalog,
		seqIDs:  make(map[string]int),
	}
}

// Open is a convenience for New followed by Reader.Open.
func Open(path string, opts Options) (*Reader, error) {
	r := New(opts)
	if err := r.Open(path); err != nil {
		return r, err
	}
	return r, nil
}

// Open loads the catalog files, detects the result type and opens the file.
// Any failure leaves the reader permanently unusable.
func (r *Reader) Open(path string) error {
	if r.state != StateCreated {
		return fmt.Errorf("reader already %s", r.state)
	}
	r.path = path

	if err := r.loadCatalog(); err != nil {
		return r.fail(err)
	}

	if err := r.detectType(); err != nil {
		return r.fail(err)
	}

	f, err := os.Open(path)
	if err != nil {
		return r.fail(fmt.Errorf("failed to open result file: %w", err))
	}
	r.start(f, f)
	return nil
}

// OpenReader opens an in-memory stream. name is used for detection when
// Options.ResultType is Unknown, and for diagnostics.
func (r *Reader) OpenReader(src io.Reader, name string) error {
	if r.state != StateCreated {
		return fmt.Errorf("reader already %s", r.state)
	}
	r.path = name

	if err := r.loadCatalog(); err != nil {
		return r.fail(err)
	}

	if r.opts.ResultType == engine.Unknown {
		// detection may need the content, so buffer it once
		data, err := io.ReadAll(src)
		if err != nil {
			return r.fail(fmt.Errorf("failed to read input: %w", err))
		}
		res, err := detect.Detect(name, func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(string(data))), nil
		})
		if err != nil {
			return r.fail(err)
		}
		r.setDetection(res)
		src = strings.NewReader(string(data))
	} else if err := r.setForcedType(); err != nil {
		return r.fail(err)
	}

	var closer io.Closer
	if c, ok := src.(io.Closer); ok {
		closer = c
	}
	r.start(src, closer)
	return nil
}

func (r *Reader) start(src io.Reader, closer io.Closer) {
	r.rows = engine.NewRowReader(src, r.schema)
	r.closer = closer
	if r.opts.Deduplicate {
		r.seen = make(map[dedupKey]struct{})
	}
	r.state = StateOpened
}

func (r *Reader) loadCatalog() error {
	if r.opts.MassCorrectionTagsFile != "" {
		if err := loadInto(r.opts.MassCorrectionTagsFile, r.catalog.LoadMassCorrectionTags); err != nil {
			return err
		}
	}
	if r.opts.ModificationDefinitionsFile != "" {
		if err := loadInto(r.opts.ModificationDefinitionsFile, r.catalog.LoadModificationDefinitions); err != nil {
			return err
		}
	}
	return nil
}

func loadInto(path string, load func(io.Reader, string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return &core.CatalogLoadError{Path: path, Err: err}
	}
	defer f.Close()
	return load(f, path)
}

func (r *Reader) detectType() error {
	if r.opts.ResultType != engine.Unknown {
		return r.setForcedType()
	}

	var (
		res detect.Result
		err error
	)
	if r.opts.Detector != nil {
		res, err = r.opts.Detector.DetectFile(r.path)
	} else {
		res, err = detect.Detect(r.path, func() (io.ReadCloser, error) { return os.Open(r.path) })
	}
	if err != nil {
		return err
	}
	r.setDetection(res)
	return nil
}

func (r *Reader) setForcedType() error {
	schema, ok := engine.SchemaFor(r.opts.ResultType)
	if !ok {
		return fmt.Errorf("%w: no reader for %s", core.ErrFormatUndetermined, r.opts.ResultType)
	}
	r.detection = detect.Result{Type: r.opts.ResultType}
	r.schema = schema
	return nil
}

func (r *Reader) setDetection(res detect.Result) {
	r.detection = res
	r.schema, _ = engine.SchemaFor(res.Type)
	if res.Fallback() {
		r.emit(core.Diagnostic{
			Severity: core.SeverityWarning,
			Code:     core.CodeFallbackDetection,
			Path:     r.path,
			Message:  fmt.Sprintf("no engine header found; reading as %s", res.Type),
		})
	}
}

// fail moves the reader to the Error state and records why.
func (r *Reader) fail(err error) error {
	r.errs = append(r.errs, err)
	r.err = err
	r.state = StateError

	code := core.CodeRecordSkipped
	switch {
	case errors.Is(err, core.ErrCatalogLoad):
		code = core.CodeCatalogLoadError
	case errors.Is(err, core.ErrFormatUndetermined):
		code = core.CodeFormatUndetermined
	}
	r.emit(core.Diagnostic{Severity: core.SeverityError, Code: code, Path: r.path, Message: err.Error()})
	r.release()
	return err
}

// CanRead reports whether the reader opened successfully and has not failed.
func (r *Reader) CanRead() bool {
	return r.state == StateOpened || r.state == StateReading
}

// State returns the lifecycle state
func (r *Reader) State() State {
	return r.state
}

// Errors returns every fatal error recorded by the reader.
func (r *Reader) Errors() []error {
	return r.errs
}

// Err returns the error that stopped the reader, if any
func (r *Reader) Err() error {
	return r.err
}

// ResultType returns the engine being read
func (r *Reader) ResultType() engine.ResultType {
	return r.detection.Type
}

// Detection returns how the result type was chosen
func (r *Reader) Detection() detect.Result {
	return r.detection
}

// Catalog returns the catalog used for resolution; it outlives the reader.
func (r *Reader) Catalog() *core.ModificationCatalog {
	return r.catalog
}

// Counts returns the record counters
func (r *Reader) Counts() Counts {
	return r.counts
}

// PSM returns the current PSM
func (r *Reader) PSM() *core.PSM {
	return r.current
}

// Diagnostics returns and clears the diagnostics recorded since the last call.
func (r *Reader) Diagnostics() []core.Diagnostic {
	out := r.diagnostics
	r.diagnostics = nil
	return out
}

func (r *Reader) emit(d core.Diagnostic) {
	r.diagnostics = append(r.diagnostics, d)
}

// Next advances to the next PSM. Records that fail for local reasons are
// skipped with a warning diagnostic.
func (r *Reader) Next() bool {
	r.current = nil
	switch r.state {
	case StateOpened:
		r.state = StateReading
	case StateReading:
	default:
		return false
	}

	for r.rows.Next() {
		row := r.rows.Row()
		r.counts.Records++

		psm, err := r.build(row)
		if err != nil {
			r.skip(row, err)
			continue
		}

		if r.seen != nil {
			key := dedupKey{scan: psm.ScanNumber, sequence: psm.CleanSequence, charge: psm.Charge}
			if _, dup := r.seen[key]; dup {
				r.counts.Duplicates++
				continue
			}
			r.seen[key] = struct{}{}
		}

		r.assignSequenceID(psm)
		r.counts.Yielded++
		r.current = psm
		return true
	}

	if err := r.rows.Err(); err != nil {
		r.fail(&core.RecordError{Path: r.path, Err: err})
		return false
	}
	r.state = StateExhausted
	r.release()
	return false
}

func (r *Reader) skip(row *engine.Row, err error) {
	r.counts.Skipped++
	code := core.CodeRecordSkipped
	if errors.Is(err, core.ErrInvalidResidue) {
		code = core.CodeInvalidResidue
	}
	r.emit(core.Diagnostic{
		Severity: core.SeverityWarning,
		Code:     code,
		Path:     r.path,
		Line:     row.Line,
		Message:  err.Error(),
		Raw:      row.Raw,
	})
}

func (r *Reader) assignSequenceID(psm *core.PSM) {
	key := psm.CleanSequence + "|" + psm.ModString()
	id, ok := r.seqIDs[key]
	if !ok {
		id = len(r.seqIDs) + 1
		r.seqIDs[key] = id
	}
	psm.SequenceID = id
}

// Close releases the file handle. It is safe to call more than once.
func (r *Reader) Close() error {
	err := r.release()
	if r.state == StateOpened || r.state == StateReading || r.state == StateCreated {
		r.state = StateExhausted
	}
	return err
}

func (r *Reader) release() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// build runs the per-record protocol on one mapped row.
func (r *Reader) build(row *engine.Row) (*core.PSM, error) {
	if row.Err != nil {
		return nil, row.Err
	}

	psm := &core.PSM{
		Peptide:       row.Field(engine.FieldPeptide),
		CollisionMode: row.Field(engine.FieldCollisionMode),
		Scores:        row.Scores,
		SourceFile:    r.path,
		SourceFormat:  r.detection.Type.String(),
		RecordNumber:  row.Line,
	}
	psm.ScanNumber, _ = strconv.Atoi(row.Field(engine.FieldScan))
	psm.Charge, _ = strconv.Atoi(row.Field(engine.FieldCharge))

	prefix, annotated, suffix := core.SplitPrefixAndSuffix(psm.Peptide)
	psm.Prefix, psm.Suffix = prefix, suffix

	clean, inline, err := engine.ParseAnnotation(annotated, r.schema.ModStyle)
	if err != nil {
		return nil, err
	}
	if clean == "" {
		return nil, fmt.Errorf("%w: empty peptide sequence", core.ErrMalformedRecord)
	}
	// Reject unknown residues before any modification reaches the catalog
	if _, err := core.ComputeSequenceMass(clean, nil); err != nil {
		return nil, err
	}
	psm.CleanSequence = clean
	psm.TrypticTermini = core.CountTrypticTermini(prefix, clean, suffix, r.opts.Enzyme)
	psm.MissedCleavages = core.CountMissedCleavages(clean, r.opts.Enzyme)

	if err := r.resolveModifications(psm, row, inline); err != nil {
		return nil, err
	}
	psm.SortModifications()

	mass, err := core.ComputeSequenceMass(clean, psm.MassOffsets())
	if err != nil {
		return nil, err
	}
	psm.MonoisotopicMass = mass

	r.computeMassError(psm, row)
	psm.Proteins = proteinMatches(row)

	if err := psm.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedRecord, err)
	}
	return psm, nil
}

// computeMassError compares engine and recomputed masses and derives the
// isotope-corrected precursor error.
func (r *Reader) computeMassError(psm *core.PSM, row *engine.Row) {
	reported, hasReported := floatField(row, engine.FieldTheoreticalMass)
	if hasReported && math.Abs(reported-psm.MonoisotopicMass) > r.opts.MassDisagreementTolerance {
		r.emit(core.Diagnostic{
			Severity: core.SeverityWarning,
			Code:     core.CodeMassDisagreement,
			Path:     r.path,
			Line:     row.Line,
			Message: fmt.Sprintf("%s: engine mass %.5f differs from computed mass %.5f by %.5f Da",
				psm.Name(), reported, psm.MonoisotopicMass, reported-psm.MonoisotopicMass),
			Raw: row.Raw,
		})
	}

	precursor, hasPrecursor := floatField(row, engine.FieldPrecursorMass)
	delta, hasDelta := floatField(row, engine.FieldDeltaMass)

	switch {
	case hasDelta && !hasPrecursor:
		base := psm.MonoisotopicMass
		if hasReported {
			base = reported
		}
		precursor = base + delta
	case hasPrecursor && !hasDelta:
		delta = precursor - psm.MonoisotopicMass
	case !hasPrecursor && !hasDelta:
		precursor = psm.MonoisotopicMass
	}

	psm.PrecursorNeutralMass = precursor
	corrected, shift := core.CorrectIsotopeError(delta)
	psm.MassErrorDa = corrected
	psm.IsotopeShift = shift
	psm.MassErrorPPM = core.MassToPPM(corrected, psm.MonoisotopicMass)
}

func floatField(row *engine.Row, name string) (float64, bool) {
	v := strings.TrimSpace(row.Field(name))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// proteinMatches zips the ';' separated protein, start and end fields.
func proteinMatches(row *engine.Row) []core.ProteinMatch {
	names := splitList(row.Field(engine.FieldProtein))
	starts := splitList(row.Field(engine.FieldProteinStart))
	ends := splitList(row.Field(engine.FieldProteinEnd))

	var out []core.ProteinMatch
	for i, name := range names {
		if name == "" {
			continue
		}
		m := core.ProteinMatch{Name: name}
		if i < len(starts) {
			m.Start, _ = strconv.Atoi(starts[i])
		}
		if i < len(ends) {
			m.End, _ = strconv.Atoi(ends[i])
		}
		out = append(out, m)
	}
	return out
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
