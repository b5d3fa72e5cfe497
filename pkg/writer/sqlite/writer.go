// Package sqlite provides SQLite database writing for normalised PSMs
package sqlite

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/ChrisMcGann/phrp/pkg/core"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// Schema version written to HeaderTable
	schemaVersion = 1
)

// Header describes the conversion run
type Header struct {
	SourceFile  string
	ResultType  string
	Enzyme      string
	Description string
}

// Writer handles writing PSMs to SQLite database files
type Writer struct {
	db         *sql.DB
	tx         *sql.Tx
	outputPath string

	psmStmt     *sql.Stmt
	scoreStmt   *sql.Stmt
	modStmt     *sql.Stmt
	proteinStmt *sql.Stmt

	psmID int
}

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		psmID:      1,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	w.tx, err = db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := w.prepareStatements(); err != nil {
		w.tx.Rollback()
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS PSMs (
		PSMId INTEGER PRIMARY KEY,
		ScanNumber INTEGER,
		Charge INTEGER,
		Peptide TEXT,
		Prefix TEXT,
		Suffix TEXT,
		CleanSequence TEXT,
		ModifiedSequence TEXT,
		ModString TEXT,
		Protein TEXT,
		SequenceId INTEGER,
		MonoisotopicMass DOUBLE,
		PrecursorNeutralMass DOUBLE,
		MassErrorDa DOUBLE,
		MassErrorPPM DOUBLE,
		IsotopeShift INTEGER,
		TrypticTermini INTEGER,
		MissedCleavages INTEGER,
		CollisionMode TEXT,
		SourceFile TEXT,
		ResultType TEXT,
		RecordNumber INTEGER
	);

	CREATE TABLE IF NOT EXISTS PSMScores (
		PSMId INTEGER REFERENCES PSMs(PSMId),
		Name TEXT,
		Value TEXT
	);

	CREATE TABLE IF NOT EXISTS PSMModifications (
		PSMId INTEGER REFERENCES PSMs(PSMId),
		Residue TEXT,
		Position INTEGER,
		EndPosition INTEGER,
		Terminus TEXT,
		MassCorrectionTag TEXT,
		Symbol TEXT,
		Mass DOUBLE
	);

	CREATE TABLE IF NOT EXISTS PSMProteins (
		PSMId INTEGER REFERENCES PSMs(PSMId),
		Protein TEXT,
		ResidueStart INTEGER,
		ResidueEnd INTEGER
	);

	CREATE TABLE IF NOT EXISTS ModificationDefinitions (
		Symbol TEXT,
		Mass TEXT,
		TargetResidues TEXT,
		Type TEXT,
		MassCorrectionTag TEXT,
		AffectedAtom TEXT,
		OccurrenceCount INTEGER,
		AutoDefined BOOL
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		SourceFile TEXT,
		ResultType TEXT,
		Enzyme TEXT,
		PSMCount INTEGER,
		Description TEXT
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.psmStmt, err = w.tx.Prepare(`
		INSERT INTO PSMs (
			PSMId, ScanNumber, Charge, Peptide, Prefix, Suffix, CleanSequence,
			ModifiedSequence, ModString, Protein, SequenceId, MonoisotopicMass,
			PrecursorNeutralMass, MassErrorDa, MassErrorPPM, IsotopeShift,
			TrypticTermini, MissedCleavages, CollisionMode, SourceFile,
			ResultType, RecordNumber
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare PSM statement: %w", err)
	}

	w.scoreStmt, err = w.tx.Prepare(`INSERT INTO PSMScores (PSMId, Name, Value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare score statement: %w", err)
	}

	w.modStmt, err = w.tx.Prepare(`
		INSERT INTO PSMModifications (
			PSMId, Residue, Position, EndPosition, Terminus, MassCorrectionTag, Symbol, Mass
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare modification statement: %w", err)
	}

	w.proteinStmt, err = w.tx.Prepare(`INSERT INTO PSMProteins (PSMId, Protein, ResidueStart, ResidueEnd) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare protein statement: %w", err)
	}

	return nil
}

// WritePSM writes a single PSM with its scores, modifications and proteins
func (w *Writer) WritePSM(psm *core.PSM) error {
	_, err := w.psmStmt.Exec(
		w.psmID,
		psm.ScanNumber,
		psm.Charge,
		psm.Peptide,
		psm.Prefix,
		psm.Suffix,
		psm.CleanSequence,
		psm.ModifiedSequence(),
		psm.ModString(),
		psm.PrimaryProtein(),
		psm.SequenceID,
		psm.MonoisotopicMass,
		psm.PrecursorNeutralMass,
		psm.MassErrorDa,
		psm.MassErrorPPM,
		psm.IsotopeShift,
		psm.TrypticTermini,
		psm.MissedCleavages,
		psm.CollisionMode,
		psm.SourceFile,
		psm.SourceFormat,
		psm.RecordNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to insert PSM: %w", err)
	}

	// Sorted so the table order is stable across runs
	names := make([]string, 0, len(psm.Scores))
	for name := range psm.Scores {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := w.scoreStmt.Exec(w.psmID, name, psm.GetScore(name, "")); err != nil {
			return fmt.Errorf("failed to insert score %s: %w", name, err)
		}
	}

	for _, mod := range psm.Modifications {
		terminus := ""
		if mod.Terminus != 0 {
			terminus = string(mod.Terminus)
		}
		_, err := w.modStmt.Exec(
			w.psmID,
			string(mod.Residue),
			mod.Position,
			mod.EndPosition,
			terminus,
			mod.Modification.MassCorrectionTag,
			string(mod.Modification.Symbol),
			mod.MassDelta(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert modification: %w", err)
		}
	}

	for _, p := range psm.Proteins {
		if _, err := w.proteinStmt.Exec(w.psmID, p.Name, nullableInt(p.Start), nullableInt(p.End)); err != nil {
			return fmt.Errorf("failed to insert protein: %w", err)
		}
	}

	w.psmID++
	return nil
}

func nullableInt(v int) interface{} {
	if v <= 0 {
		return nil
	}
	return v
}

// Count returns the number of PSMs written so far
func (w *Writer) Count() int {
	return w.psmID - 1
}

// Finalize writes the catalog and header tables, commits and closes the database
func (w *Writer) Finalize(catalog *core.ModificationCatalog, header Header) error {
	if catalog != nil {
		for _, d := range catalog.Definitions() {
			_, err := w.tx.Exec(`
				INSERT INTO ModificationDefinitions (
					Symbol, Mass, TargetResidues, Type, MassCorrectionTag, AffectedAtom, OccurrenceCount, AutoDefined
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, string(d.Symbol), d.MassText, d.TargetResidues, d.Kind.String(), d.MassCorrectionTag,
				string(d.AffectedAtom), d.OccurrenceCount, d.AutoDefined)
			if err != nil {
				return fmt.Errorf("failed to insert modification definition: %w", err)
			}
		}
	}

	// Write HeaderTable
	_, err := w.tx.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, SourceFile, ResultType, Enzyme, PSMCount, Description)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, schemaVersion, time.Now().Format(headerDateFormat), header.SourceFile, header.ResultType, header.Enzyme, w.Count(), header.Description)
	if err != nil {
		return fmt.Errorf("failed to insert header: %w", err)
	}

	w.closeStatements()

	if err := w.tx.Commit(); err != nil {
		w.db.Close()
		return fmt.Errorf("failed to commit: %w", err)
	}
	w.tx = nil

	// Close database
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

func (w *Writer) closeStatements() {
	for _, stmt := range []*sql.Stmt{w.psmStmt, w.scoreStmt, w.modStmt, w.proteinStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
}

// Close abandons an unfinished database; rows written so far are rolled back.
func (w *Writer) Close() error {
	if w.tx == nil {
		return nil
	}
	w.closeStatements()
	w.tx.Rollback()
	w.tx = nil
	return w.db.Close()
}
