// Package sqlite provides SQLite database writing for empirical compound results
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/empcpd/pkg/core"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// Version of the table layout written to HeaderTable
	schemaVersion = 1
)

// Header describes the run that produced the results.
type Header struct {
	RunID            string
	ReferenceVersion string
	Description      string
}

// Writer handles writing empirical compounds to SQLite database files
type Writer struct {
	db            *sql.DB
	outputPath    string
	header        Header
	empcpdStmt    *sql.Stmt
	memberStmt    *sql.Stmt
	relationStmt  *sql.Stmt
	identityStmt  *sql.Stmt
	rejectionStmt *sql.Stmt
	empcpdID      int
	written       int
}

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string, header Header) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		header:     header,
		empcpdID:   1,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS EmpCpdTable (
		EmpCpdId INTEGER PRIMARY KEY,
		InterimId TEXT NOT NULL,
		IonizationMode TEXT,
		NeutralBaseMass DOUBLE,
		MassConfidence TEXT,
		PrimaryIonPresent BOOL,
		EvidenceScore DOUBLE,
		Signatures TEXT,
		Record BLOB_TEXT
	);

	CREATE TABLE IF NOT EXISTS MemberTable (
		EmpCpdId INTEGER REFERENCES EmpCpdTable(EmpCpdId),
		IonId TEXT,
		MZ DOUBLE,
		RetentionTime DOUBLE,
		Intensity DOUBLE,
		IonRelation TEXT,
		Sample TEXT
	);

	CREATE TABLE IF NOT EXISTS RelationTable (
		EmpCpdId INTEGER REFERENCES EmpCpdTable(EmpCpdId),
		IonA TEXT,
		IonB TEXT,
		Signature TEXT,
		ObservedDelta DOUBLE,
		WithinTolerance BOOL
	);

	CREATE TABLE IF NOT EXISTS IdentityTable (
		EmpCpdId INTEGER REFERENCES EmpCpdTable(EmpCpdId),
		Rank INTEGER,
		Compounds TEXT,
		Score DOUBLE,
		ScoreKind TEXT
	);

	CREATE TABLE IF NOT EXISTS RejectionTable (
		Line INTEGER,
		IonId TEXT,
		Reason TEXT
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		RunId TEXT,
		CreationDate TEXT,
		ReferenceVersion TEXT,
		NoofEmpCpds INTEGER,
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

	w.empcpdStmt, err = w.db.Prepare(`
		INSERT INTO EmpCpdTable (
			EmpCpdId, InterimId, IonizationMode, NeutralBaseMass, MassConfidence,
			PrimaryIonPresent, EvidenceScore, Signatures, Record
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare empirical compound statement: %w", err)
	}

	w.memberStmt, err = w.db.Prepare(`
		INSERT INTO MemberTable (EmpCpdId, IonId, MZ, RetentionTime, Intensity, IonRelation, Sample)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare member statement: %w", err)
	}

	w.relationStmt, err = w.db.Prepare(`
		INSERT INTO RelationTable (EmpCpdId, IonA, IonB, Signature, ObservedDelta, WithinTolerance)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare relation statement: %w", err)
	}

	w.identityStmt, err = w.db.Prepare(`
		INSERT INTO IdentityTable (EmpCpdId, Rank, Compounds, Score, ScoreKind)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare identity statement: %w", err)
	}

	w.rejectionStmt, err = w.db.Prepare(`
		INSERT INTO RejectionTable (Line, IonId, Reason) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare rejection statement: %w", err)
	}

	return nil
}

// WriteEmpCpd writes a single empirical compound with its members, relations and identity table
func (w *Writer) WriteEmpCpd(c *core.EmpiricalCompound) error {
	record, err := core.MarshalEmpCpd(c)
	if err != nil {
		return err
	}

	_, err = w.empcpdStmt.Exec(
		w.empcpdID,                        // EmpCpdId
		c.InterimID,                       // InterimId
		string(c.Mode),                    // IonizationMode
		c.NeutralBaseMass,                 // NeutralBaseMass
		string(c.MassConfidence),          // MassConfidence
		c.PrimaryIonPresent,               // PrimaryIonPresent
		c.EvidenceScore,                   // EvidenceScore
		strings.Join(c.Signatures(), ";"), // Signatures
		string(record),                    // Record
	)
	if err != nil {
		return fmt.Errorf("failed to insert empirical compound %s: %w", c.InterimID, err)
	}

	for _, m := range c.Members {
		if _, err := w.memberStmt.Exec(w.empcpdID, m.ID, m.MZ, m.RetentionTime, m.Intensity, m.IonRelation, m.Sample); err != nil {
			return fmt.Errorf("failed to insert member %s: %w", m.ID, err)
		}
	}

	for _, r := range c.Relations {
		if _, err := w.relationStmt.Exec(w.empcpdID, r.IonA, r.IonB, r.Signature, r.ObservedDelta, r.WithinTolerance); err != nil {
			return fmt.Errorf("failed to insert relation %s-%s: %w", r.IonA, r.IonB, err)
		}
	}

	for rank, e := range c.Identity {
		if _, err := w.identityStmt.Exec(w.empcpdID, rank+1, e.Key(), e.Score, string(e.Kind)); err != nil {
			return fmt.Errorf("failed to insert identity for %s: %w", c.InterimID, err)
		}
	}

	w.empcpdID++
	w.written++
	return nil
}

// WriteRejection records an ion record that was excluded from the run
func (w *Writer) WriteRejection(line int, ionID string, reason error) error {
	if _, err := w.rejectionStmt.Exec(line, ionID, reason.Error()); err != nil {
		return fmt.Errorf("failed to insert rejection: %w", err)
	}
	return nil
}

// Finalize writes the header table and closes the database
func (w *Writer) Finalize() error {
	_, err := w.db.Exec(`
		INSERT INTO HeaderTable (version, RunId, CreationDate, ReferenceVersion, NoofEmpCpds, Description)
		VALUES (?, ?, ?, ?, ?, ?)
	`, schemaVersion, w.header.RunID, time.Now().Format(headerDateFormat), w.header.ReferenceVersion, w.written, w.header.Description)
	if err != nil {
		return fmt.Errorf("failed to insert header: %w", err)
	}

	// Close prepared statements
	for _, stmt := range []*sql.Stmt{w.empcpdStmt, w.memberStmt, w.relationStmt, w.identityStmt, w.rejectionStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}

	// Close database
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}
