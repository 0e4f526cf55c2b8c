package locpak

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// RunRecord is one row of the rebuild history.
type RunRecord struct {
	ID           string
	Package      string
	Version      string
	BuildString  string
	Status       string
	Failure      string
	Artifact     string
	B3Sum        string
	CondaVersion string
	GitCommit    string
	GitDirty     bool
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Ledger keeps the run history in SQLite under the state dir.
type Ledger struct {
	db *sql.DB
}

func openLedger(stateDir string) (*Ledger, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filepath.Join(stateDir, "runs.db"))
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize ledger schema: %w", err)
	}
	return l, nil
}

func (l *Ledger) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		package TEXT NOT NULL,
		version TEXT NOT NULL,
		build_string TEXT,
		status TEXT NOT NULL,
		failure TEXT,
		artifact TEXT,
		b3sum TEXT,
		conda_version TEXT,
		git_commit TEXT,
		git_dirty INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Record appends one run.
func (l *Ledger) Record(rec RunRecord) error {
	dirty := 0
	if rec.GitDirty {
		dirty = 1
	}
	_, err := l.db.Exec(
		`INSERT INTO runs (id, package, version, build_string, status, failure,
			artifact, b3sum, conda_version, git_commit, git_dirty, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Package, rec.Version, rec.BuildString, rec.Status, rec.Failure,
		rec.Artifact, rec.B3Sum, rec.CondaVersion, rec.GitCommit, dirty,
		rec.StartedAt.Unix(), rec.FinishedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (l *Ledger) Recent(limit int) ([]RunRecord, error) {
	rows, err := l.db.Query(
		`SELECT id, package, version, build_string, status, failure,
			artifact, b3sum, conda_version, git_commit, git_dirty, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var dirty int
		var started, finished int64
		err := rows.Scan(&rec.ID, &rec.Package, &rec.Version, &rec.BuildString,
			&rec.Status, &rec.Failure, &rec.Artifact, &rec.B3Sum,
			&rec.CondaVersion, &rec.GitCommit, &dirty, &started, &finished)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.GitDirty = dirty != 0
		rec.StartedAt = time.Unix(started, 0)
		rec.FinishedAt = time.Unix(finished, 0)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return recs, nil
}

// Last returns the newest run, or nil when the ledger is empty.
func (l *Ledger) Last() (*RunRecord, error) {
	recs, err := l.Recent(1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// appendRun writes the report's ledger row.
func appendRun(report *RebuildReport) error {
	l, err := openLedger(StateDir)
	if err != nil {
		return err
	}
	defer l.Close()

	status := "success"
	if report.Failure != "" {
		status = "failed"
	}
	return l.Record(RunRecord{
		ID:           report.RunID,
		Package:      report.Package,
		Version:      report.Version,
		BuildString:  report.BuildString,
		Status:       status,
		Failure:      report.Failure,
		Artifact:     report.Artifact,
		B3Sum:        report.B3Sum,
		CondaVersion: report.CondaVersion,
		GitCommit:    report.GitCommit,
		GitDirty:     report.GitDirty,
		StartedAt:    report.StartedAt,
		FinishedAt:   report.FinishedAt,
	})
}

// handleHistoryCommand lists recent runs, newest first.
func handleHistoryCommand(args []string, cfg *Config) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("n", 20, "number of runs to show")
	fs.Parse(args)

	l, err := openLedger(StateDir)
	if err != nil {
		return err
	}
	defer l.Close()

	recs, err := l.Recent(*limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		cPrintln(colInfo, "No runs recorded yet")
		return nil
	}

	lines := []string{fmt.Sprintf("%-10s %-20s %-12s %-8s %-10s %s",
		"WHEN", "PACKAGE", "VERSION", "STATUS", "COMMIT", "DETAIL")}
	for _, rec := range recs {
		commit := rec.GitCommit
		if rec.GitDirty && commit != "" {
			commit += "+"
		}
		detail := rec.Failure
		if detail == "" && rec.Artifact != "" {
			detail = filepath.Base(rec.Artifact)
		}
		lines = append(lines, fmt.Sprintf("%-10s %-20s %-12s %-8s %-10s %s",
			rec.StartedAt.Format("Jan 02"), rec.Package, rec.Version,
			rec.Status, commit, detail))
	}
	return runPager("Run history", lines)
}
