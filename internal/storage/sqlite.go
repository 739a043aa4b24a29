package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// sqliteBackend keeps every frame of a directory in a single database file.
type sqliteBackend struct{}

const frameSchema = `CREATE TABLE IF NOT EXISTS frames (
	frame        INTEGER PRIMARY KEY,
	t            REAL    NOT NULL,
	num_eqn      INTEGER NOT NULL,
	num_aux      INTEGER NOT NULL,
	num_cells    INTEGER NOT NULL,
	lower        REAL    NOT NULL,
	upper        REAL    NOT NULL,
	q            TEXT    NOT NULL,
	aux          TEXT,
	problem_data TEXT
)`

func sqlitePath(dir, prefix string) string {
	return filepath.Join(dir, withDefault(prefix, "frames")+".db")
}

func openFrameDB(path string) (*sql.DB, error) {
	dsn := "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(frameSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create frames table: %w", err)
	}
	return db, nil
}

// frameDBs keeps one handle per database file for the life of the process.
// A handle is dropped when its file has been removed or replaced.
var frameDBs = &dbPool{open: make(map[string]*pooledDB)}

type pooledDB struct {
	db   *sql.DB
	info os.FileInfo
}

type dbPool struct {
	mu   sync.Mutex
	open map[string]*pooledDB
}

func (p *dbPool) get(path string) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.open[path]; ok {
		if fi, err := os.Stat(path); err == nil && os.SameFile(fi, e.info) {
			return e.db, nil
		}
		_ = e.db.Close()
		delete(p.open, path)
	}
	db, err := openFrameDB(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("stat sqlite db: %w", err)
	}
	p.open[path] = &pooledDB{db: db, info: fi}
	return db, nil
}

func (p *dbPool) closeAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for path, e := range p.open {
		errs = append(errs, e.db.Close())
		delete(p.open, path)
	}
	return errors.Join(errs...)
}

// CloseDatabases closes every sqlite frame database opened by this process.
func CloseDatabases() error { return frameDBs.closeAll() }

func (sqliteBackend) Write(dir, prefix string, f *Frame, opts WriteOptions) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	db, err := frameDBs.get(sqlitePath(dir, prefix))
	if err != nil {
		return err
	}

	if !opts.Clobber {
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM frames WHERE frame = ?`, f.Frame).Scan(&n); err != nil {
			return fmt.Errorf("query frame %d: %w", f.Frame, err)
		}
		if n > 0 {
			return fmt.Errorf("%w: frame %d in %s", ErrFileExists, f.Frame, sqlitePath(dir, prefix))
		}
	}

	q, err := json.Marshal(f.Q)
	if err != nil {
		return err
	}
	var aux []byte
	numAux := 0
	if opts.WriteAux && f.NumAux > 0 {
		numAux = f.NumAux
		if aux, err = json.Marshal(f.Aux); err != nil {
			return err
		}
	}
	var pd []byte
	if len(f.ProblemData) > 0 {
		if pd, err = json.Marshal(f.ProblemData); err != nil {
			return err
		}
	}

	_, err = db.Exec(`INSERT OR REPLACE INTO frames
		(frame, t, num_eqn, num_aux, num_cells, lower, upper, q, aux, problem_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Frame, f.T, f.NumEqn, numAux, f.NumCells, f.Lower, f.Upper, string(q), nullable(aux), nullable(pd))
	if err != nil {
		return fmt.Errorf("insert frame %d: %w", f.Frame, err)
	}
	return nil
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func (sqliteBackend) Read(dir, prefix string, frame int) (*Frame, error) {
	path := sqlitePath(dir, prefix)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFrameNotFound, path)
	}
	db, err := frameDBs.get(path)
	if err != nil {
		return nil, err
	}

	f := &Frame{Frame: frame}
	var q string
	var aux, pd sql.NullString
	err = db.QueryRow(`SELECT t, num_eqn, num_aux, num_cells, lower, upper, q, aux, problem_data
		FROM frames WHERE frame = ?`, frame).
		Scan(&f.T, &f.NumEqn, &f.NumAux, &f.NumCells, &f.Lower, &f.Upper, &q, &aux, &pd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: frame %d in %s", ErrFrameNotFound, frame, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read frame %d: %w", frame, err)
	}
	if err := json.Unmarshal([]byte(q), &f.Q); err != nil {
		return nil, fmt.Errorf("decode q: %w", err)
	}
	if aux.Valid {
		if err := json.Unmarshal([]byte(aux.String), &f.Aux); err != nil {
			return nil, fmt.Errorf("decode aux: %w", err)
		}
	}
	if pd.Valid {
		if err := json.Unmarshal([]byte(pd.String), &f.ProblemData); err != nil {
			return nil, fmt.Errorf("decode problem data: %w", err)
		}
	}
	return f, nil
}
