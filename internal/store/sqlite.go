package store

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/loadtest"
)

const table = "loadtests"

// DefaultDSN is the database file used when no dsn is given
const DefaultDSN = "surge.db"

var columns = []string{"definition", "state", "result", "last_error", "started_at", "finished_at"}

// SQLite is a Store backed by a sqlite database. Definitions and results are stored as JSON columns next
// to the fields we filter and sort on
type SQLite struct {
	db *sql.DB
	qb sq.StatementBuilderType
}

var _ Store = &SQLite{}

// OpenSQLite opens (creating if needed) the database at dsn and migrates it to the latest schema.
// Use ":memory:" for a throwaway database
func OpenSQLite(dsn string) (*SQLite, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// sqlite serializes writers anyway, and an in memory database only exists on its own connection
	db.SetMaxOpenConns(1)

	if err := migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to run migrations")
	}
	return &SQLite{db: db, qb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}
	return s.db.ExecContext(ctx, query, args...)
}

// execOne runs an update or delete that must touch exactly the record id
func (s *SQLite) execOne(ctx context.Context, id string, b sq.Sqlizer) error {
	res, err := s.exec(ctx, b)
	if err != nil {
		return errors.Wrapf(err, "failed to update %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return &errors2.NotFoundError{ID: id}
	}
	return nil
}

func (s *SQLite) Put(ctx context.Context, def *loadtest.Definition) error {
	data, err := loadtest.MarshalDefinition(def)
	if err != nil {
		return errors.Wrap(err, "failed to encode definition")
	}

	var exists int
	query, args, err := s.qb.Select("COUNT(1)").From(table).Where(sq.Eq{"id": def.ID}).ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build query")
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return errors.Wrap(err, "failed to check id")
	}
	if exists > 0 {
		return &ErrDuplicateID{ID: def.ID}
	}

	_, err = s.exec(ctx, s.qb.Insert(table).
		Columns("id", "name", "collection_id", "definition", "state", "created_at").
		Values(def.ID, def.Name, def.CollectionID, string(data), string(loadtest.StateNotStarted), def.CreatedAt.UnixNano()))
	if err != nil {
		return errors.Wrapf(err, "failed to insert %s", def.ID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		def, state, lastError string
		result                sql.NullString
		startedAt, finishedAt int64
	)
	if err := row.Scan(&def, &state, &result, &lastError, &startedAt, &finishedAt); err != nil {
		return nil, err
	}

	r := &Record{State: loadtest.RunState(state), LastError: lastError}
	var err error
	if r.Definition, err = loadtest.UnmarshalDefinition([]byte(def)); err != nil {
		return nil, errors.Wrap(err, "failed to decode definition")
	}
	if result.Valid && result.String != "" {
		if r.Result, err = loadtest.UnmarshalResult([]byte(result.String)); err != nil {
			return nil, errors.Wrap(err, "failed to decode result")
		}
	}
	r.StartedAt = fromUnixNano(startedAt)
	r.FinishedAt = fromUnixNano(finishedAt)
	return r, nil
}

func fromUnixNano(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func (s *SQLite) Get(ctx context.Context, id string) (*Record, error) {
	query, args, err := s.qb.Select(columns...).From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}
	r, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, &errors2.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get %s", id)
	}
	return r, nil
}

func (s *SQLite) List(ctx context.Context, f Filter) ([]*Record, error) {
	b := s.qb.Select(columns...).From(table).OrderBy("created_at DESC", "id DESC")
	if f.CollectionID != "" {
		b = b.Where(sq.Eq{"collection_id": f.CollectionID})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list load tests")
	}
	defer rows.Close()

	ret := make([]*Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan load test")
		}
		ret = append(ret, r)
	}
	return ret, errors.Wrap(rows.Err(), "failed to iterate load tests")
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	return s.execOne(ctx, id, s.qb.Delete(table).Where(sq.Eq{"id": id}))
}

func (s *SQLite) MarkRunning(ctx context.Context, id string, at time.Time) error {
	return s.execOne(ctx, id, s.qb.Update(table).
		Set("state", string(loadtest.StateRunning)).
		Set("started_at", toUnixNano(at)).
		Set("finished_at", 0).
		Set("last_error", "").
		Where(sq.Eq{"id": id}))
}

func (s *SQLite) AttachResult(ctx context.Context, id string, res *loadtest.RunResult) error {
	data, err := loadtest.MarshalResult(res)
	if err != nil {
		return errors.Wrap(err, "failed to encode result")
	}
	return s.execOne(ctx, id, s.qb.Update(table).
		Set("state", string(res.State())).
		Set("result", string(data)).
		Set("finished_at", toUnixNano(res.FinishedAt)).
		Set("last_error", "").
		Where(sq.Eq{"id": id}))
}

func (s *SQLite) MarkFailed(ctx context.Context, id string, reason string, at time.Time) error {
	return s.execOne(ctx, id, s.qb.Update(table).
		Set("state", string(loadtest.StateFailed)).
		Set("last_error", reason).
		Set("finished_at", toUnixNano(at)).
		Where(sq.Eq{"id": id}))
}

func (s *SQLite) Reconcile(ctx context.Context, reason string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin reconcile")
	}
	defer tx.Rollback()

	query, args, err := s.qb.Select("id").From(table).Where(sq.Eq{"state": string(loadtest.StateRunning)}).OrderBy("id").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find running load tests")
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan id")
		}
		ids = append(ids, id)
	}
	rows.Close()
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err = s.qb.Update(table).
		Set("state", string(loadtest.StateFailed)).
		Set("last_error", reason).
		Set("finished_at", time.Now().UnixNano()).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to fail running load tests")
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit reconcile")
	}
	return ids, nil
}
