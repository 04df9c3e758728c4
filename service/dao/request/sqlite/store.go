// Package sqlite provides a SQLite-backed request store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/viant/mediaflow/internal/sqlitemigrate"
	"github.com/viant/mediaflow/model"
	"github.com/viant/mediaflow/service/dao"
	"github.com/viant/mediaflow/service/dao/request"
	"github.com/viant/mediaflow/service/dao/request/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const requestColumns = `id, number, status, details, start_date, end_date, created_by, created_at,
       requester_sign_at, manager_sign_at, security_sign_at, it_sign_at, token, token_stage, token_expires_at`

// Store persists requests and their decision ledger in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ request.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func timePtr(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	ret := fromMillis(value.Int64)
	return &ret
}

// Open opens a SQLite request store at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer connection keeps units of work strictly serialized
	sqlDB.SetMaxOpenConns(1)
	if err = sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err = sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Create inserts a new request and assigns its ID.
func (s *Store) Create(ctx context.Context, r *model.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r == nil {
		return dao.ErrNilEntity
	}
	details, err := json.Marshal(r.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	token, tokenStage, tokenExpiresAt := tokenColumns(r.Token)
	result, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO requests (number, status, details, start_date, end_date, created_by, created_at,
		                       requester_sign_at, manager_sign_at, security_sign_at, it_sign_at, token, token_stage, token_expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Number, string(r.Status), string(details),
		nullMillis(r.StartDate), nullMillis(r.EndDate),
		r.CreatedBy, toMillis(r.CreatedAt),
		nullMillis(r.RequesterSignAt), nullMillis(r.ManagerSignAt), nullMillis(r.SecuritySignAt), nullMillis(r.ITSignAt),
		token, tokenStage, tokenExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: request number %s", dao.ErrDuplicate, r.Number)
		}
		return fmt.Errorf("create request: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	r.ID = id
	return nil
}

// Load returns request id.
func (s *Store) Load(ctx context.Context, id int64) (*model.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return loadRequest(ctx, s.sqlDB, id)
}

// List returns matching requests, newest first.
func (s *Store) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := "SELECT " + requestColumns + " FROM requests"
	var conditions []string
	var args []interface{}
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != dao.StatusParameter {
			continue
		}
		values := statusValues(parameter.Value)
		if len(values) == 0 {
			return []*model.Request{}, nil
		}
		conditions = append(conditions, "status IN (?"+strings.Repeat(", ?", len(values)-1)+")")
		for _, value := range values {
			args = append(args, value)
		}
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()
	var ret []*model.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("list requests: %w", err)
		}
		ret = append(ret, r)
	}
	return ret, rows.Err()
}

// Decisions returns the ledger of request id in insertion order.
func (s *Store) Decisions(ctx context.Context, id int64) ([]*model.Decision, error) {
	if _, err := s.Load(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, request_id, stage, decision, notes, actor, decided_at
		   FROM decisions
		  WHERE request_id = ?
		  ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()
	ret := []*model.Decision{}
	for rows.Next() {
		d := &model.Decision{}
		var stage, label string
		var decidedAt int64
		if err = rows.Scan(&d.ID, &d.RequestID, &stage, &label, &d.Notes, &d.Actor, &decidedAt); err != nil {
			return nil, fmt.Errorf("list decisions: %w", err)
		}
		d.Stage = model.Stage(stage)
		d.Label = model.Label(label)
		d.DecidedAt = fromMillis(decidedAt)
		ret = append(ret, d)
	}
	return ret, rows.Err()
}

// WithTx runs fn inside an immediate SQLite transaction. The request row is
// updated conditionally on the status it was read with.
func (s *Store) WithTx(ctx context.Context, id int64, fn func(tx request.Tx) error) (err error) {
	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()
	current, err := loadRequest(ctx, sqlTx, id)
	if err != nil {
		return err
	}
	t := &tx{ctx: ctx, sqlTx: sqlTx, status: current.Status, current: current}
	if err = fn(t); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func loadRequest(ctx context.Context, q queryer, id int64) (*model.Request, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", dao.ErrInvalidID, id)
	}
	row := q.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM requests WHERE id = ?", id)
	r, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: request %d", dao.ErrNotFound, id)
		}
		return nil, fmt.Errorf("load request %d: %w", id, err)
	}
	return r, nil
}

func scanRequest(row scanner) (*model.Request, error) {
	r := &model.Request{}
	var status, details string
	var createdAt int64
	var startDate, endDate, requesterSignAt, managerSignAt, securitySignAt, itSignAt, tokenExpiresAt sql.NullInt64
	var token, tokenStage sql.NullString
	err := row.Scan(&r.ID, &r.Number, &status, &details, &startDate, &endDate, &r.CreatedBy, &createdAt,
		&requesterSignAt, &managerSignAt, &securitySignAt, &itSignAt, &token, &tokenStage, &tokenExpiresAt)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal([]byte(details), &r.Details); err != nil {
		return nil, fmt.Errorf("unmarshal details: %w", err)
	}
	r.Status = model.Status(status)
	r.CreatedAt = fromMillis(createdAt)
	r.StartDate = timePtr(startDate)
	r.EndDate = timePtr(endDate)
	r.RequesterSignAt = timePtr(requesterSignAt)
	r.ManagerSignAt = timePtr(managerSignAt)
	r.SecuritySignAt = timePtr(securitySignAt)
	r.ITSignAt = timePtr(itSignAt)
	if token.Valid && tokenExpiresAt.Valid {
		r.Token = &model.ActionToken{Value: token.String, Stage: model.Stage(tokenStage.String), ExpiresAt: fromMillis(tokenExpiresAt.Int64)}
	}
	return r, nil
}

func tokenColumns(token *model.ActionToken) (sql.NullString, sql.NullString, sql.NullInt64) {
	if token == nil {
		return sql.NullString{}, sql.NullString{}, sql.NullInt64{}
	}
	return sql.NullString{String: token.Value, Valid: true},
		sql.NullString{String: string(token.Stage), Valid: true},
		sql.NullInt64{Int64: toMillis(token.ExpiresAt), Valid: true}
}

func statusValues(value interface{}) []string {
	switch actual := value.(type) {
	case string:
		return []string{actual}
	case model.Status:
		return []string{string(actual)}
	case []string:
		return actual
	case []model.Status:
		ret := make([]string, 0, len(actual))
		for _, status := range actual {
			ret = append(ret, string(status))
		}
		return ret
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

type tx struct {
	ctx     context.Context
	sqlTx   *sql.Tx
	status  model.Status
	current *model.Request
}

func (t *tx) Request() *model.Request { return t.current.Clone() }

func (t *tx) Save(r *model.Request) error {
	if r == nil {
		return dao.ErrNilEntity
	}
	if r.ID != t.current.ID {
		return fmt.Errorf("%w: %d", dao.ErrInvalidID, r.ID)
	}
	if err := request.CheckStatusChange(t.status, r.Status); err != nil {
		return err
	}
	details, err := json.Marshal(r.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	token, tokenStage, tokenExpiresAt := tokenColumns(r.Token)
	result, err := t.sqlTx.ExecContext(t.ctx,
		`UPDATE requests
		    SET status = ?, details = ?, start_date = ?, end_date = ?,
		        requester_sign_at = ?, manager_sign_at = ?, security_sign_at = ?, it_sign_at = ?,
		        token = ?, token_stage = ?, token_expires_at = ?
		  WHERE id = ? AND status = ?`,
		string(r.Status), string(details), nullMillis(r.StartDate), nullMillis(r.EndDate),
		nullMillis(r.RequesterSignAt), nullMillis(r.ManagerSignAt), nullMillis(r.SecuritySignAt), nullMillis(r.ITSignAt),
		token, tokenStage, tokenExpiresAt,
		r.ID, string(t.current.Status),
	)
	if err != nil {
		return fmt.Errorf("update request %d: %w", r.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request %d: %w", r.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: request %d is no longer %s", dao.ErrConflict, r.ID, t.current.Status)
	}
	t.current = r.Clone()
	return nil
}

func (t *tx) Append(d *model.Decision) error {
	if err := request.CheckDecision(t.current.ID, d); err != nil {
		return err
	}
	_, err := t.sqlTx.ExecContext(t.ctx,
		`INSERT INTO decisions (id, request_id, stage, decision, notes, actor, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.RequestID, string(d.Stage), string(d.Label), d.Notes, d.Actor, toMillis(d.DecidedAt))
	if err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	return nil
}
