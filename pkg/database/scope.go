package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx shared by pooled connections and transactions.
// Repositories issue every statement through it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ Querier = (*pgxpool.Conn)(nil)
	_ Querier = (pgx.Tx)(nil)
)

type contextKey string

const (
	// ScopeKey is the context key for storing the request-scoped database connection.
	ScopeKey contextKey = "dbScope"
)

// Scope holds one pooled connection for the lifetime of a request or command,
// plus the transaction open on it, if any.
type Scope struct {
	Conn *pgxpool.Conn
	tx   pgx.Tx
}

// Querier returns the open transaction when there is one, else the connection.
func (s *Scope) Querier() Querier {
	if s.tx != nil {
		return s.tx
	}
	return s.Conn
}

// InTransaction reports whether statements on this scope run inside a transaction.
func (s *Scope) InTransaction() bool {
	return s.tx != nil
}

// Close releases the connection back to the pool.
// This MUST be called, typically with defer scope.Close().
func (s *Scope) Close() {
	if s.Conn == nil {
		return
	}
	s.Conn.Release()
	s.Conn = nil
}

// Acquire takes a connection from the pool and wraps it in a Scope.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) Acquire(ctx context.Context) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Scope{Conn: conn}, nil
}

// WithScope returns a context carrying a fresh Scope.
// The cleanup function must be called when the scope is no longer needed.
func (db *DB) WithScope(ctx context.Context) (context.Context, func(), error) {
	scope, err := db.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return SetScope(ctx, scope), scope.Close, nil
}

// GetScope retrieves the database scope from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	return scope, ok && scope != nil && scope.Conn != nil
}

// SetScope stores the database scope in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// GetQuerier returns the Querier of the scope in context.
func GetQuerier(ctx context.Context) (Querier, bool) {
	scope, ok := GetScope(ctx)
	if !ok {
		return nil, false
	}
	return scope.Querier(), true
}
