package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// maxChain bounds how many links Dump records for deeply joined errors.
const maxChain = 16

// PostgresDiagnostics is the driver-independent view of a server error.
type PostgresDiagnostics struct {
	Code       string `json:"code"`
	Class      string `json:"class,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrorDump flattens an error tree for structured logs.
type ErrorDump struct {
	TopMessage string               `json:"top_message"`
	Code       Code                 `json:"code,omitempty"`
	Retryable  bool                 `json:"retryable"`
	Chain      []string             `json:"chain,omitempty"`
	Postgres   *PostgresDiagnostics `json:"postgres,omitempty"`
}

// Dump walks err depth first, following both Unwrap() error and the
// Unwrap() []error of joined errors.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Retryable: Retryable(err)}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	d.walk(err)
	d.Postgres = postgresDiagnostics(err)
	return d
}

func (d *ErrorDump) walk(err error) {
	if err == nil || len(d.Chain) >= maxChain {
		return
	}
	d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", err, err))
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			d.walk(inner)
		}
	case interface{ Unwrap() error }:
		d.walk(u.Unwrap())
	}
}

func postgresDiagnostics(err error) *PostgresDiagnostics {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PostgresDiagnostics{
			Code:       pgxErr.Code,
			Class:      sqlStateClass(pgxErr.Code),
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PostgresDiagnostics{
			Code:       string(pqErr.Code),
			Class:      sqlStateClass(string(pqErr.Code)),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}

// sqlStateClass names the SQLSTATE class from pq's table, for pgx errors too.
func sqlStateClass(code string) string {
	if len(code) < 2 {
		return ""
	}
	return pq.ErrorCode(code).Class().Name()
}

// LogFields returns the dump as logger fields. Empty postgres values are omitted.
func (d ErrorDump) LogFields() map[string]any {
	fields := map[string]any{
		"error_code":      d.Code,
		"error_chain":     d.Chain,
		"error_retryable": d.Retryable,
	}
	if d.Postgres == nil {
		return fields
	}
	for key, value := range map[string]string{
		"pg_code":       d.Postgres.Code,
		"pg_class":      d.Postgres.Class,
		"pg_constraint": d.Postgres.Constraint,
		"pg_table":      d.Postgres.Table,
		"pg_column":     d.Postgres.Column,
		"pg_detail":     d.Postgres.Detail,
		"pg_message":    d.Postgres.Message,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}
