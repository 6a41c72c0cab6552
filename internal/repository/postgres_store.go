package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps documents as JSONB rows in the documents table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const selectColumns = `id, organization_id, version, created_at, updated_at, body`

func (s *PostgresStore) Create(ctx context.Context, collection string, rec Record) (Record, error) {
	const query = `
        INSERT INTO documents (collection, id, organization_id, version, body, created_at, updated_at)
        VALUES ($1,$2,$3,1,$4,$5,$6)
        ON CONFLICT (collection, id) DO NOTHING
        RETURNING version`
	err := s.pool.QueryRow(ctx, query,
		collection,
		rec.ID,
		rec.OrganizationID,
		[]byte(rec.Body),
		rec.CreatedAt,
		rec.UpdatedAt,
	).Scan(&rec.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrAlreadyExists
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id, orgID string) (Record, error) {
	query := `SELECT ` + selectColumns + ` FROM documents WHERE collection=$1 AND id=$2 AND organization_id=$3`
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, collection, id, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *PostgresStore) Update(ctx context.Context, collection string, rec Record, expectedVersion int64) (Record, error) {
	query := `
        UPDATE documents SET body=$1, updated_at=$2, version=version+1
        WHERE collection=$3 AND id=$4 AND organization_id=$5`
	args := []any{[]byte(rec.Body), rec.UpdatedAt, collection, rec.ID, rec.OrganizationID}
	if expectedVersion > 0 {
		args = append(args, expectedVersion)
		query += fmt.Sprintf(" AND version=$%d", len(args))
	}
	query += " RETURNING version, created_at"

	err := s.pool.QueryRow(ctx, query, args...).Scan(&rec.Version, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		if expectedVersion > 0 {
			if _, getErr := s.Get(ctx, collection, rec.ID, rec.OrganizationID); getErr == nil {
				return Record{}, ErrVersionConflict
			}
		}
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id, orgID string) error {
	cmd, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2 AND organization_id=$3`, collection, id, orgID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, collection, orgID string, q Query) ([]Record, error) {
	where, args := buildWhere(collection, orgID, q)
	query := `SELECT ` + selectColumns + ` FROM documents WHERE ` + where

	column, colArgs := orderColumn(q.sortKey(), len(args))
	args = append(args, colArgs...)
	direction := "ASC"
	if q.sortDescending() {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id %s", column, direction, direction)

	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context, collection, orgID string, q Query) (int, error) {
	where, args := buildWhere(collection, orgID, q)
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE `+where, args...).Scan(&count)
	return count, err
}

func (s *PostgresStore) FindAcrossTenants(ctx context.Context, collection, field, value string) ([]Record, error) {
	query := `SELECT ` + selectColumns + ` FROM documents WHERE collection=$1 AND body->>$2 = $3 ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, collection, field, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// buildWhere always starts with the collection and organization predicates.
func buildWhere(collection, orgID string, q Query) (string, []any) {
	args := []any{collection, orgID}
	clauses := []string{"collection=$1", "organization_id=$2"}

	for key, value := range q.Equals {
		args = append(args, key, value)
		clauses = append(clauses, fmt.Sprintf("body->>$%d = $%d", len(args)-1, len(args)))
	}
	for key, values := range q.In {
		if len(values) == 0 {
			continue
		}
		args = append(args, key)
		keyPos := len(args)
		placeholders := make([]string, len(values))
		for i, v := range values {
			args = append(args, v)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("body->>$%d IN (%s)", keyPos, strings.Join(placeholders, ",")))
	}
	if term := q.searchTerm(); term != "" && len(q.SearchFields) > 0 {
		args = append(args, "%"+escapeLike(term)+"%")
		termPos := len(args)
		parts := make([]string, len(q.SearchFields))
		for i, field := range q.SearchFields {
			args = append(args, field)
			parts[i] = fmt.Sprintf("LOWER(body->>$%d) LIKE $%d", len(args), termPos)
		}
		clauses = append(clauses, "("+strings.Join(parts, " OR ")+")")
	}
	if q.CreatedFrom != nil {
		args = append(args, *q.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if q.CreatedTo != nil {
		args = append(args, *q.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func orderColumn(key string, argCount int) (string, []any) {
	switch key {
	case sortCreatedAt:
		return "created_at", nil
	case sortUpdatedAt:
		return "updated_at", nil
	default:
		return fmt.Sprintf("body->>$%d", argCount+1), []any{key}
	}
}

func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(term)
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var body []byte
	if err := row.Scan(&rec.ID, &rec.OrganizationID, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt, &body); err != nil {
		return Record{}, err
	}
	rec.Body = body
	return rec, nil
}
