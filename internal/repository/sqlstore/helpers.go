package sqlstore

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"nodeclass/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ============================================================================
// Row Scanners
// ============================================================================
//
// CRITICAL: column order must match between the *Columns constant and the
// scanArgs() slice of the matching row type.

// nodeRow holds all columns from a node query for scanning
type nodeRow struct {
	ID          int64
	Name        string
	Description sql.NullString
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match nodeColumns order exactly: id, name, description, created_at, updated_at
func (r *nodeRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,          // 1
		&r.Name,        // 2
		&r.Description, // 3
		&r.CreatedAt,   // 4
		&r.UpdatedAt,   // 5
	}
}

// toDomain converts the scanned row to a domain.Node
func (r *nodeRow) toDomain() *domain.Node {
	return &domain.Node{
		ID:          r.ID,
		Name:        r.Name,
		Description: nullToString(r.Description),
		Parameters:  make(map[string]string),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

const nodeColumns = `id, name, description, created_at, updated_at`

// groupRow holds all columns from a group query for scanning
type groupRow struct {
	ID          int64
	Name        string
	Description sql.NullString
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match groupColumns order exactly: id, name, description, created_at, updated_at
func (r *groupRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,          // 1
		&r.Name,        // 2
		&r.Description, // 3
		&r.CreatedAt,   // 4
		&r.UpdatedAt,   // 5
	}
}

// toDomain converts the scanned row to a domain.NodeGroup
func (r *groupRow) toDomain() *domain.NodeGroup {
	return &domain.NodeGroup{
		ID:          r.ID,
		Name:        r.Name,
		Description: nullToString(r.Description),
		Parameters:  make(map[string]string),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

const groupColumns = `id, name, description, created_at, updated_at`

const classColumns = `id, name, created_at`

// ============================================================================
// Scan Helpers
// ============================================================================

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanClass(s scanner) (*domain.NodeClass, error) {
	var c domain.NodeClass
	if err := s.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// collectIDs drains a single-column id result set
func collectIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// dedupeIDs returns the distinct ids in ascending order
func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
