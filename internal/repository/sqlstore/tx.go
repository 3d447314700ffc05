package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"nodeclass/internal/domain"
)

// tx implements repository.Tx on a database/sql transaction
type tx struct {
	tx *sql.Tx
	d  dialect
}

func (t *tx) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.d.rebind(query), args...)
}

func (t *tx) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.d.rebind(query), args...)
}

func (t *tx) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.d.rebind(query), args...)
}

// insertID runs an INSERT ... RETURNING id statement
func (t *tx) insertID(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var id int64
	err := t.queryRow(ctx, query+` RETURNING id`, args...).Scan(&id)
	return id, err
}

// ============================================================================
// Graph Snapshot
// ============================================================================

// LoadGraph reads every entity and relation row
func (t *tx) LoadGraph(ctx context.Context) (*domain.GraphData, error) {
	graph := domain.NewGraphData()

	nodes, err := t.ListNodes(ctx)
	if err != nil {
		return nil, err
	}
	graph.Nodes = nodes

	groups, err := t.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	graph.Groups = groups

	classes, err := t.ListClasses(ctx)
	if err != nil {
		return nil, err
	}
	graph.Classes = classes

	rows, err := t.query(ctx, `SELECT node_id, node_group_id FROM node_group_memberships ORDER BY node_id, node_group_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.NodeID, &m.GroupID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		graph.Memberships = append(graph.Memberships, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memberships: %w", err)
	}

	inclusions, err := t.ListInclusions(ctx)
	if err != nil {
		return nil, err
	}
	graph.Inclusions = inclusions

	rows, err = t.query(ctx, `SELECT node_group_id, node_class_id FROM node_group_class_memberships ORDER BY node_group_id, node_class_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query class assignments: %w", err)
	}
	for rows.Next() {
		var a domain.ClassAssignment
		if err := rows.Scan(&a.GroupID, &a.ClassID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan class assignment: %w", err)
		}
		graph.Assignments = append(graph.Assignments, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating class assignments: %w", err)
	}

	rows, err = t.query(ctx, `SELECT owner_type, owner_id, key, value FROM parameters ORDER BY owner_type, owner_id, key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameters: %w", err)
	}
	for rows.Next() {
		var (
			p     domain.Parameter
			owner string
		)
		if err := rows.Scan(&owner, &p.OwnerID, &p.Key, &p.Value); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan parameter: %w", err)
		}
		p.OwnerType = domain.OwnerType(owner)
		graph.Parameters = append(graph.Parameters, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parameters: %w", err)
	}

	return graph, nil
}

// ============================================================================
// Nodes
// ============================================================================

// GetNode retrieves a node and its parameter overrides by ID
func (t *tx) GetNode(ctx context.Context, id int64) (*domain.Node, error) {
	var row nodeRow
	err := t.queryRow(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(domain.KindNode, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query node: %w", err)
	}
	return t.finishNode(ctx, &row)
}

// GetNodeByName retrieves a node and its parameter overrides by name
func (t *tx) GetNodeByName(ctx context.Context, name string) (*domain.Node, error) {
	var row nodeRow
	err := t.queryRow(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE name = ?`, name).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(domain.KindNode, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query node: %w", err)
	}
	return t.finishNode(ctx, &row)
}

func (t *tx) finishNode(ctx context.Context, row *nodeRow) (*domain.Node, error) {
	node := row.toDomain()
	params, err := t.loadParameters(ctx, domain.OwnerNode, node.ID)
	if err != nil {
		return nil, err
	}
	node.Parameters = params
	return node, nil
}

// ListNodes returns every node ordered by name, without parameters
func (t *tx) ListNodes(ctx context.Context) ([]domain.Node, error) {
	rows, err := t.query(ctx, `SELECT `+nodeColumns+` FROM nodes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]domain.Node, 0)
	for rows.Next() {
		var row nodeRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, *row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	return nodes, nil
}

// InsertNode creates a node and its parameter overrides, setting node.ID
func (t *tx) InsertNode(ctx context.Context, node *domain.Node) error {
	now := time.Now().UTC()
	node.CreatedAt, node.UpdatedAt = now, now

	id, err := t.insertID(ctx, `INSERT INTO nodes (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		node.Name, stringToNull(node.Description), now, now)
	if err != nil {
		if t.d.isUniqueViolation(err) {
			return domain.Conflict(domain.KindNode, node.Name)
		}
		return fmt.Errorf("failed to insert node: %w", err)
	}
	node.ID = id

	return t.ReplaceParameters(ctx, domain.OwnerNode, id, node.Parameters)
}

// DeleteNode removes a node, its memberships and its parameter overrides
func (t *tx) DeleteNode(ctx context.Context, id int64) error {
	if _, err := t.exec(ctx, `DELETE FROM parameters WHERE owner_type = ? AND owner_id = ?`, string(domain.OwnerNode), id); err != nil {
		return fmt.Errorf("failed to delete node parameters: %w", err)
	}
	if _, err := t.exec(ctx, `DELETE FROM node_group_memberships WHERE node_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete node memberships: %w", err)
	}
	res, err := t.exec(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}
	return requireAffected(res, domain.KindNode, id)
}

// ============================================================================
// Groups
// ============================================================================

// GetGroup retrieves a group with all of its direct associations
func (t *tx) GetGroup(ctx context.Context, id int64) (*domain.NodeGroup, error) {
	var row groupRow
	err := t.queryRow(ctx, `SELECT `+groupColumns+` FROM node_groups WHERE id = ?`, id).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(domain.KindGroup, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query group: %w", err)
	}
	return t.finishGroup(ctx, &row)
}

// GetGroupByName retrieves a group with all of its direct associations
func (t *tx) GetGroupByName(ctx context.Context, name string) (*domain.NodeGroup, error) {
	var row groupRow
	err := t.queryRow(ctx, `SELECT `+groupColumns+` FROM node_groups WHERE name = ?`, name).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(domain.KindGroup, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query group: %w", err)
	}
	return t.finishGroup(ctx, &row)
}

func (t *tx) finishGroup(ctx context.Context, row *groupRow) (*domain.NodeGroup, error) {
	group := row.toDomain()

	params, err := t.loadParameters(ctx, domain.OwnerGroup, group.ID)
	if err != nil {
		return nil, err
	}
	group.Parameters = params

	if group.ClassIDs, err = t.ids(ctx, `SELECT node_class_id FROM node_group_class_memberships WHERE node_group_id = ? ORDER BY node_class_id`, group.ID); err != nil {
		return nil, fmt.Errorf("failed to query group classes: %w", err)
	}
	if group.SubgroupIDs, err = t.ids(ctx, `SELECT to_id FROM node_group_edges WHERE from_id = ? ORDER BY to_id`, group.ID); err != nil {
		return nil, fmt.Errorf("failed to query subgroups: %w", err)
	}
	if group.NodeIDs, err = t.ids(ctx, `SELECT node_id FROM node_group_memberships WHERE node_group_id = ? ORDER BY node_id`, group.ID); err != nil {
		return nil, fmt.Errorf("failed to query group nodes: %w", err)
	}

	return group, nil
}

func (t *tx) ids(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := t.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

// ListGroups returns every group ordered by name, without associations
func (t *tx) ListGroups(ctx context.Context) ([]domain.NodeGroup, error) {
	rows, err := t.query(ctx, `SELECT `+groupColumns+` FROM node_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	groups := make([]domain.NodeGroup, 0)
	for rows.Next() {
		var row groupRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, *row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}
	return groups, nil
}

// InsertGroup creates a group and its parameters, setting group.ID
func (t *tx) InsertGroup(ctx context.Context, group *domain.NodeGroup) error {
	now := time.Now().UTC()
	group.CreatedAt, group.UpdatedAt = now, now

	id, err := t.insertID(ctx, `INSERT INTO node_groups (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		group.Name, stringToNull(group.Description), now, now)
	if err != nil {
		if t.d.isUniqueViolation(err) {
			return domain.Conflict(domain.KindGroup, group.Name)
		}
		return fmt.Errorf("failed to insert group: %w", err)
	}
	group.ID = id

	return t.ReplaceParameters(ctx, domain.OwnerGroup, id, group.Parameters)
}

// UpdateGroupFields writes the group's scalar columns
func (t *tx) UpdateGroupFields(ctx context.Context, group *domain.NodeGroup) error {
	group.UpdatedAt = time.Now().UTC()

	res, err := t.exec(ctx, `UPDATE node_groups SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		group.Name, stringToNull(group.Description), group.UpdatedAt, group.ID)
	if err != nil {
		if t.d.isUniqueViolation(err) {
			return domain.Conflict(domain.KindGroup, group.Name)
		}
		return fmt.Errorf("failed to update group: %w", err)
	}
	return requireAffected(res, domain.KindGroup, group.ID)
}

// DeleteGroup removes a group and every relation that references it
func (t *tx) DeleteGroup(ctx context.Context, id int64) error {
	cleanup := []struct {
		what  string
		query string
		args  []interface{}
	}{
		{"parameters", `DELETE FROM parameters WHERE owner_type = ? AND owner_id = ?`, []interface{}{string(domain.OwnerGroup), id}},
		{"memberships", `DELETE FROM node_group_memberships WHERE node_group_id = ?`, []interface{}{id}},
		{"inclusions", `DELETE FROM node_group_edges WHERE from_id = ? OR to_id = ?`, []interface{}{id, id}},
		{"class assignments", `DELETE FROM node_group_class_memberships WHERE node_group_id = ?`, []interface{}{id}},
	}
	for _, c := range cleanup {
		if _, err := t.exec(ctx, c.query, c.args...); err != nil {
			return fmt.Errorf("failed to delete group %s: %w", c.what, err)
		}
	}

	res, err := t.exec(ctx, `DELETE FROM node_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return requireAffected(res, domain.KindGroup, id)
}

// ReplaceGroupClasses sets the group's directly assigned classes
func (t *tx) ReplaceGroupClasses(ctx context.Context, groupID int64, classIDs []int64) error {
	if _, err := t.exec(ctx, `DELETE FROM node_group_class_memberships WHERE node_group_id = ?`, groupID); err != nil {
		return fmt.Errorf("failed to clear group classes: %w", err)
	}
	for _, classID := range dedupeIDs(classIDs) {
		if _, err := t.exec(ctx, `INSERT INTO node_group_class_memberships (node_group_id, node_class_id) VALUES (?, ?)`, groupID, classID); err != nil {
			if t.d.isForeignKeyViolation(err) {
				return domain.NotFound(domain.KindClass, classID)
			}
			return fmt.Errorf("failed to assign class %d: %w", classID, err)
		}
	}
	return nil
}

// ReplaceGroupNodes sets the group's directly assigned nodes
func (t *tx) ReplaceGroupNodes(ctx context.Context, groupID int64, nodeIDs []int64) error {
	if _, err := t.exec(ctx, `DELETE FROM node_group_memberships WHERE node_group_id = ?`, groupID); err != nil {
		return fmt.Errorf("failed to clear group nodes: %w", err)
	}
	for _, nodeID := range dedupeIDs(nodeIDs) {
		if err := t.InsertMembership(ctx, domain.Membership{NodeID: nodeID, GroupID: groupID}); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Classes
// ============================================================================

// GetClass retrieves a class by ID
func (t *tx) GetClass(ctx context.Context, id int64) (*domain.NodeClass, error) {
	c, err := scanClass(t.queryRow(ctx, `SELECT `+classColumns+` FROM node_classes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(domain.KindClass, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query class: %w", err)
	}
	return c, nil
}

// GetClassByName retrieves a class by name
func (t *tx) GetClassByName(ctx context.Context, name string) (*domain.NodeClass, error) {
	c, err := scanClass(t.queryRow(ctx, `SELECT `+classColumns+` FROM node_classes WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(domain.KindClass, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query class: %w", err)
	}
	return c, nil
}

// ListClasses returns every class ordered by name
func (t *tx) ListClasses(ctx context.Context) ([]domain.NodeClass, error) {
	rows, err := t.query(ctx, `SELECT `+classColumns+` FROM node_classes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer rows.Close()

	classes := make([]domain.NodeClass, 0)
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		classes = append(classes, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating classes: %w", err)
	}
	return classes, nil
}

// InsertClass creates a class, setting class.ID
func (t *tx) InsertClass(ctx context.Context, class *domain.NodeClass) error {
	class.CreatedAt = time.Now().UTC()

	id, err := t.insertID(ctx, `INSERT INTO node_classes (name, created_at) VALUES (?, ?)`, class.Name, class.CreatedAt)
	if err != nil {
		if t.d.isUniqueViolation(err) {
			return domain.Conflict(domain.KindClass, class.Name)
		}
		return fmt.Errorf("failed to insert class: %w", err)
	}
	class.ID = id
	return nil
}

// ============================================================================
// Parameters
// ============================================================================

func (t *tx) loadParameters(ctx context.Context, owner domain.OwnerType, ownerID int64) (map[string]string, error) {
	rows, err := t.query(ctx, `SELECT key, value FROM parameters WHERE owner_type = ? AND owner_id = ?`, string(owner), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameters: %w", err)
	}
	defer rows.Close()

	params := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan parameter: %w", err)
		}
		params[key] = value
	}
	return params, rows.Err()
}

// ReplaceParameters sets the full parameter map of one owner
func (t *tx) ReplaceParameters(ctx context.Context, owner domain.OwnerType, ownerID int64, params map[string]string) error {
	if _, err := t.exec(ctx, `DELETE FROM parameters WHERE owner_type = ? AND owner_id = ?`, string(owner), ownerID); err != nil {
		return fmt.Errorf("failed to clear parameters: %w", err)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, err := t.exec(ctx, `INSERT INTO parameters (owner_type, owner_id, key, value) VALUES (?, ?, ?, ?)`,
			string(owner), ownerID, key, params[key]); err != nil {
			if t.d.isUniqueViolation(err) {
				return domain.Conflict(domain.KindParameter, key)
			}
			return fmt.Errorf("failed to insert parameter %s: %w", key, err)
		}
	}
	return nil
}

// ============================================================================
// Relations
// ============================================================================

// InsertMembership assigns a node to a group
func (t *tx) InsertMembership(ctx context.Context, m domain.Membership) error {
	_, err := t.exec(ctx, `INSERT INTO node_group_memberships (node_id, node_group_id) VALUES (?, ?)`, m.NodeID, m.GroupID)
	if err == nil {
		return nil
	}
	if t.d.isUniqueViolation(err) {
		return domain.Conflict(domain.KindMembership, fmt.Sprintf("node %d in group %d", m.NodeID, m.GroupID))
	}
	if t.d.isForeignKeyViolation(err) {
		return domain.NotFound(domain.KindMembership, m.Key())
	}
	return fmt.Errorf("failed to insert membership: %w", err)
}

// DeleteMembership removes a node from a group
func (t *tx) DeleteMembership(ctx context.Context, m domain.Membership) error {
	res, err := t.exec(ctx, `DELETE FROM node_group_memberships WHERE node_id = ? AND node_group_id = ?`, m.NodeID, m.GroupID)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	return requireAffected(res, domain.KindMembership, m.Key())
}

// CountMemberships returns the number of membership rows
func (t *tx) CountMemberships(ctx context.Context) (int, error) {
	var n int
	if err := t.queryRow(ctx, `SELECT COUNT(*) FROM node_group_memberships`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count memberships: %w", err)
	}
	return n, nil
}

// ListInclusions returns every inclusion edge ordered by parent then child
func (t *tx) ListInclusions(ctx context.Context) ([]domain.Inclusion, error) {
	rows, err := t.query(ctx, `SELECT from_id, to_id FROM node_group_edges ORDER BY from_id, to_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query inclusions: %w", err)
	}
	defer rows.Close()

	edges := make([]domain.Inclusion, 0)
	for rows.Next() {
		var e domain.Inclusion
		if err := rows.Scan(&e.ParentID, &e.ChildID); err != nil {
			return nil, fmt.Errorf("failed to scan inclusion: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inclusions: %w", err)
	}
	return edges, nil
}

// InsertInclusion adds a parent includes child edge
func (t *tx) InsertInclusion(ctx context.Context, inc domain.Inclusion) error {
	_, err := t.exec(ctx, `INSERT INTO node_group_edges (from_id, to_id) VALUES (?, ?)`, inc.ParentID, inc.ChildID)
	if err == nil {
		return nil
	}
	if t.d.isUniqueViolation(err) {
		return domain.Conflict(domain.KindInclusion, fmt.Sprintf("group %d includes group %d", inc.ParentID, inc.ChildID))
	}
	if t.d.isForeignKeyViolation(err) {
		return domain.NotFound(domain.KindInclusion, inc.Key())
	}
	return fmt.Errorf("failed to insert inclusion: %w", err)
}

// DeleteInclusion removes a parent includes child edge
func (t *tx) DeleteInclusion(ctx context.Context, inc domain.Inclusion) error {
	res, err := t.exec(ctx, `DELETE FROM node_group_edges WHERE from_id = ? AND to_id = ?`, inc.ParentID, inc.ChildID)
	if err != nil {
		return fmt.Errorf("failed to delete inclusion: %w", err)
	}
	return requireAffected(res, domain.KindInclusion, inc.Key())
}

// CountInclusions returns the number of inclusion rows
func (t *tx) CountInclusions(ctx context.Context) (int, error) {
	var n int
	if err := t.queryRow(ctx, `SELECT COUNT(*) FROM node_group_edges`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count inclusions: %w", err)
	}
	return n, nil
}

func requireAffected(res sql.Result, kind domain.EntityKind, ref any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.NotFound(kind, ref)
	}
	return nil
}
