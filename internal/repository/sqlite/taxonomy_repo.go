package sqlite

import (
	"context"
	"fmt"

	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/repository"
)

// levelTable maps a taxonomy level to its table and parent column. All five
// levels share the same row shape, so a single repository serves them.
type levelTable struct {
	table     string
	parentCol string
}

var levelTables = map[domain.TaxonomyLevel]levelTable{
	domain.LevelRegion:    {table: "regions"},
	domain.LevelEtiology:  {table: "etiologies", parentCol: "region_id"},
	domain.LevelTissue:    {table: "tissues", parentCol: "etiology_id"},
	domain.LevelDiagnosis: {table: "diagnoses", parentCol: "tissue_id"},
	domain.LevelTreatment: {table: "treatments", parentCol: "diagnosis_id"},
}

// taxonomyRepository implements repository.TaxonomyRepository for SQLite.
type taxonomyRepository struct {
	db *DB
}

// NewTaxonomyRepository creates a new SQLite taxonomy repository.
func NewTaxonomyRepository(db *DB) repository.TaxonomyRepository {
	return &taxonomyRepository{db: db}
}

// Create creates a new entry at the given level.
func (r *taxonomyRepository) Create(ctx context.Context, node *domain.TaxonomyNode) error {
	lt, ok := levelTables[node.Level]
	if !ok {
		return fmt.Errorf("unknown taxonomy level %q", node.Level)
	}

	var query string
	var args []any
	if lt.parentCol == "" {
		query = `INSERT INTO ` + lt.table + ` (owner_user_id, name, created_at) VALUES (?, ?, ?)`
		args = []any{node.OwnerUserID, node.Name, formatTime(node.CreatedAt)}
	} else {
		query = `INSERT INTO ` + lt.table + ` (owner_user_id, ` + lt.parentCol + `, name, created_at) VALUES (?, ?, ?, ?)`
		args = []any{node.OwnerUserID, node.ParentID, node.Name, formatTime(node.CreatedAt)}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", node.Level, err)
	}
	node.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get %s id: %w", node.Level, err)
	}
	return nil
}

// Get retrieves an entry by level and ID, scoped to its owner.
func (r *taxonomyRepository) Get(ctx context.Context, level domain.TaxonomyLevel, ownerUserID, id int64) (*domain.TaxonomyNode, error) {
	lt, ok := levelTables[level]
	if !ok {
		return nil, fmt.Errorf("unknown taxonomy level %q", level)
	}

	node := &domain.TaxonomyNode{Level: level}
	var createdAt string
	var err error
	if lt.parentCol == "" {
		query := `SELECT id, owner_user_id, name, created_at FROM ` + lt.table + `
			WHERE id = ? AND owner_user_id = ?`
		err = r.db.QueryRowContext(ctx, query, id, ownerUserID).
			Scan(&node.ID, &node.OwnerUserID, &node.Name, &createdAt)
	} else {
		query := `SELECT id, owner_user_id, ` + lt.parentCol + `, name, created_at FROM ` + lt.table + `
			WHERE id = ? AND owner_user_id = ?`
		err = r.db.QueryRowContext(ctx, query, id, ownerUserID).
			Scan(&node.ID, &node.OwnerUserID, &node.ParentID, &node.Name, &createdAt)
	}
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrTaxonomyNodeNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", level, err)
	}
	if node.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return node, nil
}

// Rename updates an entry's name.
func (r *taxonomyRepository) Rename(ctx context.Context, level domain.TaxonomyLevel, ownerUserID, id int64, name string) error {
	lt, ok := levelTables[level]
	if !ok {
		return fmt.Errorf("unknown taxonomy level %q", level)
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE `+lt.table+` SET name = ? WHERE id = ? AND owner_user_id = ?`,
		name, id, ownerUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to rename %s: %w", level, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrTaxonomyNodeNotFound
	}
	return nil
}

// Delete removes an entry. Descendant rows are removed by foreign key cascade.
func (r *taxonomyRepository) Delete(ctx context.Context, level domain.TaxonomyLevel, ownerUserID, id int64) error {
	lt, ok := levelTables[level]
	if !ok {
		return fmt.Errorf("unknown taxonomy level %q", level)
	}
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM `+lt.table+` WHERE id = ? AND owner_user_id = ?`,
		id, ownerUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", level, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrTaxonomyNodeNotFound
	}
	return nil
}

// ListByOwner returns all of the owner's entries at one level.
func (r *taxonomyRepository) ListByOwner(ctx context.Context, level domain.TaxonomyLevel, ownerUserID int64) ([]*domain.TaxonomyNode, error) {
	lt, ok := levelTables[level]
	if !ok {
		return nil, fmt.Errorf("unknown taxonomy level %q", level)
	}

	parentSelect := "NULL"
	if lt.parentCol != "" {
		parentSelect = lt.parentCol
	}
	query := `SELECT id, owner_user_id, ` + parentSelect + `, name, created_at
		FROM ` + lt.table + ` WHERE owner_user_id = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", level, err)
	}
	defer rows.Close()

	var nodes []*domain.TaxonomyNode
	for rows.Next() {
		node := &domain.TaxonomyNode{Level: level}
		var createdAt string
		if err := rows.Scan(&node.ID, &node.OwnerUserID, &node.ParentID, &node.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", level, err)
		}
		created, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		node.CreatedAt = created
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}
