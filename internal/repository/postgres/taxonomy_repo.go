package postgres

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

// taxonomyRepository implements repository.TaxonomyRepository.
type taxonomyRepository struct {
	db *DB
}

// NewTaxonomyRepository creates a new PostgreSQL taxonomy repository.
func NewTaxonomyRepository(db *DB) repository.TaxonomyRepository {
	return &taxonomyRepository{db: db}
}

// Create creates a new entry at the given level.
func (r *taxonomyRepository) Create(ctx context.Context, node *domain.TaxonomyNode) error {
	lt, ok := levelTables[node.Level]
	if !ok {
		return fmt.Errorf("unknown taxonomy level %q", node.Level)
	}

	var err error
	if lt.parentCol == "" {
		query := `INSERT INTO ` + lt.table + ` (owner_user_id, name, created_at)
			VALUES ($1, $2, $3) RETURNING id`
		err = r.db.Pool.QueryRow(ctx, query, node.OwnerUserID, node.Name, node.CreatedAt).Scan(&node.ID)
	} else {
		query := `INSERT INTO ` + lt.table + ` (owner_user_id, ` + lt.parentCol + `, name, created_at)
			VALUES ($1, $2, $3, $4) RETURNING id`
		err = r.db.Pool.QueryRow(ctx, query, node.OwnerUserID, node.ParentID, node.Name, node.CreatedAt).Scan(&node.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", node.Level, err)
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
	var err error
	if lt.parentCol == "" {
		query := `SELECT id, owner_user_id, name, created_at FROM ` + lt.table + `
			WHERE id = $1 AND owner_user_id = $2`
		err = r.db.Pool.QueryRow(ctx, query, id, ownerUserID).
			Scan(&node.ID, &node.OwnerUserID, &node.Name, &node.CreatedAt)
	} else {
		query := `SELECT id, owner_user_id, ` + lt.parentCol + `, name, created_at FROM ` + lt.table + `
			WHERE id = $1 AND owner_user_id = $2`
		err = r.db.Pool.QueryRow(ctx, query, id, ownerUserID).
			Scan(&node.ID, &node.OwnerUserID, &node.ParentID, &node.Name, &node.CreatedAt)
	}
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrTaxonomyNodeNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", level, err)
	}
	return node, nil
}

// Rename updates an entry's name.
func (r *taxonomyRepository) Rename(ctx context.Context, level domain.TaxonomyLevel, ownerUserID, id int64, name string) error {
	lt, ok := levelTables[level]
	if !ok {
		return fmt.Errorf("unknown taxonomy level %q", level)
	}
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE `+lt.table+` SET name = $1 WHERE id = $2 AND owner_user_id = $3`,
		name, id, ownerUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to rename %s: %w", level, err)
	}
	if tag.RowsAffected() == 0 {
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
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM `+lt.table+` WHERE id = $1 AND owner_user_id = $2`,
		id, ownerUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", level, err)
	}
	if tag.RowsAffected() == 0 {
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
		FROM ` + lt.table + ` WHERE owner_user_id = $1 ORDER BY id`

	rows, err := r.db.Pool.Query(ctx, query, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", level, err)
	}
	defer rows.Close()

	var nodes []*domain.TaxonomyNode
	for rows.Next() {
		node := &domain.TaxonomyNode{Level: level}
		if err := rows.Scan(&node.ID, &node.OwnerUserID, &node.ParentID, &node.Name, &node.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", level, err)
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}
