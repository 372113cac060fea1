package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/costscopehq/costscope/internal/hierarchy/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListLevels(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.HierarchyLevel, error) {
	var levels []domain.HierarchyLevel
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, position, created_at, updated_at
		 FROM hierarchy_levels WHERE org_id = ? ORDER BY position ASC`,
		orgID,
	).Scan(&levels).Error
	if err != nil {
		return nil, err
	}
	return levels, nil
}

func (r *repo) ListNodes(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.HierarchyNode, error) {
	var nodes []domain.HierarchyNode
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, level_id, parent_id, name, created_at, updated_at
		 FROM hierarchy_nodes WHERE org_id = ? ORDER BY name ASC`,
		orgID,
	).Scan(&nodes).Error
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

func (r *repo) InsertLevel(ctx context.Context, db *gorm.DB, level domain.HierarchyLevel) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO hierarchy_levels (id, org_id, name, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		level.ID,
		level.OrgID,
		level.Name,
		level.Position,
		level.CreatedAt,
		level.UpdatedAt,
	).Error
}

func (r *repo) InsertNode(ctx context.Context, db *gorm.DB, node domain.HierarchyNode) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO hierarchy_nodes (id, org_id, level_id, parent_id, name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		node.ID,
		node.OrgID,
		node.LevelID,
		node.ParentID,
		node.Name,
		node.CreatedAt,
		node.UpdatedAt,
	).Error
}

func (r *repo) GetNode(ctx context.Context, db *gorm.DB, orgID, nodeID snowflake.ID) (*domain.HierarchyNode, error) {
	var node domain.HierarchyNode
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, level_id, parent_id, name, created_at, updated_at
		 FROM hierarchy_nodes WHERE org_id = ? AND id = ?`,
		orgID,
		nodeID,
	).Scan(&node).Error
	if err != nil {
		return nil, err
	}
	if node.ID == 0 {
		return nil, nil
	}
	return &node, nil
}
