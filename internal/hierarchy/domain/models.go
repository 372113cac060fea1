package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// HierarchyLevel is one rung of an organization's team hierarchy.
// Position orders levels top to bottom starting at 0.
type HierarchyLevel struct {
	ID        snowflake.ID `gorm:"column:id;primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"column:org_id;index:idx_hierarchy_levels_org" json:"org_id"`
	Name      string       `gorm:"column:name;type:text;not null" json:"name"`
	Position  int          `gorm:"column:position;not null" json:"position"`
	CreatedAt time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (HierarchyLevel) TableName() string { return "hierarchy_levels" }

// HierarchyNode is a named entry at a level. ParentID points at a node
// on the level directly above; nil for nodes on the top level.
type HierarchyNode struct {
	ID        snowflake.ID  `gorm:"column:id;primaryKey" json:"id"`
	OrgID     snowflake.ID  `gorm:"column:org_id;index:idx_hierarchy_nodes_org" json:"org_id"`
	LevelID   snowflake.ID  `gorm:"column:level_id;index:idx_hierarchy_nodes_level" json:"level_id"`
	ParentID  *snowflake.ID `gorm:"column:parent_id" json:"parent_id"`
	Name      string        `gorm:"column:name;type:text;not null" json:"name"`
	CreatedAt time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time     `gorm:"column:updated_at" json:"updated_at"`
}

func (HierarchyNode) TableName() string { return "hierarchy_nodes" }
