package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	Tree(ctx context.Context, orgID snowflake.ID) (*TreeResponse, error)
	CreateLevel(ctx context.Context, orgID snowflake.ID, req CreateLevelRequest) (*HierarchyLevel, error)
	CreateNode(ctx context.Context, orgID snowflake.ID, req CreateNodeRequest) (*HierarchyNode, error)
	Resolve(ctx context.Context, orgID snowflake.ID, req ResolveRequest) (*ResolveResponse, error)
}

type Repository interface {
	ListLevels(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]HierarchyLevel, error)
	ListNodes(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]HierarchyNode, error)
	InsertLevel(ctx context.Context, db *gorm.DB, level HierarchyLevel) error
	InsertNode(ctx context.Context, db *gorm.DB, node HierarchyNode) error
	GetNode(ctx context.Context, db *gorm.DB, orgID, nodeID snowflake.ID) (*HierarchyNode, error)
}

type CreateLevelRequest struct {
	Name string `json:"name"`
}

type CreateNodeRequest struct {
	LevelID  snowflake.ID  `json:"level_id"`
	ParentID *snowflake.ID `json:"parent_id"`
	Name     string        `json:"name"`
}

// TreeNode is a node plus its children, one level down.
type TreeNode struct {
	ID       snowflake.ID `json:"id"`
	Name     string       `json:"name"`
	LevelID  snowflake.ID `json:"level_id"`
	Children []TreeNode   `json:"children,omitempty"`
}

type TreeLevel struct {
	ID       snowflake.ID `json:"id"`
	Name     string       `json:"name"`
	Position int          `json:"position"`
}

type TreeResponse struct {
	Levels []TreeLevel `json:"levels"`
	Roots  []TreeNode  `json:"roots"`
}

// ResolvePick selects one node at one level. A zero NodeID clears the
// level and everything beneath it.
type ResolvePick struct {
	LevelID snowflake.ID `json:"level_id"`
	NodeID  snowflake.ID `json:"node_id"`
}

// ResolveRequest applies picks in the order given, like interactive
// selections.
type ResolveRequest struct {
	Mode  Mode          `json:"mode"`
	Picks []ResolvePick `json:"picks"`
}

type ResolveResponse struct {
	Path      string `json:"path"`
	PathNames string `json:"path_names"`
	Complete  bool   `json:"complete"`
	Emitted   bool   `json:"emitted"`
}

var (
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidMode   = errors.New("invalid_mode")
	ErrLevelNotFound = errors.New("level_not_found")
	ErrNodeNotFound  = errors.New("node_not_found")
	ErrLevelMismatch = errors.New("node_level_mismatch")
	ErrBrokenChain   = errors.New("parent_chain_mismatch")
)
