package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/costscopehq/costscope/internal/hierarchy/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("hierarchy.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *service) Tree(ctx context.Context, orgID snowflake.ID) (*domain.TreeResponse, error) {
	levels, err := s.repo.ListLevels(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	nodes, err := s.repo.ListNodes(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}

	resp := &domain.TreeResponse{Levels: make([]domain.TreeLevel, 0, len(levels))}
	for _, level := range levels {
		resp.Levels = append(resp.Levels, domain.TreeLevel{ID: level.ID, Name: level.Name, Position: level.Position})
	}

	children := make(map[snowflake.ID][]domain.HierarchyNode)
	var roots []domain.HierarchyNode
	for _, node := range nodes {
		if node.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		children[*node.ParentID] = append(children[*node.ParentID], node)
	}

	resp.Roots = buildSubtrees(roots, children)
	return resp, nil
}

func buildSubtrees(nodes []domain.HierarchyNode, children map[snowflake.ID][]domain.HierarchyNode) []domain.TreeNode {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]domain.TreeNode, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, domain.TreeNode{
			ID:       node.ID,
			Name:     node.Name,
			LevelID:  node.LevelID,
			Children: buildSubtrees(children[node.ID], children),
		})
	}
	return out
}

func (s *service) CreateLevel(ctx context.Context, orgID snowflake.ID, req domain.CreateLevelRequest) (*domain.HierarchyLevel, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	levels, err := s.repo.ListLevels(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	level := domain.HierarchyLevel{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Name:      name,
		Position:  len(levels),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertLevel(ctx, s.db, level); err != nil {
		return nil, err
	}
	return &level, nil
}

func (s *service) CreateNode(ctx context.Context, orgID snowflake.ID, req domain.CreateNodeRequest) (*domain.HierarchyNode, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	levels, err := s.repo.ListLevels(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	position := -1
	for _, level := range levels {
		if level.ID == req.LevelID {
			position = level.Position
			break
		}
	}
	if position < 0 {
		return nil, domain.ErrLevelNotFound
	}

	// Non-root nodes must hang off a node on the level directly above.
	if position == 0 {
		if req.ParentID != nil {
			return nil, domain.ErrBrokenChain
		}
	} else {
		if req.ParentID == nil {
			return nil, domain.ErrBrokenChain
		}
		parent, err := s.repo.GetNode(ctx, s.db, orgID, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, domain.ErrNodeNotFound
		}
		if parentPosition := levelPosition(levels, parent.LevelID); parentPosition != position-1 {
			return nil, domain.ErrBrokenChain
		}
	}

	now := time.Now().UTC()
	node := domain.HierarchyNode{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		LevelID:   req.LevelID,
		ParentID:  req.ParentID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertNode(ctx, s.db, node); err != nil {
		return nil, err
	}
	return &node, nil
}

func levelPosition(levels []domain.HierarchyLevel, levelID snowflake.ID) int {
	for _, level := range levels {
		if level.ID == levelID {
			return level.Position
		}
	}
	return -1
}

// Resolve applies the request's picks in order and reports the resulting
// path. Picks behave like interactive selections, so re-picking a level
// drops whatever was chosen beneath it.
func (s *service) Resolve(ctx context.Context, orgID snowflake.ID, req domain.ResolveRequest) (*domain.ResolveResponse, error) {
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeRequired
	}
	if mode != domain.ModeRequired && mode != domain.ModeOptional {
		return nil, domain.ErrInvalidMode
	}

	levels, err := s.repo.ListLevels(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Position < levels[j].Position })

	levelIDs := make([]snowflake.ID, 0, len(levels))
	levelAbove := make(map[snowflake.ID]snowflake.ID, len(levels))
	for i, level := range levels {
		levelIDs = append(levelIDs, level.ID)
		if i > 0 {
			levelAbove[level.ID] = levels[i-1].ID
		}
	}

	nodes, err := s.repo.ListNodes(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	byID := make(map[snowflake.ID]domain.HierarchyNode, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node
	}

	selection := domain.NewSelection(levelIDs)
	for _, pick := range req.Picks {
		if levelPosition(levels, pick.LevelID) < 0 {
			return nil, domain.ErrLevelNotFound
		}
		if pick.NodeID == 0 {
			selection.Select(pick.LevelID, domain.Pick{})
			continue
		}

		node, ok := byID[pick.NodeID]
		if !ok {
			return nil, domain.ErrNodeNotFound
		}
		if node.LevelID != pick.LevelID {
			return nil, domain.ErrLevelMismatch
		}
		if parentLevel, hasParentLevel := levelAbove[pick.LevelID]; hasParentLevel && node.ParentID != nil {
			if chosen, picked := selection.Picked(parentLevel); picked && chosen.NodeID != *node.ParentID {
				return nil, domain.ErrBrokenChain
			}
		}

		selection.Select(pick.LevelID, domain.Pick{NodeID: node.ID, Name: node.Name})
	}

	path, emitted := selection.Emit(mode)
	return &domain.ResolveResponse{
		Path:      path,
		PathNames: selection.PathNames(),
		Complete:  selection.Complete(),
		Emitted:   emitted,
	}, nil
}
