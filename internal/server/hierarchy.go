package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	hierarchydomain "github.com/costscopehq/costscope/internal/hierarchy/domain"
	"github.com/gin-gonic/gin"
)

// noneNodeValue is the wire sentinel UIs send to clear a level pick.
const noneNodeValue = "__none__"

type createLevelRequest struct {
	Name string `json:"name"`
}

type createNodeRequest struct {
	LevelID  string `json:"level_id"`
	ParentID string `json:"parent_id"`
	Name     string `json:"name"`
}

type resolveRequest struct {
	Mode  string            `json:"mode"`
	Picks []resolvePickBody `json:"picks"`
}

type resolvePickBody struct {
	LevelID string `json:"level_id"`
	NodeID  string `json:"node_id"`
}

func (s *Server) GetHierarchyTree(c *gin.Context) {
	orgID, ok := s.orgIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	tree, err := s.hierarchySvc.Tree(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, tree)
}

func (s *Server) CreateHierarchyLevel(c *gin.Context) {
	orgID, ok := s.orgIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	level, err := s.hierarchySvc.CreateLevel(c.Request.Context(), orgID, hierarchydomain.CreateLevelRequest{
		Name: strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, level)
}

func (s *Server) CreateHierarchyNode(c *gin.Context) {
	orgID, ok := s.orgIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	levelID, err := snowflake.ParseString(strings.TrimSpace(req.LevelID))
	if err != nil || levelID == 0 {
		AbortWithError(c, newValidationError("level_id", "invalid_level", "invalid level id"))
		return
	}

	var parentID *snowflake.ID
	if trimmed := strings.TrimSpace(req.ParentID); trimmed != "" {
		parsed, err := snowflake.ParseString(trimmed)
		if err != nil || parsed == 0 {
			AbortWithError(c, newValidationError("parent_id", "invalid_parent", "invalid parent id"))
			return
		}
		parentID = &parsed
	}

	node, err := s.hierarchySvc.CreateNode(c.Request.Context(), orgID, hierarchydomain.CreateNodeRequest{
		LevelID:  levelID,
		ParentID: parentID,
		Name:     strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, node)
}

// ResolveHierarchy replays a sequence of level picks and reports the
// resulting path. The "__none__" node value clears a level.
func (s *Server) ResolveHierarchy(c *gin.Context) {
	orgID, ok := s.orgIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	picks := make([]hierarchydomain.ResolvePick, 0, len(req.Picks))
	for _, pick := range req.Picks {
		levelID, err := snowflake.ParseString(strings.TrimSpace(pick.LevelID))
		if err != nil || levelID == 0 {
			AbortWithError(c, newValidationError("picks", "invalid_level", "invalid level id"))
			return
		}

		var nodeID snowflake.ID
		if trimmed := strings.TrimSpace(pick.NodeID); trimmed != "" && trimmed != noneNodeValue {
			nodeID, err = snowflake.ParseString(trimmed)
			if err != nil || nodeID == 0 {
				AbortWithError(c, newValidationError("picks", "invalid_node", "invalid node id"))
				return
			}
		}

		picks = append(picks, hierarchydomain.ResolvePick{LevelID: levelID, NodeID: nodeID})
	}

	resp, err := s.hierarchySvc.Resolve(c.Request.Context(), orgID, hierarchydomain.ResolveRequest{
		Mode:  hierarchydomain.Mode(strings.TrimSpace(req.Mode)),
		Picks: picks,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
