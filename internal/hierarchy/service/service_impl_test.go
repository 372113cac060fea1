package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/costscopehq/costscope/internal/hierarchy/domain"
	"github.com/costscopehq/costscope/internal/hierarchy/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testDBSeq int

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	testDBSeq++
	dsn := fmt.Sprintf("file:hierarchy%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.HierarchyLevel{}, &domain.HierarchyNode{}))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	return New(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()})
}

type fixture struct {
	region, team   *domain.HierarchyLevel
	emea, apac     *domain.HierarchyNode
	platform, data *domain.HierarchyNode
}

func seedTree(t *testing.T, svc domain.Service, orgID snowflake.ID) fixture {
	t.Helper()
	ctx := context.Background()

	region, err := svc.CreateLevel(ctx, orgID, domain.CreateLevelRequest{Name: "Region"})
	require.NoError(t, err)
	team, err := svc.CreateLevel(ctx, orgID, domain.CreateLevelRequest{Name: "Team"})
	require.NoError(t, err)

	emea, err := svc.CreateNode(ctx, orgID, domain.CreateNodeRequest{LevelID: region.ID, Name: "EMEA"})
	require.NoError(t, err)
	apac, err := svc.CreateNode(ctx, orgID, domain.CreateNodeRequest{LevelID: region.ID, Name: "APAC"})
	require.NoError(t, err)
	platform, err := svc.CreateNode(ctx, orgID, domain.CreateNodeRequest{LevelID: team.ID, ParentID: &emea.ID, Name: "Platform"})
	require.NoError(t, err)
	data, err := svc.CreateNode(ctx, orgID, domain.CreateNodeRequest{LevelID: team.ID, ParentID: &apac.ID, Name: "Data"})
	require.NoError(t, err)

	return fixture{region: region, team: team, emea: emea, apac: apac, platform: platform, data: data}
}

func TestCreateLevelAssignsPositions(t *testing.T) {
	svc := newTestService(t)
	f := seedTree(t, svc, 900)

	assert.Equal(t, 0, f.region.Position)
	assert.Equal(t, 1, f.team.Position)
}

func TestCreateNodeEnforcesParentChain(t *testing.T) {
	svc := newTestService(t)
	f := seedTree(t, svc, 901)
	ctx := context.Background()

	// top-level nodes cannot have a parent
	_, err := svc.CreateNode(ctx, 901, domain.CreateNodeRequest{LevelID: f.region.ID, ParentID: &f.emea.ID, Name: "Nested"})
	assert.ErrorIs(t, err, domain.ErrBrokenChain)

	// deeper nodes need one
	_, err = svc.CreateNode(ctx, 901, domain.CreateNodeRequest{LevelID: f.team.ID, Name: "Orphan"})
	assert.ErrorIs(t, err, domain.ErrBrokenChain)

	// the parent must sit on the level directly above
	_, err = svc.CreateNode(ctx, 901, domain.CreateNodeRequest{LevelID: f.team.ID, ParentID: &f.platform.ID, Name: "Sideways"})
	assert.ErrorIs(t, err, domain.ErrBrokenChain)

	_, err = svc.CreateNode(ctx, 901, domain.CreateNodeRequest{LevelID: 999999, Name: "Nowhere"})
	assert.ErrorIs(t, err, domain.ErrLevelNotFound)
}

func TestTreeGroupsNodesByParent(t *testing.T) {
	svc := newTestService(t)
	f := seedTree(t, svc, 902)

	tree, err := svc.Tree(context.Background(), 902)
	require.NoError(t, err)

	require.Len(t, tree.Levels, 2)
	assert.Equal(t, "Region", tree.Levels[0].Name)
	require.Len(t, tree.Roots, 2)

	byName := map[string]domain.TreeNode{}
	for _, root := range tree.Roots {
		byName[root.Name] = root
	}
	require.Len(t, byName["EMEA"].Children, 1)
	assert.Equal(t, f.platform.ID, byName["EMEA"].Children[0].ID)
	require.Len(t, byName["APAC"].Children, 1)
	assert.Equal(t, "Data", byName["APAC"].Children[0].Name)
}

func TestResolveRequiredMode(t *testing.T) {
	svc := newTestService(t)
	f := seedTree(t, svc, 903)
	ctx := context.Background()

	req := domain.ResolveRequest{Mode: domain.ModeRequired}
	req.Picks = append(req.Picks, domain.ResolvePick{LevelID: f.region.ID, NodeID: f.emea.ID})

	resp, err := svc.Resolve(ctx, 903, req)
	require.NoError(t, err)
	assert.False(t, resp.Emitted)
	assert.False(t, resp.Complete)

	req.Picks = append(req.Picks, domain.ResolvePick{LevelID: f.team.ID, NodeID: f.platform.ID})

	resp, err = svc.Resolve(ctx, 903, req)
	require.NoError(t, err)
	assert.True(t, resp.Emitted)
	assert.True(t, resp.Complete)
	assert.Equal(t, fmt.Sprintf("%s/%s", f.emea.ID, f.platform.ID), resp.Path)
	assert.Equal(t, "EMEA > Platform", resp.PathNames)
}

func TestResolveOptionalModeEmitsPartialPath(t *testing.T) {
	svc := newTestService(t)
	f := seedTree(t, svc, 904)

	req := domain.ResolveRequest{Mode: domain.ModeOptional}
	req.Picks = append(req.Picks, domain.ResolvePick{LevelID: f.region.ID, NodeID: f.apac.ID})

	resp, err := svc.Resolve(context.Background(), 904, req)
	require.NoError(t, err)
	assert.True(t, resp.Emitted)
	assert.Equal(t, f.apac.ID.String(), resp.Path)
}

func TestResolveRejectsInconsistentPicks(t *testing.T) {
	svc := newTestService(t)
	f := seedTree(t, svc, 905)
	ctx := context.Background()

	// Data hangs off APAC, not EMEA
	req := domain.ResolveRequest{
		Mode: domain.ModeOptional,
		Picks: []domain.ResolvePick{
			{LevelID: f.region.ID, NodeID: f.emea.ID},
			{LevelID: f.team.ID, NodeID: f.data.ID},
		},
	}

	_, err := svc.Resolve(ctx, 905, req)
	assert.ErrorIs(t, err, domain.ErrBrokenChain)

	bad := domain.ResolveRequest{Mode: "sometimes"}
	_, err = svc.Resolve(ctx, 905, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidMode)
}
