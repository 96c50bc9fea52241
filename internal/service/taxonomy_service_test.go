package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/casebook/internal/cache/memory"
	"github.com/prn-tf/casebook/internal/domain"
)

func newTaxonomyFixture(t *testing.T) (*TaxonomyService, *MockTaxonomyRepository) {
	t.Helper()
	repo := NewMockTaxonomyRepository()
	c := memory.NewCache()
	t.Cleanup(c.Stop)
	return NewTaxonomyService(repo, c, zerolog.Nop()), repo
}

func (s *TaxonomyService) mustCreate(t *testing.T, owner int64, level domain.TaxonomyLevel, parentID *int64, name string) *domain.TaxonomyNode {
	t.Helper()
	node, err := s.Create(context.Background(), CreateNodeInput{
		OwnerUserID: owner,
		Level:       level,
		ParentID:    parentID,
		Name:        name,
	})
	require.NoError(t, err)
	return node
}

func TestTaxonomyService_CreateHierarchy(t *testing.T) {
	svc, _ := newTaxonomyFixture(t)
	ctx := context.Background()

	region := svc.mustCreate(t, 1, domain.LevelRegion, nil, "mandible")
	etiology := svc.mustCreate(t, 1, domain.LevelEtiology, &region.ID, "trauma")
	svc.mustCreate(t, 1, domain.LevelTissue, &etiology.ID, "bone")

	nodes, err := svc.List(ctx, domain.LevelEtiology, 1)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "trauma", nodes[0].Name)
}

func TestTaxonomyService_CreateValidation(t *testing.T) {
	svc, _ := newTaxonomyFixture(t)
	ctx := context.Background()

	t.Run("unknown level", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateNodeInput{OwnerUserID: 1, Level: "specialty", Name: "x"})
		require.Error(t, err)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("non-root level without parent", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateNodeInput{OwnerUserID: 1, Level: domain.LevelEtiology, Name: "trauma"})
		require.Error(t, err)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("region with parent", func(t *testing.T) {
		parent := int64(1)
		_, err := svc.Create(ctx, CreateNodeInput{OwnerUserID: 1, Level: domain.LevelRegion, ParentID: &parent, Name: "leg"})
		require.Error(t, err)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("missing parent entry", func(t *testing.T) {
		parent := int64(99)
		_, err := svc.Create(ctx, CreateNodeInput{OwnerUserID: 1, Level: domain.LevelEtiology, ParentID: &parent, Name: "trauma"})
		require.Error(t, err)
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	})
}

func TestTaxonomyService_ParentOwnershipEnforced(t *testing.T) {
	svc, _ := newTaxonomyFixture(t)

	region := svc.mustCreate(t, 1, domain.LevelRegion, nil, "mandible")

	// Another user cannot hang entries off user 1's region.
	_, err := svc.Create(context.Background(), CreateNodeInput{
		OwnerUserID: 2, Level: domain.LevelEtiology, ParentID: &region.ID, Name: "trauma",
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestTaxonomyService_Tree(t *testing.T) {
	svc, _ := newTaxonomyFixture(t)
	ctx := context.Background()

	mandible := svc.mustCreate(t, 1, domain.LevelRegion, nil, "mandible")
	svc.mustCreate(t, 1, domain.LevelRegion, nil, "maxilla")
	trauma := svc.mustCreate(t, 1, domain.LevelEtiology, &mandible.ID, "trauma")
	svc.mustCreate(t, 1, domain.LevelTissue, &trauma.ID, "bone")

	// Another user's entries must not leak into the tree.
	svc.mustCreate(t, 2, domain.LevelRegion, nil, "leg")

	tree, err := svc.Tree(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tree.Regions, 2)
	assert.Equal(t, "mandible", tree.Regions[0].Name)
	assert.Equal(t, "maxilla", tree.Regions[1].Name)
	require.Len(t, tree.Regions[0].Children, 1)
	assert.Equal(t, "trauma", tree.Regions[0].Children[0].Name)
	require.Len(t, tree.Regions[0].Children[0].Children, 1)
	assert.Equal(t, "bone", tree.Regions[0].Children[0].Children[0].Name)
	assert.Empty(t, tree.Regions[1].Children)

	// Second read comes from cache and matches.
	cached, err := svc.Tree(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, tree, cached)
}

func TestTaxonomyService_TreeInvalidatedOnWrite(t *testing.T) {
	svc, _ := newTaxonomyFixture(t)
	ctx := context.Background()

	region := svc.mustCreate(t, 1, domain.LevelRegion, nil, "mandible")

	tree, err := svc.Tree(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tree.Regions, 1)

	require.NoError(t, svc.Rename(ctx, domain.LevelRegion, 1, region.ID, "lower jaw"))

	tree, err = svc.Tree(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "lower jaw", tree.Regions[0].Name)
}

func TestTaxonomyService_DeleteMissing(t *testing.T) {
	svc, _ := newTaxonomyFixture(t)

	err := svc.Delete(context.Background(), domain.LevelRegion, 1, 42)
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}
