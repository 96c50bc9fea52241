package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/casebook/internal/cache"
	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/repository"
)

// treeCacheTTL bounds staleness of the cached taxonomy tree between writes.
const treeCacheTTL = 10 * time.Minute

// TaxonomyService manages each professional's clinical hierarchy and
// assembles the nested tree the submission form is built from. The tree is
// cached per user and invalidated on every write.
type TaxonomyService struct {
	taxonomyRepo repository.TaxonomyRepository
	cache        cache.Cache
	logger       zerolog.Logger
}

// NewTaxonomyService creates a new TaxonomyService.
func NewTaxonomyService(
	taxonomyRepo repository.TaxonomyRepository,
	c cache.Cache,
	logger zerolog.Logger,
) *TaxonomyService {
	return &TaxonomyService{
		taxonomyRepo: taxonomyRepo,
		cache:        c,
		logger:       logger.With().Str("service", "taxonomy").Logger(),
	}
}

// CreateNodeInput contains the data to create a taxonomy entry.
type CreateNodeInput struct {
	OwnerUserID int64
	Level       domain.TaxonomyLevel
	ParentID    *int64
	Name        string
}

// Create adds an entry at the given level. Non-root levels require a parent
// owned by the same user.
func (s *TaxonomyService) Create(ctx context.Context, input CreateNodeInput) (*domain.TaxonomyNode, error) {
	if !input.Level.Valid() {
		return nil, domain.NewValidationError("level", fmt.Sprintf("unknown taxonomy level %q", input.Level))
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "name is required")
	}

	if parent := input.Level.Parent(); parent != "" {
		if input.ParentID == nil {
			return nil, domain.NewValidationError("parent_id", fmt.Sprintf("%s requires a parent %s", input.Level, parent))
		}
		// Verifies both existence and ownership of the parent.
		if _, err := s.taxonomyRepo.Get(ctx, parent, input.OwnerUserID, *input.ParentID); err != nil {
			if errors.Is(err, domain.ErrTaxonomyNodeNotFound) {
				return nil, domain.NewNotFoundError(err, fmt.Sprintf("parent %s not found", parent))
			}
			s.logger.Error().Err(err).Msg("failed to verify parent")
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
	} else if input.ParentID != nil {
		return nil, domain.NewValidationError("parent_id", "regions have no parent")
	}

	node := &domain.TaxonomyNode{
		OwnerUserID: input.OwnerUserID,
		Level:       input.Level,
		ParentID:    input.ParentID,
		Name:        name,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.taxonomyRepo.Create(ctx, node); err != nil {
		s.logger.Error().Err(err).Str("level", string(input.Level)).Msg("failed to create taxonomy entry")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.invalidateTree(ctx, input.OwnerUserID)
	s.logger.Info().
		Int64("owner_id", input.OwnerUserID).
		Str("level", string(input.Level)).
		Str("name", name).
		Msg("taxonomy entry created")
	return node, nil
}

// Rename updates an entry's display name.
func (s *TaxonomyService) Rename(ctx context.Context, level domain.TaxonomyLevel, ownerUserID, id int64, name string) error {
	if !level.Valid() {
		return domain.NewValidationError("level", fmt.Sprintf("unknown taxonomy level %q", level))
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.NewValidationError("name", "name is required")
	}

	if err := s.taxonomyRepo.Rename(ctx, level, ownerUserID, id, name); err != nil {
		if errors.Is(err, domain.ErrTaxonomyNodeNotFound) {
			return domain.NewNotFoundError(err, "taxonomy entry not found")
		}
		s.logger.Error().Err(err).Str("level", string(level)).Int64("id", id).Msg("failed to rename taxonomy entry")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	s.invalidateTree(ctx, ownerUserID)
	return nil
}

// Delete removes an entry and, through foreign keys, everything below it.
func (s *TaxonomyService) Delete(ctx context.Context, level domain.TaxonomyLevel, ownerUserID, id int64) error {
	if !level.Valid() {
		return domain.NewValidationError("level", fmt.Sprintf("unknown taxonomy level %q", level))
	}

	if err := s.taxonomyRepo.Delete(ctx, level, ownerUserID, id); err != nil {
		if errors.Is(err, domain.ErrTaxonomyNodeNotFound) {
			return domain.NewNotFoundError(err, "taxonomy entry not found")
		}
		s.logger.Error().Err(err).Str("level", string(level)).Int64("id", id).Msg("failed to delete taxonomy entry")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	s.invalidateTree(ctx, ownerUserID)
	return nil
}

// List returns the owner's entries at one level.
func (s *TaxonomyService) List(ctx context.Context, level domain.TaxonomyLevel, ownerUserID int64) ([]*domain.TaxonomyNode, error) {
	if !level.Valid() {
		return nil, domain.NewValidationError("level", fmt.Sprintf("unknown taxonomy level %q", level))
	}
	nodes, err := s.taxonomyRepo.ListByOwner(ctx, level, ownerUserID)
	if err != nil {
		s.logger.Error().Err(err).Str("level", string(level)).Msg("failed to list taxonomy entries")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return nodes, nil
}

// Tree returns the owner's full hierarchy nested top-down, served from cache
// when possible.
func (s *TaxonomyService) Tree(ctx context.Context, ownerUserID int64) (*domain.TaxonomyTree, error) {
	cacheKey := treeCacheKey(ownerUserID)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			tree := &domain.TaxonomyTree{}
			if err := json.Unmarshal(data, tree); err == nil {
				return tree, nil
			}
			// Corrupt entry; fall through and rebuild.
			s.cache.Delete(ctx, cacheKey)
		}
	}

	tree, err := s.buildTree(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(tree); err == nil {
			if err := s.cache.Set(ctx, cacheKey, data, treeCacheTTL); err != nil {
				s.logger.Warn().Err(err).Msg("failed to cache taxonomy tree")
			}
		}
	}
	return tree, nil
}

// buildTree loads all five levels once and links children to parents.
func (s *TaxonomyService) buildTree(ctx context.Context, ownerUserID int64) (*domain.TaxonomyTree, error) {
	nodesByLevel := make(map[domain.TaxonomyLevel][]*domain.TaxonomyNode, len(domain.TaxonomyLevels))
	branches := make(map[domain.TaxonomyLevel]map[int64]*domain.TaxonomyBranch, len(domain.TaxonomyLevels))

	for _, level := range domain.TaxonomyLevels {
		nodes, err := s.taxonomyRepo.ListByOwner(ctx, level, ownerUserID)
		if err != nil {
			s.logger.Error().Err(err).Str("level", string(level)).Msg("failed to load taxonomy level")
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		nodesByLevel[level] = nodes
		branches[level] = make(map[int64]*domain.TaxonomyBranch, len(nodes))
		for _, node := range nodes {
			branches[level][node.ID] = &domain.TaxonomyBranch{ID: node.ID, Name: node.Name}
		}
	}

	for _, level := range domain.TaxonomyLevels[1:] {
		parentLevel := level.Parent()
		for _, node := range nodesByLevel[level] {
			if node.ParentID == nil {
				continue
			}
			if parent, ok := branches[parentLevel][*node.ParentID]; ok {
				parent.Children = append(parent.Children, branches[level][node.ID])
			}
		}
	}

	tree := &domain.TaxonomyTree{Regions: make([]*domain.TaxonomyBranch, 0, len(nodesByLevel[domain.LevelRegion]))}
	for _, rn := range nodesByLevel[domain.LevelRegion] {
		tree.Regions = append(tree.Regions, branches[domain.LevelRegion][rn.ID])
	}
	return tree, nil
}

func treeCacheKey(ownerUserID int64) string {
	return fmt.Sprintf("taxonomy:tree:%d", ownerUserID)
}

func (s *TaxonomyService) invalidateTree(ctx context.Context, ownerUserID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, treeCacheKey(ownerUserID)); err != nil {
		s.logger.Warn().Err(err).Int64("owner_id", ownerUserID).Msg("failed to invalidate taxonomy tree cache")
	}
}
