package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/repository"
)

// FavoriteService lets users bookmark images.
type FavoriteService struct {
	favoriteRepo repository.FavoriteRepository
	imageRepo    repository.ImageRepository
	caseRepo     repository.CaseRepository
	logger       zerolog.Logger
}

// NewFavoriteService creates a new FavoriteService.
func NewFavoriteService(
	favoriteRepo repository.FavoriteRepository,
	imageRepo repository.ImageRepository,
	caseRepo repository.CaseRepository,
	logger zerolog.Logger,
) *FavoriteService {
	return &FavoriteService{
		favoriteRepo: favoriteRepo,
		imageRepo:    imageRepo,
		caseRepo:     caseRepo,
		logger:       logger.With().Str("service", "favorite").Logger(),
	}
}

// Add marks one of the user's own images as a favorite.
func (s *FavoriteService) Add(ctx context.Context, userID, imageID int64) (*domain.Favorite, error) {
	img, err := s.imageRepo.GetByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			return nil, domain.NewNotFoundError(err, "image not found")
		}
		s.logger.Error().Err(err).Int64("image_id", imageID).Msg("failed to get image")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	c, err := s.caseRepo.GetByID(ctx, img.CaseID)
	if err != nil || c.UploadedBy != userID {
		return nil, domain.NewNotFoundError(domain.ErrImageNotFound, "image not found")
	}

	fav := &domain.Favorite{
		UserID:    userID,
		ImageID:   imageID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.favoriteRepo.Create(ctx, fav); err != nil {
		if errors.Is(err, domain.ErrFavoriteAlreadyExists) {
			return nil, domain.NewConflictError(err, "image already marked as favorite")
		}
		s.logger.Error().Err(err).Int64("image_id", imageID).Msg("failed to create favorite")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return fav, nil
}

// Remove unmarks a favorite.
func (s *FavoriteService) Remove(ctx context.Context, userID, imageID int64) error {
	if err := s.favoriteRepo.Delete(ctx, userID, imageID); err != nil {
		if errors.Is(err, domain.ErrFavoriteNotFound) {
			return domain.NewNotFoundError(err, "favorite not found")
		}
		s.logger.Error().Err(err).Int64("image_id", imageID).Msg("failed to delete favorite")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return nil
}

// List returns the user's favorites with their images resolved. Favorites
// whose image has since been deleted are skipped.
func (s *FavoriteService) List(ctx context.Context, userID int64) ([]*domain.Image, error) {
	favorites, err := s.favoriteRepo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to list favorites")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	images := make([]*domain.Image, 0, len(favorites))
	for _, fav := range favorites {
		img, err := s.imageRepo.GetByID(ctx, fav.ImageID)
		if err != nil {
			if errors.Is(err, domain.ErrImageNotFound) {
				continue
			}
			s.logger.Error().Err(err).Int64("image_id", fav.ImageID).Msg("failed to resolve favorite image")
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		images = append(images, img)
	}
	return images, nil
}
