package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/prn-tf/casebook/internal/blobstore"
	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/metrics"
	"github.com/prn-tf/casebook/internal/repository"
)

// Upload is one image file to attach to a case.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ImageService uploads image blobs and manages their database rows.
type ImageService struct {
	imageRepo repository.ImageRepository
	store     blobstore.Store
	bucket    string
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewImageService creates a new ImageService. bucket is used to recover
// object keys from stored URLs.
func NewImageService(
	imageRepo repository.ImageRepository,
	store blobstore.Store,
	bucket string,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ImageService {
	return &ImageService{
		imageRepo: imageRepo,
		store:     store,
		bucket:    bucket,
		metrics:   m,
		logger:    logger.With().Str("service", "image").Logger(),
	}
}

// Attach uploads all files concurrently, then records one image row per
// upload. The operation is all-or-nothing: if any upload fails, blobs that
// already made it to storage are removed; if a row insert fails, both the
// rows created so far and all uploaded blobs are removed. Cleanup is
// best-effort and never masks the original failure.
func (s *ImageService) Attach(ctx context.Context, caseID, ownerUserID int64, phase domain.Phase, uploads []Upload) ([]*domain.Image, error) {
	if len(uploads) == 0 {
		return nil, nil
	}

	urls := make([]string, len(uploads))
	now := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i, up := range uploads {
		g.Go(func() error {
			key := blobstore.NewKey(ownerUserID, up.Filename, now)
			url, err := s.store.Put(gctx, key, up.Body, up.Size, up.ContentType)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if s.metrics != nil {
			s.metrics.UploadFailures.Inc()
		}
		s.logger.Error().Err(err).Int64("case_id", caseID).Msg("image upload failed")
		s.removeBlobs(ctx, urls)
		return nil, domain.NewStorageError(err, "image upload failed")
	}

	images := make([]*domain.Image, 0, len(uploads))
	for _, url := range urls {
		img := domain.NewImage(caseID, url, phase)
		if err := s.imageRepo.Create(ctx, img); err != nil {
			s.logger.Error().Err(err).Int64("case_id", caseID).Msg("failed to record image")
			s.removeRows(ctx, images)
			s.removeBlobs(ctx, urls)
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		images = append(images, img)
	}

	if s.metrics != nil {
		s.metrics.ImagesUploaded.Add(float64(len(images)))
	}
	s.logger.Info().Int64("case_id", caseID).Int("count", len(images)).Msg("images attached")
	return images, nil
}

// RemoveBlob deletes the blob behind an image URL. Best-effort: failures are
// logged and counted, never returned, so blob-store outages cannot block
// database cleanup.
func (s *ImageService) RemoveBlob(ctx context.Context, url string) {
	key, err := blobstore.KeyFromURL(url, s.bucket)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", url).Msg("cannot derive blob key, skipping delete")
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		if s.metrics != nil {
			s.metrics.BlobDeleteErrors.Inc()
		}
		s.logger.Warn().Err(err).Str("key", key).Msg("blob delete failed, continuing")
	}
}

// removeBlobs deletes every non-empty URL. Runs on a detached context so
// cleanup still happens when the request context is already cancelled.
func (s *ImageService) removeBlobs(ctx context.Context, urls []string) {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, url := range urls {
		if url != "" {
			s.RemoveBlob(cleanupCtx, url)
		}
	}
}

// removeRows deletes image rows created before a mid-batch failure.
func (s *ImageService) removeRows(ctx context.Context, images []*domain.Image) {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, img := range images {
		if err := s.imageRepo.Delete(cleanupCtx, img.ID); err != nil {
			s.logger.Warn().Err(err).Int64("image_id", img.ID).Msg("image row cleanup failed")
		}
	}
}
