package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
	"time"

	"github.com/ds124wfegd/facesvg/internal/database"
	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/ds124wfegd/facesvg/internal/pkg/queue"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxClaimAttempts = 5

type jobService struct {
	repo       database.JobRepository
	dispatcher queue.Dispatcher
	dedup      bool
	newID      func() string
	now        func() time.Time
}

func newJobService(repo database.JobRepository, dispatcher queue.Dispatcher, dedup bool) *jobService {
	return &jobService{
		repo:       repo,
		dispatcher: dispatcher,
		dedup:      dedup,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// ContentHash digests everything the pipeline reads: the image bytes, the
// landmarks and the segmentation map. Each part is length-prefixed. Hashing
// the image alone would hand back a stale result for the same photo with new
// landmarks or a new mask.
func ContentHash(in entity.JobInput) string {
	h := sha256.New()
	writePart(h, in.Image)

	landmarks := make([]byte, 0, len(in.Landmarks)*16)
	for _, p := range in.Landmarks {
		landmarks = binary.BigEndian.AppendUint64(landmarks, math.Float64bits(p.X))
		landmarks = binary.BigEndian.AppendUint64(landmarks, math.Float64bits(p.Y))
	}
	writePart(h, landmarks)
	writePart(h, in.Segmentation)

	return hex.EncodeToString(h.Sum(nil))
}

func writePart(h hash.Hash, data []byte) {
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(data)))
	h.Write(size[:])
	h.Write(data)
}

func (s *jobService) Submit(ctx context.Context, in entity.JobInput) (string, error) {
	contentHash := ContentHash(in)
	job := entity.NewJob(s.newID(), contentHash, s.now())
	log := logrus.WithFields(logrus.Fields{
		"job_id":       job.ID,
		"content_hash": contentHash,
	})

	// the record exists before the claim, so a claimed hash never points at
	// a job that is still being written
	if err := s.repo.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	if s.dedup {
		owner, err := s.claim(ctx, contentHash, job.ID)
		if err != nil {
			s.discard(ctx, job.ID)
			return "", err
		}
		if owner != job.ID {
			s.discard(ctx, job.ID)
			log.WithField("existing_job_id", owner).Info("duplicate submission, reusing job")
			return owner, nil
		}
	}

	task := entity.ProcessingTask{
		JobID:        job.ID,
		ContentHash:  contentHash,
		Image:        in.Image,
		Landmarks:    in.Landmarks,
		Segmentation: in.Segmentation,
	}
	if err := s.dispatcher.Enqueue(ctx, task); err != nil {
		if s.dedup {
			if relErr := s.repo.ReleaseHash(ctx, contentHash, job.ID); relErr != nil {
				log.WithError(relErr).Error("failed to release hash claim")
			}
		}
		s.discard(ctx, job.ID)
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	log.Info("job submitted")
	return job.ID, nil
}

// claim makes jobID the owner of contentHash unless a live job owns it, and
// returns the resulting owner. Failed or vanished owners are replaced with a
// compare-and-swap so the content gets processed again.
func (s *jobService) claim(ctx context.Context, contentHash, jobID string) (string, error) {
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		owner, err := s.repo.ClaimHash(ctx, contentHash, jobID)
		if err != nil {
			return "", fmt.Errorf("claim content hash: %w", err)
		}
		if owner == jobID {
			return jobID, nil
		}

		if owner != "" {
			existing, err := s.repo.FindByID(ctx, owner)
			if err != nil {
				return "", fmt.Errorf("load job %s: %w", owner, err)
			}
			if existing != nil && existing.State != entity.StateFailed {
				return owner, nil
			}
		}

		swapped, err := s.repo.SwapHash(ctx, contentHash, owner, jobID)
		if err != nil {
			return "", fmt.Errorf("swap content hash: %w", err)
		}
		if swapped {
			return jobID, nil
		}
	}
	return "", fmt.Errorf("claim content hash %s: too much contention", contentHash)
}

func (s *jobService) discard(ctx context.Context, id string) {
	if err := s.repo.Delete(ctx, id); err != nil {
		logrus.WithError(err).WithField("job_id", id).Error("failed to delete unused job")
	}
}

func (s *jobService) Poll(ctx context.Context, id string) (*entity.JobStatusView, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return job.View(), nil
}
