// Package ingest orchestrates webhook ingestion: payload normalization,
// conditional merge into the document store, best-effort archival of the
// raw body, and event emission.
package ingest

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capturelabs/capturesink/internal/archive"
	"github.com/capturelabs/capturesink/internal/capture"
	"github.com/capturelabs/capturesink/internal/docstore"
	"github.com/capturelabs/capturesink/internal/notify"
)

// Config controls Service behavior.
type Config struct {
	// MaxMergeAttempts caps the read-merge-write loop per collection
	// (default 5).
	MaxMergeAttempts int
	// ArchivePrefix roots archived payload paths (default "captures").
	ArchivePrefix string
}

const (
	defaultMaxMergeAttempts = 5
	defaultArchivePrefix    = "captures"
	archiveContentType      = "application/json"
	conflictBaseDelay       = 10 * time.Millisecond
	conflictMaxDelay        = 250 * time.Millisecond
)

// Result summarizes one processed payload.
type Result struct {
	// TaskID is empty when the payload carried no task.
	TaskID string
	// DocKey is the derived document key, "unknown" when underivable.
	DocKey string
	// Appended counts newly appended items per processed collection.
	Appended map[string]int
	// ArchiveURI points at the archived raw body; empty when archiving
	// is off or failed.
	ArchiveURI string
}

// Service executes the ingest pipeline for webhook payloads.
type Service struct {
	docs       docstore.Store
	blobs      archive.Store
	normalizer *capture.Normalizer
	hasher     capture.Hasher
	clock      capture.Clock
	emitter    notify.Emitter
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Service.
func New(
	docs docstore.Store,
	blobs archive.Store,
	normalizer *capture.Normalizer,
	hasher capture.Hasher,
	clock capture.Clock,
	emitter notify.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.MaxMergeAttempts <= 0 {
		cfg.MaxMergeAttempts = defaultMaxMergeAttempts
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = defaultArchivePrefix
	}
	if blobs == nil {
		blobs = archive.NoOp{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		docs:       docs,
		blobs:      blobs,
		normalizer: normalizer,
		hasher:     hasher,
		clock:      clock,
		emitter:    emitter,
		cfg:        cfg,
		logger:     logger,
	}
}

// Ingest runs the pipeline over one decoded payload. raw is the verbatim
// request body, archived before any transformation. Collections are
// processed in a fixed order; the first store failure aborts the rest and
// surfaces to the caller.
func (s *Service) Ingest(ctx context.Context, payload capture.WebhookPayload, raw []byte) (Result, error) {
	task := payload.Task
	originURL := task.SourceURL()
	docKey := capture.DeriveDocKey(originURL)

	res := Result{DocKey: docKey, Appended: map[string]int{}}
	if task != nil {
		res.TaskID = task.ID
	}
	res.ArchiveURI = s.archiveRaw(ctx, docKey, raw)

	sections := task.Sections()
	for _, collection := range capture.Collections() {
		section, ok := sections[collection]
		if !ok {
			continue
		}
		start := s.clock.Now()
		normalized := s.normalizer.NormalizeSection(section, docKey, originURL)
		appended, err := s.mergeCollection(ctx, collection, docKey, normalized)
		dur := s.clock.Now().Sub(start)
		if err != nil {
			s.logger.Error("collection merge failed",
				zap.String("doc_key", docKey),
				zap.String("collection", collection),
				zap.Error(err))
			s.emit(notify.Event{
				Kind:       notify.KindIngestFailed,
				TS:         s.clock.Now(),
				TaskID:     res.TaskID,
				DocKey:     docKey,
				Collection: collection,
				Dur:        dur,
				Note:       err.Error(),
			})
			return res, fmt.Errorf("merge %s/%s: %w", collection, docKey, err)
		}
		res.Appended[collection] = appended
		s.emit(notify.Event{
			Kind:       notify.KindIngested,
			TS:         s.clock.Now(),
			TaskID:     res.TaskID,
			DocKey:     docKey,
			Collection: collection,
			Items:      appended,
			ArchiveURI: res.ArchiveURI,
			Dur:        dur,
		})
		s.logger.Info("collection merged",
			zap.String("doc_key", docKey),
			zap.String("collection", collection),
			zap.Int("appended", appended))
	}
	return res, nil
}

// DeleteDocument removes a stored document and emits the delete event.
// docstore.ErrNotFound passes through wrapped for the caller's 404 mapping.
func (s *Service) DeleteDocument(ctx context.Context, collection, key string) error {
	if err := s.docs.Delete(ctx, collection, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	s.emit(notify.Event{
		Kind:       notify.KindDocumentDeleted,
		TS:         s.clock.Now(),
		DocKey:     key,
		Collection: collection,
	})
	s.logger.Info("document deleted",
		zap.String("collection", collection),
		zap.String("doc_key", key))
	return nil
}

// mergeCollection loops read-merge-write until the conditional set lands,
// retrying lost races with jittered backoff. It returns the number of items
// the write appended.
func (s *Service) mergeCollection(ctx context.Context, collection, docKey string, normalized map[string]any) (int, error) {
	for attempt := 0; attempt < s.cfg.MaxMergeAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, conflictBackoff(attempt-1)); err != nil {
				return 0, err
			}
		}
		existing, revision, err := s.docs.Get(ctx, collection, docKey)
		if errors.Is(err, docstore.ErrNotFound) {
			existing = docstore.Document{}
			revision = docstore.NoRevision
		} else if err != nil {
			return 0, fmt.Errorf("get document: %w", err)
		}

		merged := capture.MergeData(existing.Data, normalized)
		err = s.docs.ConditionalSet(ctx, collection, docKey, docstore.Document{Data: merged}, revision)
		if errors.Is(err, docstore.ErrConflict) {
			s.logger.Debug("conditional write conflicted",
				zap.String("doc_key", docKey),
				zap.String("collection", collection),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("conditional set: %w", err)
		}
		return countItems(merged) - countItems(existing.Data), nil
	}
	return 0, fmt.Errorf("conditional write conflicted %d times", s.cfg.MaxMergeAttempts)
}

// archiveRaw stores the verbatim payload; failures are logged, never fatal.
func (s *Service) archiveRaw(ctx context.Context, docKey string, raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	hash, err := s.hasher.Hash(raw)
	if err != nil {
		s.logger.Warn("payload hash failed", zap.String("doc_key", docKey), zap.Error(err))
		return ""
	}
	path := s.buildArchivePath(docKey, hash)
	uri, err := s.blobs.PutObject(ctx, path, archiveContentType, bytes.NewReader(raw))
	if err != nil {
		s.logger.Warn("payload archive failed",
			zap.String("doc_key", docKey),
			zap.String("path", path),
			zap.Error(err))
		return ""
	}
	return uri
}

func (s *Service) buildArchivePath(docKey, hash string) string {
	prefix := strings.Trim(s.cfg.ArchivePrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.json", docKey, hash)
	}
	return fmt.Sprintf("%s/%s/%s.json", prefix, docKey, hash)
}

func (s *Service) emit(evt notify.Event) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(evt)
}

// countItems totals the lengths of array-valued categories.
func countItems(data map[string]any) int {
	total := 0
	for _, v := range data {
		if items, ok := v.([]any); ok {
			total += len(items)
		}
	}
	return total
}

// conflictBackoff returns a jittered exponential delay before retry attempt.
func conflictBackoff(attempt int) time.Duration {
	delay := float64(conflictBaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(conflictMaxDelay) {
		delay = float64(conflictMaxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("merge retry wait: %w", ctx.Err())
	}
}
