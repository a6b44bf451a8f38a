package usecase

import (
	"context"
	"log/slog"

	"ForumMirror/internal/domain"
	"ForumMirror/internal/ports"
)

// Reconciler keeps the primary-to-migrated comment id links in step with what the migrated site shows.
type Reconciler struct {
	store  ports.Store
	logger *slog.Logger
}

// NewReconciler builds a reconciler over the store.
func NewReconciler(store ports.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, logger: logger}
}

// Reconcile applies sightings in order and returns the known comments whose link changed.
// Links to comments not fetched yet are stored anyway and picked up once the comment arrives.
func (r *Reconciler) Reconcile(ctx context.Context, sightings []domain.MigratedSighting) ([]domain.Comment, error) {
	var (
		updated    []domain.Comment
		seen       = map[int64]int{}
		linked     int
		prefetched int
	)
	err := r.store.WithTx(ctx, func(tx ports.Store) error {
		updated, linked, prefetched = nil, 0, 0
		clear(seen)
		for _, s := range sightings {
			if s.ID == nil || s.XyzID == nil {
				continue
			}
			link, ok, err := tx.Link(ctx, *s.ID)
			if err != nil {
				return err
			}
			if ok && link.XyzID != nil && *link.XyzID == *s.XyzID {
				continue
			}

			xyzID := *s.XyzID
			if err := tx.SaveLink(ctx, domain.CommentLink{CommentID: *s.ID, XyzID: &xyzID}); err != nil {
				return err
			}
			linked++

			comment, exists, err := tx.Comment(ctx, *s.ID)
			if err != nil {
				return err
			}
			if !exists {
				prefetched++
				continue
			}
			if i, dup := seen[comment.ID]; dup {
				updated[i] = comment
				continue
			}
			seen[comment.ID] = len(updated)
			updated = append(updated, comment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if linked > 0 {
		r.logger.Info("comment links changed", "linked", linked, "prefetched", prefetched, "updated", len(updated))
	}
	return updated, nil
}
