package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"ForumMirror/internal/domain"
	"ForumMirror/internal/infrastructure/parser"
	"ForumMirror/internal/ports"
	"ForumMirror/internal/scanner"
)

var (
	_ scanner.Scanner = (*PrimaryScanner)(nil)
	_ scanner.Scanner = (*MigratedScanner)(nil)
)

// PrimaryScanner watches the primary site's recent comments page.
// Edited comments are republished; newer comments queue their post for a fetch.
type PrimaryScanner struct {
	source    ports.PageSource
	store     ports.Store
	publisher ports.Publisher
	logger    *slog.Logger
}

// NewPrimaryScanner wires the primary-site scanner.
func NewPrimaryScanner(source ports.PageSource, store ports.Store, publisher ports.Publisher, logger *slog.Logger) *PrimaryScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrimaryScanner{source: source, store: store, publisher: publisher, logger: logger}
}

// Name identifies the scanner in the registry.
func (s *PrimaryScanner) Name() string {
	return domain.SourcePrimary.String()
}

// Scan runs one poll and reports whether anything new was seen.
func (s *PrimaryScanner) Scan(ctx context.Context) (bool, error) {
	page, err := s.source.FetchRecentComments(ctx)
	if err != nil {
		return false, err
	}
	if !page.OK() {
		return false, fmt.Errorf("recent comments: HTTP error %d", page.Status)
	}
	parsed, err := parser.ParseRecentComments(page.Body)
	if err != nil {
		return false, fmt.Errorf("parse recent comments: %w", err)
	}

	var (
		updated []domain.Comment
		queued  []int64
	)
	err = s.store.WithTx(ctx, func(tx ports.Store) error {
		updated, queued = nil, nil
		for _, c := range parsed.Comments {
			stored, ok, err := tx.Comment(ctx, c.ID)
			if err != nil {
				return err
			}
			if ok && stored.Text != c.Text {
				if err := tx.UpdateCommentText(ctx, c.ID, c.Text); err != nil {
					return err
				}
				stored.Text = c.Text
				updated = append(updated, stored)
			}

			bumped, err := tx.BumpHighWater(ctx, c.PostID, c.ID, domain.PriorityHasComments)
			if err != nil {
				return err
			}
			if bumped {
				queued = append(queued, c.PostID)
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("store recent comments: %w", err)
	}

	if len(queued) > 0 {
		s.logger.Info("new comments sighted", "posts", queued)
	}
	if len(updated) > 0 {
		if err := s.publisher.Publish(ctx, domain.Delta{Updated: updated}); err != nil {
			s.logger.Warn("publish failed", "error", err)
		}
	}
	return len(queued) > 0 || len(updated) > 0, nil
}

// MigratedScanner watches the migrated site's recent comments page and feeds the reconciler.
type MigratedScanner struct {
	source     ports.PageSource
	parser     *parser.MigratedParser
	reconciler *Reconciler
	publisher  ports.Publisher
	logger     *slog.Logger

	lastSeen *int64
}

// NewMigratedScanner wires the migrated-site scanner.
func NewMigratedScanner(source ports.PageSource, p *parser.MigratedParser, reconciler *Reconciler, publisher ports.Publisher, logger *slog.Logger) *MigratedScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &MigratedScanner{source: source, parser: p, reconciler: reconciler, publisher: publisher, logger: logger}
}

// Name identifies the scanner in the registry.
func (s *MigratedScanner) Name() string {
	return domain.SourceMigrated.String()
}

// Scan runs one poll. The page is newest first, so a changed head entry means activity.
func (s *MigratedScanner) Scan(ctx context.Context) (bool, error) {
	page, err := s.source.FetchMigratedComments(ctx)
	if err != nil {
		return false, err
	}
	if !page.OK() {
		return false, fmt.Errorf("migrated comments: HTTP error %d", page.Status)
	}
	sightings, err := s.parser.Parse(page.Body)
	if err != nil {
		return false, fmt.Errorf("parse migrated comments: %w", err)
	}

	updated, err := s.reconciler.Reconcile(ctx, sightings)
	if err != nil {
		return false, fmt.Errorf("reconcile links: %w", err)
	}
	if len(updated) > 0 {
		if err := s.publisher.Publish(ctx, domain.Delta{Updated: updated}); err != nil {
			s.logger.Warn("publish failed", "error", err)
		}
	}

	head := sightings[0].XyzID
	found := !sameID(head, s.lastSeen)
	s.lastSeen = head
	return found || len(updated) > 0, nil
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
