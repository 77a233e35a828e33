package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/guatepass/tolling/internal/domain"
)

// Publisher hands a canonical crossing event to the settlement pipeline.
type Publisher interface {
	Publish(ctx context.Context, event domain.TollCrossingEvent) error
}

// UserStore is the write side of the directory used by bulk import.
type UserStore interface {
	Upsert(ctx context.Context, u *domain.UserProfile) (bool, error)
}

// ImportResult summarises a bulk user import.
type ImportResult struct {
	Total    int        `json:"total"`
	Created  int        `json:"created"`
	Updated  int        `json:"updated"`
	Errors   int        `json:"errors"`
	Failures []RowError `json:"failures,omitempty"`
}

// Service handles crossing webhooks and bulk user imports.
type Service struct {
	publisher Publisher
	users     UserStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new ingestion service.
func NewService(publisher Publisher, users UserStore, logger *slog.Logger) *Service {
	return &Service{
		publisher: publisher,
		users:     users,
		logger:    logger.With("component", "ingestion"),
		now:       time.Now,
	}
}

// IngestCrossing validates and normalizes a detection and publishes it.
// Settlement happens asynchronously.
func (s *Service) IngestCrossing(ctx context.Context, hook TollWebhook) (domain.TollCrossingEvent, error) {
	event, err := hook.ToEvent(s.now())
	if err != nil {
		return domain.TollCrossingEvent{}, err
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		return domain.TollCrossingEvent{}, fmt.Errorf("publish %s: %w", event.EventID, err)
	}

	s.logger.Info("crossing ingested",
		"event_id", event.EventID, "plate", event.Plate, "toll_point_id", event.TollPointID, "tag_id", event.TagID)
	return event, nil
}

// ImportUsers loads a user CSV into the directory. A bad record is counted
// and skipped; the rest of the batch still goes in. Existing profiles keep
// their balance and tag.
func (s *Service) ImportUsers(ctx context.Context, r io.Reader) (*ImportResult, error) {
	users, rowErrs, err := ParseUsersCSV(r)
	if err != nil {
		return nil, fmt.Errorf("parse users csv: %w", err)
	}

	result := &ImportResult{
		Total:    len(users) + len(rowErrs),
		Errors:   len(rowErrs),
		Failures: rowErrs,
	}

	for i := range users {
		u := &users[i]
		created, err := s.users.Upsert(ctx, u)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			s.logger.Warn("user import failed", "plate", u.Plate, "error", err)
			result.Errors++
			result.Failures = append(result.Failures, RowError{Plate: u.Plate, Error: err.Error()})
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	s.logger.Info("users imported",
		"total", result.Total, "created", result.Created, "updated", result.Updated, "errors", result.Errors)
	return result, nil
}
