package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/regbot/core/logger"
)

// Service implements the welcome flow run on /start.
type Service struct {
	repo Repository
}

// NewService builds a Service over repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Welcome makes sure a record exists for the account. First contact inserts a NEW user;
// a NEW user seen again becomes RETURNED. Names are refreshed on every visit.
func (s *Service) Welcome(ctx context.Context, p Profile) (User, error) {
	u, err := s.repo.GetUser(ctx, p.TelegramID)
	switch {
	case errors.Is(err, ErrNotFound):
		u, err = s.repo.Insert(ctx, p, StatusNew)
		if errors.Is(err, ErrAlreadyExists) {
			// Lost an insert race against a concurrent /start.
			return s.repo.GetUser(ctx, p.TelegramID)
		}
		if err != nil {
			s.logFailure(ctx, "users.insert", p.TelegramID, err)
			return User{}, fmt.Errorf("welcome: %w", err)
		}
		logger.LogEvent(ctx, logger.SVCUsers, slog.LevelInfo, "users.created",
			slog.String("status", "ok"),
			slog.Int64("user_id", p.TelegramID),
		)
		return u, nil
	case err != nil:
		s.logFailure(ctx, "users.get", p.TelegramID, err)
		return User{}, fmt.Errorf("welcome: %w", err)
	}

	status := u.Status
	if status == StatusNew {
		status = StatusReturned
	}
	if status == u.Status && sameProfile(u, p) {
		return u, nil
	}
	updated, err := s.repo.UpdateProfile(ctx, p, status)
	if err != nil {
		s.logFailure(ctx, "users.update", p.TelegramID, err)
		return User{}, fmt.Errorf("welcome: %w", err)
	}
	logger.LogEvent(ctx, logger.SVCUsers, slog.LevelDebug, "users.updated",
		slog.String("status", "ok"),
		slog.Int64("user_id", p.TelegramID),
		slog.String("user_status", string(updated.Status)),
	)
	return updated, nil
}

func (s *Service) logFailure(ctx context.Context, event string, telegramID int64, err error) {
	logger.LogEvent(ctx, logger.SVCUsers, slog.LevelError, event,
		slog.String("status", "fail"),
		slog.Int64("user_id", telegramID),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
}

func sameProfile(u User, p Profile) bool {
	return u.Username == p.Username && u.FirstName == p.FirstName && u.LastName == p.LastName
}
