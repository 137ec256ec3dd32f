package favorites

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/clock"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/favoriterepo"
	"github.com/commute-ledger/transit-expense-api/internal/validation"
)

type Service struct {
	repo favoriterepo.Repository
	clk  clock.Clock

	newID func() domain.FavoriteRouteID
}

func NewService(repo favoriterepo.Repository, clk clock.Clock) *Service {
	return &Service{
		repo: repo,
		clk:  clk,
		newID: func() domain.FavoriteRouteID {
			return domain.FavoriteRouteID(uuid.NewString())
		},
	}
}

func (s *Service) ListFavorites(ctx context.Context, caller domain.Member) ([]domain.FavoriteRoute, error) {
	return s.repo.ListByMember(ctx, caller.ID)
}

func (s *Service) CreateFavorite(ctx context.Context, caller domain.Member, in Input) (domain.FavoriteRoute, error) {
	if err := validate(in); err != nil {
		return domain.FavoriteRoute{}, err
	}
	now := s.clk.Now()
	fr := domain.FavoriteRoute{
		ID:        s.newID(),
		MemberID:  caller.ID,
		CreatedAt: now,
	}
	apply(&fr, in, now)

	if err := s.repo.Create(ctx, fr); err != nil {
		if errors.Is(err, favoriterepo.ErrUnknownMember) {
			return domain.FavoriteRoute{}, &Error{Status: http.StatusForbidden, Code: "FORBIDDEN", Message: "member does not exist"}
		}
		return domain.FavoriteRoute{}, fmt.Errorf("create favorite route: %w", err)
	}
	return fr, nil
}

func (s *Service) UpdateFavorite(ctx context.Context, caller domain.Member, id domain.FavoriteRouteID, in Input) (domain.FavoriteRoute, error) {
	fr, err := s.owned(ctx, caller, id)
	if err != nil {
		return domain.FavoriteRoute{}, err
	}
	if err := validate(in); err != nil {
		return domain.FavoriteRoute{}, err
	}
	apply(&fr, in, s.clk.Now())

	if err := s.repo.Update(ctx, fr); err != nil {
		if errors.Is(err, favoriterepo.ErrNotFound) {
			return domain.FavoriteRoute{}, notFound()
		}
		return domain.FavoriteRoute{}, fmt.Errorf("update favorite route: %w", err)
	}
	return fr, nil
}

func (s *Service) DeleteFavorite(ctx context.Context, caller domain.Member, id domain.FavoriteRouteID) error {
	if _, err := s.owned(ctx, caller, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, favoriterepo.ErrNotFound) {
			return notFound()
		}
		return fmt.Errorf("delete favorite route: %w", err)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, caller domain.Member, id domain.FavoriteRouteID) (domain.FavoriteRoute, error) {
	fr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, favoriterepo.ErrNotFound) {
			return domain.FavoriteRoute{}, notFound()
		}
		return domain.FavoriteRoute{}, err
	}
	if fr.MemberID != caller.ID {
		return domain.FavoriteRoute{}, &Error{
			Status:  http.StatusForbidden,
			Code:    "FORBIDDEN",
			Message: "favorite route belongs to another member",
		}
	}
	return fr, nil
}

func notFound() *Error {
	return &Error{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "favorite route not found"}
}

func validate(in Input) error {
	if r := validation.Route(in.RouteFields); !r.Valid {
		return &Error{Status: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: r.Message}
	}
	return nil
}

// apply copies validated input onto fr.
func apply(fr *domain.FavoriteRoute, in Input, now time.Time) {
	amount, _ := validation.ParseAmount(*in.Amount)
	fr.Name = ""
	if in.Name != nil {
		fr.Name = domain.NormalizeHumanName(*in.Name)
	}
	fr.Departure = domain.NormalizeStation(*in.Departure)
	fr.Arrival = domain.NormalizeStation(*in.Arrival)
	fr.Amount = amount
	fr.Transport = domain.Transport(*in.Transport)
	fr.TripType = domain.TripType(*in.TripType)
	fr.UpdatedAt = now
}
