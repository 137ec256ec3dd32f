package favoriterepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/commute-ledger/transit-expense-api/internal/adapters/postgres"
	"github.com/commute-ledger/transit-expense-api/internal/domain"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/favoriterepo"
)

const selectFavorite = `
	SELECT
		f.external_id,
		m.external_id,
		f.name,
		f.departure,
		f.arrival,
		f.amount,
		f.transport,
		f.trip_type,
		f.created_at,
		f.updated_at
	FROM favorite_routes f
	JOIN members m ON m.id = f.member_id
`

// Repo is a Postgres implementation of favoriterepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, fr domain.FavoriteRoute) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(fr.ID))
	if err != nil {
		return fmt.Errorf("invalid favorite route id: %w", err)
	}
	owner, err := uuid.Parse(string(fr.MemberID))
	if err != nil {
		return favoriterepo.ErrUnknownMember
	}

	ct, err := r.pool.Exec(ctx, `
		INSERT INTO favorite_routes (
			external_id,
			member_id,
			name,
			departure,
			arrival,
			amount,
			transport,
			trip_type,
			created_at,
			updated_at
		)
		SELECT $1, m.id, $3, $4, $5, $6, $7, $8, $9, $10
		FROM members m
		WHERE m.external_id = $2
	`,
		id,
		owner,
		fr.Name,
		fr.Departure,
		fr.Arrival,
		fr.Amount,
		string(fr.Transport),
		string(fr.TripType),
		fr.CreatedAt.UTC(),
		fr.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode && pe.ConstraintName == "favorite_routes_external_id_unique" {
			return favoriterepo.ErrAlreadyExists
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return favoriterepo.ErrUnknownMember
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.FavoriteRouteID) (domain.FavoriteRoute, error) {
	if r.pool == nil {
		return domain.FavoriteRoute{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.FavoriteRoute{}, favoriterepo.ErrNotFound
	}
	return scanFavorite(r.pool.QueryRow(ctx, selectFavorite+` WHERE f.external_id = $1`, uid))
}

func (r *Repo) ListByMember(ctx context.Context, memberID domain.MemberID) ([]domain.FavoriteRoute, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(memberID))
	if err != nil {
		return []domain.FavoriteRoute{}, nil
	}
	rows, err := r.pool.Query(ctx, selectFavorite+`
		WHERE m.external_id = $1
		ORDER BY f.created_at DESC, f.external_id ASC
	`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.FavoriteRoute, 0)
	for rows.Next() {
		fr, err := scanFavorite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Update(ctx context.Context, fr domain.FavoriteRoute) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(fr.ID))
	if err != nil {
		return favoriterepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE favorite_routes
		SET name = $2,
		    departure = $3,
		    arrival = $4,
		    amount = $5,
		    transport = $6,
		    trip_type = $7,
		    updated_at = $8
		WHERE external_id = $1
	`,
		uid,
		fr.Name,
		fr.Departure,
		fr.Arrival,
		fr.Amount,
		string(fr.Transport),
		string(fr.TripType),
		fr.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return favoriterepo.ErrNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id domain.FavoriteRouteID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return favoriterepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM favorite_routes WHERE external_id = $1`, uid)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return favoriterepo.ErrNotFound
	}
	return nil
}

func scanFavorite(row pgx.Row) (domain.FavoriteRoute, error) {
	var (
		id        uuid.UUID
		memberID  uuid.UUID
		transport string
		tripType  string
		createdAt time.Time
		updatedAt time.Time
		fr        domain.FavoriteRoute
	)
	if err := row.Scan(
		&id,
		&memberID,
		&fr.Name,
		&fr.Departure,
		&fr.Arrival,
		&fr.Amount,
		&transport,
		&tripType,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FavoriteRoute{}, favoriterepo.ErrNotFound
		}
		return domain.FavoriteRoute{}, err
	}
	fr.ID = domain.FavoriteRouteID(id.String())
	fr.MemberID = domain.MemberID(memberID.String())
	fr.Transport = domain.Transport(transport)
	fr.TripType = domain.TripType(tripType)
	fr.CreatedAt = createdAt.UTC()
	fr.UpdatedAt = updatedAt.UTC()
	return fr, nil
}
