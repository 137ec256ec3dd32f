package memberrepo

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
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/memberrepo"
)

const selectMember = `
	SELECT
		m.external_id,
		m.email,
		m.name,
		m.is_admin,
		m.is_active,
		m.created_at,
		m.updated_at
	FROM members m
`

// Repo is a Postgres implementation of memberrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, m memberrepo.Member) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(m.ID))
	if err != nil {
		return fmt.Errorf("invalid member id: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO members (
			external_id,
			email,
			name,
			is_admin,
			is_active,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		id,
		m.Email,
		m.Name,
		m.IsAdmin,
		m.IsActive,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
	return mapUniqueViolation(err)
}

func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
		switch pe.ConstraintName {
		case "members_email_unique":
			return memberrepo.ErrEmailTaken
		case "members_external_id_unique":
			return memberrepo.ErrAlreadyExists
		}
	}
	return err
}

func (r *Repo) Update(ctx context.Context, m memberrepo.Member) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(m.ID))
	if err != nil {
		return memberrepo.ErrNotFound
	}

	ct, err := r.pool.Exec(ctx, `
		UPDATE members
		SET email = $2,
		    name = $3,
		    is_admin = $4,
		    is_active = $5,
		    updated_at = $6
		WHERE external_id = $1
	`,
		id,
		m.Email,
		m.Name,
		m.IsAdmin,
		m.IsActive,
		m.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if ct.RowsAffected() == 0 {
		return memberrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.MemberID) (memberrepo.Member, error) {
	if r.pool == nil {
		return memberrepo.Member{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return memberrepo.Member{}, memberrepo.ErrNotFound
	}
	return scanMember(r.pool.QueryRow(ctx, selectMember+` WHERE m.external_id = $1`, uid))
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (memberrepo.Member, error) {
	if r.pool == nil {
		return memberrepo.Member{}, errors.New("nil postgres pool")
	}
	return scanMember(r.pool.QueryRow(ctx, selectMember+` WHERE lower(m.email) = lower(btrim($1))`, email))
}

// UpsertByEmail inserts m unless a member with the same email exists, in which
// case the stored row is returned untouched. The insert and the read run in one
// transaction so concurrent first sign-ins converge on a single row.
func (r *Repo) UpsertByEmail(ctx context.Context, m memberrepo.Member) (memberrepo.Member, error) {
	if r.pool == nil {
		return memberrepo.Member{}, errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(m.ID))
	if err != nil {
		return memberrepo.Member{}, fmt.Errorf("invalid member id: %w", err)
	}

	var out memberrepo.Member
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO members (
				external_id,
				email,
				name,
				is_admin,
				is_active,
				created_at,
				updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT ((lower(email))) DO NOTHING
		`,
			id,
			m.Email,
			m.Name,
			m.IsAdmin,
			m.IsActive,
			m.CreatedAt.UTC(),
			m.UpdatedAt.UTC(),
		)
		if err != nil {
			return mapUniqueViolation(err)
		}
		out, err = scanMember(tx.QueryRow(ctx, selectMember+` WHERE lower(m.email) = lower($1)`, m.Email))
		return err
	})
	if err != nil {
		return memberrepo.Member{}, err
	}
	return out, nil
}

func (r *Repo) List(ctx context.Context, includeInactive bool) ([]memberrepo.Member, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	where := ""
	if !includeInactive {
		where = "WHERE m.is_active = true"
	}

	rows, err := r.pool.Query(ctx, selectMember+where+`
		ORDER BY m.created_at DESC, m.external_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]memberrepo.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanMember(row pgx.Row) (memberrepo.Member, error) {
	var (
		externalID uuid.UUID
		m          memberrepo.Member
		createdAt  time.Time
		updatedAt  time.Time
	)
	if err := row.Scan(
		&externalID,
		&m.Email,
		&m.Name,
		&m.IsAdmin,
		&m.IsActive,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return memberrepo.Member{}, memberrepo.ErrNotFound
		}
		return memberrepo.Member{}, err
	}
	m.ID = domain.MemberID(externalID.String())
	m.CreatedAt = createdAt.UTC()
	m.UpdatedAt = updatedAt.UTC()
	return m, nil
}
