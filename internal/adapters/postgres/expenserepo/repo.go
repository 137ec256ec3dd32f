package expenserepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/commute-ledger/transit-expense-api/internal/adapters/postgres"
	"github.com/commute-ledger/transit-expense-api/internal/domain"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/expenserepo"
)

const selectExpense = `
	SELECT
		e.external_id,
		m.external_id,
		e.trip_group_id,
		e.date,
		e.departure,
		e.arrival,
		e.amount,
		e.transport,
		e.trip_type,
		e.created_at,
		e.updated_at,
		m.name,
		m.email
	FROM expenses e
	JOIN members m ON m.id = e.member_id
`

const orderExpenses = ` ORDER BY e.date DESC, e.created_at DESC, e.external_id ASC`

// Repo is a Postgres implementation of expenserepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Create inserts every leg in a single transaction.
func (r *Repo) Create(ctx context.Context, legs ...domain.Expense) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	if len(legs) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		ownerIDs := make(map[domain.MemberID]int64, 1)
		for _, e := range legs {
			id, err := uuid.Parse(string(e.ID))
			if err != nil {
				return fmt.Errorf("invalid expense id: %w", err)
			}
			group, err := groupUUID(e.TripGroupID)
			if err != nil {
				return err
			}
			owner, ok := ownerIDs[e.MemberID]
			if !ok {
				owner, err = memberPK(ctx, tx, e.MemberID)
				if err != nil {
					return err
				}
				ownerIDs[e.MemberID] = owner
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO expenses (
					external_id,
					member_id,
					trip_group_id,
					date,
					departure,
					arrival,
					amount,
					transport,
					trip_type,
					created_at,
					updated_at
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			`,
				id,
				owner,
				group,
				toDate(e.Date),
				e.Departure,
				e.Arrival,
				e.Amount,
				string(e.Transport),
				string(e.TripType),
				e.CreatedAt.UTC(),
				e.UpdatedAt.UTC(),
			)
			if err != nil {
				if pe, ok := postgres.AsPgError(err); ok {
					switch {
					case pe.Code == postgres.UniqueViolationCode && pe.ConstraintName == "expenses_external_id_unique":
						return expenserepo.ErrAlreadyExists
					case pe.Code == postgres.ForeignKeyViolationCode:
						return expenserepo.ErrUnknownMember
					}
				}
				return err
			}
		}
		return nil
	})
}

func memberPK(ctx context.Context, tx pgx.Tx, id domain.MemberID) (int64, error) {
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return 0, expenserepo.ErrUnknownMember
	}
	var pk int64
	if err := tx.QueryRow(ctx, `SELECT id FROM members WHERE external_id = $1`, uid).Scan(&pk); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, expenserepo.ErrUnknownMember
		}
		return 0, err
	}
	return pk, nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.ExpenseID) (domain.Expense, error) {
	if r.pool == nil {
		return domain.Expense{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Expense{}, expenserepo.ErrNotFound
	}
	e, err := scanExpense(r.pool.QueryRow(ctx, selectExpense+` WHERE e.external_id = $1`, uid))
	if err != nil {
		return domain.Expense{}, err
	}
	e.Member = nil
	return e, nil
}

func (r *Repo) ListByMember(ctx context.Context, memberID domain.MemberID, month *domain.YearMonth) ([]domain.Expense, error) {
	uid, err := uuid.Parse(string(memberID))
	if err != nil {
		return []domain.Expense{}, nil
	}
	out, err := r.list(ctx, expenserepo.AllFilter{Month: month}, &uid)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Member = nil
	}
	return out, nil
}

func (r *Repo) ListAll(ctx context.Context, f expenserepo.AllFilter) ([]domain.Expense, error) {
	var owner *uuid.UUID
	if f.MemberID != nil {
		uid, err := uuid.Parse(string(*f.MemberID))
		if err != nil {
			return []domain.Expense{}, nil
		}
		owner = &uid
	}
	return r.list(ctx, f, owner)
}

func (r *Repo) list(ctx context.Context, f expenserepo.AllFilter, owner *uuid.UUID) ([]domain.Expense, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}

	conds := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if owner != nil {
		args = append(args, *owner)
		conds = append(conds, fmt.Sprintf("m.external_id = $%d", len(args)))
	}
	if f.Month != nil {
		first, last := f.Month.Bounds()
		args = append(args, toDate(first), toDate(last))
		conds = append(conds, fmt.Sprintf("e.date BETWEEN $%d AND $%d", len(args)-1, len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := r.pool.Query(ctx, selectExpense+where+orderExpenses, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Update(ctx context.Context, e domain.Expense) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(e.ID))
	if err != nil {
		return expenserepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE expenses
		SET date = $2,
		    departure = $3,
		    arrival = $4,
		    amount = $5,
		    transport = $6,
		    trip_type = $7,
		    updated_at = $8
		WHERE external_id = $1
	`,
		uid,
		toDate(e.Date),
		e.Departure,
		e.Arrival,
		e.Amount,
		string(e.Transport),
		string(e.TripType),
		e.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return expenserepo.ErrNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id domain.ExpenseID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return expenserepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE external_id = $1`, uid)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return expenserepo.ErrNotFound
	}
	return nil
}

func scanExpense(row pgx.Row) (domain.Expense, error) {
	var (
		id        uuid.UUID
		memberID  uuid.UUID
		group     *uuid.UUID
		date      pgtype.Date
		transport string
		tripType  string
		createdAt time.Time
		updatedAt time.Time
		name      string
		email     string
		e         domain.Expense
	)
	if err := row.Scan(
		&id,
		&memberID,
		&group,
		&date,
		&e.Departure,
		&e.Arrival,
		&e.Amount,
		&transport,
		&tripType,
		&createdAt,
		&updatedAt,
		&name,
		&email,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Expense{}, expenserepo.ErrNotFound
		}
		return domain.Expense{}, err
	}
	e.ID = domain.ExpenseID(id.String())
	e.MemberID = domain.MemberID(memberID.String())
	if group != nil {
		g := domain.TripGroupID(group.String())
		e.TripGroupID = &g
	}
	e.Date = fromDate(date)
	e.Transport = domain.Transport(transport)
	e.TripType = domain.TripType(tripType)
	e.CreatedAt = createdAt.UTC()
	e.UpdatedAt = updatedAt.UTC()
	e.Member = &domain.MemberRef{ID: e.MemberID, Name: name, Email: email}
	return e, nil
}

func groupUUID(g *domain.TripGroupID) (*uuid.UUID, error) {
	if g == nil {
		return nil, nil
	}
	u, err := uuid.Parse(string(*g))
	if err != nil {
		return nil, fmt.Errorf("invalid trip group id: %w", err)
	}
	return &u, nil
}

func toDate(t time.Time) pgtype.Date {
	tt := t.UTC()
	return pgtype.Date{
		Time:  time.Date(tt.Year(), tt.Month(), tt.Day(), 0, 0, 0, 0, time.UTC),
		Valid: true,
	}
}

func fromDate(d pgtype.Date) time.Time {
	if !d.Valid {
		return time.Time{}
	}
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}
