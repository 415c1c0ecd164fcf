package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/roster"
)

// RosterRepository reads the roster feed tables filled by the registration system.
type RosterRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

var _ roster.Provider = (*RosterRepository)(nil)

// NewRosterRepository creates a roster provider over pool.
func NewRosterRepository(pool *ConnectionPool) *RosterRepository {
	return &RosterRepository{pool: pool, mapper: NewErrorMapper()}
}

// Participants returns individuals followed by group buckets, each in feed order.
func (r *RosterRepository) Participants(ctx context.Context, filter roster.Filter) ([]housing.Participant, error) {
	where, args := rosterWhere(filter)

	participants := make([]housing.Participant, 0)
	if err := r.queryIndividuals(ctx, where, args, func(p housing.Individual) {
		participants = append(participants, p)
	}); err != nil {
		return nil, err
	}
	if err := r.queryBuckets(ctx, where, args, func(p housing.GroupBucket) {
		participants = append(participants, p)
	}); err != nil {
		return nil, err
	}
	return participants, nil
}

// Lookup resolves a reference against the feed tables.
func (r *RosterRepository) Lookup(ctx context.Context, ref housing.ParticipantRef) (housing.Participant, error) {
	var found housing.Participant
	var err error
	switch ref.Kind {
	case housing.RefIndividual:
		err = r.queryIndividuals(ctx, "WHERE id = ?", []any{ref.ID}, func(p housing.Individual) { found = p })
	case housing.RefGroup:
		err = r.queryBuckets(ctx, "WHERE group_id = ? AND gender = ? AND category = ?",
			[]any{ref.ID, string(ref.Gender), string(ref.Category)},
			func(p housing.GroupBucket) { found = p })
	default:
		return nil, roster.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, roster.ErrNotFound
	}
	return found, nil
}

// Replace swaps the feed contents in one transaction, keeping the given order.
func (r *RosterRepository) Replace(ctx context.Context, participants []housing.Participant) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM roster_individuals`); err != nil {
			return r.mapper.MapError(err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM roster_group_buckets`); err != nil {
			return r.mapper.MapError(err)
		}

		for position, p := range participants {
			var err error
			switch v := p.(type) {
			case housing.Individual:
				_, err = tx.ExecContext(ctx, `
					INSERT INTO roster_individuals (id, name, gender, category, parish_id, group_id, roommate_preference, position)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					v.ID, v.Name, string(v.Gender), string(v.Category), v.ParishID, v.GroupID, v.RoommatePreference, position)
			case housing.GroupBucket:
				_, err = tx.ExecContext(ctx, `
					INSERT INTO roster_group_buckets (group_id, group_name, parish_id, gender, category, member_count, position)
					VALUES (?, ?, ?, ?, ?, ?, ?)`,
					v.GroupID, v.GroupName, v.ParishID, string(v.Gender), string(v.Category), v.Members, position)
			default:
				err = fmt.Errorf("sqlite: unsupported participant %T", p)
			}
			if err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
}

func rosterWhere(filter roster.Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.Gender != "" {
		clauses = append(clauses, "gender = ?")
		args = append(args, string(filter.Gender))
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.ParishID != "" {
		clauses = append(clauses, "parish_id = ? COLLATE NOCASE")
		args = append(args, filter.ParishID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	where := "WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

func (r *RosterRepository) queryIndividuals(ctx context.Context, where string, args []any, emit func(housing.Individual)) error {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, name, gender, category, parish_id, group_id, roommate_preference
		FROM roster_individuals `+where+`
		ORDER BY position ASC, id ASC`, args...)
	if err != nil {
		return r.mapper.MapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p                housing.Individual
			gender, category string
		)
		if err := rows.Scan(&p.ID, &p.Name, &gender, &category, &p.ParishID, &p.GroupID, &p.RoommatePreference); err != nil {
			return r.mapper.MapError(err)
		}
		p.Gender = housing.Gender(gender)
		p.Category = housing.Category(category)
		emit(p)
	}
	return r.rowsErr(rows)
}

func (r *RosterRepository) queryBuckets(ctx context.Context, where string, args []any, emit func(housing.GroupBucket)) error {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT group_id, group_name, parish_id, gender, category, member_count
		FROM roster_group_buckets `+where+`
		ORDER BY position ASC, group_id ASC, gender ASC, category ASC`, args...)
	if err != nil {
		return r.mapper.MapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			b                housing.GroupBucket
			gender, category string
		)
		if err := rows.Scan(&b.GroupID, &b.GroupName, &b.ParishID, &gender, &category, &b.Members); err != nil {
			return r.mapper.MapError(err)
		}
		b.Gender = housing.Gender(gender)
		b.Category = housing.Category(category)
		emit(b)
	}
	return r.rowsErr(rows)
}

func (r *RosterRepository) rowsErr(rows *sql.Rows) error {
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return r.mapper.MapError(err)
	}
	return nil
}
