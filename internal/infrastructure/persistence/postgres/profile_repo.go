package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const profileColumns = `
	id, username, name, age, region, platform, about, interests,
	visible, interest_search, attachments,
	liked, liked_by, matched, liked_count, liked_by_count, matched_count,
	created_at, updated_at`

// ProfileRepository implements profile.Repository for PostgreSQL.
type ProfileRepository struct {
	conn *Connection
}

// Compile-time check.
var _ profile.Repository = (*ProfileRepository)(nil)

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *profile.Profile) error {
	query := `INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := r.conn.Exec(ctx, query, profileArgs(p)...)
	if err != nil {
		if IsUniqueViolation(err) {
			return profile.ErrProfileExists
		}
		return storageError("Create", err)
	}
	return nil
}

// Get returns a profile by ID.
func (r *ProfileRepository) Get(ctx context.Context, id profile.ID) (*profile.Profile, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, int64(id))
	p, err := scanProfile(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, profile.ErrProfileNotFound
		}
		return nil, storageError("Get", err)
	}
	return p, nil
}

// GetMany returns existing profiles in the order of ids.
func (r *ProfileRepository) GetMany(ctx context.Context, ids []profile.ID) ([]*profile.Profile, error) {
	if len(ids) == 0 {
		return []*profile.Profile{}, nil
	}
	rows, err := r.conn.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ANY($1)`, toInt64s(ids))
	if err != nil {
		return nil, storageError("GetMany", err)
	}
	found, err := collectProfiles(rows)
	if err != nil {
		return nil, storageError("GetMany", err)
	}

	byID := make(map[profile.ID]*profile.Profile, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]*profile.Profile, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
			delete(byID, id)
		}
	}
	return out, nil
}

// ListEligible returns profiles passing the filter, ordered by ID.
// Plain reads: no row locks, so browsing never waits for a like in progress.
func (r *ProfileRepository) ListEligible(ctx context.Context, filter profile.EligibleFilter) ([]*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles
		WHERE NOT (id = ANY($1)) AND ($2::boolean = FALSE OR visible)
		ORDER BY id`

	rows, err := r.conn.Query(ctx, query, toInt64s(filter.Exclude), filter.VisibleOnly)
	if err != nil {
		return nil, storageError("ListEligible", err)
	}
	out, err := collectProfiles(rows)
	if err != nil {
		return nil, storageError("ListEligible", err)
	}
	return out, nil
}

// Update locks one row, applies fn and writes it back in the same transaction.
func (r *ProfileRepository) Update(ctx context.Context, id profile.ID, fn profile.MutateFunc) (*profile.Profile, error) {
	var updated *profile.Profile
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		p, err := lockProfile(ctx, tx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return profile.ErrProfileNotFound
		}
		if err := fn(p); err != nil {
			return err
		}
		if err := writeProfile(ctx, tx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, classify("Update", err)
	}
	return updated, nil
}

// UpdatePair locks both rows in ascending ID order, applies fn and writes
// both rows in one transaction.
func (r *ProfileRepository) UpdatePair(ctx context.Context, a, b profile.ID, fn profile.PairFunc) error {
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		lo, hi := a, b
		if hi < lo {
			lo, hi = hi, lo
		}

		locked := make(map[profile.ID]*profile.Profile, 2)
		for _, id := range []profile.ID{lo, hi} {
			if _, seen := locked[id]; seen {
				continue
			}
			p, err := lockProfile(ctx, tx, id)
			if err != nil {
				return err
			}
			locked[id] = p
		}

		first, second := locked[a], locked[b]
		if err := fn(first, second); err != nil {
			return err
		}

		if first != nil {
			if err := writeProfile(ctx, tx, first); err != nil {
				return err
			}
		}
		if second != nil && a != b {
			if err := writeProfile(ctx, tx, second); err != nil {
				return err
			}
		}
		return nil
	})
	return classify("UpdatePair", err)
}

// Delete removes a profile. References to it in other ledgers stay in place
// and are filtered at read time.
func (r *ProfileRepository) Delete(ctx context.Context, id profile.ID) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, int64(id))
	if err != nil {
		return storageError("Delete", err)
	}
	if tag.RowsAffected() == 0 {
		return profile.ErrProfileNotFound
	}
	return nil
}

// Stats computes operator aggregates in one pass.
func (r *ProfileRepository) Stats(ctx context.Context, now time.Time) (*profile.Stats, error) {
	today := shared.TodayAt(now)
	last24h := shared.Last24HoursAt(now)

	query := `
		SELECT
			count(*),
			count(*) FILTER (WHERE visible),
			count(*) FILTER (WHERE created_at >= $1 AND created_at < $2),
			count(*) FILTER (WHERE created_at >= $3 AND created_at < $4),
			count(*) FILTER (WHERE cardinality(attachments) > 0),
			COALESCE(sum(cardinality(liked)), 0),
			COALESCE(sum(cardinality(matched)), 0)
		FROM profiles`

	var total, visible, createdToday, created24h, withPhotos, likes, matched int64
	err := r.conn.QueryRow(ctx, query, today.From, today.To, last24h.From, last24h.To).Scan(
		&total, &visible, &createdToday, &created24h, &withPhotos, &likes, &matched,
	)
	if err != nil {
		return nil, storageError("Stats", err)
	}

	return &profile.Stats{
		Total:           int(total),
		Visible:         int(visible),
		CreatedToday:    int(createdToday),
		CreatedLast24h:  int(created24h),
		WithAttachments: int(withPhotos),
		TotalLikes:      int(likes),
		TotalMatches:    int(matched / 2),
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// lockProfile selects a row FOR UPDATE. A missing row yields (nil, nil).
func lockProfile(ctx context.Context, q Querier, id profile.ID) (*profile.Profile, error) {
	row := q.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, int64(id))
	p, err := scanProfile(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, storageError("Lock", err)
	}
	return p, nil
}

func writeProfile(ctx context.Context, q Querier, p *profile.Profile) error {
	query := `
		UPDATE profiles SET
			username = $2, name = $3, age = $4, region = $5, platform = $6, about = $7,
			interests = $8, visible = $9, interest_search = $10, attachments = $11,
			liked = $12, liked_by = $13, matched = $14,
			liked_count = $15, liked_by_count = $16, matched_count = $17,
			created_at = $18, updated_at = $19
		WHERE id = $1`

	args := profileArgs(p)
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return storageError("Write", err)
	}
	if tag.RowsAffected() == 0 {
		return profile.ErrProfileNotFound
	}
	return nil
}

// profileArgs returns values in profileColumns order ($1..$19).
func profileArgs(p *profile.Profile) []interface{} {
	interests := p.Interests
	if interests == nil {
		interests = []string{}
	}
	attachments := p.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return []interface{}{
		int64(p.ID),
		p.Username,
		p.Name,
		p.Age,
		string(p.Region),
		string(p.Platform),
		p.About,
		interests,
		p.Visible,
		p.InterestSearch,
		attachments,
		toInt64s(p.Ledger.LikedIDs()),
		toInt64s(p.Ledger.LikedByIDs()),
		toInt64s(p.Ledger.MatchedIDs()),
		p.Ledger.LikedCount(),
		p.Ledger.LikedByCount(),
		p.Ledger.MatchedCount(),
		p.CreatedAt,
		p.UpdatedAt,
	}
}

func scanProfile(row pgx.Row) (*profile.Profile, error) {
	var (
		p                              profile.Profile
		id                             int64
		region, platform               string
		liked, likedBy, matched        []int64
		likedCnt, likedByCnt, matchCnt int
	)

	err := row.Scan(
		&id, &p.Username, &p.Name, &p.Age, &region, &platform, &p.About, &p.Interests,
		&p.Visible, &p.InterestSearch, &p.Attachments,
		&liked, &likedBy, &matched, &likedCnt, &likedByCnt, &matchCnt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.ID = profile.ID(id)
	p.Region = profile.Region(region)
	p.Platform = profile.Platform(platform)
	p.Ledger = profile.RestoreLedger(toIDs(liked), toIDs(likedBy), toIDs(matched), likedCnt, likedByCnt, matchCnt)
	return &p, nil
}

func collectProfiles(rows pgx.Rows) ([]*profile.Profile, error) {
	defer rows.Close()
	out := make([]*profile.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// storageError marks driver failures as transient so callers may retry.
func storageError(op string, err error) error {
	if IsConflict(err) {
		return shared.WrapError("profile", op, shared.ErrConcurrentModification, "transaction conflict", err)
	}
	return shared.WrapError("profile", op, shared.ErrServiceUnavailable, "storage failure", err)
}

// classify leaves domain errors as they are and marks transaction
// begin/commit failures as storage errors.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return storageError(op, err)
}

func toInt64s(ids []profile.ID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func toIDs(raw []int64) []profile.ID {
	out := make([]profile.ID, len(raw))
	for i, v := range raw {
		out[i] = profile.ID(v)
	}
	return out
}
