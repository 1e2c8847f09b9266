package attendance

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"rollcall/internal/roster"
	"rollcall/internal/session"
)

// Repository persists rosters and presence records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const memberColumns = `id, owner_id, name, unit, group_label, preparer_name, photo_url, created_at`

// Members returns the roster for ownerID, or every roster when it is empty.
func (r *Repository) Members(ctx context.Context, ownerID string) ([]roster.Member, error) {
	return r.members(ctx, memberColumns, ownerID, false)
}

// References returns members with a stored reference image.
func (r *Repository) References(ctx context.Context, ownerID string) ([]roster.Member, error) {
	return r.members(ctx, memberColumns+`, reference_image`, ownerID, true)
}

func (r *Repository) members(ctx context.Context, columns, ownerID string, withImages bool) ([]roster.Member, error) {
	query := `SELECT ` + columns + ` FROM members`
	args := []any{}
	clauses := []string{}
	if ownerID != "" {
		clauses = append(clauses, "owner_id = $"+itoa(len(args)+1))
		args = append(args, ownerID)
	}
	if withImages {
		clauses = append(clauses, "reference_image IS NOT NULL")
	}
	if len(clauses) > 0 {
		query += " WHERE " + joinClauses(clauses, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Classify(err)
	}
	defer rows.Close()

	var res []roster.Member
	for rows.Next() {
		var m roster.Member
		dest := []any{&m.ID, &m.OwnerID, &m.Name, &m.Unit, &m.GroupLabel, &m.PreparerName, &m.PhotoURL, &m.CreatedAt}
		if withImages {
			dest = append(dest, &m.ReferenceImage)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, Classify(err)
		}
		res = append(res, m)
	}
	return res, Classify(rows.Err())
}

// CreateMember inserts a member, assigning an id when missing.
func (r *Repository) CreateMember(ctx context.Context, m roster.Member) (roster.Member, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	var image any
	if len(m.ReferenceImage) > 0 {
		image = m.ReferenceImage
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO members (id, owner_id, name, unit, group_label, preparer_name, reference_image, photo_url, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, m.ID, m.OwnerID, m.Name, m.Unit, m.GroupLabel, m.PreparerName, image, m.PhotoURL, m.CreatedAt)
	if err != nil {
		return roster.Member{}, Classify(err)
	}
	m.ReferenceImage = nil
	return m, nil
}

// RenameMember updates a member's name within its owner's roster.
func (r *Repository) RenameMember(ctx context.Context, ownerID, memberID, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE members SET name = $3 WHERE id = $1 AND owner_id = $2`, memberID, ownerID, name)
	return affected(res, err, memberID)
}

// DeleteMember removes a member; its presence records go with it.
func (r *Repository) DeleteMember(ctx context.Context, ownerID, memberID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1 AND owner_id = $2`, memberID, ownerID)
	return affected(res, err, memberID)
}

// Records returns presence records matching f, oldest first.
func (r *Repository) Records(ctx context.Context, f Filter) ([]Record, error) {
	query := `SELECT id, owner_id, session_id, member_id, created_at FROM presence_records`
	args := []any{}
	clauses := []string{}
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id = $"+itoa(len(args)+1))
		args = append(args, f.OwnerID)
	}
	if f.SessionID != "" {
		clauses = append(clauses, "session_id = $"+itoa(len(args)+1))
		args = append(args, string(f.SessionID))
	}
	if len(clauses) > 0 {
		query += " WHERE " + joinClauses(clauses, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Classify(err)
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var (
			rec Record
			sid string
		)
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &sid, &rec.MemberID, &rec.CreatedAt); err != nil {
			return nil, Classify(err)
		}
		rec.SessionID = session.ID(sid)
		res = append(res, rec)
	}
	return res, Classify(rows.Err())
}

// Ensure inserts the record unless the (member, session) pair already has
// one. Members outside the record's owner roster give ErrNotFound.
func (r *Repository) Ensure(ctx context.Context, rec Record) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	var known, created bool
	err := r.db.QueryRowContext(ctx, `
		WITH m AS (
			SELECT id, owner_id FROM members WHERE id = $4 AND owner_id = $2
		), ins AS (
			INSERT INTO presence_records (id, owner_id, session_id, member_id, created_at)
			SELECT $1, m.owner_id, $3, m.id, $5 FROM m
			ON CONFLICT (member_id, session_id) DO NOTHING
			RETURNING 1
		)
		SELECT EXISTS (SELECT 1 FROM m), EXISTS (SELECT 1 FROM ins)
	`, rec.ID, rec.OwnerID, string(rec.SessionID), rec.MemberID, rec.CreatedAt).Scan(&known, &created)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, Classify(err)
	}
	if !known {
		return false, fmt.Errorf("%w: member %s", ErrNotFound, rec.MemberID)
	}
	return created, nil
}

// Remove deletes the record for k if present.
func (r *Repository) Remove(ctx context.Context, k Key) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM presence_records
		WHERE owner_id = $1 AND session_id = $2 AND member_id = $3
	`, k.OwnerID, string(k.SessionID), k.MemberID)
	if err != nil {
		return false, Classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, Classify(err)
	}
	return n > 0, nil
}

func affected(res sql.Result, err error, memberID string) error {
	if err != nil {
		return Classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Classify(err)
	}
	if n == 0 {
		return fmt.Errorf("%w: member %s", ErrNotFound, memberID)
	}
	return nil
}

// Classify maps driver errors onto the package's error kinds.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42501": // insufficient_privilege
			return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case "22P02", "23514": // invalid_text_representation, check_violation
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		return err
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
