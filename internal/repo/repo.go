package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"ticketbooth/internal/model"
)

var (
	ErrAttendeeNotFound = errors.New("attendee not found")
	ErrAlreadyAttended  = errors.New("attendee already checked in")
	ErrNotEligible      = errors.New("attendee not eligible for check-in")
	ErrDuplicatePayment = errors.New("payment already processed")
	ErrSoldOut          = errors.New("ticket pool exhausted")
	ErrStoreUnavailable = errors.New("store unavailable")
)

const queryTimeout = 3 * time.Second

// paidCountLockKey serializes reconciliation transactions that consume
// capacity. There is no single event row to lock, so an advisory
// transaction lock stands in for the teacher-style row lock.
const paidCountLockKey = 4217

type Repository interface {
	CreateAttendee(ctx context.Context, a *model.Attendee) (int64, error)
	GetAttendeeByEmail(ctx context.Context, email string) (*model.Attendee, error)
	GetAttendeeByUUID(ctx context.Context, uuid string) (*model.Attendee, error)
	GetAttendeeByHashCode(ctx context.Context, code string) (*model.Attendee, error)
	MarkPaidTx(ctx context.Context, attendeeID int64, capacity int) error
	MarkAttendedTx(ctx context.Context, uuid string, at time.Time) (*model.Attendee, error)
	UpdateProfileByHashCode(ctx context.Context, code string, a *model.Attendee) error
	RecordPaymentTx(ctx context.Context, p *model.Payment) (int64, error)
	CountPaidAttendees(ctx context.Context) (int, error)
	GetEligibleByUUID(ctx context.Context, uuid string) (*model.Attendee, error)
	SearchEligible(ctx context.Context, email, mobile string) (*model.Attendee, error)
	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
}

type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := ioutil.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (r *repository) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := ioutil.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read rollback file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations rolled back successfully from %s", migrationsDir)
	return nil
}

const attendeeColumns = `
	id, uuid, hash_code, type, name, email, mobile, is_paid, attend_at,
	profession, social_profile_url, address_line_1, address_line_2,
	city, district, misc, created_at, updated_at
`

func scanAttendee(row *sql.Row) (*model.Attendee, error) {
	var a model.Attendee
	err := row.Scan(
		&a.ID, &a.UUID, &a.HashCode, &a.Type, &a.Name, &a.Email, &a.Mobile,
		&a.IsPaid, &a.AttendAt, &a.Profession, &a.SocialProfileURL,
		&a.AddressLine1, &a.AddressLine2, &a.City, &a.District, &a.Misc,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttendeeNotFound
		}
		return nil, storeErr("failed to scan attendee", err)
	}
	return &a, nil
}

// storeErr keeps infrastructure failures distinguishable from lookup misses.
func storeErr(msg string, err error) error {
	return fmt.Errorf("%s: %w: %v", msg, ErrStoreUnavailable, err)
}

func (r *repository) CreateAttendee(ctx context.Context, a *model.Attendee) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO attendees (uuid, hash_code, type, name, email, mobile, misc)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	row := r.db.QueryRowContext(ctx, query,
		a.UUID, a.HashCode, a.Type, a.Name, a.Email, a.Mobile, a.Misc,
	)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, storeErr("failed to insert attendee", err)
	}
	return id, nil
}

func (r *repository) GetAttendeeByEmail(ctx context.Context, email string) (*model.Attendee, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + attendeeColumns + ` FROM attendees WHERE email = $1 ORDER BY id LIMIT 1`
	return scanAttendee(r.db.QueryRowContext(ctx, query, email))
}

func (r *repository) GetAttendeeByUUID(ctx context.Context, uuid string) (*model.Attendee, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + attendeeColumns + ` FROM attendees WHERE uuid = $1`
	return scanAttendee(r.db.QueryRowContext(ctx, query, uuid))
}

func (r *repository) GetAttendeeByHashCode(ctx context.Context, code string) (*model.Attendee, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + attendeeColumns + ` FROM attendees WHERE hash_code = $1`
	return scanAttendee(r.db.QueryRowContext(ctx, query, code))
}

// MarkPaidTx flips is_paid inside one transaction that re-reads the paid
// count, so the capacity ceiling holds under concurrent callbacks. Flipping
// an already-paid attendee is a no-op and consumes no capacity, which keeps
// callback retries idempotent even once the pool is exhausted.
func (r *repository) MarkPaidTx(ctx context.Context, attendeeID int64, capacity int) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("failed to start transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var isPaid bool
	err = tx.QueryRowContext(ctx, `
		SELECT is_paid
		FROM attendees
		WHERE id = $1
		FOR UPDATE
	`, attendeeID).Scan(&isPaid)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAttendeeNotFound
		}
		return storeErr("failed to select attendee for payment", err)
	}

	if isPaid {
		_ = tx.Rollback()
		return nil
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, paidCountLockKey); err != nil {
		_ = tx.Rollback()
		return storeErr("failed to take capacity lock", err)
	}

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM attendees
		WHERE is_paid = TRUE
	`).Scan(&count)
	if err != nil {
		_ = tx.Rollback()
		return storeErr("failed to count paid attendees", err)
	}

	if capacity <= 0 || count >= capacity {
		_ = tx.Rollback()
		return ErrSoldOut
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE attendees
		SET is_paid = TRUE, updated_at = NOW()
		WHERE id = $1
	`, attendeeID); err != nil {
		_ = tx.Rollback()
		return storeErr("failed to mark attendee paid", err)
	}

	if err := tx.Commit(); err != nil {
		return storeErr("failed to commit payment transaction", err)
	}

	return nil
}

// MarkAttendedTx stamps attend_at exactly once. The eligibility predicate and
// the null check run inside one transaction with the row locked, so two
// simultaneous scans of the same ticket cannot both succeed.
func (r *repository) MarkAttendedTx(ctx context.Context, uuid string, at time.Time) (*model.Attendee, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("failed to start transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var (
		id       int64
		aType    string
		isPaid   bool
		attendAt *time.Time
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, type, is_paid, attend_at
		FROM attendees
		WHERE uuid = $1
		FOR UPDATE
	`, uuid).Scan(&id, &aType, &isPaid, &attendAt)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttendeeNotFound
		}
		return nil, storeErr("failed to select attendee for check-in", err)
	}

	if aType == model.TypeAttendee && !isPaid {
		_ = tx.Rollback()
		return nil, ErrNotEligible
	}

	if attendAt != nil {
		_ = tx.Rollback()
		return nil, ErrAlreadyAttended
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE attendees
		SET attend_at = $1, updated_at = NOW()
		WHERE id = $2
	`, at, id); err != nil {
		_ = tx.Rollback()
		return nil, storeErr("failed to stamp attendance", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("failed to commit check-in transaction", err)
	}

	a, err := r.GetAttendeeByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repository) UpdateProfileByHashCode(ctx context.Context, code string, a *model.Attendee) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE attendees
		SET name = $1, profession = $2, social_profile_url = $3,
		    address_line_1 = $4, address_line_2 = $5, city = $6, district = $7,
		    updated_at = NOW()
		WHERE hash_code = $8
	`
	res, err := r.db.ExecContext(ctx, query,
		a.Name, a.Profession, a.SocialProfileURL,
		a.AddressLine1, a.AddressLine2, a.City, a.District, code,
	)
	if err != nil {
		return storeErr("failed to update profile", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("failed to read affected rows", err)
	}
	if affected == 0 {
		return ErrAttendeeNotFound
	}
	return nil
}

// RecordPaymentTx inserts a payment unless one was already processed: a VALID
// payment for the same attendee, or any payment with the same transaction id.
// The check and the insert run in one transaction; the unique constraints on
// payments back the check, so a concurrent callback losing the race surfaces
// as a unique violation and is reported as the same duplicate outcome.
func (r *repository) RecordPaymentTx(ctx context.Context, p *model.Payment) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("failed to start transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payments WHERE attendee_id = $1 AND status = $2
		) OR EXISTS (
			SELECT 1 FROM payments WHERE transaction_id = $3
		)
	`, p.AttendeeID, model.PaymentValid, p.TransactionID).Scan(&exists)
	if err != nil {
		_ = tx.Rollback()
		return 0, storeErr("failed to check for duplicate payment", err)
	}
	if exists {
		_ = tx.Rollback()
		return 0, ErrDuplicatePayment
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO payments (attendee_id, card_type, transaction_id, amount, status, api_response)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, p.AttendeeID, p.CardType, p.TransactionID, p.Amount, p.Status, p.APIResponse).Scan(&id)
	if err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			return 0, ErrDuplicatePayment
		}
		return 0, storeErr("failed to insert payment", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicatePayment
		}
		return 0, storeErr("failed to commit payment transaction", err)
	}

	return id, nil
}

func (r *repository) CountPaidAttendees(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	query := `SELECT COUNT(*) FROM attendees WHERE is_paid = TRUE`
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, storeErr("failed to count paid attendees", err)
	}
	return count, nil
}

// GetEligibleByUUID resolves a door scan. Unpaid ticket buyers are invisible
// here, the same as an unknown uuid.
func (r *repository) GetEligibleByUUID(ctx context.Context, uuid string) (*model.Attendee, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT ` + attendeeColumns + `
		FROM attendees
		WHERE uuid = $1
		  AND (type IN ($2, $3, $4) OR (type = $5 AND is_paid = TRUE))
	`
	return scanAttendee(r.db.QueryRowContext(ctx, query, uuid,
		model.TypeGuest, model.TypeSponsor, model.TypeVolunteer, model.TypeAttendee))
}

// SearchEligible resolves a manual door search by exact email or normalized
// mobile, restricted to the same eligibility predicate as GetEligibleByUUID.
func (r *repository) SearchEligible(ctx context.Context, email, mobile string) (*model.Attendee, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT ` + attendeeColumns + `
		FROM attendees
		WHERE (email = $1 OR mobile = $2)
		  AND (type IN ($3, $4, $5) OR (type = $6 AND is_paid = TRUE))
		ORDER BY id
		LIMIT 1
	`
	return scanAttendee(r.db.QueryRowContext(ctx, query, email, mobile,
		model.TypeGuest, model.TypeSponsor, model.TypeVolunteer, model.TypeAttendee))
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
