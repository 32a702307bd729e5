package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists users and their contacts.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByPhone(ctx context.Context, phone string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	MarkVerified(ctx context.Context, id string) error
	AddContact(ctx context.Context, contact Contact) error
	ListContacts(ctx context.Context, ownerID string) ([]Contact, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, phone_number, first_name, last_name, email, password_hash, is_verified, created_at`

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		userID, user.PhoneNumber, user.FirstName, user.LastName, user.Email, user.PasswordHash, user.IsVerified, user.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrUserExists
	}
	return err
}

// FindByPhone fetches a user by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone_number = $1`, phone))
}

// FindByID fetches a user by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

// MarkVerified flags the user as verified.
func (r *PostgresRepository) MarkVerified(ctx context.Context, id string) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrUserNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE users SET is_verified = TRUE WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AddContact stores a contact link.
func (r *PostgresRepository) AddContact(ctx context.Context, contact Contact) error {
	ownerID, err := uuid.Parse(contact.OwnerID)
	if err != nil {
		return ErrUserNotFound
	}
	contactID, err := uuid.Parse(contact.ContactID)
	if err != nil {
		return ErrUserNotFound
	}
	_, err = r.db.Exec(ctx, `INSERT INTO contacts (owner_id, contact_id, nickname, created_at) VALUES ($1, $2, $3, $4)`,
		ownerID, contactID, contact.Nickname, contact.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrContactExists
	}
	return err
}

// ListContacts returns ownerID's contacts in the order they were added.
func (r *PostgresRepository) ListContacts(ctx context.Context, ownerID string) ([]Contact, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	rows, err := r.db.Query(ctx, `SELECT owner_id, contact_id, nickname, created_at FROM contacts
        WHERE owner_id = $1 ORDER BY created_at, contact_id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Contact, 0)
	for rows.Next() {
		var (
			c                  Contact
			ownerVal, contactV uuid.UUID
		)
		if err := rows.Scan(&ownerVal, &contactV, &c.Nickname, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.OwnerID = ownerVal.String()
		c.ContactID = contactV.String()
		c.CreatedAt = c.CreatedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id   uuid.UUID
		user User
	)
	if err := row.Scan(&id, &user.PhoneNumber, &user.FirstName, &user.LastName, &user.Email, &user.PasswordHash, &user.IsVerified, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	user.ID = id.String()
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
