package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const (
	userColumns = "id, name, email, password_hash, age, gender, city, " +
		"diet, personality, sleep_habit, noise_tolerance, smoke_alcohol, created_at, updated_at"

	uniqueViolation = "23505"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Name,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.Age,
		&u.Gender,
		&u.City,
		&u.Diet,
		&u.Personality,
		&u.SleepHabit,
		&u.NoiseTolerance,
		&u.SmokeAlcohol,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return u, err
}

func (db *PgSarthiRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	now := time.Now().UTC()
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO users (name, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING "+userColumns,
		params.Name,
		params.EmailAddress,
		params.PasswordHash,
		now,
		now,
	)

	u, err := scanUser(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return User{}, ErrDuplicateEmail
		}
		return User{}, err
	}

	return u, nil
}

func (db *PgSarthiRepository) GetUserById(ctx context.Context, userId int) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1 LIMIT 1",
		userId,
	)

	return scanUser(row)
}

func (db *PgSarthiRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1 LIMIT 1",
		email,
	)

	return scanUser(row)
}

func (db *PgSarthiRepository) UpdateProfile(ctx context.Context, params UpdateProfileParams) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"UPDATE users SET name = COALESCE($2, name), age = COALESCE($3, age), "+
			"gender = COALESCE($4, gender), city = COALESCE($5, city), updated_at = $6 "+
			"WHERE id = $1 RETURNING "+userColumns,
		params.UserId,
		params.Name,
		params.Age,
		params.Gender,
		params.City,
		time.Now().UTC(),
	)

	return scanUser(row)
}

func (db *PgSarthiRepository) UpdateTraits(ctx context.Context, params UpdateTraitsParams) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"UPDATE users SET diet = COALESCE($2, diet), personality = COALESCE($3, personality), "+
			"sleep_habit = COALESCE($4, sleep_habit), noise_tolerance = COALESCE($5, noise_tolerance), "+
			"smoke_alcohol = COALESCE($6, smoke_alcohol), updated_at = $7 "+
			"WHERE id = $1 RETURNING "+userColumns,
		params.UserId,
		params.Diet,
		params.Personality,
		params.SleepHabit,
		params.NoiseTolerance,
		params.SmokeAlcohol,
		time.Now().UTC(),
	)

	return scanUser(row)
}

// ListUsersExcept returns every user but userId in id order. Match ranking
// relies on this order to break ties.
func (db *PgSarthiRepository) ListUsersExcept(ctx context.Context, userId int) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id <> $1 ORDER BY id",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (db *PgSarthiRepository) UpsertPreference(ctx context.Context, params UpsertPreferenceParams) (Preference, error) {
	now := time.Now().UTC()
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO preferences (user_id, preferred_gender, max_rent, location, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) "+
			"ON CONFLICT (user_id) DO UPDATE SET preferred_gender = EXCLUDED.preferred_gender, "+
			"max_rent = EXCLUDED.max_rent, location = EXCLUDED.location, updated_at = EXCLUDED.updated_at "+
			"RETURNING id, user_id, preferred_gender, max_rent, location, created_at, updated_at",
		params.UserId,
		params.PreferredGender,
		params.MaxRent,
		params.Location,
		now,
	)

	var p Preference
	err := row.Scan(&p.Id, &p.UserId, &p.PreferredGender, &p.MaxRent, &p.Location, &p.CreatedAt, &p.UpdatedAt)

	return p, err
}

func (db *PgSarthiRepository) GetPreference(ctx context.Context, userId int) (Preference, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, user_id, preferred_gender, max_rent, location, created_at, updated_at "+
			"FROM preferences WHERE user_id = $1 LIMIT 1",
		userId,
	)

	var p Preference
	err := row.Scan(&p.Id, &p.UserId, &p.PreferredGender, &p.MaxRent, &p.Location, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Preference{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return p, err
}

func (db *PgSarthiRepository) CreateFeedback(ctx context.Context, userId int, message string) (Feedback, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO feedback (user_id, message, created_at) VALUES ($1, $2, $3) "+
			"RETURNING id, user_id, message, created_at",
		userId,
		message,
		time.Now().UTC(),
	)

	var f Feedback
	err := row.Scan(&f.Id, &f.UserId, &f.Message, &f.CreatedAt)

	return f, err
}

func (db *PgSarthiRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO messages (sender_id, receiver_id, content, created_at) VALUES ($1, $2, $3, $4) "+
			"RETURNING id, sender_id, receiver_id, content, created_at",
		params.SenderId,
		params.ReceiverId,
		params.Content,
		params.CreatedAt,
	)

	var msg Message
	err := row.Scan(&msg.Id, &msg.SenderId, &msg.ReceiverId, &msg.Content, &msg.CreatedAt)

	return msg, err
}

// GetMessagesBetween returns the messages exchanged in both directions
// between userA and userB, oldest first.
// Both message queries filter on the same expressions as
// messages_pair_created_at_idx so the planner can use it.
const (
	pairFilter = "WHERE LEAST(sender_id, receiver_id) = $1 AND GREATEST(sender_id, receiver_id) = $2"

	messagesBetweenQuery = "SELECT id, sender_id, receiver_id, content, created_at FROM messages " +
		pairFilter + " ORDER BY created_at, id"

	lastMessageTimeQuery = "SELECT MAX(created_at) FROM messages " + pairFilter
)

// pairKey orders a user pair the way the messages index does.
func pairKey(userA, userB int) (int, int) {
	return min(userA, userB), max(userA, userB)
}

func (db *PgSarthiRepository) GetMessagesBetween(ctx context.Context, userA, userB int) ([]Message, error) {
	lo, hi := pairKey(userA, userB)
	rows, err := db.conn.QueryContext(ctx, messagesBetweenQuery, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.Id, &msg.SenderId, &msg.ReceiverId, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (db *PgSarthiRepository) GetLastMessageTime(ctx context.Context, userA, userB int) (time.Time, error) {
	lo, hi := pairKey(userA, userB)
	row := db.conn.QueryRowContext(ctx, lastMessageTimeQuery, lo, hi)

	var last sql.NullTime
	if err := row.Scan(&last); err != nil {
		return time.Time{}, err
	}

	return last.Time, nil
}
