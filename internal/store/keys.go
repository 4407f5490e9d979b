// ABOUTME: API key entity store methods backed by the SQLite api_keys table
// ABOUTME: Fingerprint lookups use a unique index; mutations are single-statement atomic

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const keyColumns = `key_id, user_id, service_name, description, permissions_json,
	encrypted_key, fingerprint, status, created_at, expires_at, last_used_at`

// CreateKey inserts a new API key record. Generates ID and CreatedAt if not
// set. The fingerprint must be unique across all records.
func (s *SQLiteStore) CreateKey(ctx context.Context, k *APIKey) error {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}
	if k.Status == "" {
		k.Status = KeyStatusActive
	}

	permsJSON, err := json.Marshal(k.Permissions)
	if err != nil {
		return fmt.Errorf("marshaling permissions: %w", err)
	}

	query := `
		INSERT INTO api_keys (` + keyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		k.ID,
		k.UserID,
		k.ServiceName,
		k.Description,
		string(permsJSON),
		k.EncryptedKey,
		k.Fingerprint,
		k.Status,
		formatTime(k.CreatedAt),
		formatNullableTime(k.ExpiresAt),
		formatNullableTime(k.LastUsedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "api_keys.fingerprint") {
			return fmt.Errorf("inserting api key: duplicate fingerprint")
		}
		return fmt.Errorf("inserting api key: %w", err)
	}

	s.logger.Debug("created api key", "id", k.ID, "user_id", k.UserID, "service", k.ServiceName)
	return nil
}

// GetKeyByFingerprint retrieves a key by its lookup fingerprint.
func (s *SQLiteStore) GetKeyByFingerprint(ctx context.Context, fingerprint string) (*APIKey, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys WHERE fingerprint = ?`
	return s.scanKey(s.db.QueryRowContext(ctx, query, fingerprint))
}

// GetKeyByID retrieves a key by its ID.
func (s *SQLiteStore) GetKeyByID(ctx context.Context, id string) (*APIKey, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys WHERE key_id = ?`
	return s.scanKey(s.db.QueryRowContext(ctx, query, id))
}

// ListKeysForUser returns all keys owned by the given user, newest first.
func (s *SQLiteStore) ListKeysForUser(ctx context.Context, userID string) ([]*APIKey, error) {
	query := `
		SELECT ` + keyColumns + `
		FROM api_keys
		WHERE user_id = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	var keys []*APIKey
	for rows.Next() {
		k, err := s.scanKeyRow(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating api keys: %w", err)
	}

	return keys, nil
}

// UpdateKeyStatus sets a key's status. The update is a single atomic
// statement; concurrent writers cannot observe a partial transition.
// Returns ErrKeyNotFound if no record matches.
func (s *SQLiteStore) UpdateKeyStatus(ctx context.Context, id string, status KeyStatus) error {
	query := `UPDATE api_keys SET status = ? WHERE key_id = ?`

	result, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("updating key status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrKeyNotFound
	}

	s.logger.Debug("updated key status", "id", id, "status", status)
	return nil
}

// UpdateKeyExpiration extends a key's expiration timestamp. The key material
// itself never changes. Returns ErrKeyNotFound if no record matches.
func (s *SQLiteStore) UpdateKeyExpiration(ctx context.Context, id string, expiresAt time.Time) error {
	query := `UPDATE api_keys SET expires_at = ? WHERE key_id = ?`

	result, err := s.db.ExecContext(ctx, query, formatTime(expiresAt), id)
	if err != nil {
		return fmt.Errorf("updating key expiration: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrKeyNotFound
	}

	s.logger.Debug("updated key expiration", "id", id, "expires_at", expiresAt)
	return nil
}

// DeleteKey permanently removes a key record in either status.
// Returns ErrKeyNotFound if no record matches.
func (s *SQLiteStore) DeleteKey(ctx context.Context, id string) error {
	query := `DELETE FROM api_keys WHERE key_id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting api key: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrKeyNotFound
	}

	s.logger.Debug("deleted api key", "id", id)
	return nil
}

// TouchKeyLastUsed records when a key last authenticated a request.
// Missing records are not an error; the caller treats this as best-effort.
func (s *SQLiteStore) TouchKeyLastUsed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE api_keys SET last_used_at = ? WHERE key_id = ?`

	if _, err := s.db.ExecContext(ctx, query, formatTime(at), id); err != nil {
		return fmt.Errorf("touching key last_used: %w", err)
	}
	return nil
}

func (s *SQLiteStore) scanKey(row *sql.Row) (*APIKey, error) {
	var k APIKey
	var permsJSON, createdAtStr string
	var expiresAt, lastUsedAt sql.NullString

	err := row.Scan(
		&k.ID,
		&k.UserID,
		&k.ServiceName,
		&k.Description,
		&permsJSON,
		&k.EncryptedKey,
		&k.Fingerprint,
		&k.Status,
		&createdAtStr,
		&expiresAt,
		&lastUsedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning api key: %w", err)
	}

	return s.finishKey(&k, permsJSON, createdAtStr, expiresAt, lastUsedAt)
}

func (s *SQLiteStore) scanKeyRow(rows *sql.Rows) (*APIKey, error) {
	var k APIKey
	var permsJSON, createdAtStr string
	var expiresAt, lastUsedAt sql.NullString

	err := rows.Scan(
		&k.ID,
		&k.UserID,
		&k.ServiceName,
		&k.Description,
		&permsJSON,
		&k.EncryptedKey,
		&k.Fingerprint,
		&k.Status,
		&createdAtStr,
		&expiresAt,
		&lastUsedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning api key row: %w", err)
	}

	return s.finishKey(&k, permsJSON, createdAtStr, expiresAt, lastUsedAt)
}

func (s *SQLiteStore) finishKey(k *APIKey, permsJSON, createdAtStr string, expiresAt, lastUsedAt sql.NullString) (*APIKey, error) {
	if err := json.Unmarshal([]byte(permsJSON), &k.Permissions); err != nil {
		return nil, fmt.Errorf("parsing permissions: %w", err)
	}

	var err error
	k.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	k.ExpiresAt, err = parseNullableTime(expiresAt)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	k.LastUsedAt, err = parseNullableTime(lastUsedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing last_used_at: %w", err)
	}

	return k, nil
}
