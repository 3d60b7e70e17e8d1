package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albatross-va/albatross/internal/domain"
	"github.com/albatross-va/albatross/internal/port/readmodel"
)

// ReadModel implements readmodel.Store on the denormalized query tables.
type ReadModel struct {
	pool *pgxpool.Pool
}

// NewReadModel creates a ReadModel backed by the given connection pool.
func NewReadModel(pool *pgxpool.Pool) *ReadModel {
	return &ReadModel{pool: pool}
}

func (s *ReadModel) UpsertTenant(ctx context.Context, t readmodel.Tenant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (id, name, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		t.ID, t.Name, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert tenant %s: %w", t.ID, err)
	}
	return nil
}

func (s *ReadModel) GetTenant(ctx context.Context, id string) (*readmodel.Tenant, error) {
	var t readmodel.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM tenants WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tenant %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant %s: %w", id, err)
	}
	return &t, nil
}

func (s *ReadModel) ListTenants(ctx context.Context) ([]readmodel.Tenant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at FROM tenants ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []readmodel.Tenant
	for rows.Next() {
		var t readmodel.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *ReadModel) UpsertUser(ctx context.Context, u readmodel.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, role, tenant_id, password_hash, created_at, last_login_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   username = EXCLUDED.username, email = EXCLUDED.email,
		   role = EXCLUDED.role, tenant_id = EXCLUDED.tenant_id`,
		u.ID, u.Username, u.Email, u.Role, u.TenantID, u.PasswordHash, u.CreatedAt, u.LastLoginAt)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

func (s *ReadModel) SetPasswordHash(ctx context.Context, userID, hash string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, userID, hash)
	if err != nil {
		return fmt.Errorf("set password hash for %s: %w", userID, err)
	}
	return nil
}

func (s *ReadModel) SetLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET last_login_at = $2 WHERE id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("set last login for %s: %w", userID, err)
	}
	return nil
}

const userColumns = `id, username, email, role, tenant_id, password_hash, created_at, last_login_at`

func scanUser(row pgx.Row) (*readmodel.User, error) {
	var u readmodel.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.TenantID,
		&u.PasswordHash, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *ReadModel) GetUser(ctx context.Context, id string) (*readmodel.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

func (s *ReadModel) GetUserByUsername(ctx context.Context, username string) (*readmodel.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM users WHERE username = $1`, userColumns), username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", username, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (s *ReadModel) UpsertApiKey(ctx context.Context, k readmodel.ApiKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_api_keys (key_id, user_id, name, key_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key_id) DO UPDATE SET name = EXCLUDED.name`,
		k.KeyID, k.UserID, k.Name, k.KeyHash, k.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert api key %s: %w", k.KeyID, err)
	}
	return nil
}

func (s *ReadModel) DeleteApiKey(ctx context.Context, keyID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM user_api_keys WHERE key_id = $1`, keyID)
	if err != nil {
		return fmt.Errorf("delete api key %s: %w", keyID, err)
	}
	return nil
}

func (s *ReadModel) ListApiKeys(ctx context.Context, userID string) ([]readmodel.ApiKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key_id, user_id, name, key_hash, created_at
		 FROM user_api_keys WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys for %s: %w", userID, err)
	}
	defer rows.Close()

	var keys []readmodel.ApiKey
	for rows.Next() {
		var k readmodel.ApiKey
		if err := rows.Scan(&k.KeyID, &k.UserID, &k.Name, &k.KeyHash, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *ReadModel) GetUserByApiKeyHash(ctx context.Context, keyHash string) (*readmodel.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT u.id, u.username, u.email, u.role, u.tenant_id, u.password_hash, u.created_at, u.last_login_at
		 FROM users u JOIN user_api_keys k ON k.user_id = u.id
		 WHERE k.key_hash = $1`, keyHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("api key: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by api key: %w", err)
	}
	return u, nil
}

func (s *ReadModel) UpsertPirep(ctx context.Context, p readmodel.Pirep) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pireps (id, tenant_id, user_id, aircraft_id, departure_icao, arrival_icao,
		                     flight_number, flight_time_hours, remarks, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO NOTHING`,
		p.ID, p.TenantID, p.UserID, p.AircraftID, p.DepartureICAO, p.ArrivalICAO,
		p.FlightNumber, p.FlightTimeHours, p.Remarks, p.SubmittedAt)
	if err != nil {
		return fmt.Errorf("upsert pirep %s: %w", p.ID, err)
	}
	return nil
}

const pirepColumns = `id, tenant_id, user_id, aircraft_id, departure_icao, arrival_icao, flight_number, flight_time_hours, remarks, submitted_at`

func scanPirep(row pgx.Row) (*readmodel.Pirep, error) {
	var p readmodel.Pirep
	err := row.Scan(&p.ID, &p.TenantID, &p.UserID, &p.AircraftID, &p.DepartureICAO,
		&p.ArrivalICAO, &p.FlightNumber, &p.FlightTimeHours, &p.Remarks, &p.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ReadModel) GetPirep(ctx context.Context, id string) (*readmodel.Pirep, error) {
	p, err := scanPirep(s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM pireps WHERE id = $1`, pirepColumns), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pirep %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get pirep %s: %w", id, err)
	}
	return p, nil
}

func (s *ReadModel) ListPirepsByTenant(ctx context.Context, tenantID string) ([]readmodel.Pirep, error) {
	return s.listPireps(ctx, `tenant_id`, tenantID)
}

func (s *ReadModel) ListPirepsByUser(ctx context.Context, userID string) ([]readmodel.Pirep, error) {
	return s.listPireps(ctx, `user_id`, userID)
}

func (s *ReadModel) listPireps(ctx context.Context, column, value string) ([]readmodel.Pirep, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM pireps WHERE %s = $1 ORDER BY submitted_at DESC`, pirepColumns, column), value)
	if err != nil {
		return nil, fmt.Errorf("list pireps by %s: %w", column, err)
	}
	defer rows.Close()

	var pireps []readmodel.Pirep
	for rows.Next() {
		p, err := scanPirep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pirep: %w", err)
		}
		pireps = append(pireps, *p)
	}
	return pireps, rows.Err()
}
