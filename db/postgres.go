package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"food-whatsapp/models"
)

// Postgres is the default store driver.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and, when migrations is non-nil, applies them with goose.
func OpenPostgres(ctx context.Context, dsn string, migrations fs.FS) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	p := &Postgres{pool: pool}
	if migrations != nil {
		if err := Migrate(ctx, pool, migrations); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return p, nil
}

// Migrate applies every pending goose migration found under "migrations" in fsys.
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	goose.SetBaseFS(fsys)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// withRetry re-runs fn on serialization failures, deadlocks and dropped connections.
func (p *Postgres) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{200 * time.Millisecond, 1 * time.Second, 3 * time.Second}
	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil || !retryable(err) || i == len(delays) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delays[i]):
		}
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

const customerColumns = `phone, name, address, lat, lon, profile_complete, language, last_seen, created_at`

func scanCustomer(row pgx.Row) (*models.Customer, error) {
	var c models.Customer
	var lat, lon *float64
	if err := row.Scan(&c.Phone, &c.Name, &c.Address, &lat, &lon, &c.ProfileComplete, &c.Language, &c.LastSeen, &c.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	if lat != nil && lon != nil {
		c.Location = &models.GeoPoint{Lat: *lat, Lon: *lon}
	}
	return &c, nil
}

func locationArgs(loc *models.GeoPoint) (lat, lon *float64) {
	if loc == nil {
		return nil, nil
	}
	return &loc.Lat, &loc.Lon
}

func (p *Postgres) GetCustomer(ctx context.Context, phone string) (*models.Customer, error) {
	return scanCustomer(p.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = $1`, phone))
}

func (p *Postgres) InsertCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	lat, lon := locationArgs(c.Location)
	_, err := p.pool.Exec(ctx, `
		INSERT INTO customers (phone, name, address, lat, lon, profile_complete, language, last_seen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (phone) DO NOTHING`,
		c.Phone, c.Name, c.Address, lat, lon, c.ProfileComplete, c.Language, c.LastSeen, c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	return p.GetCustomer(ctx, c.Phone)
}

// UpdateCustomer reads, merges and writes inside one transaction with the row locked.
func (p *Postgres) UpdateCustomer(ctx context.Context, phone string, upd models.ProfileUpdate, seenAt time.Time) (*models.Customer, error) {
	var out *models.Customer
	err := p.withRetry(ctx, func() error {
		tx, err := p.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		c, err := scanCustomer(tx.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = $1 FOR UPDATE`, phone))
		if err != nil {
			return err
		}
		applyProfileUpdate(c, upd)
		c.LastSeen = seenAt
		lat, lon := locationArgs(c.Location)
		if _, err := tx.Exec(ctx, `
			UPDATE customers
			SET name = $2, address = $3, lat = $4, lon = $5, profile_complete = $6, language = $7,
			    last_seen = $8, updated_at = now()
			WHERE phone = $1`,
			phone, c.Name, c.Address, lat, lon, c.ProfileComplete, c.Language, c.LastSeen,
		); err != nil {
			return fmt.Errorf("update customer: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

func (p *Postgres) ListRecentCustomers(ctx context.Context, limit int) ([]models.Customer, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY last_seen DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

const menuColumns = `id, category, name, price, description, available, trending, is_new, created_at, updated_at`

func scanMenuItem(row pgx.Row) (*models.MenuItem, error) {
	var it models.MenuItem
	if err := row.Scan(&it.ID, &it.Category, &it.Name, &it.Price, &it.Description, &it.Available, &it.Trending, &it.IsNew, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &it, nil
}

func (p *Postgres) queryMenu(ctx context.Context, where string) ([]models.MenuItem, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+menuColumns+` FROM menu_items `+where+` ORDER BY category, lower(name)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.MenuItem
	for rows.Next() {
		it, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (p *Postgres) FindAvailableMenuItemByName(ctx context.Context, name string) (*models.MenuItem, error) {
	return scanMenuItem(p.pool.QueryRow(ctx,
		`SELECT `+menuColumns+` FROM menu_items WHERE lower(name) = lower($1) AND available LIMIT 1`, name))
}

func (p *Postgres) ListAvailableMenu(ctx context.Context) ([]models.MenuItem, error) {
	return p.queryMenu(ctx, `WHERE available`)
}

func (p *Postgres) ListAllMenu(ctx context.Context) ([]models.MenuItem, error) {
	return p.queryMenu(ctx, ``)
}

func (p *Postgres) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	return scanMenuItem(p.pool.QueryRow(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = $1`, id))
}

func (p *Postgres) InsertMenuItem(ctx context.Context, it *models.MenuItem) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO menu_items (id, category, name, price, description, available, trending, is_new, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		it.ID, it.Category, it.Name, it.Price, it.Description, it.Available, it.Trending, it.IsNew, it.CreatedAt, it.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	return err
}

func (p *Postgres) UpdateMenuItem(ctx context.Context, it *models.MenuItem) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE menu_items
		SET category = $2, name = $3, price = $4, description = $5, available = $6, trending = $7, is_new = $8, updated_at = $9
		WHERE id = $1`,
		it.ID, it.Category, it.Name, it.Price, it.Description, it.Available, it.Trending, it.IsNew, it.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteMenuItem(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (p *Postgres) ListDeliveryRates(ctx context.Context) ([]models.DeliveryRate, error) {
	rows, err := p.pool.Query(ctx, `SELECT max_km, fee FROM delivery_rates ORDER BY max_km`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.DeliveryRate
	for rows.Next() {
		var r models.DeliveryRate
		if err := rows.Scan(&r.MaxKm, &r.Fee); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) ReplaceDeliveryRates(ctx context.Context, rates []models.DeliveryRate) error {
	return p.withRetry(ctx, func() error {
		tx, err := p.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)
		if _, err := tx.Exec(ctx, `DELETE FROM delivery_rates`); err != nil {
			return err
		}
		for _, r := range rates {
			if _, err := tx.Exec(ctx, `INSERT INTO delivery_rates (max_km, fee) VALUES ($1, $2)`, r.MaxKm, r.Fee); err != nil {
				return err
			}
		}
		return tx.Commit(ctx)
	})
}

const orderColumns = `id, customer_phone, customer_name, items, subtotal, delivery_fee, total, distance_km,
	delivery_address, lat, lon, status, payment_method, payment_status, created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var lat, lon *float64
	if err := row.Scan(&o.ID, &o.CustomerPhone, &o.CustomerName, &o.Items, &o.Subtotal, &o.DeliveryFee, &o.Total,
		&o.DistanceKm, &o.DeliveryAddress, &lat, &lon, &o.Status, &o.PaymentMethod, &o.PaymentStatus,
		&o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	if lat != nil && lon != nil {
		o.CustomerLocation = &models.GeoPoint{Lat: *lat, Lon: *lon}
	}
	return &o, nil
}

func (p *Postgres) InsertOrder(ctx context.Context, o *models.Order) error {
	lat, lon := locationArgs(o.CustomerLocation)
	_, err := p.pool.Exec(ctx, `
		INSERT INTO orders (id, customer_phone, customer_name, items, subtotal, delivery_fee, total, distance_km,
			delivery_address, lat, lon, status, payment_method, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		o.ID, o.CustomerPhone, o.CustomerName, o.Items, o.Subtotal, o.DeliveryFee, o.Total, o.DistanceKm,
		o.DeliveryAddress, lat, lon, o.Status, o.PaymentMethod, o.PaymentStatus, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (p *Postgres) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return scanOrder(p.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (p *Postgres) SaveOrder(ctx context.Context, o *models.Order) error {
	return p.withRetry(ctx, func() error {
		tag, err := p.pool.Exec(ctx, `
			UPDATE orders
			SET status = $2, payment_method = $3, payment_status = $4, delivery_address = $5, updated_at = $6
			WHERE id = $1`,
			o.ID, o.Status, o.PaymentMethod, o.PaymentStatus, o.DeliveryAddress, o.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}

func (p *Postgres) LatestOrderByStatus(ctx context.Context, phone, status string) (*models.Order, error) {
	return scanOrder(p.pool.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE customer_phone = $1 AND status = $2
		ORDER BY created_at DESC LIMIT 1`, phone, status))
}

func (p *Postgres) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	var where []string
	var args []any
	if f.CustomerPhone != "" {
		args = append(args, f.CustomerPhone)
		where = append(where, fmt.Sprintf("customer_phone = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (p *Postgres) InsertPaymentProof(ctx context.Context, pr *models.PaymentProof) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO payment_proofs (id, order_id, phone, utr, media_key, content_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		pr.ID, pr.OrderID, pr.Phone, pr.UTR, pr.MediaKey, pr.ContentType, pr.CreatedAt,
	)
	return err
}

func (p *Postgres) SaveOutboundMessage(ctx context.Context, m *models.OutboundMessage) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO outbound_messages (phone, order_id, status, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.Phone, m.OrderID, m.Status, m.Content, m.CreatedAt,
	)
	return err
}

func (p *Postgres) StatusNotifiedSince(ctx context.Context, orderID, status string, since time.Time) (bool, error) {
	var count int
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM outbound_messages
		WHERE order_id = $1 AND status = $2 AND created_at > $3`,
		orderID, status, since,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
