package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"recharge-backend/internal/domain"
)

type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, "open database", err)
	}
	p := &Postgres{db: db}
	if err := p.init(); err != nil {
		return nil, domain.Wrap(domain.KindPersistence, "init schema", err)
	}
	return p, nil
}

func (p *Postgres) init() error {
	_, err := p.db.Exec(`CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		sku_id TEXT NOT NULL,
		merchant_id TEXT NOT NULL,
		amount_cents BIGINT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		session_ref TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);`)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS orders_session_ref
		ON orders (session_ref) WHERE session_ref <> '';`)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(`CREATE TABLE IF NOT EXISTS skus (
		sku_id TEXT PRIMARY KEY,
		merchant_id TEXT NOT NULL,
		game_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image_ref TEXT NOT NULL DEFAULT '',
		price_cents BIGINT NOT NULL,
		currency TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);`)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(`CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		nickname TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);`)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(`CREATE TABLE IF NOT EXISTS processed_events (
		event_id TEXT PRIMARY KEY,
		processed_at TIMESTAMPTZ NOT NULL
	);`)
	return err
}

func (p *Postgres) CreatePendingOrder(ctx context.Context, userID, skuID, merchantID string, amountCents int64, currency string) (*domain.Order, error) {
	o := newPendingOrder(userID, skuID, merchantID, amountCents, currency)
	_, err := p.db.ExecContext(ctx, `INSERT INTO orders
		(order_id,user_id,sku_id,merchant_id,amount_cents,currency,status,session_ref,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		o.OrderID, o.UserID, o.SkuID, o.MerchantID, o.AmountCents, o.Currency, string(o.Status), o.SessionRef, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, "insert order", err)
	}
	return &o, nil
}

func (p *Postgres) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	err := p.db.GetContext(ctx, &o, `SELECT * FROM orders WHERE order_id=$1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.E(domain.KindNotFound, "order not found")
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, "select order", err)
	}
	return &o, nil
}

func (p *Postgres) GetOrderBySessionRef(ctx context.Context, ref string) (*domain.Order, error) {
	var o domain.Order
	err := p.db.GetContext(ctx, &o, `SELECT * FROM orders WHERE session_ref=$1 AND session_ref <> ''`, ref)
	if err == sql.ErrNoRows {
		return nil, domain.E(domain.KindNotFound, "order not found")
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, "select order by session", err)
	}
	return &o, nil
}

// AttachSessionRef is idempotent by value: rebinding the same ref is a
// no-op, binding a different ref to an already bound order is a conflict.
func (p *Postgres) AttachSessionRef(ctx context.Context, orderID, ref string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE orders SET session_ref=$1, updated_at=$2 WHERE order_id=$3 AND (session_ref='' OR session_ref=$1)`,
		ref, time.Now().UTC(), orderID)
	if err != nil {
		return domain.Wrap(domain.KindPersistence, "attach session ref", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Wrap(domain.KindPersistence, "attach session ref", err)
	}
	if n == 0 {
		if _, err := p.GetOrder(ctx, orderID); err != nil {
			return err
		}
		return domain.E(domain.KindConflict, "order already bound to another session")
	}
	return nil
}

// TransitionStatus is a single conditional UPDATE; the WHERE clause on the
// expected status is what makes concurrent transitions race-safe.
func (p *Postgres) TransitionStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE orders SET status=$1, updated_at=$2 WHERE order_id=$3 AND status=$4`,
		string(to), time.Now().UTC(), orderID, string(from))
	if err != nil {
		return domain.Wrap(domain.KindPersistence, "transition status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Wrap(domain.KindPersistence, "transition status", err)
	}
	if n == 0 {
		if _, err := p.GetOrder(ctx, orderID); err != nil {
			return err
		}
		return domain.E(domain.KindConflict, "order status changed concurrently")
	}
	return nil
}

func (p *Postgres) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	out := make([]domain.Order, 0)
	err := p.db.SelectContext(ctx, &out, `SELECT * FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, "list orders", err)
	}
	return out, nil
}

func (p *Postgres) GetSKU(ctx context.Context, id string) (*domain.SKU, error) {
	var s domain.SKU
	err := p.db.GetContext(ctx, &s, `SELECT * FROM skus WHERE sku_id=$1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.E(domain.KindNotFound, "sku not found")
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, "select sku", err)
	}
	return &s, nil
}

func (p *Postgres) ListSKUs(ctx context.Context) ([]domain.SKU, error) {
	out := make([]domain.SKU, 0)
	err := p.db.SelectContext(ctx, &out, `SELECT * FROM skus WHERE active ORDER BY name ASC`)
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, "list skus", err)
	}
	return out, nil
}

func (p *Postgres) UpsertSKUs(ctx context.Context, skus []domain.SKU) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Wrap(domain.KindPersistence, "begin", err)
	}
	defer tx.Rollback()
	for _, s := range skus {
		_, err := tx.ExecContext(ctx, `INSERT INTO skus
			(sku_id,merchant_id,game_id,name,description,image_ref,price_cents,currency,active,created_at,updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (sku_id) DO UPDATE SET merchant_id=$2,game_id=$3,name=$4,description=$5,image_ref=$6,price_cents=$7,currency=$8,active=$9,updated_at=$11`,
			s.SkuID, s.MerchantID, s.GameID, s.Name, s.Description, s.ImageRef, s.PriceCents, s.Currency, s.Active, s.CreatedAt, s.UpdatedAt)
		if err != nil {
			return domain.Wrap(domain.KindPersistence, "upsert sku", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Wrap(domain.KindPersistence, "commit", err)
	}
	return nil
}

func (p *Postgres) PutUser(ctx context.Context, u *domain.User) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO users (user_id,email,nickname,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (email) DO UPDATE SET nickname=$3, updated_at=$5`,
		u.UserID, u.Email, u.Nickname, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return domain.Wrap(domain.KindPersistence, "upsert user", err)
	}
	return nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := p.db.GetContext(ctx, &u, `SELECT * FROM users WHERE email=$1`, email)
	if err == sql.ErrNoRows {
		return nil, domain.E(domain.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, "select user", err)
	}
	return &u, nil
}

func (p *Postgres) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	err := p.db.GetContext(ctx, &seen, `SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id=$1)`, eventID)
	if err != nil {
		return false, domain.Wrap(domain.KindPersistence, "check event", err)
	}
	return seen, nil
}

// MarkEventProcessed records a provider event id, reporting whether this
// delivery was the first. ON CONFLICT DO NOTHING keeps concurrent
// duplicate deliveries down to a single winner.
func (p *Postgres) MarkEventProcessed(ctx context.Context, eventID string) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`INSERT INTO processed_events (event_id, processed_at) VALUES ($1,$2) ON CONFLICT (event_id) DO NOTHING`,
		eventID, time.Now().UTC())
	if err != nil {
		return false, domain.Wrap(domain.KindPersistence, "record event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.Wrap(domain.KindPersistence, "record event", err)
	}
	return n > 0, nil
}
