package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/db"
)

// ErrNotFound is returned for unknown or deactivated clients.
var ErrNotFound = errors.New("clients: not found")

// Client is a customer record an order can be attached to.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Address   *string   `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// PostgresDirectory looks clients up in the clients table.
type PostgresDirectory struct {
	DB db.Querier
}

const clientColumns = `id, name, phone, email, address, created_at`

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt)
	return c, err
}

// Get returns an active client by id.
func (d PostgresDirectory) Get(ctx context.Context, id string) (Client, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Client{}, ErrNotFound
	}
	c, err := scanClient(d.DB.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1 AND active`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

// Search matches active clients by name or phone prefix.
func (d PostgresDirectory) Search(ctx context.Context, query string, limit int) ([]Client, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	pattern := strings.TrimSpace(query) + "%"
	rows, err := d.DB.Query(ctx, `SELECT `+clientColumns+` FROM clients
WHERE active AND (name ILIKE $1 OR phone LIKE $1)
ORDER BY name, id LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search clients: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Client, error) {
		return scanClient(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan clients: %w", err)
	}
	return out, nil
}
