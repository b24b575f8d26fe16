package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/db"
)

type variantSeed struct {
	Value string
	Name  string
	Extra int64
	Stock int
}

type productSeed struct {
	ID          string
	Name        string
	Price       int64
	Stock       int
	VariantName string
	Variants    []variantSeed
}

type combinationSeed struct {
	A, B      string
	Extra     int64
	Stock     int
	Available bool
}

type compositeSeed struct {
	ID           string
	Name         string
	BasePrice    int64
	A, B         string
	Combinations []combinationSeed
}

type clientSeed struct {
	ID, Name, Phone, Email string
}

// Prices are in millimes (1 TND = 1000).
var products = []productSeed{
	{ID: "prd-chair", Name: "Chaise salle a manger", Price: 185_000, Stock: 40, VariantName: "Bois", Variants: []variantSeed{
		{Value: "chene", Name: "Chene", Extra: 0, Stock: 12},
		{Value: "noyer", Name: "Noyer", Extra: 25_000, Stock: 6},
		{Value: "hetre", Name: "Hetre", Extra: 10_000, Stock: 0},
	}},
	{ID: "prd-table", Name: "Table basse", Price: 420_000, Stock: 8},
	{ID: "prd-lamp", Name: "Lampadaire", Price: 96_500, Stock: 15},
	{ID: "prd-frame", Name: "Structure canape", Price: 0, Stock: 0, VariantName: "Structure", Variants: []variantSeed{
		{Value: "angle", Name: "Angle"},
		{Value: "droit", Name: "Droit"},
	}},
	{ID: "prd-fabric", Name: "Tissu canape", Price: 0, Stock: 0, VariantName: "Tissu", Variants: []variantSeed{
		{Value: "lin", Name: "Lin"},
		{Value: "velours", Name: "Velours"},
		{Value: "cuir", Name: "Cuir"},
	}},
}

var composites = []compositeSeed{
	{ID: "cmp-sofa", Name: "Canape sur mesure", BasePrice: 1_450_000, A: "prd-frame", B: "prd-fabric", Combinations: []combinationSeed{
		{A: "angle", B: "lin", Extra: 200_000, Stock: 3, Available: true},
		{A: "angle", B: "velours", Extra: 350_000, Stock: 1, Available: true},
		{A: "angle", B: "cuir", Extra: 900_000, Stock: 0, Available: false},
		{A: "droit", B: "lin", Extra: 0, Stock: 5, Available: true},
		{A: "droit", B: "cuir", Extra: 650_000, Stock: 2, Available: true},
	}},
}

var clients = []clientSeed{
	{ID: "cl-0001", Name: "Amira Ben Salah", Phone: "+21620111222", Email: "amira@example.tn"},
	{ID: "cl-0002", Name: "Karim Trabelsi", Phone: "+21655333444", Email: "karim@example.tn"},
	{ID: "cl-0003", Name: "Salma Gharbi", Phone: "+21698555666", Email: ""},
}

func main() {
	_ = godotenv.Load()
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("tool", "seeder").Logger()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	if err := db.MigrateUp(dbURL); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if err := seedProducts(ctx, tx); err != nil {
			return err
		}
		if err := seedComposites(ctx, tx); err != nil {
			return err
		}
		return seedClients(ctx, tx)
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}
	logger.Info().
		Int("products", len(products)).
		Int("composites", len(composites)).
		Int("clients", len(clients)).
		Msg("seeding completed")
}

func seedProducts(ctx context.Context, tx pgx.Tx) error {
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(`INSERT INTO products (id, name, price, stock, variant_name)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price,
				stock = EXCLUDED.stock, variant_name = EXCLUDED.variant_name, updated_at = now()`,
			p.ID, p.Name, p.Price, p.Stock, p.VariantName)
		for i, v := range p.Variants {
			batch.Queue(`INSERT INTO product_variants (product_id, value, name, extra_price, stock, position)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (product_id, value) DO UPDATE SET name = EXCLUDED.name,
					extra_price = EXCLUDED.extra_price, stock = EXCLUDED.stock, position = EXCLUDED.position`,
				p.ID, v.Value, v.Name, v.Extra, v.Stock, i)
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed products: %w", err)
	}
	return nil
}

func seedComposites(ctx context.Context, tx pgx.Tx) error {
	batch := &pgx.Batch{}
	for _, c := range composites {
		batch.Queue(`INSERT INTO composite_products (id, name, base_price, base_product_a, base_product_b)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, base_price = EXCLUDED.base_price,
				base_product_a = EXCLUDED.base_product_a, base_product_b = EXCLUDED.base_product_b, updated_at = now()`,
			c.ID, c.Name, c.BasePrice, c.A, c.B)
		for i, combo := range c.Combinations {
			id := fmt.Sprintf("%s-%s-%s", c.ID, combo.A, combo.B)
			batch.Queue(`INSERT INTO combinations (id, composite_id, option_a_value, option_b_value, extra_price, stock, is_available, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (id) DO UPDATE SET extra_price = EXCLUDED.extra_price, stock = EXCLUDED.stock,
					is_available = EXCLUDED.is_available, position = EXCLUDED.position`,
				id, c.ID, combo.A, combo.B, combo.Extra, combo.Stock, combo.Available, i)
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed composites: %w", err)
	}
	return nil
}

func seedClients(ctx context.Context, tx pgx.Tx) error {
	batch := &pgx.Batch{}
	for _, c := range clients {
		batch.Queue(`INSERT INTO clients (id, name, phone, email)
			VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone, email = EXCLUDED.email`,
			c.ID, c.Name, c.Phone, c.Email)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed clients: %w", err)
	}
	return nil
}
