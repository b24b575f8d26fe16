package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/db"
)

// Source is the catalog's source of truth.
type Source interface {
	Product(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	Composite(ctx context.Context, id string) (CompositeProduct, error)
	ListComposites(ctx context.Context) ([]CompositeProduct, error)
	LiveStock(ctx context.Context, ref StockRef) (int, error)
}

// PostgresSource reads the catalog tables with pgx.
type PostgresSource struct {
	DB db.Querier
}

// NewPostgresSource constructs a PostgresSource.
func NewPostgresSource(q db.Querier) *PostgresSource {
	return &PostgresSource{DB: q}
}

const productColumns = `id, name, price, stock, image, variant_name`

// Product loads one product with its variants.
func (s *PostgresSource) Product(ctx context.Context, id string) (Product, error) {
	var p Product
	err := s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Image, &p.VariantName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	variants, err := s.variants(ctx, `WHERE product_id = $1`, id)
	if err != nil {
		return Product{}, err
	}
	p.Variants = NormalizeVariants(variants[p.ID])
	p.Stock = nonNegativeInt(p.Stock)
	return p, nil
}

// ListProducts loads every product ordered by name, variants included.
func (s *PostgresSource) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		var p Product
		err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Image, &p.VariantName)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	variants, err := s.variants(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Variants = NormalizeVariants(variants[products[i].ID])
		products[i].Stock = nonNegativeInt(products[i].Stock)
	}
	return products, nil
}

func (s *PostgresSource) variants(ctx context.Context, where string, args ...any) (map[string][]VariantOption, error) {
	rows, err := s.DB.Query(ctx, `SELECT product_id, name, value, image, extra_price, stock
		FROM product_variants `+where+` ORDER BY product_id, position, value`, args...)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]VariantOption)
	for rows.Next() {
		var (
			productID string
			v         VariantOption
		)
		if err := rows.Scan(&productID, &v.Name, &v.Value, &v.Image, &v.ExtraPrice, &v.Stock); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out[productID] = append(out[productID], v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return out, nil
}

const compositeQuery = `SELECT c.id, c.name, c.base_price,
	a.id, a.name, a.variant_name, b.id, b.name, b.variant_name
	FROM composite_products c
	JOIN products a ON a.id = c.base_product_a
	JOIN products b ON b.id = c.base_product_b`

func scanComposite(row pgx.Row) (CompositeProduct, error) {
	var c CompositeProduct
	err := row.Scan(&c.ID, &c.Name, &c.BasePrice,
		&c.BaseProductA.ID, &c.BaseProductA.Name, &c.BaseProductA.VariantName,
		&c.BaseProductB.ID, &c.BaseProductB.Name, &c.BaseProductB.VariantName)
	return c, err
}

// Composite loads a composite product and its resolved combinations.
func (s *PostgresSource) Composite(ctx context.Context, id string) (CompositeProduct, error) {
	c, err := scanComposite(s.DB.QueryRow(ctx, compositeQuery+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CompositeProduct{}, ErrNotFound
		}
		return CompositeProduct{}, fmt.Errorf("get composite: %w", err)
	}
	combos, err := s.combinations(ctx, c.ID)
	if err != nil {
		return CompositeProduct{}, err
	}
	c.Combinations = combos
	return c, nil
}

// ListComposites loads composite headers without combinations.
func (s *PostgresSource) ListComposites(ctx context.Context) ([]CompositeProduct, error) {
	rows, err := s.DB.Query(ctx, compositeQuery+` ORDER BY c.name, c.id`)
	if err != nil {
		return nil, fmt.Errorf("list composites: %w", err)
	}
	composites, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (CompositeProduct, error) {
		return scanComposite(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan composites: %w", err)
	}
	return composites, nil
}

// combinations joins each row's option values to the base products' variants.
// Unmatched options come back NULL and are dropped by NormalizeCombinations.
func (s *PostgresSource) combinations(ctx context.Context, compositeID string) ([]Combination, error) {
	rows, err := s.DB.Query(ctx, `SELECT k.id, k.final_image, k.extra_price, k.stock, k.is_available,
		va.name, va.value, va.image, va.extra_price, va.stock,
		vb.name, vb.value, vb.image, vb.extra_price, vb.stock
		FROM combinations k
		JOIN composite_products c ON c.id = k.composite_id
		LEFT JOIN product_variants va ON va.product_id = c.base_product_a AND va.value = k.option_a_value
		LEFT JOIN product_variants vb ON vb.product_id = c.base_product_b AND vb.value = k.option_b_value
		WHERE k.composite_id = $1
		ORDER BY k.position, k.id`, compositeID)
	if err != nil {
		return nil, fmt.Errorf("list combinations: %w", err)
	}
	defer rows.Close()
	var raw []CombinationRow
	for rows.Next() {
		var (
			row  CombinationRow
			a, b nullableOption
		)
		if err := rows.Scan(&row.ID, &row.FinalImage, &row.ExtraPrice, &row.Stock, &row.IsAvailable,
			&a.Name, &a.Value, &a.Image, &a.ExtraPrice, &a.Stock,
			&b.Name, &b.Value, &b.Image, &b.ExtraPrice, &b.Stock); err != nil {
			return nil, fmt.Errorf("scan combination: %w", err)
		}
		row.OptionA = a.option()
		row.OptionB = b.option()
		raw = append(raw, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate combinations: %w", err)
	}
	return NormalizeCombinations(raw), nil
}

type nullableOption struct {
	Name       *string
	Value      *string
	Image      *string
	ExtraPrice *int64
	Stock      *int
}

func (n nullableOption) option() *VariantOption {
	if n.Value == nil {
		return nil
	}
	v := VariantOption{Value: *n.Value, Image: n.Image}
	if n.Name != nil {
		v.Name = *n.Name
	}
	if n.ExtraPrice != nil {
		v.ExtraPrice = *n.ExtraPrice
	}
	if n.Stock != nil {
		v.Stock = *n.Stock
	}
	return &v
}

// LiveStock reads current stock for a cart line identity straight from the tables.
func (s *PostgresSource) LiveStock(ctx context.Context, ref StockRef) (int, error) {
	var (
		sql  string
		args []any
	)
	switch {
	case ref.VariantValue != "" && ref.ProductType != ProductSpecial:
		sql = `SELECT stock FROM product_variants WHERE product_id = $1 AND value = $2`
		args = []any{ref.ProductID, ref.VariantValue}
	case ref.CombinationID != "":
		sql = `SELECT stock FROM combinations WHERE composite_id = $1 AND id = $2`
		args = []any{ref.ProductID, ref.CombinationID}
	case ref.ProductType == ProductSpecial:
		return 0, ErrNotFound
	default:
		sql = `SELECT stock FROM products WHERE id = $1`
		args = []any{ref.ProductID}
	}
	var stock int
	if err := s.DB.QueryRow(ctx, sql, args...).Scan(&stock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("live stock: %w", err)
	}
	return nonNegativeInt(stock), nil
}
