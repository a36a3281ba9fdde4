package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/dropscout/internal/model"
)

// PostgresProductRepo はPostgreSQLを使用した商品カタログリポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

const productColumns = `id, title, price, currency, url, image_url, shipping_days,
	        category, rating, source_platform, created_at, updated_at`

// scanProduct は1行を商品構造体へ読み取る。
func scanProduct(scan func(dest ...interface{}) error) (*model.Product, error) {
	product := &model.Product{}
	var imageURL, category sql.NullString
	var shippingDays sql.NullInt64
	var rating sql.NullFloat64

	err := scan(
		&product.ID, &product.Title, &product.Price, &product.Currency,
		&product.URL, &imageURL, &shippingDays,
		&category, &rating, &product.SourcePlatform,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.ImageURL = nullStringValue(imageURL)
	product.Category = nullStringValue(category)
	if shippingDays.Valid {
		days := int(shippingDays.Int64)
		product.ShippingDays = &days
	}
	if rating.Valid {
		product.Rating = &rating.Float64
	}
	return product, nil
}

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)

	product, err := scanProduct(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	return product, nil
}

// FindByURL はURLで商品を検索する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByURL(ctx context.Context, url string) (*model.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE url = $1`, url)

	product, err := scanProduct(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("URL による商品の検索に失敗しました: %w", err)
	}
	return product, nil
}

// Create は商品を作成する。同一URLの行が既に存在する場合は何もせずfalseを返す。
func (r *PostgresProductRepo) Create(ctx context.Context, product *model.Product) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, title, price, currency, url, image_url, shipping_days,
		                       category, rating, source_platform, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (url) DO NOTHING`,
		product.ID, product.Title, product.Price, product.Currency, product.URL,
		nullString(product.ImageURL), nullInt(product.ShippingDays),
		nullString(product.Category), nullFloat(product.Rating),
		product.SourcePlatform, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("商品の作成に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("商品作成の結果確認に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// Update は既存商品の非キー項目を上書き更新する。
func (r *PostgresProductRepo) Update(ctx context.Context, product *model.Product) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET
		    title = $2, price = $3, currency = $4, image_url = $5,
		    shipping_days = $6, category = $7, rating = $8,
		    source_platform = $9, updated_at = $10
		 WHERE url = $1`,
		product.URL, product.Title, product.Price, product.Currency,
		nullString(product.ImageURL), nullInt(product.ShippingDays),
		nullString(product.Category), nullFloat(product.Rating),
		product.SourcePlatform, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("商品の更新に失敗しました: %w", err)
	}
	return nil
}

// ListRecent は作成日時の降順で商品一覧を取得する。
func (r *PostgresProductRepo) ListRecent(ctx context.Context, limit, offset int) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		product, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("商品行の読み取りに失敗しました: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("商品一覧の走査に失敗しました: %w", err)
	}

	return products, nil
}

// Count はカタログの商品総数を返す。
func (r *PostgresProductRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("商品数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列値を取り出す。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullInt はnilポインタをsql.NullInt64に変換する。
func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// nullFloat はnilポインタをsql.NullFloat64に変換する。
func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// compile-time interface check
var _ ProductRepository = (*PostgresProductRepo)(nil)
