package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// 接続プール設定。APIサーバーとワーカーの2プロセスが同一のPostgreSQLを
// 共有するため、1プロセスあたりの接続数は控えめに保つ。
const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

// Open は商品カタログとスクレイプジョブを保持するPostgreSQLへの接続を開く。
// databaseURLは接続URL（例: "postgres://dropscout:***@db:5432/dropscout?sslmode=disable"）。
// sql.Openは接続を確立しないため、起動時の疎通確認は呼び出し側がdb.Ping()で行うこと。
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("データベースのオープンに失敗しました: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	return db, nil
}
