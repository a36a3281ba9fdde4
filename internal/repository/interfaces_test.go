package repository

import "testing"

// TestPostgresProductRepo_ImplementsInterface はPostgresProductRepoがProductRepositoryを実装することを検証する。
func TestPostgresProductRepo_ImplementsInterface(t *testing.T) {
	// コンパイル時チェック：PostgresProductRepoがProductRepositoryを満たすことを検証
	var _ ProductRepository = (*PostgresProductRepo)(nil)
}

// TestPostgresJobRepo_ImplementsInterface はPostgresJobRepoがJobRepositoryを実装することを検証する。
func TestPostgresJobRepo_ImplementsInterface(t *testing.T) {
	// コンパイル時チェック：PostgresJobRepoがJobRepositoryを満たすことを検証
	var _ JobRepository = (*PostgresJobRepo)(nil)
}
