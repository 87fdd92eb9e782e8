package migrator_test

import (
	"testing"

	"github.com/linemk/cart-shop/internal/config"
	"github.com/linemk/cart-shop/internal/lib/migrator"
	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: 5433, User: "shop", Password: "secret", Name: "cart"}

	assert.Equal(t, "postgres://shop:secret@db:5433/cart?sslmode=disable", migrator.QueryDSN(cfg))
	assert.Equal(t,
		"postgres://shop:secret@db:5433/cart?sslmode=disable&x-migrations-table=migrations",
		migrator.MigrateDSN(cfg, "migrations"),
	)
}

func TestUp_MissingDirectory(t *testing.T) {
	_, err := migrator.Up("./does-not-exist", "postgres://u:p@localhost:1/db?sslmode=disable")
	assert.Error(t, err)
}
