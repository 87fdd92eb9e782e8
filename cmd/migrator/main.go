package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
	"github.com/linemk/cart-shop/internal/config"
	"github.com/linemk/cart-shop/internal/lib/migrator"
)

func main() {
	// флаги разбираются здесь целиком, config.MustLoad повторно вызвал бы flag.Parse
	var configPath, migrationsPathFlag string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&migrationsPathFlag, "migrations-path", "", "path to migration files")
	flag.Parse()

	if configPath == "" {
		configPath = GetEnv("CONFIG_PATH", "")
	}
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	cfg := config.MustLoadByPath(configPath)

	migrationsPath := cfg.Migrations.Path
	if migrationsPathFlag != "" {
		migrationsPath = migrationsPathFlag
	}

	applied, err := migrator.Up(migrationsPath, migrator.MigrateDSN(cfg.Database, "migrations"))
	if err != nil {
		log.Fatalf("%v", err)
	}
	if applied {
		log.Println("Migrations applied successfully")
	} else {
		fmt.Println("No migrations to apply")
	}

	db, err := sql.Open("postgres", migrator.QueryDSN(cfg.Database))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name
	`)
	if err != nil {
		log.Fatalf("failed to query tables: %v", err)
	}
	defer rows.Close()

	fmt.Println("Current tables in the database:")
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			log.Fatalf("failed to scan row: %v", err)
		}
		fmt.Println(" -", tableName)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("error reading rows: %v", err)
	}
}

func GetEnv(key, defaultValue string) string {
	if value, exists := lookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Обертка для os.LookupEnv, чтобы можно было легко подменить в тестах
func lookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}
