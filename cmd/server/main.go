package main

import (
	"context"
	"database/sql"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/taskward/taskward"
	"github.com/taskward/taskward/middleware/bearerware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}

	cfg := taskward.EnvConfig{}

	signingKey := cfg.GetSigningKey()
	if signingKey == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.GetDSN())
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	if err := taskward.CreateSchema(context.Background(), db); err != nil {
		log.Fatalf("create schema: %v", err)
	}

	repo := taskward.NewRepositoryManager(db)
	repo.MustValidate()

	tokens := taskward.NewTokenService(
		[]byte(signingKey),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		nil,
	)

	auther := taskward.NewAuthenticator(repo, tokens)

	protected := bearerware.New(bearerware.Config{
		Store:          repo.Users(),
		TokenValidator: tokens,
	})

	app := fiber.New(fiber.Config{
		AppName:      "taskward",
		ErrorHandler: taskward.NewErrorHandler(nil),
	})

	app.Use(recover.New())
	app.Use(cors.New())

	taskward.NewController(auther, repo).RegisterRoutes(app, protected)

	if err := app.Listen(cfg.GetListenAddr()); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
