package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/blomoto/garage_backend/config"
	"github.com/blomoto/garage_backend/models"
	"github.com/blomoto/garage_backend/utils"
)

// Provisions the administrator account. Run once per environment:
//
//	SEED_ADMIN_EMAIL=admin@example.com SEED_ADMIN_PASSWORD=... go run ./cmd/seed-admin
func main() {
	email := os.Getenv("SEED_ADMIN_EMAIL")
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD are required")
	}
	name := os.Getenv("SEED_ADMIN_NAME")
	if name == "" {
		name = "Administrateur"
	}

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	if existing, err := models.GetUserByEmail(ctx, email); err == nil {
		log.Printf("admin %s already exists (id=%d), nothing to do", existing.Email, existing.ID)
		return
	}

	user, err := models.CreateUser(ctx, &models.NewUser{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     string(models.UserRoleAdmin),
	})
	if err != nil {
		var conflict *utils.ConflictError
		if errors.As(err, &conflict) {
			log.Printf("admin %s already exists, nothing to do", email)
			return
		}
		log.Fatalf("could not create admin: %v", err)
	}
	log.Printf("admin %s created (id=%d)", user.Email, user.ID)
}
