// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"log"
	"time"

	"genesis-iam/backend/internal/config"
	credentialdomain "genesis-iam/backend/internal/credential/domain"
	"genesis-iam/backend/internal/db"
	identitydomain "genesis-iam/backend/internal/identity/domain"
	profiledomain "genesis-iam/backend/internal/profile/domain"
	"genesis-iam/backend/internal/security"
	"genesis-iam/backend/internal/store"
	storepg "genesis-iam/backend/internal/store/pg"
	userdomain "genesis-iam/backend/internal/user/domain"
)

const (
	devUserEmail    = "dev@example.com"
	devUsername     = "dev"
	devPassword     = "Password123"
	devUserID       = "00000000-0000-4000-8000-000000000001"
	devIdentityID   = "00000000-0000-4000-8000-000000000002"
	adminUserEmail  = "admin@example.com"
	adminUsername   = "dev-admin"
	adminUserID     = "00000000-0000-4000-8000-000000000003"
	adminIdentityID = "00000000-0000-4000-8000-000000000004"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st := storepg.New(conn)
	existing, err := st.Identities().GetNativeByIdentifier(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if existing != nil {
		log.Println("seed: dev user already exists, nothing to do")
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("seed: hash: %v", err)
	}
	now := time.Now().UTC()

	err = st.InTx(ctx, func(tx store.Store) error {
		for _, u := range []struct {
			id, identityID, username, email string
			role                            userdomain.Role
		}{
			{devUserID, devIdentityID, devUsername, devUserEmail, userdomain.RoleUser},
			{adminUserID, adminIdentityID, adminUsername, adminUserEmail, userdomain.RoleAdmin},
		} {
			user := &userdomain.User{
				ID:        u.id,
				Role:      u.role,
				Status:    userdomain.StatusActive,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Users().Create(ctx, user); err != nil {
				return err
			}
			ident := &identitydomain.Identity{
				ID:             u.identityID,
				UserID:         u.id,
				Provider:       identitydomain.ProviderNative,
				ProviderUserID: u.username,
				Email:          u.email,
				Username:       u.username,
				EmailVerified:  true,
				CreatedAt:      now,
			}
			if err := tx.Identities().Create(ctx, ident); err != nil {
				return err
			}
			cred := &credentialdomain.Credential{
				UserID:            u.id,
				PasswordHash:      hash,
				PasswordUpdatedAt: now,
			}
			if err := tx.Credentials().Create(ctx, cred); err != nil {
				return err
			}
			if err := tx.Profiles().Create(ctx, &profiledomain.Profile{UserID: u.id, UpdatedAt: now}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	log.Printf("seed: created %s and %s (password %q)", devUserEmail, adminUserEmail, devPassword)
}
