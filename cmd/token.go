package cmd

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/freightops/settlements/internal/transport/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	tokenEmail    string
	tokenPassword string
)

// tokenCmd mints an operator JWT after checking the stored password hash.
// Operators are back-office staff; there is no self-service signup, so a
// CLI mint covers development and scripted access.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator access token",
	Run: func(cmd *cobra.Command, args []string) {
		mintToken()
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "operator email (required)")
	tokenCmd.Flags().StringVar(&tokenPassword, "password", "", "operator password (required)")
	tokenCmd.MarkFlagRequired("email")
	tokenCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(tokenCmd)
}

func mintToken() {
	cfg, err := loadConfig(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := initDB(cfg.Database)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}
	defer db.Close()

	var (
		id           int64
		name         string
		passwordHash string
		permissions  string
	)
	row := db.QueryRow("SELECT id, name, password_hash, permissions FROM operators WHERE email = $1 AND is_active = true", tokenEmail)
	if err := row.Scan(&id, &name, &passwordHash, &permissions); err != nil {
		log.Fatalf("operator not found: %v", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(tokenPassword)); err != nil {
		log.Fatal("invalid credentials")
	}

	now := time.Now()
	claims := middleware.OperatorClaims{
		Name:        name,
		Permissions: strings.Split(permissions, ","),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", id),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Security.AccessTokenDuration)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Security.JWTSecret))
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}

	fmt.Println(token)
}
