package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/presenca/internal/auth"
)

// gen_operator_token.go - Utility to mint an operator JWT for local testing
//
// Usage:
//   JWT_SECRET=dev-secret go run scripts/gen_operator_token.go "Prof. Silva"
//
// Output:
//   a bearer token valid for 24h against the same secret

func main() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Println("JWT_SECRET must be set")
		os.Exit(1)
	}

	name := "dev-operator"
	if len(os.Args) > 1 {
		name = os.Args[1]
	}

	service := auth.NewJWTService(secret, "presenca-api", 24*time.Hour)
	operatorID := uuid.New()

	token, err := service.GenerateToken(operatorID, name, "operator")
	if err != nil {
		fmt.Printf("Failed to generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Operator: %s (%s)\n", name, operatorID)
	fmt.Printf("Token:    %s\n", token)
}
