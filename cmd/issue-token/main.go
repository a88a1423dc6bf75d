package main

import (
	"flag"
	"fmt"
	"os"

	"taxi-realtime/internal/shared/config"
	"taxi-realtime/internal/shared/jwt"
	"taxi-realtime/internal/shared/util"
	"taxi-realtime/internal/trip/domain"

	"github.com/google/uuid"
)

// issue-token signs a bearer token with the configured secret so rider and
// driver clients can be exercised locally.
func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	id := flag.String("id", "", "user id; a random uuid when empty")
	username := flag.String("username", "", "username carried in the token")
	role := flag.String("role", string(domain.RoleRider), "rider or driver")
	flag.Parse()

	log := util.New()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Config", fmt.Errorf("failed to load configuration: %w", err))
	}

	user := domain.User{ID: *id, Username: *username, Role: domain.Role(*role)}
	if !user.Role.Valid() {
		log.Fatal("IssueToken", fmt.Errorf("unknown role %q", *role))
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Username == "" {
		user.Username = user.ID
	}

	token, err := jwt.NewVerifier(cfg.JWT.Secret, cfg.JWT.TTL).GenerateToken(user)
	if err != nil {
		log.Fatal("IssueToken", err)
	}
	fmt.Fprintln(os.Stdout, token)
}
