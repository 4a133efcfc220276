package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/stemsi/hiring-backend/internal/config"
	"github.com/stemsi/hiring-backend/internal/logger"
	"github.com/stemsi/hiring-backend/internal/service"
)

// issue-token mints a bearer token for local testing. Identity itself lives
// in the recruiting platform; this only signs with the shared JWT secret.
func main() {
	var (
		typ    string
		userID int
		perms  string
	)
	flag.StringVar(&typ, "type", string(service.TokenTypeCandidate), "Token type: candidate or admin")
	flag.IntVar(&userID, "user", 0, "Candidate or recruiter ID")
	flag.StringVar(&perms, "perms", "", "Comma-separated permissions for admin tokens")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	tokenType := service.TokenType(typ)
	if tokenType != service.TokenTypeCandidate && tokenType != service.TokenTypeAdmin {
		log.Fatal().Str("type", typ).Msg("Unknown token type")
	}
	if userID <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	var permissions []string
	if tokenType == service.TokenTypeAdmin {
		permissions = splitPerms(perms)
	}

	token, err := service.NewAuthService(cfg).GenerateToken(tokenType, userID, permissions)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}
	fmt.Println(token)
}

func splitPerms(raw string) []string {
	if raw == "" {
		return []string{service.PermMonitorRead, service.PermSessionsRead, service.PermTestsWrite}
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
