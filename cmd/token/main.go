package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"server/internal/domain"
	"server/internal/middleware"
)

// Mints a session token for development and operational use. Session
// issuance itself lives in the identity service; this tool exists so
// the API can be exercised without it.
func main() {
	var (
		userFlag   string
		roleFlag   string
		localeFlag string
		ttlFlag    time.Duration
	)
	flag.StringVar(&userFlag, "user", "", "user ID to mint the token for (UUID)")
	flag.StringVar(&roleFlag, "role", string(domain.RoleResident), "role claim (ADMIN or RESIDENT)")
	flag.StringVar(&localeFlag, "locale", "", "locale claim (id or en, optional)")
	flag.DurationVar(&ttlFlag, "ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	userID := strings.TrimSpace(userFlag)
	if userID == "" {
		exitWithError(errors.New("-user is required"))
	}

	role := strings.ToUpper(strings.TrimSpace(roleFlag))
	switch domain.Role(role) {
	case domain.RoleAdmin, domain.RoleResident:
	default:
		exitWithError(fmt.Errorf("unsupported role %q", roleFlag))
	}

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		exitWithError(errors.New("JWT_SECRET is required"))
	}

	token, err := middleware.SignJWT(secret, userID, role, strings.TrimSpace(localeFlag), ttlFlag)
	if err != nil {
		exitWithError(fmt.Errorf("sign token: %w", err))
	}
	fmt.Println(token)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
