// ABOUTME: Operator CLI for keygate secret generation and account bootstrap
// ABOUTME: Works directly against the database path from the config file

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/2389/keygate/internal/account"
	"github.com/2389/keygate/internal/config"
	"github.com/2389/keygate/internal/secrets"
	"github.com/2389/keygate/internal/store"
	"github.com/2389/keygate/internal/token"
)

const banner = `
 _                          _                     _           _
| | _____ _   _  __ _  __ _| |_ ___      __ _  __| |_ __ ___ (_)_ __
| |/ / _ \ | | |/ _' |/ _' | __/ _ \___ / _' |/ _' | '_ ' _ \| | '_ \
|   <  __/ |_| | (_| | (_| | ||  __/___| (_| | (_| | | | | | | | | | |
|_|\_\___|\__, |\__, |\__,_|\__\___|    \__,_|\__,_|_| |_| |_|_|_| |_|
          |___/ |___/
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "secret":
		err = cmdSecret()
	case "user":
		err = cmdUser(ctx, args)
	case "keys":
		err = cmdKeys(ctx, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	fmt.Println("Usage: keygate-admin <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  secret                Generate fresh jwt and encryption secrets")
	fmt.Println("  user create <email>   Create an admin user against the configured database")
	fmt.Println("  keys list <email>     List a user's API keys")
}

// cmdSecret prints a pair of fresh secrets ready to paste into config.yaml
// or a .env file.
func cmdSecret() error {
	jwtSecret, err := secrets.Generate()
	if err != nil {
		return err
	}
	encryptionSecret, err := secrets.Generate()
	if err != nil {
		return err
	}

	gray := color.New(color.FgHiBlack)
	gray.Println("# add to config.yaml under auth:, or export for ${VAR} expansion")
	fmt.Printf("jwt_secret: \"%s\"\n", jwtSecret)
	fmt.Printf("encryption_secret: \"%s\"\n", encryptionSecret)
	return nil
}

func cmdUser(ctx context.Context, args []string) error {
	if len(args) < 2 || args[0] != "create" {
		return fmt.Errorf("usage: keygate-admin user create <email>")
	}
	email := args[1]

	cfg, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Print("Password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	sec, err := secrets.New(cfg.Auth.JWTSecret, cfg.Auth.EncryptionSecret)
	if err != nil {
		return fmt.Errorf("deriving secrets: %w", err)
	}
	codec := token.NewCodec(sec.Signing, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)

	svc := account.NewService(s, s, codec, nil)
	u, err := svc.Register(ctx, email, adminNameFromEmail(email), string(pw))
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	// Registration always yields a regular user; promote directly.
	if err := s.UpdateUserRole(ctx, u.ID, store.RoleAdmin); err != nil {
		return fmt.Errorf("promoting to admin: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created admin user: %s (%s)\n", u.Email, u.ID)
	return nil
}

func cmdKeys(ctx context.Context, args []string) error {
	if len(args) < 2 || args[0] != "list" {
		return fmt.Errorf("usage: keygate-admin keys list <email>")
	}
	email := args[1]

	_, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	u, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}

	records, err := s.ListKeysForUser(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("listing keys: %w", err)
	}

	if len(records) == 0 {
		fmt.Printf("No keys for %s\n", email)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSERVICE\tSTATUS\tCREATED\tEXPIRES\tLAST USED")
	for _, k := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			k.ID,
			k.ServiceName,
			k.Status,
			k.CreatedAt.Format("2006-01-02"),
			formatOptional(k.ExpiresAt, "never"),
			formatOptional(k.LastUsedAt, "-"),
		)
	}
	return w.Flush()
}

// openStore loads config and opens the SQLite store directly; the server
// does not need to be running.
func openStore() (*config.Config, *store.SQLiteStore, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, s, nil
}

func getConfigPath() string {
	if envPath := os.Getenv("KEYGATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "keygate", "config.yaml")
}

func adminNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "Admin"
	}
	return local
}

func formatOptional(t *time.Time, empty string) string {
	if t == nil {
		return empty
	}
	return t.Format("2006-01-02")
}
