// Package config resolves runtime settings from flags, the environment and
// an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultDB    = "items.sqlite3"
	DefaultAddr  = ":8000"
	DefaultAdmin = "admin"
)

// Config is the resolved service configuration.
type Config struct {
	DB        string
	Addr      string
	LogPath   string
	Debug     bool
	Auth      bool
	AdminUser string
}

// Usage is printed for -h.
const Usage = `Usage: itemsvc [flags]

Flags:
  -d, -db <dsn>           SQLite path or postgres:// URL (env DATABASE_URL, default: items.sqlite3)
  -a, -addr <host:port>   listen address (env PORT, default: :8000)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -u, -admin <name>       admin username created on first run (default: admin)
      -auth               require bearer tokens on /api/v1 (env AUTH=true)
      -debug              enable debug logging (env DEBUG=true)
  -h, -help               show this help and exit
`

// ErrHelp is returned when -h or -help was given.
var ErrHelp = flag.ErrHelp

// LoadDotEnv loads variables from the named files (default ".env") into the
// process environment. Missing files are ignored; existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load parses args on top of the environment read through getenv.
// Flags take precedence over environment variables, which take precedence
// over the defaults.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DB:        DefaultDB,
		Addr:      DefaultAddr,
		AdminUser: DefaultAdmin,
	}

	if v := getenv("DATABASE_URL"); v != "" {
		cfg.DB = v
	}
	if v := getenv("PORT"); v != "" {
		cfg.Addr = ":" + v
	}
	cfg.Debug = isTrue(getenv("DEBUG"))
	cfg.Auth = isTrue(getenv("AUTH"))

	flags := flag.NewFlagSet("itemsvc", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	flags.StringVar(&cfg.DB, "db", cfg.DB, "")
	flags.StringVar(&cfg.DB, "d", cfg.DB, "")
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	flags.StringVar(&cfg.Addr, "a", cfg.Addr, "")
	flags.StringVar(&cfg.LogPath, "log", "", "")
	flags.StringVar(&cfg.LogPath, "l", "", "")
	flags.StringVar(&cfg.AdminUser, "admin", cfg.AdminUser, "")
	flags.StringVar(&cfg.AdminUser, "u", cfg.AdminUser, "")
	flags.BoolVar(&cfg.Auth, "auth", cfg.Auth, "")
	flags.BoolVar(&cfg.Debug, "debug", cfg.Debug, "")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}

	if cfg.DB == "" {
		return nil, errors.New("database must not be empty")
	}
	if cfg.AdminUser == "" {
		return nil, errors.New("admin username must not be empty")
	}
	if !strings.Contains(cfg.Addr, ":") {
		return nil, fmt.Errorf("invalid listen address %q", cfg.Addr)
	}
	return cfg, nil
}

func isTrue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
