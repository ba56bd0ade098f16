package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Addr           string
	GRPCPort       int
	DBPath         string
	ProfilePath    string
	MockMode       bool
	Debug          bool
	ConnectTimeout time.Duration // 0 disables the connect watchdog
	SecretKey      string        // seals stored passphrases when set
	AdminPassword  string        // seeds the admin account when set
	TraceStdout    bool
}

// Load parses command line flags and environment variables to populate Config.
// Flags take precedence over environment variables.
func Load() *Config {
	cfg, err := Parse(os.Args[1:], os.LookupEnv)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// Parse builds a Config from args, falling back to lookup for defaults.
func Parse(args []string, lookup func(string) (string, bool)) (*Config, error) {
	env := envReader{lookup: lookup}
	cfg := &Config{
		Addr:           env.String("CONND_ADDR", ":8080"),
		GRPCPort:       env.Int("CONND_GRPC", 9000),
		DBPath:         env.String("CONND_DB", ""),
		ProfilePath:    env.String("CONND_PROFILE", "/profile/default"),
		MockMode:       env.Bool("CONND_MOCK", false),
		Debug:          env.Bool("CONND_DEBUG", false),
		ConnectTimeout: env.Duration("CONND_CONNECT_TIMEOUT", 0),
		SecretKey:      env.String("CONND_SECRET_KEY", ""),
		AdminPassword:  env.String("CONND_ADMIN_PASSWORD", ""),
		TraceStdout:    env.Bool("CONND_TRACE", false),
	}
	if env.err != nil {
		return nil, env.err
	}

	fs := flag.NewFlagSet("connd", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address")
	fs.IntVar(&cfg.GRPCPort, "grpc", cfg.GRPCPort, "gRPC server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite database (empty for ~/.connd/connd.db)")
	fs.StringVar(&cfg.ProfilePath, "profile", cfg.ProfilePath, "Active profile path")
	fs.BoolVar(&cfg.MockMode, "mock", cfg.MockMode, "Run with the simulated driver")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable verbose debug logging")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "Fail connects stuck longer than this (0 disables)")
	fs.StringVar(&cfg.SecretKey, "secret-key", cfg.SecretKey, "Key used to seal stored passphrases")
	fs.StringVar(&cfg.AdminPassword, "admin-password", cfg.AdminPassword, "Password of the bootstrap admin account")
	fs.BoolVar(&cfg.TraceStdout, "trace", cfg.TraceStdout, "Export traces to stdout")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath()
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("grpc port %d out of range", c.GRPCPort)
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("connect timeout must not be negative")
	}
	return nil
}

// envReader keeps the first malformed variable it meets.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) String(key, fallback string) string {
	if value, ok := e.lookup(key); ok {
		return value
	}
	return fallback
}

func (e *envReader) parse(key string, parse func(string) error) {
	value, ok := e.lookup(key)
	if !ok || e.err != nil {
		return
	}
	if err := parse(value); err != nil {
		e.err = fmt.Errorf("%s: %w", key, err)
	}
}

func (e *envReader) Int(key string, fallback int) int {
	v := fallback
	e.parse(key, func(s string) (err error) { v, err = strconv.Atoi(s); return })
	return v
}

func (e *envReader) Bool(key string, fallback bool) bool {
	v := fallback
	e.parse(key, func(s string) (err error) { v, err = strconv.ParseBool(s); return })
	return v
}

func (e *envReader) Duration(key string, fallback time.Duration) time.Duration {
	v := fallback
	e.parse(key, func(s string) (err error) { v, err = time.ParseDuration(s); return })
	return v
}

// defaultDBPath returns ~/.connd/connd.db, creating the directory. It falls
// back to the current directory.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: Could not get user home directory, using current dir: %v", err)
		return "connd.db"
	}

	dir := filepath.Join(home, ".connd")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("Warning: Could not create %s, using current dir: %v", dir, err)
		return "connd.db"
	}
	return filepath.Join(dir, "connd.db")
}
