// Package config loads client options from the environment.
//
// Variables use the AUTH_ prefix. A .env file in the working directory is
// read first when present; real environment variables win over it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	auth "github.com/goliatone/go-auth-client"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every variable name.
const Prefix = "AUTH_"

// Store drivers.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Options holds client options.
type Options struct {
	BaseURL        string        `env:"BASE_URL"`
	LoginPath      string        `env:"LOGIN_PATH" envDefault:"/auth/login"`
	RegisterPath   string        `env:"REGISTER_PATH" envDefault:"/auth/register"`
	AuthScheme     string        `env:"SCHEME" envDefault:"Bearer"`
	HomeRoute      string        `env:"HOME_ROUTE" envDefault:"/"`
	LoginRoute     string        `env:"LOGIN_ROUTE" envDefault:"/login"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`

	// Revoke clears the session when an authenticated request gets a 401.
	RevokeOnUnauthorized bool `env:"REVOKE_ON_UNAUTHORIZED" envDefault:"false"`
	Debug                bool `env:"DEBUG" envDefault:"false"`

	Activity ActivityOptions
	Store    StoreOptions
}

// ActivityOptions shapes the activity records written to the log.
type ActivityOptions struct {
	Channel       string `env:"ACTIVITY_CHANNEL" envDefault:"auth"`
	ActorFallback string `env:"ACTIVITY_ACTOR_FALLBACK" envDefault:"anonymous"`
}

// StoreOptions selects and configures the session slot backend.
type StoreOptions struct {
	Driver    string `env:"STORE_DRIVER" envDefault:"sqlite"`
	Namespace string `env:"NAMESPACE" envDefault:"default"`
	// SQLiteDSN defaults to a file under the user's home directory.
	SQLiteDSN string `env:"SQLITE_DSN"`

	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string        `env:"REDIS_PREFIX" envDefault:"auth:session:"`
	RedisTTL      time.Duration `env:"REDIS_TTL" envDefault:"0s"`
}

var _ auth.Config = Options{}

func (o Options) GetBaseURL() string               { return o.BaseURL }
func (o Options) GetLoginPath() string             { return o.LoginPath }
func (o Options) GetRegisterPath() string          { return o.RegisterPath }
func (o Options) GetAuthScheme() string            { return o.AuthScheme }
func (o Options) GetHomeRoute() string             { return o.HomeRoute }
func (o Options) GetLoginRoute() string            { return o.LoginRoute }
func (o Options) GetRequestTimeout() time.Duration { return o.RequestTimeout }

// Load reads .env (if any) and the process environment.
func Load() (Options, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Options{}, fmt.Errorf("load .env file: %w", err)
		}
	}
	return Parse(nil)
}

// Parse reads options from environ, or from the process environment when
// environ is nil.
func Parse(environ map[string]string) (Options, error) {
	var opts Options
	envOpts := env.Options{Prefix: Prefix}
	if environ != nil {
		envOpts.Environment = environ
	}
	if err := env.ParseWithOptions(&opts, envOpts); err != nil {
		return opts, fmt.Errorf("parse config: %w", err)
	}

	opts.Sanitize()
	return opts, nil
}

// Sanitize applies guardrails to values loaded from env.
func (o *Options) Sanitize() {
	o.BaseURL = strings.TrimRight(strings.TrimSpace(o.BaseURL), "/")
	o.LoginPath = leadingSlash(o.LoginPath, auth.DefaultLoginPath)
	o.RegisterPath = leadingSlash(o.RegisterPath, auth.DefaultRegisterPath)
	o.HomeRoute = leadingSlash(o.HomeRoute, auth.DefaultHomeRoute)
	o.LoginRoute = leadingSlash(o.LoginRoute, auth.DefaultLoginRoute)
	if strings.TrimSpace(o.AuthScheme) == "" {
		o.AuthScheme = auth.DefaultAuthScheme
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 15 * time.Second
	}

	o.Activity.Channel = strings.TrimSpace(o.Activity.Channel)
	o.Activity.ActorFallback = strings.TrimSpace(o.Activity.ActorFallback)

	o.Store.Driver = strings.ToLower(strings.TrimSpace(o.Store.Driver))
	if o.Store.Driver == "" {
		o.Store.Driver = StoreSQLite
	}
	if o.Store.Driver == StoreSQLite && strings.TrimSpace(o.Store.SQLiteDSN) == "" {
		o.Store.SQLiteDSN = defaultSQLiteDSN()
	}
	if o.Store.RedisTTL < 0 {
		o.Store.RedisTTL = 0
	}
}

// Validate checks the options required to talk to the remote API.
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.BaseURL, validation.Required, is.URL),
		validation.Field(&o.RequestTimeout, validation.Required),
		validation.Field(&o.Store),
	)
}

// Validate implements validation.Validatable.
func (s StoreOptions) Validate() error {
	rules := []*validation.FieldRules{
		validation.Field(&s.Driver, validation.Required, validation.In(StoreSQLite, StoreRedis, StoreMemory)),
	}
	switch s.Driver {
	case StoreSQLite:
		rules = append(rules, validation.Field(&s.SQLiteDSN, validation.Required))
	case StoreRedis:
		rules = append(rules, validation.Field(&s.RedisAddr, validation.Required))
	}
	return validation.ValidateStruct(&s, rules...)
}

func leadingSlash(path, def string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return def
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

func defaultSQLiteDSN() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "file:authctl-session.db"
	}
	return "file:" + filepath.Join(home, ".authctl", "session.db")
}
