package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level YAML configuration. Every section is
// optional; flags override what is loaded here.
type Config struct {
	Group   Group   `yaml:"group"`
	Source  Source  `yaml:"source"`
	Output  Output  `yaml:"output"`
	Log     Log     `yaml:"log"`
	Metrics Metrics `yaml:"metrics"`
}

// Group describes the worker group.
type Group struct {
	// Workers is the in-process group size for the run command.
	Workers  int    `yaml:"workers" validate:"gte=0"`
	Strategy string `yaml:"strategy" validate:"omitempty,oneof=replicate partition"`
	// Addr is where rank 0 listens in a multi-process group.
	Addr          string        `yaml:"addr"`
	RecvDeadline  time.Duration `yaml:"recv_deadline" validate:"gte=0"`
	MaxIterations int           `yaml:"max_iterations" validate:"gte=0"`
}

// Source selects where rank 0 reads the graph from.
type Source struct {
	Kind     string   `yaml:"kind" validate:"omitempty,oneof=file s3 postgres pgschema"`
	S3       S3       `yaml:"s3"`
	Postgres Postgres `yaml:"postgres"`
}

// S3 locates a graph file stored as an object. Key defaults to the
// command's graph argument.
type S3 struct {
	Bucket          string `yaml:"bucket"`
	Key             string `yaml:"key"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Postgres reads edges from a table, or builds the foreign-key graph of
// Schemas (kind pgschema). Table defaults to the command's graph argument.
type Postgres struct {
	Connection   Connection `yaml:"connection"`
	Table        string     `yaml:"table"`
	SourceColumn string     `yaml:"source_column"`
	TargetColumn string     `yaml:"target_column"`
	WeightColumn string     `yaml:"weight_column"`
	// Where is raw SQL appended after WHERE, unescaped. Treat the config
	// file as trusted input.
	Where string `yaml:"where"`
	// Vertices fixes n; 0 derives it from the largest endpoint.
	Vertices int      `yaml:"vertices" validate:"gte=0"`
	Schemas  []string `yaml:"schemas"`
}

// Connection holds database connection parameters.
type Connection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Output controls how rank 0 writes the labeling.
type Output struct {
	Format string `yaml:"format" validate:"omitempty,oneof=text copy"`
	Path   string `yaml:"path"`
	// Table names the COPY target for the copy format.
	Table string `yaml:"table"`
}

// Log configures the stderr logger.
type Log struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
}

// Metrics exposes Prometheus metrics when Listen is set.
type Metrics struct {
	Listen string `yaml:"listen"`
}

// DSN builds a PostgreSQL connection string.
func (c *Connection) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode,
	)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report yaml names, not Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Load reads and parses a YAML config file. An empty path yields the
// defaults, still completed from the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// applyEnv fills in empty fields from environment variables.
// YAML values take precedence; env vars are used only as fallback.
func (c *Config) applyEnv() {
	if c.Group.Workers == 0 {
		if s := envOr("SPMD_WORKERS"); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				c.Group.Workers = n
			}
		}
	}
	if c.Group.Addr == "" {
		c.Group.Addr = envOr("SPMD_ADDR")
	}
	if c.Log.Level == "" {
		c.Log.Level = envOr("SPMD_LOG_LEVEL", "LOG_LEVEL")
	}
	if c.Source.S3.Region == "" {
		c.Source.S3.Region = envOr("AWS_REGION", "AWS_DEFAULT_REGION")
	}

	conn := &c.Source.Postgres.Connection
	if conn.Host == "" {
		conn.Host = envOr("PGHOST", "POSTGRES_HOST")
	}
	if conn.Port == 0 {
		if s := envOr("PGPORT", "POSTGRES_PORT"); s != "" {
			if p, err := strconv.Atoi(s); err == nil {
				conn.Port = p
			}
		}
	}
	if conn.Database == "" {
		conn.Database = envOr("PGDATABASE", "POSTGRES_DB")
	}
	if conn.User == "" {
		conn.User = envOr("PGUSER", "POSTGRES_USER")
	}
	if conn.Password == "" {
		conn.Password = envOr("PGPASSWORD", "POSTGRES_PASSWORD")
	}
	if conn.SSLMode == "" {
		conn.SSLMode = envOr("PGSSLMODE")
	}
}

// envOr returns the first non-empty value from the given env var names.
func envOr(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks field constraints and fills defaults. Call it again after
// flags have been applied.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}

	if c.Group.Workers == 0 {
		c.Group.Workers = runtime.NumCPU()
	}
	if c.Group.Strategy == "" {
		c.Group.Strategy = "replicate"
	}
	if c.Source.Kind == "" {
		c.Source.Kind = "file"
	}
	if c.Output.Format == "" {
		c.Output.Format = "text"
	}
	if c.Output.Table == "" {
		c.Output.Table = "components"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	switch c.Source.Kind {
	case "s3":
		if c.Source.S3.Bucket == "" {
			return fmt.Errorf("source.s3.bucket is required")
		}
	case "postgres", "pgschema":
		if err := c.Source.Postgres.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) validate() error {
	conn := &p.Connection
	if conn.Host == "" {
		return fmt.Errorf("source.postgres.connection.host is required")
	}
	if conn.Port == 0 {
		conn.Port = 5432
	}
	if conn.Database == "" {
		return fmt.Errorf("source.postgres.connection.database is required")
	}
	if conn.User == "" {
		return fmt.Errorf("source.postgres.connection.user is required")
	}
	if conn.SSLMode == "" {
		conn.SSLMode = "disable"
	}
	if len(p.Schemas) == 0 {
		p.Schemas = []string{"public"}
	}
	if p.SourceColumn == "" {
		p.SourceColumn = "src"
	}
	if p.TargetColumn == "" {
		p.TargetColumn = "dst"
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		// Namespace is Config.group.strategy; drop the root.
		field := e.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		switch e.Tag() {
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s: %q is not one of [%s]", field, e.Value(), e.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s: must be at least %s", field, e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: validation failed (%s)", field, e.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
