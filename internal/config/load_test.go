package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("diwata", pflag.ContinueOnError)
	DefineFlags(fs)
	fs.String("window", "", "command flag")
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// chdirTemp keeps a stray diwata.yaml in the working directory out of the test.
func chdirTemp(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadFlagSet(newFlagSet(t))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "prefer", cfg.Database.TLS.Mode)
	assert.Equal(t, 10, cfg.Database.Pool.MaxOpen)
	assert.Equal(t, 5*time.Minute, cfg.Database.Pool.MaxLifetime)
	assert.Equal(t, []string{"public"}, cfg.Schema.Schemas)
	assert.Equal(t, 40, cfg.Schema.PageSize)
	assert.Equal(t, 40, cfg.Schema.LookupPageSize)
	assert.Equal(t, []string{"*"}, cfg.Schema.Filters.AllowTables)
	assert.Equal(t, map[string][]string{"*": {"*"}}, cfg.Schema.Filters.AllowColumns)
	assert.Equal(t, ":9464", cfg.Server.Addr)
	assert.Equal(t, "diwata", cfg.Observability.ServiceName)
	assert.Equal(t, "text", cfg.Observability.Logging.Format)
	assert.Nil(t, cfg.Observability.Traces)
}

func TestLoad_WithEnvVars(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DIWATA_DATABASE_HOST", "envhost")
	t.Setenv("DIWATA_DATABASE_PORT", "6543")
	t.Setenv("DIWATA_DATABASE_USER", "envuser")
	t.Setenv("DIWATA_DATABASE_PASSWORD", "envpass")
	t.Setenv("DIWATA_DATABASE_DATABASE", "sakila")
	t.Setenv("DIWATA_DATABASE_POOL_MAX_LIFETIME", "90s")
	t.Setenv("DIWATA_SCHEMA_SCHEMAS", "public, inventory")

	cfg, err := LoadFlagSet(newFlagSet(t))
	require.NoError(t, err)

	assert.Equal(t, "envhost", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "envuser", cfg.Database.User)
	assert.Equal(t, "envpass", cfg.Database.Password)
	assert.Equal(t, "sakila", cfg.Database.Database)
	assert.Equal(t, 90*time.Second, cfg.Database.Pool.MaxLifetime)
	assert.Equal(t, []string{"public", "inventory"}, cfg.Schema.Schemas)
}

func TestLoad_Precedence(t *testing.T) {
	chdirTemp(t)
	path := writeFile(t, "diwata.yaml", `
database:
  host: filehost
  database: filedb
  pool:
    max_open: 3
schema:
  page_size: 25
  filters:
    deny_tables: ["audit_*"]
    deny_mutation_columns:
      film: ["rental_rate"]
  naming:
    labels:
      film_actor: Cast
observability:
  logging:
    level: debug
  traces:
    endpoint: tempo:4318
    protocol: http/protobuf
`)
	t.Setenv("DIWATA_DATABASE_HOST", "envhost")
	t.Setenv("DIWATA_SCHEMA_PAGE_SIZE", "30")

	cfg, err := LoadFlagSet(newFlagSet(t, "--config", path, "--schema.page_size=50", "--window=film"))
	require.NoError(t, err)

	assert.Equal(t, "envhost", cfg.Database.Host, "env beats file")
	assert.Equal(t, "filedb", cfg.Database.Database)
	assert.Equal(t, 3, cfg.Database.Pool.MaxOpen)
	assert.Equal(t, 50, cfg.Schema.PageSize, "flag beats env")
	assert.Equal(t, []string{"audit_*"}, cfg.Schema.Filters.DenyTables)
	assert.Equal(t, map[string][]string{"film": {"rental_rate"}}, cfg.Schema.Filters.DenyMutationColumns)
	assert.Equal(t, "Cast", cfg.Schema.Naming.Labels["film_actor"])
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
	require.NotNil(t, cfg.Observability.Traces)
	assert.Equal(t, "tempo:4318", cfg.Observability.GetTracesConfig().Endpoint)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	chdirTemp(t)
	path := writeFile(t, "diwata.yaml", `
server:
  listen_port: true
`)
	_, err := LoadFlagSet(newFlagSet(t, "--config", path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen_port")
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	chdirTemp(t)
	_, err := LoadFlagSet(newFlagSet(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_SecretFiles(t *testing.T) {
	chdirTemp(t)
	passwordFile := writeFile(t, "password", "s3cret\n")
	dsnFile := writeFile(t, "dsn", "  postgres://app@db/bazaar?sslmode=disable \n")

	cfg, err := LoadFlagSet(newFlagSet(t, "--database.password_file", passwordFile, "--database.dsn_file", dsnFile))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "postgres://app@db/bazaar?sslmode=disable", cfg.Database.ConnectionString)
}

func TestLoad_SecretFromStdin(t *testing.T) {
	chdirTemp(t)
	orig := stdin
	stdin = strings.NewReader("from-stdin\n")
	t.Cleanup(func() { stdin = orig })

	cfg, err := LoadFlagSet(newFlagSet(t, "--database.password_file", "@-"))
	require.NoError(t, err)
	assert.Equal(t, "from-stdin", cfg.Database.Password)
}

func TestValidateSingleStdinFileSource(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		v := viper.New()
		v.Set("database.dsn_file", "/tmp/dsn")
		v.Set("database.password_file", "/tmp/password")
		assert.NoError(t, validateSingleStdinFileSource(v))
	})

	t.Run("one", func(t *testing.T) {
		v := viper.New()
		v.Set("database.dsn_file", "@-")
		v.Set("database.password_file", "/tmp/password")
		assert.NoError(t, validateSingleStdinFileSource(v))
	})

	t.Run("two", func(t *testing.T) {
		v := viper.New()
		v.Set("database.dsn_file", "@-")
		v.Set("database.password_file", " @- ")
		err := validateSingleStdinFileSource(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.dsn_file")
		assert.Contains(t, err.Error(), "database.password_file")
	})
}

func TestStringToStringSliceHook(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DIWATA_DATABASE_SESSION_SEARCH_PATH", "")
	t.Setenv("DIWATA_SCHEMA_FILTERS_DENY_MUTATION_TABLES", "payment, rental")

	cfg, err := LoadFlagSet(newFlagSet(t))
	require.NoError(t, err)
	assert.Empty(t, cfg.Database.Session.SearchPath)
	assert.Equal(t, []string{"payment", "rental"}, cfg.Schema.Filters.DenyMutationTables)
}
