package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringFallback(t *testing.T) {
	t.Setenv("SALON_TEST_STRING", "  ")
	assert.Equal(t, "fallback", String("SALON_TEST_STRING", "fallback"))

	t.Setenv("SALON_TEST_STRING", "value")
	assert.Equal(t, "value", String("SALON_TEST_STRING", "fallback"))
}

func TestRequiredString(t *testing.T) {
	t.Setenv("SALON_TEST_REQUIRED", "")
	_, err := RequiredString("SALON_TEST_REQUIRED")
	require.Error(t, err)

	t.Setenv("SALON_TEST_REQUIRED", "postgres://x")
	v, err := RequiredString("SALON_TEST_REQUIRED")
	require.NoError(t, err)
	assert.Equal(t, "postgres://x", v)
}

func TestPort(t *testing.T) {
	t.Setenv("SALON_TEST_PORT", "70000")
	_, err := Port("SALON_TEST_PORT", "8080")
	require.Error(t, err)

	t.Setenv("SALON_TEST_PORT", "")
	p, err := Port("SALON_TEST_PORT", "8080")
	require.NoError(t, err)
	assert.Equal(t, "8080", p)
}

func TestTypedValues(t *testing.T) {
	t.Setenv("SALON_TEST_INT", "12")
	t.Setenv("SALON_TEST_BOOL", "true")
	t.Setenv("SALON_TEST_DURATION", "90s")

	n, err := Int("SALON_TEST_INT", 1)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	b, err := Bool("SALON_TEST_BOOL", false)
	require.NoError(t, err)
	assert.True(t, b)

	d, err := Duration("SALON_TEST_DURATION", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	t.Setenv("SALON_TEST_INT", "twelve")
	_, err = Int("SALON_TEST_INT", 1)
	require.Error(t, err)
}

func TestList(t *testing.T) {
	t.Setenv("SALON_TEST_LIST", "a, b,,c ")
	assert.Equal(t, []string{"a", "b", "c"}, List("SALON_TEST_LIST"))
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SALON_TEST_DOTENV=file\nSALON_TEST_DOTENV_NEW=new\n"), 0o600))

	t.Setenv("SALON_TEST_DOTENV", "env")
	t.Setenv("SALON_TEST_DOTENV_NEW", "")
	require.NoError(t, os.Unsetenv("SALON_TEST_DOTENV_NEW"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "env", os.Getenv("SALON_TEST_DOTENV"))
	assert.Equal(t, "new", os.Getenv("SALON_TEST_DOTENV_NEW"))
	require.NoError(t, os.Unsetenv("SALON_TEST_DOTENV_NEW"))
}
