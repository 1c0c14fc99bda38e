package config

import (
	"os"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withArgs runs LoadFromFlags against fresh global flag and viper state
func withArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()

	originalArgs := os.Args
	t.Cleanup(func() {
		os.Args = originalArgs
		pflag.CommandLine = pflag.NewFlagSet(originalArgs[0], pflag.ExitOnError)
		viper.Reset()
	})

	os.Args = append([]string{"doi-metadata"}, args...)
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	viper.Reset()

	return LoadFromFlags()
}

func TestLoadFromFlags_Defaults(t *testing.T) {
	cfg, err := withArgs(t, "--dir="+t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ModeServer, cfg.Mode)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, LogFormatJSON, cfg.LogFormat)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.MaxFileSize)
	assert.Equal(t, int64(DefaultMaxUploadSize), cfg.MaxUploadSize)
	assert.Equal(t, OnErrorSkip, cfg.OnError)
	assert.Equal(t, IssueMatchWord, cfg.IssueMatch)
	assert.True(t, cfg.Validate)
}

func TestLoadFromFlags_ValidFlags(t *testing.T) {
	dir := t.TempDir()
	scratch := t.TempDir()

	cfg, err := withArgs(t,
		"--mode=stdio",
		"--host=0.0.0.0",
		"--port=9090",
		"--dir="+dir,
		"--scratchdir="+scratch,
		"--loglevel=debug",
		"--logformat=console",
		"--maxfilesize=1024",
		"--maxuploadsize=4096",
		"--onerror=abort",
		"--issuematch=substring",
		"--validate=false",
	)
	require.NoError(t, err)

	assert.Equal(t, ModeStdio, cfg.Mode)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, dir, cfg.Directory)
	assert.Equal(t, scratch, cfg.ScratchDirectory)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, LogFormatConsole, cfg.LogFormat)
	assert.Equal(t, int64(1024), cfg.MaxFileSize)
	assert.Equal(t, int64(4096), cfg.MaxUploadSize)
	assert.Equal(t, OnErrorAbort, cfg.OnError)
	assert.Equal(t, IssueMatchSubstring, cfg.IssueMatch)
	assert.False(t, cfg.Validate)
	assert.True(t, cfg.IsDebug())
}

func TestLoadFromFlags_EnvironmentVariables(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DOI_META_MODE", "stdio")
	t.Setenv("DOI_META_HOST", "192.168.1.1")
	t.Setenv("DOI_META_PORT", "3000")
	t.Setenv("DOI_META_DIR", dir)
	t.Setenv("DOI_META_LOGLEVEL", "WARN")
	t.Setenv("DOI_META_MAXFILESIZE", "200000000")
	t.Setenv("DOI_META_ONERROR", "abort")
	t.Setenv("DOI_META_VALIDATE", "false")

	cfg, err := withArgs(t)
	require.NoError(t, err)

	assert.Equal(t, ModeStdio, cfg.Mode)
	assert.Equal(t, "192.168.1.1", cfg.Host)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, dir, cfg.Directory)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, int64(200000000), cfg.MaxFileSize)
	assert.Equal(t, OnErrorAbort, cfg.OnError)
	assert.False(t, cfg.Validate)
}

func TestLoadFromFlags_FlagOverridesEnvironment(t *testing.T) {
	t.Setenv("DOI_META_MODE", "stdio")
	t.Setenv("DOI_META_HOST", "192.168.1.1")
	t.Setenv("DOI_META_PORT", "3000")

	cfg, err := withArgs(t, "--mode=server", "--host=localhost", "--port=8888", "--dir="+t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ModeServer, cfg.Mode)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8888, cfg.Port)
}

func TestLoadFromFlags_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		wantErr string
	}{
		{name: "mode", arg: "--mode=invalid", wantErr: "mode must be either 'stdio' or 'server'"},
		{name: "port", arg: "--port=99999", wantErr: "port must be between 1 and 65535"},
		{name: "log level", arg: "--loglevel=invalid", wantErr: "invalid log level"},
		{name: "policy", arg: "--onerror=retry", wantErr: "invalid onerror policy"},
		{name: "issue match", arg: "--issuematch=fuzzy", wantErr: "invalid issue match mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := withArgs(t, tt.arg, "--dir="+t.TempDir())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFlags_VersionFlag(t *testing.T) {
	for _, arg := range []string{"--version", "-version", "-v"} {
		_, err := withArgs(t, arg)
		require.Error(t, err, arg)
		assert.Equal(t, "version requested", err.Error())
	}
}
