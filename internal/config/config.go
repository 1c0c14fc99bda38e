package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Log formats
	LogFormatJSON    = "json"
	LogFormatConsole = "console"

	// Failure policies
	OnErrorSkip  = "skip"
	OnErrorAbort = "abort"

	// Issue matching modes
	IssueMatchWord      = "word"
	IssueMatchSubstring = "substring"

	// Default values
	DefaultPort          = 8080
	DefaultHost          = "127.0.0.1"
	DefaultLogLevel      = "info"
	DefaultMaxFileSize   = 100 * 1024 * 1024 // 100MB per PDF
	DefaultMaxUploadSize = 512 * 1024 * 1024 // 512MB per archive

	// Directory permissions
	DefaultDirPerm = 0o750

	// EnvPrefix is prepended to every environment variable
	EnvPrefix = "DOI_META"
)

// Config holds all configuration for the DOI metadata extractor
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Directory is the root MCP tool paths are confined to
	Directory string
	// ScratchDirectory holds per-upload work directories; empty means the
	// system temp directory
	ScratchDirectory string

	// Limits
	MaxFileSize   int64 // Maximum size of one PDF in bytes
	MaxUploadSize int64 // Maximum size of an uploaded archive in bytes

	// Extraction behaviour
	OnError    string // "skip" or "abort"
	IssueMatch string // "word" or "substring"
	Validate   bool   // structural PDF check before text extraction

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
	LogFormat  string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:          ModeServer,
		Host:          DefaultHost,
		Port:          DefaultPort,
		Directory:     currentDir,
		MaxFileSize:   DefaultMaxFileSize,
		MaxUploadSize: DefaultMaxUploadSize,
		OnError:       OnErrorSkip,
		IssueMatch:    IssueMatchWord,
		Validate:      true,
		Version:       "1.0.0",
		ServerName:    "doi-metadata-extractor",
		LogLevel:      DefaultLogLevel,
		LogFormat:     LogFormatJSON,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	for _, dir := range []*string{&cfg.Directory, &cfg.ScratchDirectory} {
		if *dir == "" {
			continue
		}
		if abs, err := filepath.Abs(*dir); err == nil {
			*dir = abs
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// flagKeys are shared by pflag, viper and the environment
var flagKeys = []string{
	"mode", "host", "port", "dir", "scratchdir", "loglevel", "logformat",
	"maxfilesize", "maxuploadsize", "onerror", "issuematch", "validate",
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.Directory)
	viper.SetDefault("scratchdir", cfg.ScratchDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("logformat", cfg.LogFormat)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("maxuploadsize", cfg.MaxUploadSize)
	viper.SetDefault("onerror", cfg.OnError)
	viper.SetDefault("issuematch", cfg.IssueMatch)
	viper.SetDefault("validate", cfg.Validate)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'server' for the HTTP upload service, 'stdio' for MCP standard I/O")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.Directory, "Directory MCP tools may read archives and PDFs from")
	pflag.String("scratchdir", cfg.ScratchDirectory, "Parent directory for temporary upload data (default system temp)")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.String("logformat", cfg.LogFormat, "Log format (json, console)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum size of a single PDF in bytes")
	pflag.Int64("maxuploadsize", cfg.MaxUploadSize, "Maximum size of an uploaded archive in bytes")
	pflag.String("onerror", cfg.OnError, "What to do when a PDF cannot be read: 'skip' or 'abort'")
	pflag.String("issuematch", cfg.IssueMatch, "Issue number matching: 'word' or 'substring'")
	pflag.Bool("validate", cfg.Validate, "Check PDF structure before extracting text")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range flagKeys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nDOI Metadata Extractor - turns a ZIP of research PDFs into an Excel report\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                  # upload service on 127.0.0.1:8080 (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --host=0.0.0.0 --port=9000       # upload service on all interfaces\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio --dir=/path/to/zips # MCP tools over stdio\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		for _, key := range flagKeys {
			fmt.Fprintf(os.Stderr, "  %s_%s\n", EnvPrefix, strings.ToUpper(key))
		}
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.Directory = viper.GetString("dir")
	cfg.ScratchDirectory = viper.GetString("scratchdir")
	cfg.LogLevel = strings.ToLower(viper.GetString("loglevel"))
	cfg.LogFormat = strings.ToLower(viper.GetString("logformat"))
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.MaxUploadSize = viper.GetInt64("maxuploadsize")
	cfg.OnError = strings.ToLower(viper.GetString("onerror"))
	cfg.IssueMatch = strings.ToLower(viper.GetString("issuematch"))
	cfg.Validate = viper.GetBool("validate")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Port only matters when listening
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.Directory == "" {
		return errors.New("directory cannot be empty")
	}
	if err := ensureDir(c.Directory); err != nil {
		return err
	}

	if c.ScratchDirectory != "" {
		if err := ensureDir(c.ScratchDirectory); err != nil {
			return err
		}
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}
	if c.MaxUploadSize <= 0 {
		return errors.New("maximum upload size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.LogFormat != LogFormatJSON && c.LogFormat != LogFormatConsole {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.LogFormat)
	}

	if c.OnError != OnErrorSkip && c.OnError != OnErrorAbort {
		return fmt.Errorf("invalid onerror policy: %s (must be skip or abort)", c.OnError)
	}

	if c.IssueMatch != IssueMatchWord && c.IssueMatch != IssueMatchSubstring {
		return fmt.Errorf("invalid issue match mode: %s (must be word or substring)", c.IssueMatch)
	}

	return nil
}

// ensureDir creates dir if it is missing
func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", dir, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, Directory: %s, ScratchDirectory: %s, "+
		"LogLevel: %s, LogFormat: %s, MaxFileSize: %d, MaxUploadSize: %d, OnError: %s, IssueMatch: %s, Validate: %t}",
		c.Mode, c.Host, c.Port, c.Directory, c.ScratchDirectory,
		c.LogLevel, c.LogFormat, c.MaxFileSize, c.MaxUploadSize, c.OnError, c.IssueMatch, c.Validate)
}

// IsServerMode returns true if the HTTP upload service should run
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the MCP stdio server should run
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
