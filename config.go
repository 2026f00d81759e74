package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// errMissingAPIKey is returned when no Gemini API key is configured.
var errMissingAPIKey = errors.New("no Gemini API key found; set GEMINI_API_KEY")

// apiKeyEnvVars is checked in order; the first non-blank value wins.
var apiKeyEnvVars = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"}

const (
	flashModelEnv = "LATTICEWORK_FLASH_MODEL"
	proModelEnv   = "LATTICEWORK_PRO_MODEL"
)

// appConfig collects the root command's flags.
type appConfig struct {
	catalogPath string
	promptDir   string
	logFile     string
	timeout     time.Duration
	verbose     bool
	dark        bool
}

func resolveAPIKey(getenv func(string) string) (string, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, name := range apiKeyEnvVars {
		if key := strings.TrimSpace(getenv(name)); key != "" {
			return key, nil
		}
	}
	return "", errMissingAPIKey
}

func resolveModelNames(getenv func(string) string) (flash, pro string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	flash = strings.TrimSpace(getenv(flashModelEnv))
	if flash == "" {
		flash = defaultFlashModel
	}
	pro = strings.TrimSpace(getenv(proModelEnv))
	if pro == "" {
		pro = defaultProModel
	}
	return flash, pro
}

// resolveGatewayConfig combines environment and flags into gateway settings.
func resolveGatewayConfig(cfg appConfig, getenv func(string) string) (gatewayConfig, error) {
	key, err := resolveAPIKey(getenv)
	if err != nil {
		return gatewayConfig{}, err
	}
	flash, pro := resolveModelNames(getenv)
	return gatewayConfig{
		apiKey:     key,
		flashModel: flash,
		proModel:   pro,
		promptDir:  cfg.promptDir,
	}, nil
}

func defaultLogPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}
	return filepath.Join(dir, "latticework", "latticework.log"), nil
}

// newLogger builds a JSON logger writing to path. The terminal belongs to the
// TUI, so the interactive command never logs to stderr.
func newLogger(path string, verbose bool) (*zap.Logger, error) {
	path = expandHome(path)
	if path == "" {
		var err error
		if path, err = defaultLogPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// newCLILogger logs to stderr for one-shot subcommands.
func newCLILogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// requestContext bounds a gateway call. A zero timeout means no deadline.
func requestContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
