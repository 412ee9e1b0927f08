package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ShayCichocki/featuregate/internal/config"
	"github.com/ShayCichocki/featuregate/internal/engine"
	"github.com/ShayCichocki/featuregate/internal/logging"
)

// session is an open project: its settings, logger and engine.
type session struct {
	dir      string
	settings *config.Config
	logger   *logging.Logger
	engine   *engine.Engine
}

// projectDir returns the absolute project directory.
func projectDir() (string, error) {
	dir := projectFlag
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve project directory: %w", err)
	}
	return abs, nil
}

// loadSettings loads the settings for dir, honouring --config.
func loadSettings(dir string) (*config.Config, error) {
	if configFlag != "" {
		return config.LoadFromPath(configFlag)
	}
	return config.Load(dir)
}

// openSession opens the project. Console logs are discarded when quiet is
// set, for commands that own the terminal.
func openSession(quiet bool) (*session, error) {
	dir, err := projectDir()
	if err != nil {
		return nil, err
	}
	settings, err := loadSettings(dir)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	opts := logging.Options{Level: settings.Log.Level, Format: settings.Log.Format}
	if logLevelFlag != "" {
		opts.Level = logLevelFlag
	}
	if quiet {
		opts.Output = io.Discard
	}
	logger, err := logging.ForProject(dir, settings.Log.Dir, opts, settings.Log.File)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	eng, err := engine.Open(dir, settings, logger.Logger)
	if err != nil {
		logger.Close()
		return nil, err
	}
	return &session{dir: dir, settings: settings, logger: logger, engine: eng}, nil
}

func (s *session) Close() {
	if err := s.engine.Close(); err != nil {
		s.logger.Warn("close engine", zap.Error(err))
	}
	s.logger.Close()
}
