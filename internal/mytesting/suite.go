package mytesting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/habiliai/docstore/config"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/suite"
)

// Suite gives every test a fresh storage root and a configuration pointing
// at it.
type Suite struct {
	suite.Suite
	context.Context

	Cancel context.CancelFunc
	Root   string
	Config *config.Config
}

func (s *Suite) SetupTest() {
	projectRoot, err := s.findProjectRoot()
	s.Require().NoError(err, "Failed to find project root")
	envFile := filepath.Join(projectRoot, ".env.test")
	if _, err := os.Stat(envFile); err == nil {
		s.Require().NoError(godotenv.Load(envFile))
	}

	s.Root, err = filepath.EvalSymlinks(s.T().TempDir())
	s.Require().NoError(err)

	s.Config = config.NewConfig()
	s.Config.Store.Roots = []string{s.Root}
	s.Config.Store.LockTimeout = 5 * time.Second
	s.Config.Log.LogLevel = "error"
	// tests never reach the network
	s.Config.FireCrawl.APIKey = ""

	s.Context, s.Cancel = context.WithCancel(context.TODO())
}

func (s *Suite) TearDownTest() {
	s.Cancel()
}

// findProjectRoot searches for go.mod file starting from the current file location
func (s *Suite) findProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}

	dir := filepath.Dir(filename)
	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("go.mod not found in any parent directory")
}
