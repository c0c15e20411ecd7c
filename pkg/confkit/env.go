package confkit

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotenvOnce loads a .env file into the process environment.
//
// CASCADE_ENV_FILE points at an explicit file. Otherwise the search walks up
// from this package to the module root and loads every .env on the way.
// Existing variables win unless CASCADE_DOTENV_OVERLOAD=1; CASCADE_NO_DOTENV=1
// disables loading entirely.
func LoadDotenvOnce() {
	dotenvOnce.Do(loadDotenv)
}

func loadDotenv() {
	if os.Getenv("CASCADE_NO_DOTENV") == "1" {
		return
	}
	load := godotenv.Load
	if os.Getenv("CASCADE_DOTENV_OVERLOAD") == "1" {
		load = godotenv.Overload
	}
	if envFile := os.Getenv("CASCADE_ENV_FILE"); envFile != "" {
		_ = load(envFile)
		return
	}
	dir, ok := sourceDir()
	if !ok {
		_ = load(".env")
		return
	}
	for i := 0; i < 8; i++ {
		if candidate := filepath.Join(dir, ".env"); fileExists(candidate) {
			_ = load(candidate)
		}
		if isModuleRoot(dir) {
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// ProjectRoot walks up from this source file to the directory holding go.mod
// or .git, falling back to the working directory.
func ProjectRoot() (string, error) {
	if dir, ok := sourceDir(); ok {
		for i := 0; i < 8; i++ {
			if isModuleRoot(dir) {
				return dir, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return ".", fmt.Errorf("getwd: %w", err)
	}
	return wd, nil
}

// ProjectPath joins the repository root with rel.
func ProjectPath(rel string) (string, error) {
	root, err := ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, rel), nil
}

// MustProjectPath is ProjectPath that panics on failure.
func MustProjectPath(rel string) string {
	p, err := ProjectPath(rel)
	if err != nil {
		panic(err)
	}
	return p
}

func sourceDir() (string, bool) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", false
	}
	return filepath.Dir(file), true
}

func isModuleRoot(dir string) bool {
	return fileExists(filepath.Join(dir, "go.mod")) || fileExists(filepath.Join(dir, ".git"))
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}
