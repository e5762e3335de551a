package environment

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded from the working directory when present.
const DefaultEnvFile = ".env"

// NewEnvFilesProvider reads dotenv files. When a key appears in several
// files the first file wins. Every file must exist.
func NewEnvFilesProvider(paths ...string) (*MapProvider, error) {
	values := map[string]string{}
	for _, path := range paths {
		fileValues, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("reading env file %s: %w", path, err)
		}
		for k, v := range fileValues {
			if _, found := values[k]; !found {
				values[k] = v
			}
		}
	}
	return NewMapProvider(values), nil
}

// NewOptionalEnvFileProvider reads path if it exists and is empty otherwise.
func NewOptionalEnvFileProvider(path string) (*MapProvider, error) {
	p, err := NewEnvFilesProvider(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewMapProvider(nil), nil
	}
	return p, err
}
