package httpclient

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/loadfire/loadfire/internal/config"
)

// loadBody returns the body template text from the inline body or body file.
// The file is read once; its content is a template like the inline body.
func loadBody(cfg *config.Config) (string, error) {
	if cfg.Body != "" && strings.TrimSpace(cfg.BodyFile) != "" {
		return "", errors.New("body and body file cannot both be provided")
	}

	if cfg.Body != "" {
		return cfg.Body, nil
	}

	bodyFile := strings.TrimSpace(cfg.BodyFile)
	if bodyFile == "" {
		return "", nil
	}

	info, err := os.Stat(bodyFile)
	if err != nil {
		return "", fmt.Errorf("body file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("body file %q is a directory", bodyFile)
	}
	data, err := os.ReadFile(bodyFile)
	if err != nil {
		return "", fmt.Errorf("body file: %w", err)
	}
	return string(data), nil
}
