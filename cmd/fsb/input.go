package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/pkg/formsandbox"
)

// readInput reads a file, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fserr.Wrap(fserr.ErrConfigInvalid, err, "cannot read input").With("file", path)
	}
	return data, nil
}

// readObject decodes a JSON or YAML object. An empty path yields an
// empty map.
func readObject(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &out)
	default:
		err = sonic.Unmarshal(data, &out)
	}
	if err != nil {
		return nil, fserr.Wrap(fserr.ErrConfigInvalid, err, "input is not a JSON or YAML object").With("file", path)
	}
	return out, nil
}

// readSubmission accepts either a full submission ({"data": ...}) or a
// bare data object.
func readSubmission(path string) (*formsandbox.Submission, error) {
	obj, err := readObject(path)
	if err != nil {
		return nil, err
	}
	if data, ok := obj["data"].(map[string]any); ok {
		sub := &formsandbox.Submission{Data: data}
		sub.Metadata, _ = obj["metadata"].(map[string]any)
		sub.State, _ = obj["state"].(string)
		return sub, nil
	}
	return &formsandbox.Submission{Data: obj}, nil
}

// resolveForm treats arg as a definition file when one exists, and as a
// form name otherwise.
func resolveForm(client *formsandbox.Client, arg string) (*formsandbox.Form, string, error) {
	if st, err := os.Stat(arg); err == nil && !st.IsDir() {
		f, err := formsandbox.LoadForm(arg)
		if err != nil {
			return nil, "", err
		}
		name := f.Name
		if name == "" {
			base := filepath.Base(arg)
			name = strings.TrimSuffix(base, filepath.Ext(base))
		}
		return f, name, nil
	}
	f, err := client.Form(arg)
	return f, arg, err
}

func dirExists(dir string) bool {
	st, err := os.Stat(dir)
	return err == nil && st.IsDir()
}

// commandConfig loads the configuration and applies its log level.
func commandConfig() (*Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log.Level)
	return cfg, nil
}
