package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

func readInto[T any](path string, out *T) (bool, error) {
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(contents) == 0 {
		return false, nil
	}
	err = json5.Unmarshal(contents, out)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// ReadConfig reads a json5 configuration file on top of `base`. `name` should come with a
// file extension, the local override is found by inserting `.local` before it:
// 1. <name>.<ext>
// 2. <name>.local.<ext>
// where the later file wins on every field it sets. Returns os.ErrNotExist if neither file exists.
func ReadConfig[T any](name string, base T) (T, error) {
	out := base

	dirname := filepath.Dir(name)
	prefixname, ext := splitExt(filepath.Base(name))

	var fromFile T
	foundDefault, err := readInto(name, &fromFile)
	if err != nil {
		return base, err
	}
	if foundDefault {
		err = mergo.Merge(&out, fromFile, mergo.WithOverride)
		if err != nil {
			return base, err
		}
	}

	localFilepath := filepath.Join(
		dirname,
		fmt.Sprintf("%s.local.%s", prefixname, ext),
	)
	var override T
	foundLocal, err := readInto(localFilepath, &override)
	if err != nil {
		return base, err
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return base, err
		}
		slog.Debug("merging config with local overrides", "local", localFilepath)
	}

	if !foundDefault && !foundLocal {
		return base, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively is ReadConfig but it goes up the filesystem from the cwd until the root
// to find a configuration file matching the name.
func ReadRecursively[T any](name string, base T) (T, error) {
	current, err := os.Getwd()
	if err != nil {
		return base, err
	}

	for {
		config, err := ReadConfig(filepath.Join(current, name), base)
		if err == nil {
			return config, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return base, err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return base, os.ErrNotExist
		}
		current = parent
	}
}
