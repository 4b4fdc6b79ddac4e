package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const DefaultDataDir = "/var/lib/vector/"

type GlobalOptions struct {
	DataDir   *string   `yaml:"data_dir"`
	LogSchema LogSchema `yaml:"log_schema"`
}

// DataDirOrDefault returns the configured data directory, or the default
// when none was set.
func (g *GlobalOptions) DataDirOrDefault() string {
	if g.DataDir == nil {
		return DefaultDataDir
	}
	return *g.DataDir
}

func (g *GlobalOptions) merge(with *GlobalOptions) Errors {
	var errs Errors
	switch {
	case with.DataDir == nil:
	case g.DataDir == nil || *g.DataDir == DefaultDataDir:
		dir := *with.DataDir
		g.DataDir = &dir
	case *with.DataDir != DefaultDataDir && *g.DataDir != *with.DataDir:
		errs = append(errs, "conflicting values for 'data_dir' found")
	}
	errs = append(errs, g.LogSchema.merge(&with.LogSchema)...)
	return errs
}

type DataDirErrorKind int

const (
	DataDirMissing DataDirErrorKind = iota
	DataDirDoesNotExist
	DataDirNotWritable
	DataDirCouldNotCreate
)

type DataDirError struct {
	Kind    DataDirErrorKind
	DataDir string
	Subdir  string
	Err     error
}

func (e *DataDirError) Error() string {
	switch e.Kind {
	case DataDirMissing:
		return "data_dir option required, but not given here or globally"
	case DataDirDoesNotExist:
		return fmt.Sprintf("data_dir %q does not exist", e.DataDir)
	case DataDirNotWritable:
		return fmt.Sprintf("data_dir %q is not writable", e.DataDir)
	default:
		return fmt.Sprintf("could not create subdirectory %q inside of data dir %q: %v", e.Subdir, e.DataDir, e.Err)
	}
}

func (e *DataDirError) Unwrap() error {
	return e.Err
}

// ResolveAndValidateDataDir picks the component's own data_dir over the
// global one and checks that it exists and is writable.
func (g *GlobalOptions) ResolveAndValidateDataDir(local string) (string, error) {
	dataDir := local
	if dataDir == "" && g.DataDir != nil {
		dataDir = *g.DataDir
	}
	if dataDir == "" {
		return "", &DataDirError{Kind: DataDirMissing}
	}
	info, err := os.Stat(dataDir)
	if errors.Is(err, os.ErrNotExist) {
		return "", &DataDirError{Kind: DataDirDoesNotExist, DataDir: dataDir}
	}
	if err != nil || info.Mode().Perm()&0o222 == 0 {
		return "", &DataDirError{Kind: DataDirNotWritable, DataDir: dataDir, Err: err}
	}
	return dataDir, nil
}

// ResolveAndMakeDataSubdir resolves the data directory and makes sure the
// named subdirectory exists inside it.
func (g *GlobalOptions) ResolveAndMakeDataSubdir(local, subdir string) (string, error) {
	dataDir, err := g.ResolveAndValidateDataDir(local)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dataDir, subdir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", &DataDirError{Kind: DataDirCouldNotCreate, DataDir: dataDir, Subdir: subdir, Err: err}
	}
	return path, nil
}
