package config

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
)

// DelimiterRune returns the configured delimiter as a rune.
func (b BatchConfig) DelimiterRune() (rune, error) {
	switch b.Delimiter {
	case "":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(b.Delimiter) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", b.Delimiter)
	}
	r, _ := utf8.DecodeRuneInString(b.Delimiter)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid delimiter %q", b.Delimiter)
	}
	return r, nil
}

// Validate reports every invalid setting of c.
func (c *Config) Validate() error {
	var result error
	b := c.Surfin.Batch

	if b.ChunkSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("surfin.batch.chunk_size must be a positive integer, got %d", b.ChunkSize))
	}
	if _, err := b.DelimiterRune(); err != nil {
		result = multierror.Append(result, fmt.Errorf("surfin.batch.delimiter: %w", err))
	}
	if len(b.FieldNames) == 0 {
		result = multierror.Append(result, errors.New("surfin.batch.field_names must not be empty"))
	}
	seen := make(map[string]bool, len(b.FieldNames))
	for _, name := range b.FieldNames {
		if name == "" {
			result = multierror.Append(result, errors.New("surfin.batch.field_names contains an empty name"))
			continue
		}
		if seen[name] {
			result = multierror.Append(result, fmt.Errorf("surfin.batch.field_names contains %q twice", name))
		}
		seen[name] = true
	}
	if b.LinesToSkip < 0 {
		result = multierror.Append(result, fmt.Errorf("surfin.batch.lines_to_skip must not be negative, got %d", b.LinesToSkip))
	}

	infra := c.Surfin.Infrastructure
	switch infra.JobRepositoryType {
	case "sql":
		if infra.JobRepositoryDBRef == "" {
			result = multierror.Append(result, errors.New("surfin.infrastructure.job_repository_db_ref is required for the sql job repository"))
		}
	case "inmemory":
	default:
		result = multierror.Append(result, fmt.Errorf("surfin.infrastructure.job_repository_type must be 'sql' or 'inmemory', got %q", infra.JobRepositoryType))
	}
	return result
}
