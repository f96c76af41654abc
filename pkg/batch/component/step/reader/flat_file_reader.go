// Package reader provides the delimited flat file record source.
package reader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tigerroll/csvload/pkg/batch/adapter/storage"
	"github.com/tigerroll/csvload/pkg/batch/core/application/port"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

const moduleName = "reader"

// Options configures a FlatFileReader.
type Options struct {
	FieldNames []string
	// Delimiter separates fields. Zero means ','.
	Delimiter rune
	// Strict fails a record whose field count differs from len(FieldNames).
	// Otherwise missing fields are padded with "" and extra fields dropped.
	Strict bool
	// LinesToSkip header records are discarded after Open.
	LinesToSkip int
}

// FlatFileReader reads delimited records from a storage.Resource.
// A field starting with a quote is a quoted field as in RFC 4180; a quote
// anywhere else is literal text. Blank lines are ignored.
type FlatFileReader struct {
	name     string
	resource storage.Resource
	opts     Options

	rc     io.ReadCloser
	csv    *csv.Reader
	cursor int
}

var (
	_ port.ItemReader[RawRecord] = (*FlatFileReader)(nil)
	_ port.Skipper               = (*FlatFileReader)(nil)
)

// NewFlatFileReader creates a reader over resource. Nothing is opened until Open.
func NewFlatFileReader(name string, resource storage.Resource, opts Options) (*FlatFileReader, error) {
	if resource == nil {
		return nil, exception.NewBatchErrorf(moduleName, "reader '%s' has no resource", name)
	}
	if len(opts.FieldNames) == 0 {
		return nil, exception.NewBatchErrorf(moduleName, "reader '%s' needs at least one field name", name)
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.Delimiter == '"' || opts.Delimiter == '\r' || opts.Delimiter == '\n' {
		return nil, exception.NewBatchErrorf(moduleName, "reader '%s': invalid delimiter %q", name, opts.Delimiter)
	}
	if opts.LinesToSkip < 0 {
		return nil, exception.NewBatchErrorf(moduleName, "reader '%s': lines to skip must not be negative", name)
	}
	return &FlatFileReader{name: name, resource: resource, opts: opts}, nil
}

// Open opens the resource from its beginning and discards the header lines.
func (r *FlatFileReader) Open(ctx context.Context) error {
	if r.rc != nil {
		return exception.NewBatchErrorf(moduleName, "reader '%s' is already open", r.name)
	}
	rc, err := r.resource.Open(ctx)
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("reader '%s' failed to open %s", r.name, r.resource), err)
	}
	cr := csv.NewReader(rc)
	cr.Comma = r.opts.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	r.rc, r.csv, r.cursor = rc, cr, 0
	for i := 0; i < r.opts.LinesToSkip; i++ {
		if _, err := cr.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return exception.NewBatchError(moduleName, fmt.Sprintf("reader '%s' failed to skip header line %d", r.name, i+1), err)
		}
	}
	logger.Debugf("Reader '%s' opened %s (strict=%t, header lines=%d).", r.name, r.resource, r.opts.Strict, r.opts.LinesToSkip)
	return nil
}

// Read returns the next record or port.ErrNoMoreItems.
func (r *FlatFileReader) Read(ctx context.Context) (RawRecord, error) {
	if r.csv == nil {
		return RawRecord{}, exception.NewBatchErrorf(moduleName, "reader '%s' is not open", r.name)
	}
	values, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return RawRecord{}, port.ErrNoMoreItems
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return RawRecord{}, &exception.MalformedRecordError{Line: parseErr.StartLine, Err: parseErr.Err}
		}
		return RawRecord{}, exception.NewBatchError(moduleName, fmt.Sprintf("reader '%s' failed to read record %d", r.name, r.cursor+1), err)
	}
	line, _ := r.csv.FieldPos(0)
	r.cursor++

	expected := len(r.opts.FieldNames)
	if len(values) != expected {
		if r.opts.Strict {
			return RawRecord{}, &exception.MalformedRecordError{
				Line:     line,
				Expected: expected,
				Actual:   len(values),
				Input:    strings.Join(values, string(r.opts.Delimiter)),
			}
		}
		values = fit(values, expected)
	}
	return RawRecord{Number: r.cursor, Line: line, Names: r.opts.FieldNames, Values: values}, nil
}

// fit pads values with empty strings or truncates them to n.
func fit(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	out := make([]string, n)
	copy(out, values)
	return out
}

// Skip discards the next n records without validating them.
// It fails if the input ends first, which means the input changed since the
// offset was recorded.
func (r *FlatFileReader) Skip(ctx context.Context, n int) error {
	if r.csv == nil {
		return exception.NewBatchErrorf(moduleName, "reader '%s' is not open", r.name)
	}
	for i := 0; i < n; i++ {
		if _, err := r.csv.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return exception.NewBatchErrorf(moduleName, "reader '%s' cannot skip to record %d: input ends after %d records", r.name, n, r.cursor)
			}
			return exception.NewBatchError(moduleName, fmt.Sprintf("reader '%s' failed to skip record %d", r.name, r.cursor+1), err)
		}
		r.cursor++
	}
	if n > 0 {
		logger.Infof("Reader '%s' skipped %d already committed records.", r.name, n)
	}
	return nil
}

// Cursor returns the number of records read or skipped since Open.
func (r *FlatFileReader) Cursor() int { return r.cursor }

// Close closes the underlying stream. Closing a closed reader is a no-op.
func (r *FlatFileReader) Close(ctx context.Context) error {
	if r.rc == nil {
		return nil
	}
	err := r.rc.Close()
	r.rc, r.csv = nil, nil
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("reader '%s' failed to close %s", r.name, r.resource), err)
	}
	return nil
}
