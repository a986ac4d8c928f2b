// Package checkpoint decorates errors with the location they passed through,
// which results in a short trace when the error is finally printed.
// Both the decorating error and the wrapped cause stay reachable through
// errors.Is and errors.As.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From adds a checkpoint at the caller's location to err.
// It returns nil if err is nil.
func From(err error) error {
	if passThrough(err) {
		return err
	}

	return newCheckpoint(err, nil)
}

// Wrap adds a checkpoint to cause which is further described by err.
// It is meant to be used with predefined sentinel errors:
//  var ErrReadSector = errors.New("could not read sector")
//
//  func read() error {
//  	err := dev.ReadSector(0, buf)
//  	return checkpoint.Wrap(err, ErrReadSector)
//  }
// Afterwards errors.Is matches ErrReadSector as well as the original cause.
// If cause is nil, Wrap returns nil.
func Wrap(cause, err error) error {
	if passThrough(cause) {
		return cause
	}

	return newCheckpoint(cause, err)
}

// passThrough reports whether the error must be returned as it is.
// io.EOF is compared by identity in a lot of places, so it is never decorated.
// https://github.com/golang/go/issues/39155
func passThrough(err error) bool {
	return err == nil || err == io.EOF || err == io.ErrUnexpectedEOF
}

func newCheckpoint(cause, err error) *checkpoint {
	// Skip newCheckpoint and the exported function.
	_, file, line, ok := runtime.Caller(2)
	c := &checkpoint{
		cause: cause,
		err:   err,
	}
	if ok {
		c.location = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	return c
}

type checkpoint struct {
	// cause is the error this checkpoint decorates.
	cause error
	// err optionally describes the checkpoint. It may be nil.
	err error

	location string
}

func (c *checkpoint) Error() string {
	var b strings.Builder

	location := c.location
	if location == "" {
		location = "unknown"
	}
	b.WriteString("at ")
	b.WriteString(location)
	if c.err != nil {
		b.WriteString(": ")
		b.WriteString(c.err.Error())
	}

	// Nested checkpoints are already indented.
	if _, ok := c.cause.(*checkpoint); ok {
		b.WriteString("\n")
		b.WriteString(c.cause.Error())
		return b.String()
	}

	b.WriteString("\n\t")
	b.WriteString(strings.ReplaceAll(c.cause.Error(), "\n", "\n\t"))
	return b.String()
}

func (c *checkpoint) Unwrap() error {
	return c.cause
}

func (c *checkpoint) Is(target error) bool {
	return c.err != nil && errors.Is(c.err, target)
}

func (c *checkpoint) As(target interface{}) bool {
	return c.err != nil && errors.As(c.err, target)
}
