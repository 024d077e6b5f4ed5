package db

import "errors"

var (
	// ErrKeyNotFound is returned by Get for a missing key.
	ErrKeyNotFound = errors.New("db: key not found")
	// ErrIndexNotFound means the FT index of a collection does not exist.
	ErrIndexNotFound = errors.New("db: index not found")
	// ErrIndexExists is returned by CreateIndex when the index is already there.
	ErrIndexExists = errors.New("db: index already exists")
)

// Commands named in Error.Op.
const (
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpHSet        = "HSET"
	OpGet         = "GET"
	OpSet         = "SET"
)

// Error records which store command failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "db " + e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }
