package database

import "errors"

var (
	// ErrDatabaseNotFound is returned by Open when the database file is
	// missing and CreateIfNotExists is false.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrNilRecord is returned when a nil record is saved.
	ErrNilRecord = errors.New("record is nil")

	// ErrEmptyURL is returned when a record without a URL is saved.
	ErrEmptyURL = errors.New("record URL is empty")

	// ErrRecordNotFound is returned when an update targets an unknown ID.
	ErrRecordNotFound = errors.New("record not found")

	// ErrNilReport is returned when a nil browse report is saved.
	ErrNilReport = errors.New("report is nil")
)
