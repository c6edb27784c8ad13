package database

import (
	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
)

var (
	// ErrSchemaTooNew indicates the database was written by a newer binary.
	ErrSchemaTooNew = ferrors.DatabaseError("database schema is newer than this binary supports").Fatal().Build()

	// ErrLanguageNotFound indicates no stored language has the requested ID.
	ErrLanguageNotFound = ferrors.NotFoundError("language not found in database").Build()

	// ErrSessionNotFound indicates EndSession was called with an unknown session ID.
	ErrSessionNotFound = ferrors.NotFoundError("session not found").Build()

	// ErrBackupPathRequired indicates an in-memory database was backed up without a target path.
	ErrBackupPathRequired = ferrors.ValidationError("backup path is required for in-memory databases").Build()
)

func dbError(err error, msg string) *ferrors.ClassifiedError {
	return ferrors.WrapError(err, ferrors.CategoryDatabase, msg).Retryable().Build()
}
