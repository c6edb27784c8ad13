// Package errors provides the classified error primitives used across tutoragent.
//
// Every error that crosses a package boundary is a ClassifiedError carrying a
// category, a severity and a retry hint. The CLI adapter turns categories into
// exit codes; the HTTP adapter turns them into status codes.
//
//	err := errors.NewError(errors.CategoryDatabase, "save language failed").
//		WithCause(sqlErr).
//		WithContext("language", key).
//		Build()
package errors
