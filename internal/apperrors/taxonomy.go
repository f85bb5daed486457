package apperrors

import (
	"errors"
	"net/http"
)

var (
	ErrDirectory = New("directory error").SetStatusCode(http.StatusInternalServerError)

	ErrNotFound    = ErrDirectory.New("not found").SetStatusCode(http.StatusNotFound)
	ErrConflict    = ErrDirectory.New("already exists").SetStatusCode(http.StatusConflict)
	ErrInvalidData = ErrDirectory.New("invalid data").SetStatusCode(http.StatusBadRequest)

	ErrNoSuchPhonebook = ErrNotFound.New("no such phonebook")
	ErrNoSuchContact   = ErrNotFound.New("no such contact")
	ErrNoSuchDisplay   = ErrNotFound.New("no such display")
	ErrNoSuchSource    = ErrNotFound.New("no such source")
	ErrNoSuchProfile   = ErrNotFound.New("no such profile")
	ErrNoSuchFavorite  = ErrNotFound.New("no such favorite")
	ErrNoSuchTenant    = ErrNotFound.New("no such tenant")
	ErrNoSuchUser      = ErrNotFound.New("no such user")

	ErrDuplicatedPhonebook = ErrConflict.New("duplicated phonebook")
	ErrDuplicatedContact   = ErrConflict.New("duplicated contact")
	ErrDuplicatedFavorite  = ErrConflict.New("duplicated favorite")
	ErrDuplicatedSource    = ErrConflict.New("duplicated source")
	ErrDuplicatedProfile   = ErrConflict.New("duplicated profile")

	ErrInvalidArgument     = ErrInvalidData.New("invalid argument")
	ErrInvalidSourceConfig = ErrInvalidData.New("invalid source config")
	ErrInvalidContact      = ErrInvalidData.New("invalid contact")
	ErrInvalidPhonebook    = ErrInvalidData.New("invalid phonebook")

	ErrDatabaseUnavailable = ErrDirectory.New("database unavailable").SetStatusCode(http.StatusServiceUnavailable)
	ErrIntegrity           = ErrDirectory.New("inconsistent database state")
)

// StatusCode returns the status code attached to err, or 500 when err is not
// a directory error.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) && e.StatusCode() != 0 {
		return e.StatusCode()
	}
	return http.StatusInternalServerError
}
