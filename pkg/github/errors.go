package github

import (
	"errors"
	"net/http"

	"github.com/google/go-github/v69/github"
)

// Error definitions for GitHub API operations.
var (
	errTokenRequired   = errors.New("github token is required")
	errInvalidEndpoint = errors.New("invalid GitHub endpoint")

	// ErrTokenRequired is returned when no token is configured.
	ErrTokenRequired = errTokenRequired
	// ErrInvalidEndpoint is returned when the enterprise endpoint cannot be used.
	ErrInvalidEndpoint = errInvalidEndpoint
)

func statusCode(err error) int {
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a GitHub 404.
func IsNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}

// IsUnprocessable reports whether err is a GitHub 422, which the API uses for
// validation failures such as a duplicate pull request.
func IsUnprocessable(err error) bool {
	return statusCode(err) == http.StatusUnprocessableEntity
}

// IsNotMergeable reports whether a merge was refused because the pull
// request cannot be merged in its current state.
func IsNotMergeable(err error) bool {
	code := statusCode(err)
	return code == http.StatusMethodNotAllowed || code == http.StatusConflict
}
