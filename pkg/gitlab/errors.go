package gitlab

import (
	"errors"
	"net/http"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// Error definitions for GitLab API operations.
var (
	errTokenRequired   = errors.New("gitlab token is required")
	errInvalidEndpoint = errors.New("invalid GitLab endpoint")

	// Exported errors for testing and external use.
	ErrTokenRequired   = errTokenRequired
	ErrInvalidEndpoint = errInvalidEndpoint
)

func statusCode(err error) int {
	var respErr *gitlab.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a GitLab 404.
func IsNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}

// IsConflict reports whether err is a GitLab 409, returned for example when
// an open merge request already exists for the source branch.
func IsConflict(err error) bool {
	return statusCode(err) == http.StatusConflict
}

// IsNotMergeable reports whether GitLab refused to accept a merge request.
func IsNotMergeable(err error) bool {
	switch statusCode(err) {
	case http.StatusMethodNotAllowed, http.StatusNotAcceptable, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	default:
		return false
	}
}
