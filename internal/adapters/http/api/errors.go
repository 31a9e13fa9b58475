package api

import (
	"errors"
	"net/http"

	"github.com/okian/starsim/internal/adapters/repository"
	service "github.com/okian/starsim/internal/app"
	"github.com/okian/starsim/internal/domain/types"
)

// ErrBadRequest marks malformed requests.
var ErrBadRequest = errors.New("bad request")

// classify maps an error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, types.ErrInvalidStar),
		errors.Is(err, types.ErrInvalidStarType),
		errors.Is(err, types.ErrLengthMismatch),
		errors.Is(err, repository.ErrFixture):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, types.ErrInsufficientData):
		return http.StatusUnprocessableEntity, "insufficient_data"
	case errors.Is(err, types.ErrDegenerateBand):
		return http.StatusUnprocessableEntity, "degenerate_band"
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, repository.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
