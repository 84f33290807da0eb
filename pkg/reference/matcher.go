// Package reference decides whether two game references denote the same game.
package reference

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/meeplestash/pkg/models"
)

// Match reports whether a and b denote the same game. Internal game ids win:
// two references with the same non-nil GameID always match. Otherwise two
// equal non-zero catalog ids match. BGGID 0 is "no listing", not an id, so
// two catalog-less references never match on it.
func Match(a, b models.GameReference) bool {
	if a.GameID != nil && b.GameID != nil && *a.GameID == *b.GameID {
		return true
	}
	return a.BGGID != 0 && a.BGGID == b.BGGID
}

// Validate rejects references that carry no identifier at all
func Validate(ref models.GameReference) error {
	if ref.GameID == nil && ref.BGGID == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "game reference has neither a game id nor a catalog id")
	}
	return nil
}
