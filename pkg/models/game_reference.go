package models

import "strconv"

// GameReference identifies a game by whichever identifiers the caller has.
// GameID is the internal row id (nil when the game hasn't been imported yet).
// BGGID is the BoardGameGeek catalog id, 0 when the game has no listing.
// A reference may carry either identifier or both; one with neither is
// ambiguous and rejected before any store access.
type GameReference struct {
	GameID *int64 `json:"game_id,omitempty"`
	BGGID  int64  `json:"bgg_id"`
}

// Ref builds a GameReference from an internal game id
func Ref(gameID int64) GameReference {
	return GameReference{GameID: &gameID}
}

// CatalogRef builds a GameReference from a catalog id only
func CatalogRef(bggID int64) GameReference {
	return GameReference{BGGID: bggID}
}

// String renders the reference for logs
func (r GameReference) String() string {
	s := "game:?"
	if r.GameID != nil {
		s = "game:" + strconv.FormatInt(*r.GameID, 10)
	}
	if r.BGGID != 0 {
		s += "/bgg:" + strconv.FormatInt(r.BGGID, 10)
	}
	return s
}
