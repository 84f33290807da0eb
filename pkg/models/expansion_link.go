package models

import "time"

// LinkSide names one end of an expansion link
type LinkSide string

const (
	LinkSideBase      LinkSide = "base"
	LinkSideExpansion LinkSide = "expansion"
)

// Opposite returns the other end of the link
func (s LinkSide) Opposite() LinkSide {
	if s == LinkSideBase {
		return LinkSideExpansion
	}
	return LinkSideBase
}

// ExpansionLink is one directed base-expansion edge between two games.
// Either side's game id may be NULL while that game hasn't been imported;
// the catalog id and display name keep the pending side identifiable until
// the game arrives. At least one side always has a game id.
type ExpansionLink struct {
	ID              int64     `json:"id" db:"id"`
	HouseholdID     string    `json:"household_id" db:"household_id"`
	BaseGameID      *int64    `json:"base_game_id,omitempty" db:"base_game_id"`
	BaseBGGID       int64     `json:"base_bgg_id" db:"base_bgg_id"`
	ExpansionGameID *int64    `json:"expansion_game_id,omitempty" db:"expansion_game_id"`
	ExpansionBGGID  int64     `json:"expansion_bgg_id" db:"expansion_bgg_id"`
	DisplayName     string    `json:"display_name" db:"display_name"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Base returns the base side as a reference
func (l *ExpansionLink) Base() GameReference {
	return GameReference{GameID: l.BaseGameID, BGGID: l.BaseBGGID}
}

// Expansion returns the expansion side as a reference
func (l *ExpansionLink) Expansion() GameReference {
	return GameReference{GameID: l.ExpansionGameID, BGGID: l.ExpansionBGGID}
}

// Side returns the requested end as a reference
func (l *ExpansionLink) Side(side LinkSide) GameReference {
	if side == LinkSideBase {
		return l.Base()
	}
	return l.Expansion()
}

// IsComplete reports whether both ends point at imported games
func (l *ExpansionLink) IsComplete() bool {
	return l.BaseGameID != nil && l.ExpansionGameID != nil
}

// PendingSide returns the end still waiting for its game, if any
func (l *ExpansionLink) PendingSide() (LinkSide, bool) {
	if l.BaseGameID == nil {
		return LinkSideBase, true
	}
	if l.ExpansionGameID == nil {
		return LinkSideExpansion, true
	}
	return "", false
}

// SetSideGameID fills in a resolved game id on the given end
func (l *ExpansionLink) SetSideGameID(side LinkSide, gameID int64) {
	if side == LinkSideBase {
		l.BaseGameID = &gameID
		return
	}
	l.ExpansionGameID = &gameID
}

// RelationEntry is one edge to reconcile against the store, as reported by
// the catalog or a caller. ExpandsSubject true means the other game expands
// the subject (subject is the base); false means the subject expands the
// other game.
type RelationEntry struct {
	ExpandsSubject bool          `json:"expands_subject"`
	DisplayName    string        `json:"display_name" validate:"required"`
	Other          GameReference `json:"other"`
}

// ReconcileResult counts what a reconcile pass did
type ReconcileResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// Add accumulates another result into this one
func (r *ReconcileResult) Add(other ReconcileResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Skipped += other.Skipped
}

// Total returns the number of entries accounted for
func (r ReconcileResult) Total() int {
	return r.Inserted + r.Updated + r.Skipped
}

// RelationView is one row of a game's relation listing. DisplayName is the
// live game name when the far side is imported, otherwise the name stored on
// the link.
type RelationView struct {
	GameID      *int64 `json:"game_id,omitempty" db:"game_id"`
	BGGID       int64  `json:"bgg_id" db:"bgg_id"`
	DisplayName string `json:"display_name" db:"display_name"`
}

// GameRelations is both directions of a game's expansion edges
type GameRelations struct {
	ExpandedBy []RelationView `json:"expanded_by"`
	Expands    []RelationView `json:"expands"`
}
