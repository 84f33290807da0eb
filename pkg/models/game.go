package models

import "time"

// Game is an owned game in a household's collection.
// BGGID 0 means the game has no BoardGameGeek listing (homebrew, promo, etc).
// Once a game row exists its ID is never reused and its BGGID never changes.
type Game struct {
	ID            int64     `json:"id" db:"id"`
	HouseholdID   string    `json:"household_id" db:"household_id"`
	BGGID         int64     `json:"bgg_id" db:"bgg_id"`
	Name          string    `json:"name" db:"name"`
	YearPublished *int      `json:"year_published,omitempty" db:"year_published"`
	ThumbnailURL  string    `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	ImageURL      string    `json:"image_url,omitempty" db:"image_url"`
	Description   string    `json:"description,omitempty" db:"description"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Reference returns the game's identity as a GameReference
func (g *Game) Reference() GameReference {
	id := g.ID
	return GameReference{GameID: &id, BGGID: g.BGGID}
}

// CreateGameRequest is the payload for creating a game directly (no catalog fetch)
type CreateGameRequest struct {
	Name          string `json:"name" validate:"required,max=512"`
	BGGID         int64  `json:"bgg_id" validate:"gte=0"`
	YearPublished *int   `json:"year_published,omitempty"`
	ThumbnailURL  string `json:"thumbnail_url,omitempty" validate:"omitempty,url"`
	ImageURL      string `json:"image_url,omitempty" validate:"omitempty,url"`
	Description   string `json:"description,omitempty"`
}

// ImportGameRequest is the payload for importing a game from the catalog
type ImportGameRequest struct {
	BGGID int64 `json:"bgg_id" validate:"required,gt=0"`
}

// GameListFilter narrows and pages the game list
type GameListFilter struct {
	Name   string `query:"name"`
	Limit  int    `query:"limit"`
	Offset int    `query:"offset"`
}
