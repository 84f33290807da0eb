// Package bgg fetches game metadata and expansion links from the
// BoardGameGeek XML API2.
package bgg

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/meeplestash/pkg/metrics"
	"github.com/Ramsey-B/meeplestash/pkg/models"
	"github.com/Ramsey-B/meeplestash/pkg/tracing"
)

// DefaultBaseURL is the public XML API2 endpoint
const DefaultBaseURL = "https://boardgamegeek.com/xmlapi2"

// Config holds the catalog client settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// CatalogGame is a game as the catalog describes it, including its
// expansion links relative to itself.
type CatalogGame struct {
	BGGID         int64                  `json:"bgg_id"`
	Name          string                 `json:"name"`
	YearPublished *int                   `json:"year_published,omitempty"`
	ThumbnailURL  string                 `json:"thumbnail_url,omitempty"`
	ImageURL      string                 `json:"image_url,omitempty"`
	Description   string                 `json:"description,omitempty"`
	Relations     []models.RelationEntry `json:"relations"`
}

// Client talks to the catalog. Cache is optional; when set, FetchGame reads
// through it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      *Cache
	logger     ectologger.Logger
}

// NewClient creates a catalog client
func NewClient(cfg Config, cache *Cache, logger ectologger.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		cache:      cache,
		logger:     logger,
	}
}

// thing endpoint response shapes
type thingItems struct {
	XMLName xml.Name    `xml:"items"`
	Items   []thingItem `xml:"item"`
}

type thingItem struct {
	ID            int64       `xml:"id,attr"`
	Names         []thingName `xml:"name"`
	YearPublished *thingValue `xml:"yearpublished"`
	Thumbnail     string      `xml:"thumbnail"`
	Image         string      `xml:"image"`
	Description   string      `xml:"description"`
	Links         []thingLink `xml:"link"`
}

type thingName struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

type thingValue struct {
	Value int `xml:"value,attr"`
}

type thingLink struct {
	Type    string `xml:"type,attr"`
	ID      int64  `xml:"id,attr"`
	Value   string `xml:"value,attr"`
	Inbound bool   `xml:"inbound,attr"`
}

// FetchGame fetches one game's metadata and expansion links, reading through
// the cache when one is configured. Any catalog failure surfaces as a 502.
func (c *Client) FetchGame(ctx context.Context, bggID int64) (*CatalogGame, error) {
	ctx, span := tracing.StartSpan(ctx, "bgg.Client.FetchGame")
	defer span.End()

	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"method": "FetchGame",
		"bgg_id": bggID,
	})

	if bggID == 0 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "catalog id 0 is not a valid lookup")
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, bggID); ok {
			metrics.CatalogRequests.WithLabelValues("hit").Inc()
			log.Debug("Catalog cache hit")
			return cached, nil
		}
	}

	url := fmt.Sprintf("%s/thing?id=%d&type=boardgame,boardgameexpansion", c.baseURL, bggID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to build catalog request")
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.CatalogRequests.WithLabelValues("error").Inc()
		log.WithError(err).Error("Catalog request failed")
		return nil, httperror.NewHTTPError(http.StatusBadGateway, "catalog is unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.CatalogRequests.WithLabelValues("error").Inc()
		log.WithFields(map[string]any{"status": resp.StatusCode}).Error("Catalog returned non-200")
		return nil, httperror.NewHTTPErrorf(http.StatusBadGateway, "catalog returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.CatalogRequests.WithLabelValues("error").Inc()
		log.WithError(err).Error("Failed to read catalog response")
		return nil, httperror.NewHTTPError(http.StatusBadGateway, "failed to read catalog response")
	}

	var items thingItems
	if err := xml.Unmarshal(body, &items); err != nil {
		metrics.CatalogRequests.WithLabelValues("error").Inc()
		log.WithError(err).Error("Failed to parse catalog response")
		return nil, httperror.NewHTTPError(http.StatusBadGateway, "failed to parse catalog response")
	}

	if len(items.Items) == 0 {
		metrics.CatalogRequests.WithLabelValues("error").Inc()
		return nil, httperror.NewHTTPErrorf(http.StatusBadGateway, "catalog has no entry for id %d", bggID)
	}

	game := toCatalogGame(items.Items[0])
	metrics.CatalogRequests.WithLabelValues("miss").Inc()

	if c.cache != nil {
		c.cache.Set(ctx, game)
	}

	log.WithFields(map[string]any{
		"name":      game.Name,
		"relations": len(game.Relations),
	}).Debug("Fetched game from catalog")

	return game, nil
}

// FetchRelations fetches only the expansion links for a catalog id
func (c *Client) FetchRelations(ctx context.Context, bggID int64) ([]models.RelationEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "bgg.Client.FetchRelations")
	defer span.End()

	game, err := c.FetchGame(ctx, bggID)
	if err != nil {
		return nil, err
	}
	return game.Relations, nil
}

// toCatalogGame maps a thing item to the client's shape. Expansion links
// without the inbound flag list the item's own expansions; inbound links
// appear on an expansion's entry and point back at its base game.
func toCatalogGame(item thingItem) *CatalogGame {
	game := &CatalogGame{
		BGGID:        item.ID,
		ThumbnailURL: item.Thumbnail,
		ImageURL:     item.Image,
		Description:  item.Description,
		Relations:    []models.RelationEntry{},
	}

	for _, name := range item.Names {
		if name.Type == "primary" {
			game.Name = name.Value
			break
		}
	}
	if game.Name == "" && len(item.Names) > 0 {
		game.Name = item.Names[0].Value
	}

	if item.YearPublished != nil && item.YearPublished.Value != 0 {
		year := item.YearPublished.Value
		game.YearPublished = &year
	}

	for _, link := range item.Links {
		if link.Type != "boardgameexpansion" {
			continue
		}
		game.Relations = append(game.Relations, models.RelationEntry{
			ExpandsSubject: !link.Inbound,
			DisplayName:    link.Value,
			Other:          models.CatalogRef(link.ID),
		})
	}

	return game
}
