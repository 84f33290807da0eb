// Package events handles event emission for game and link lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/meeplestash/pkg/kafka"
	"github.com/Ramsey-B/meeplestash/pkg/models"
	"github.com/Ramsey-B/meeplestash/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes collection lifecycle events. A nil producer disables
// emission, which is how tests and events-off deployments run.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitGameImported emits a game.imported event
func (e *Emitter) EmitGameImported(ctx context.Context, game *models.Game) error {
	if e == nil || e.producer == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitGameImported")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"name":           game.Name,
		"year_published": game.YearPublished,
	})

	event := &kafka.GameEvent{
		EventType:   "game.imported",
		HouseholdID: game.HouseholdID,
		GameID:      game.ID,
		BGGID:       game.BGGID,
		Data:        data,
	}

	if err := e.producer.PublishGameEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit game.imported event")
		return err
	}

	return nil
}

// EmitLinkCreated emits a link.created event
func (e *Emitter) EmitLinkCreated(ctx context.Context, link *models.ExpansionLink) error {
	if e == nil || e.producer == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitLinkCreated")
	defer span.End()

	event := &kafka.LinkEvent{
		EventType:       "link.created",
		HouseholdID:     link.HouseholdID,
		LinkID:          link.ID,
		BaseGameID:      link.BaseGameID,
		BaseBGGID:       link.BaseBGGID,
		ExpansionGameID: link.ExpansionGameID,
		ExpansionBGGID:  link.ExpansionBGGID,
		DisplayName:     link.DisplayName,
	}

	if err := e.producer.PublishLinkEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit link.created event")
		return err
	}

	return nil
}

// EmitLinkCompleted emits a link.completed event after a pending side resolves
func (e *Emitter) EmitLinkCompleted(ctx context.Context, link *models.ExpansionLink) error {
	if e == nil || e.producer == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitLinkCompleted")
	defer span.End()

	event := &kafka.LinkEvent{
		EventType:       "link.completed",
		HouseholdID:     link.HouseholdID,
		LinkID:          link.ID,
		BaseGameID:      link.BaseGameID,
		BaseBGGID:       link.BaseBGGID,
		ExpansionGameID: link.ExpansionGameID,
		ExpansionBGGID:  link.ExpansionBGGID,
		DisplayName:     link.DisplayName,
	}

	if err := e.producer.PublishLinkEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit link.completed event")
		return err
	}

	return nil
}
