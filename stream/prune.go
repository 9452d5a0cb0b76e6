// Package stream provides DynamoDB Streams handlers for versioned compositor
// tables.
package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/keyloom/keyloom/compositor"
)

// Handler prunes version history on versioned tables: when the version-0
// "latest" shadow item is removed, the versioned history items sharing its
// logical identity are deleted too.
type Handler struct {
	table  *compositor.Table
	logger zerolog.Logger
}

// NewHandler creates a stream handler for one compositor table.
func NewHandler(table *compositor.Table, logger zerolog.Logger) *Handler {
	return &Handler{
		table:  table,
		logger: logger,
	}
}

// HandlePruneHistory processes DynamoDB stream events, pruning history items
// for every removed latest shadow item. This function is designed to be used
// as an AWS Lambda handler.
func (h *Handler) HandlePruneHistory(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error().
				Str("event_id", record.EventID).
				Err(err).
				Msg("failed to process record")
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord handles a single stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != "REMOVE" {
		return nil
	}

	cfg := h.table.Config()
	if cfg.LatestVersionAttribute == "" {
		return nil
	}

	keys := streamImageValues(record.Change.Keys)
	if !h.table.IsMostRecentVersion(keys) {
		// A history item was removed, nothing cascades.
		return nil
	}

	fields, err := h.table.FieldValuesFromItemKeys(keys)
	if err != nil {
		return fmt.Errorf("decode removed keys: %w", err)
	}
	// Drop the version so the query matches the whole history, not just the
	// removed shadow item.
	delete(fields, cfg.VersioningAttribute)

	h.logger.Info().
		Str("table", cfg.TableName).
		Str("event_id", record.EventID).
		Msg("pruning version history")

	if _, err := h.table.Delete(ctx, fields); err != nil {
		if errors.Is(err, compositor.ErrNotFound) {
			// Already pruned, the handler is idempotent.
			return nil
		}
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

// streamImageValues converts a stream image to compositor field values.
func streamImageValues(image map[string]events.DynamoDBAttributeValue) compositor.FieldValues {
	out := make(compositor.FieldValues, len(image))
	for k, v := range image {
		switch v.DataType() {
		case events.DataTypeString:
			out[k] = v.String()
		case events.DataTypeNumber:
			out[k] = v.Number()
		case events.DataTypeBoolean:
			out[k] = v.Boolean()
		}
	}
	return out
}

// ConvertStreamKey converts a DynamoDB stream key to SDK attribute values.
// Use this when forwarding stream record keys to direct table operations.
func ConvertStreamKey(streamKey map[string]events.DynamoDBAttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue, len(streamKey))
	for k, v := range streamKey {
		switch v.DataType() {
		case events.DataTypeString:
			result[k] = &types.AttributeValueMemberS{Value: v.String()}
		case events.DataTypeNumber:
			result[k] = &types.AttributeValueMemberN{Value: v.Number()}
		case events.DataTypeBinary:
			result[k] = &types.AttributeValueMemberB{Value: v.Binary()}
		}
	}
	return result
}
