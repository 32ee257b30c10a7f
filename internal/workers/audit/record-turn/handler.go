// internal/workers/audit/record-turn/handler.go
package recordturn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/logger"
)

const (
	TaskType = config.StageRecordTurn
)

var (
	ErrDatabaseInsertFailed = errors.New("DATABASE_INSERT_FAILED")
	ErrInvalidTurn          = errors.New("INVALID_TURN")
)

const insertTurn = `
	INSERT INTO conversation_turns (
		id, mode, fallback, user_message, final_message, search_query, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Handler writes one row per completed turn to the audit table.
type Handler struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		db:     db,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if !input.Mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidTurn, input.Mode)
	}

	turnID := input.TurnID
	if turnID == "" {
		turnID = uuid.New().String()
	} else if _, err := uuid.Parse(turnID); err != nil {
		return nil, fmt.Errorf("%w: turn id %q is not a uuid", ErrInvalidTurn, turnID)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	createdAt := time.Now().UTC()
	query := sql.NullString{String: input.Query, Valid: input.Query != ""}

	_, err := h.db.ExecContext(ctx, insertTurn,
		turnID,
		string(input.Mode),
		input.Fallback,
		h.clip(input.UserMessage),
		h.clip(input.FinalMessage),
		query,
		createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: insert failed: %v", ErrDatabaseInsertFailed, err)
	}

	h.logger.Debug("turn recorded", map[string]interface{}{
		"turnId":   turnID,
		"mode":     input.Mode,
		"hasQuery": query.Valid,
	})

	return &Output{
		TurnID:    turnID,
		CreatedAt: createdAt.Format(time.RFC3339),
	}, nil
}

func (h *Handler) clip(s string) string {
	if h.config.MaxMessageChars > 0 && len(s) > h.config.MaxMessageChars {
		return s[:h.config.MaxMessageChars]
	}
	return s
}
