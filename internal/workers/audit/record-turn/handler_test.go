// internal/workers/audit/record-turn/handler_test.go
package recordturn

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/models"
)

func createTestInput() *Input {
	return &Input{
		Mode:         models.ModeProductSearch,
		UserMessage:  "I need a stim-free preworkout",
		FinalMessage: "Here are a few options.\n",
		Query:        "stim-free preworkout, citrulline",
	}
}

func TestHandler_Execute_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO conversation_turns`).
		WithArgs(
			sqlmock.AnyArg(), // id
			"product-search",
			false,
			"I need a stim-free preworkout",
			"Here are a few options.\n",
			sql.NullString{String: "stim-free preworkout, citrulline", Valid: true},
			sqlmock.AnyArg(), // created_at
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	handler := NewHandler(LoadConfig(), db, logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)

	_, err = uuid.Parse(output.TurnID)
	assert.NoError(t, err)
	_, err = time.Parse(time.RFC3339, output.CreatedAt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_NoQueryIsNull(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	turnID := uuid.New().String()
	mock.ExpectExec(`INSERT INTO conversation_turns`).
		WithArgs(turnID, "off-topic", true, "hi", "Hello!", sql.NullString{}, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	handler := NewHandler(LoadConfig(), db, logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), &Input{
		TurnID:       turnID,
		Mode:         models.ModeOffTopic,
		Fallback:     true,
		UserMessage:  "hi",
		FinalMessage: "Hello!",
	})
	require.NoError(t, err)
	assert.Equal(t, turnID, output.TurnID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_ClipsLongMessages(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO conversation_turns`).
		WithArgs(sqlmock.AnyArg(), "educational", false, "aaaaa", "bbbbb", sql.NullString{}, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	cfg := LoadConfig()
	cfg.MaxMessageChars = 5
	handler := NewHandler(cfg, db, logger.NewTestLogger(t))
	_, err = handler.Execute(context.Background(), &Input{
		Mode:         models.ModeEducational,
		UserMessage:  strings.Repeat("a", 50),
		FinalMessage: strings.Repeat("b", 50),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_InsertFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO conversation_turns`).
		WillReturnError(errors.New("connection refused"))

	handler := NewHandler(LoadConfig(), db, logger.NewTestLogger(t))
	_, err = handler.Execute(context.Background(), createTestInput())
	assert.ErrorIs(t, err, ErrDatabaseInsertFailed)
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	handler := NewHandler(LoadConfig(), db, logger.NewTestLogger(t))

	_, err = handler.Execute(context.Background(), &Input{Mode: "smalltalk"})
	assert.ErrorIs(t, err, ErrInvalidTurn)

	_, err = handler.Execute(context.Background(), &Input{Mode: models.ModeGreeting, TurnID: "turn-1"})
	assert.ErrorIs(t, err, ErrInvalidTurn)
}
