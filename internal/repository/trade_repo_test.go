package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"nexatrade/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTransitionToClosed(t *testing.T) {
	closeSQL := regexp.QuoteMeta(`UPDATE "trades" SET "closed_at"=$1,"current_profit"=$2,"status"=$3,"updated_at"=$4 WHERE id = $5 AND status = $6`)
	closedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	profit := decimal.NewFromInt(40)

	t.Run("closes an open trade", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTradeRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(closeSQL).
			WithArgs(closedAt, profit, string(model.TradeStatusClosed), sqlmock.AnyArg(), uint(3), string(model.TradeStatusOpen)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		ok, err := repo.TransitionToClosed(context.Background(), 3, profit, closedAt)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports false once the trade left the open state", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTradeRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(closeSQL).
			WithArgs(closedAt, profit, string(model.TradeStatusClosed), sqlmock.AnyArg(), uint(3), string(model.TradeStatusOpen)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		ok, err := repo.TransitionToClosed(context.Background(), 3, profit, closedAt)
		require.NoError(t, err)
		require.False(t, ok)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
