package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "covenants", []string{"id", "name"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"covenants"}, []string{"id", "name"}).WillReturnResult(3)

	rows := [][]any{{"c1", "Leverage"}, {"c2", "Liquidity"}, {"c3", "Capex"}}
	n, err := CopyFrom(context.Background(), mock, "covenants", []string{"id", "name"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"covenants"}, []string{"id"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "covenants", []string{"id"}, [][]any{{"c1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO covenants")
	assert.NoError(t, mock.ExpectationsWereMet())
}
