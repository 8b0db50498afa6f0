package outbox

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/speedwagon-io/threshold-console/internal/lib/logger/sl"
	"github.com/speedwagon-io/threshold-console/internal/model"
	"github.com/speedwagon-io/threshold-console/internal/threshold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOutbox(t *testing.T) *SQLiteOutbox {
	t.Helper()
	o, err := NewSQLiteOutbox(sl.Discard(), filepath.Join(t.TempDir(), "nested", "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })
	return o
}

func TestSQLiteOutbox_StoreAndGetPendingInOrder(t *testing.T) {
	ctx := context.Background()
	o := newTestOutbox(t)

	create := model.NewMutation(model.OpCreate, 0, threshold.Record{
		PressureMax: threshold.Dec(120.5),
		PipelineID:  threshold.ID(7),
		Active:      threshold.Bool(true),
	})
	update := model.NewMutation(model.OpUpdate, 4, threshold.Record{AlertTolerance: threshold.Dec(10)})
	del := model.NewMutation(model.OpDelete, 9, threshold.Record{})
	update.CreatedAt = create.CreatedAt
	del.CreatedAt = create.CreatedAt

	for _, m := range []*model.Mutation{create, update, del} {
		require.NoError(t, o.Store(ctx, m))
	}

	count, err := o.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	pending, err := o.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	assert.Equal(t, create.ID, pending[0].ID)
	assert.Equal(t, model.OpCreate, pending[0].Op)
	assert.Equal(t, "120.5", pending[0].Payload.PressureMax.String())
	assert.Equal(t, int64(7), *pending[0].Payload.PipelineID)
	assert.True(t, create.CreatedAt.Equal(pending[0].CreatedAt))

	assert.Equal(t, update.ID, pending[1].ID)
	assert.Equal(t, int64(4), pending[1].ThresholdID)
	assert.Equal(t, del.ID, pending[2].ID)
	assert.Equal(t, model.OpDelete, pending[2].Op)

	limited, err := o.GetPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteOutbox_MarkSent(t *testing.T) {
	ctx := context.Background()
	o := newTestOutbox(t)

	a := model.NewMutation(model.OpCreate, 0, threshold.Record{})
	b := model.NewMutation(model.OpCreate, 0, threshold.Record{})
	require.NoError(t, o.Store(ctx, a))
	require.NoError(t, o.Store(ctx, b))

	require.NoError(t, o.MarkSent(ctx, nil))
	require.NoError(t, o.MarkSent(ctx, []string{a.ID}))

	pending, err := o.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)
}

func TestSQLiteOutbox_Cleanup(t *testing.T) {
	ctx := context.Background()
	o := newTestOutbox(t)

	old := model.NewMutation(model.OpCreate, 0, threshold.Record{})
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	fresh := model.NewMutation(model.OpCreate, 0, threshold.Record{})
	require.NoError(t, o.Store(ctx, old))
	require.NoError(t, o.Store(ctx, fresh))

	require.NoError(t, o.Cleanup(ctx, 24*time.Hour))

	pending, err := o.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, fresh.ID, pending[0].ID)
}

func TestSQLiteOutbox_DuplicateIDRejected(t *testing.T) {
	ctx := context.Background()
	o := newTestOutbox(t)

	m := model.NewMutation(model.OpCreate, 0, threshold.Record{})
	require.NoError(t, o.Store(ctx, m))
	assert.Error(t, o.Store(ctx, m))
}

func TestSQLiteOutbox_CountError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(errors.New("database is locked"))

	o := NewWithDB(sl.Discard(), db)
	_, err = o.Count(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteOutbox_MarkSentRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`DELETE FROM outbox`)
	prep.ExpectExec().WithArgs("a").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("b").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	o := NewWithDB(sl.Discard(), db)
	err = o.MarkSent(context.Background(), []string{"a", "b"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete mutation b")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteOutbox_UndecodableRowIsMovedAside(t *testing.T) {
	ctx := context.Background()
	o := newTestOutbox(t)

	first := model.NewMutation(model.OpCreate, 0, threshold.Record{})
	require.NoError(t, o.Store(ctx, first))

	_, err := o.db.ExecContext(ctx, `
		INSERT INTO outbox (id, op, threshold_id, payload_json, created_at, seq)
		VALUES ('broken', 'update', 4, '{"pressureMax":', ?, (SELECT MAX(seq) + 1 FROM outbox))
	`, time.Now().UTC().Format(timeLayout))
	require.NoError(t, err)

	last := model.NewMutation(model.OpDelete, 4, threshold.Record{})
	require.NoError(t, o.Store(ctx, last))

	pending, err := o.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)

	dead, err := o.DeadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)

	require.NoError(t, o.MarkSent(ctx, []string{first.ID}))

	pending, err = o.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, last.ID, pending[0].ID)
}

func TestSQLiteOutbox_GetPendingScanError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "op", "threshold_id", "payload_json", "created_at"}).
		AddRow("a", "update", "not-a-number", "{}", "2026-01-01T00:00:00.000000000Z")
	mock.ExpectQuery(`SELECT id, op, threshold_id`).WithArgs(10).WillReturnRows(rows)

	o := NewWithDB(sl.Discard(), db)
	pending, err := o.GetPending(context.Background(), 10)

	require.Error(t, err)
	assert.Nil(t, pending)
	assert.Contains(t, err.Error(), "failed to scan pending mutation")
	assert.NoError(t, mock.ExpectationsWereMet())
}
