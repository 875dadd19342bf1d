package metastore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/scanform-backend/pkg/db/models"
)

func setupMetaTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedMeta(t *testing.T, db *gorm.DB, orderID int64, key, value string) {
	t.Helper()
	require.NoError(t, db.Create(&models.OrderMeta{OrderID: orderID, MetaKey: key, MetaValue: value}).Error)
}

func TestBulkGetReturnsOnlyRequestedOrders(t *testing.T) {
	db := setupMetaTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedMeta(t, db, 1, KeyLabels, `[{"label_id":1}]`)
	seedMeta(t, db, 2, KeyLabels, `[{"label_id":2}]`)
	seedMeta(t, db, 3, KeyLabels, `[{"label_id":3}]`)
	seedMeta(t, db, 2, KeyOrigins, `{}`)

	got, err := repo.BulkGet(ctx, []int64{1, 2, 2, 9}, KeyLabels)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{
		1: `[{"label_id":1}]`,
		2: `[{"label_id":2}]`,
	}, got)
}

func TestBulkGetEmptyIDsSkipsQuery(t *testing.T) {
	db := setupMetaTestDB(t)
	var queries int
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("count_queries", func(*gorm.DB) {
		queries++
	}))

	got, err := NewRepository(db).BulkGet(context.Background(), nil, KeyLabels)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, queries)
}

func TestBulkGetIssuesSingleQuery(t *testing.T) {
	db := setupMetaTestDB(t)
	for id := int64(1); id <= 25; id++ {
		seedMeta(t, db, id, KeyScanForms, `[]`)
	}
	var queries int
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("count_queries", func(*gorm.DB) {
		queries++
	}))

	ids := make([]int64, 0, 25)
	for id := int64(1); id <= 25; id++ {
		ids = append(ids, id)
	}
	got, err := NewRepository(db).BulkGet(context.Background(), ids, KeyScanForms)
	require.NoError(t, err)
	assert.Len(t, got, 25)
	assert.Equal(t, 1, queries)
}

func TestScanKeyOrdersNewestFirst(t *testing.T) {
	db := setupMetaTestDB(t)
	seedMeta(t, db, 4, KeyScanForms, `[]`)
	seedMeta(t, db, 9, KeyScanForms, `[]`)
	seedMeta(t, db, 6, KeyScanForms, `[]`)
	seedMeta(t, db, 5, KeyLabels, `[]`)

	rows, err := NewRepository(db).ScanKey(context.Background(), KeyScanForms)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []int64{9, 6, 4}, []int64{rows[0].OrderID, rows[1].OrderID, rows[2].OrderID})
}

func TestScanJoinedRequiresBothKeys(t *testing.T) {
	db := setupMetaTestDB(t)
	seedMeta(t, db, 3, KeyShipmentDates, `{"shipment_0":{"shipping_date":"2024-01-01"}}`)
	seedMeta(t, db, 3, KeyLabels, `[{"label_id":30}]`)
	seedMeta(t, db, 1, KeyShipmentDates, `{"shipment_0":{"shipping_date":"2024-01-02"}}`)
	seedMeta(t, db, 1, KeyLabels, `[{"label_id":10}]`)
	seedMeta(t, db, 2, KeyShipmentDates, `{}`)
	seedMeta(t, db, 4, KeyLabels, `[]`)

	rows, err := NewRepository(db).ScanJoined(context.Background(), KeyShipmentDates, KeyLabels)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].OrderID)
	assert.Equal(t, `[{"label_id":10}]`, rows[0].JoinedValue)
	assert.Equal(t, int64(3), rows[1].OrderID)
	assert.Contains(t, rows[1].Value, "2024-01-01")
}

func TestPutUpserts(t *testing.T) {
	db := setupMetaTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, 7, KeyScanForms, []map[string]any{{"batch_id": "a"}}))
	require.NoError(t, repo.Put(ctx, 7, KeyScanForms, []map[string]any{{"batch_id": "b"}}))

	var count int64
	require.NoError(t, db.Model(&models.OrderMeta{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	got, err := repo.BulkGet(ctx, []int64{7}, KeyScanForms)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"batch_id":"b"}]`, got[7])
}

func TestMutateReadsCurrentValueAndRollsBackOnError(t *testing.T) {
	db := setupMetaTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Mutate(ctx, 5, KeyScanForms, func(current string, found bool) (string, error) {
		assert.False(t, found)
		return `["first"]`, nil
	}))

	require.NoError(t, repo.Mutate(ctx, 5, KeyScanForms, func(current string, found bool) (string, error) {
		assert.True(t, found)
		assert.Equal(t, `["first"]`, current)
		return `["first","second"]`, nil
	}))

	boom := errors.New("boom")
	err := repo.Mutate(ctx, 5, KeyScanForms, func(string, bool) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.BulkGet(ctx, []int64{5}, KeyScanForms)
	require.NoError(t, err)
	assert.Equal(t, `["first","second"]`, got[5])
}

func TestDecode(t *testing.T) {
	v, ok := Decode[map[string]int](`{"a":1}`)
	assert.True(t, ok)
	assert.Equal(t, 1, v["a"])

	_, ok = Decode[map[string]int](``)
	assert.False(t, ok)
	_, ok = Decode[map[string]int](`[1,2]`)
	assert.False(t, ok)
}
