package templates

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"railcat/internal/model"
	"railcat/internal/store"
)

func newLocalCatalog(t *testing.T) (*Catalog, *Local) {
	t.Helper()
	db, err := store.New(filepath.Join(t.TempDir(), "templates.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	local := NewLocal(db)
	cat := NewCatalog(local, zaptest.NewLogger(t))
	cat.SetClock(func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local) })
	return cat, local
}

func brandConfig() model.ImportConfig {
	return model.ImportConfig{
		SheetMappings:  []model.SheetMapping{{SheetName: "品牌", TableName: "brand"}},
		ColumnMappings: map[string]*model.ColumnMapping{"brand": model.NewColumnMapping(false)},
	}
}

type failingStore struct{ Store }

func (failingStore) List(context.Context) ([]model.Template, error) {
	return nil, errors.New("connection refused")
}

func TestCatalogRefreshSetsSkip(t *testing.T) {
	ctx := context.Background()
	cat, local := newLocalCatalog(t)

	require.NoError(t, cat.Refresh(ctx))
	assert.True(t, cat.Skip(), "empty list skips the template step")

	_, err := local.Create(ctx, "模板A", brandConfig())
	require.NoError(t, err)
	require.NoError(t, cat.Refresh(ctx))
	assert.False(t, cat.Skip())
	assert.Len(t, cat.Templates(), 1)

	failing := NewCatalog(failingStore{}, zaptest.NewLogger(t))
	assert.Error(t, failing.Refresh(ctx))
	assert.True(t, failing.Skip(), "load failure skips the template step")
	assert.Empty(t, failing.Templates())
}

func TestCatalogSelect(t *testing.T) {
	ctx := context.Background()
	cat, local := newLocalCatalog(t)
	created, err := local.Create(ctx, "模板A", brandConfig())
	require.NoError(t, err)
	require.NoError(t, cat.Refresh(ctx))

	tpl, err := cat.Select(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "模板A", tpl.Name)
	assert.Equal(t, created.ID, cat.Selected().ID)

	_, err = cat.Select(999)
	assert.ErrorIs(t, err, ErrNotFound)

	tpl, err = cat.Select(0)
	require.NoError(t, err)
	assert.Nil(t, tpl)
	assert.Nil(t, cat.Selected())
}

func TestCatalogCopyRenameDelete(t *testing.T) {
	ctx := context.Background()
	cat, local := newLocalCatalog(t)
	created, err := local.Create(ctx, "模板A", brandConfig())
	require.NoError(t, err)
	require.NoError(t, cat.Refresh(ctx))

	copied, err := cat.Copy(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "模板A_副本_20240506_070809", copied.Name)
	assert.Len(t, cat.Templates(), 2)

	// 名称未变化不报错
	require.NoError(t, cat.Rename(ctx, created.ID, "  模板A "))
	assert.ErrorIs(t, cat.Rename(ctx, created.ID, "   "), ErrNameRequired)
	require.NoError(t, cat.Rename(ctx, created.ID, " 模板B "))
	names := []string{}
	for _, tpl := range cat.Templates() {
		names = append(names, tpl.Name)
	}
	assert.Contains(t, names, "模板B")

	_, err = cat.Select(created.ID)
	require.NoError(t, err)
	require.NoError(t, cat.Delete(ctx, created.ID))
	assert.Nil(t, cat.Selected(), "deleting the selected template clears the selection")
	assert.False(t, cat.Skip())

	require.NoError(t, cat.Delete(ctx, copied.ID))
	assert.True(t, cat.Skip(), "deleting the last template skips the step")
	assert.ErrorIs(t, cat.Delete(ctx, copied.ID), ErrNotFound)
}

func TestCatalogSave(t *testing.T) {
	ctx := context.Background()
	cat, local := newLocalCatalog(t)

	_, err := cat.SaveNew(ctx, "", brandConfig())
	assert.ErrorIs(t, err, ErrNameRequired)
	_, err = cat.SaveNew(ctx, "空模板", model.ImportConfig{})
	assert.ErrorIs(t, err, ErrConfigRequired)

	saved, err := cat.SaveNew(ctx, "新模板", brandConfig())
	require.NoError(t, err)

	cfg := brandConfig()
	cfg.SheetMappings = append(cfg.SheetMappings, model.SheetMapping{SheetName: "机车", TableName: "locomotive"})
	require.NoError(t, cat.SaveConfig(ctx, saved.ID, cfg))

	list, err := local.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"brand", "locomotive"}, list[0].Config.MappedTables())
}
