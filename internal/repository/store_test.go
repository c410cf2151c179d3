package repository

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoAITrader/tradegate/internal/model"
	"github.com/GoAITrader/tradegate/internal/pkg/apperrors"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestFileStoreSeedsDefaults(t *testing.T) {
	store, dir := newTestStore(t)

	profiles := store.List()
	require.Len(t, profiles, 3)
	assert.Equal(t, []string{"us", "cn", "crypto"}, []string{profiles[0].ID, profiles[1].ID, profiles[2].ID})

	for _, id := range model.MarketIDs() {
		_, err := os.Stat(filepath.Join(dir, id+"_market_config.json"))
		assert.NoError(t, err, "seeded document for %s should exist on disk", id)
	}
	_, err := os.Stat(filepath.Join(dir, activePointerFile))
	assert.NoError(t, err)

	ptr, ok := store.ActivePointer(model.DefaultGroup)
	require.True(t, ok)
	assert.Equal(t, "us", ptr.Market, "first market in listing order becomes active on first startup")
	assert.False(t, ptr.ActivatedAt.IsZero())
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, dir := newTestStore(t)

	profile, err := store.Load("cn")
	require.NoError(t, err)
	doc := profile.Document
	doc["notes"] = "round trip"

	require.NoError(t, store.Save("cn", doc))

	reloaded, err := store.Load("cn")
	require.NoError(t, err)
	assert.Equal(t, "round trip", reloaded.Document["notes"])

	// The written bytes must survive a full reopen.
	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	again, err := reopened.Load("cn")
	require.NoError(t, err)
	assert.Equal(t, "round trip", again.Document["notes"])
}

func TestFileStoreRejectsStructurallyInvalidDocument(t *testing.T) {
	store, _ := newTestStore(t)

	before, err := store.Load("us")
	require.NoError(t, err)

	err = store.Save("us", model.Document{})
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrInvalidDocument, appErr.Type)

	err = store.Save("us", model.Document{"data_sources": map[string]any{}})
	require.Error(t, err)
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrInvalidDocument, appErr.Type)

	after, err := store.Load("us")
	require.NoError(t, err)
	assert.Equal(t, before.Document, after.Document, "rejected save must leave the stored document untouched")
}

func TestFileStoreUpdateDocumentAbandonsOnError(t *testing.T) {
	store, _ := newTestStore(t)

	before, err := store.Load("crypto")
	require.NoError(t, err)

	boom := errors.New("mutate failed")
	err = store.UpdateDocument("crypto", func(doc model.Document) (model.Document, error) {
		doc["notes"] = "should not persist"
		return doc, boom
	})
	require.ErrorIs(t, err, boom)

	after, err := store.Load("crypto")
	require.NoError(t, err)
	assert.Equal(t, before.Document, after.Document)
}

func TestFileStoreLoadReturnsIsolatedSnapshot(t *testing.T) {
	store, _ := newTestStore(t)

	first, err := store.Load("us")
	require.NoError(t, err)
	first.Document["notes"] = "local scribble"

	second, err := store.Load("us")
	require.NoError(t, err)
	assert.NotContains(t, second.Document, "notes", "mutating a loaded document must not leak into the store")
}

func TestFileStoreSetActivePersistsAcrossReopen(t *testing.T) {
	store, dir := newTestStore(t)

	require.NoError(t, store.SetActive(model.DefaultGroup, "cn"))

	cn, err := store.Load("cn")
	require.NoError(t, err)
	assert.True(t, cn.IsActive)
	us, err := store.Load("us")
	require.NoError(t, err)
	assert.False(t, us.IsActive, "activating cn must deactivate us within the group")

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	ptr, ok := reopened.ActivePointer(model.DefaultGroup)
	require.True(t, ok)
	assert.Equal(t, "cn", ptr.Market)
}

func TestFileStoreSetActiveUnknownMarket(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.SetActive(model.DefaultGroup, "mars")
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrNotFound, appErr.Type)

	ptr, ok := store.ActivePointer(model.DefaultGroup)
	require.True(t, ok)
	assert.Equal(t, "us", ptr.Market, "failed activation must not move the pointer")
}

func TestFileStoreLoadUnknownMarket(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Load("mars")
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrNotFound, appErr.Type)
}

func TestFileStoreActivationGroups(t *testing.T) {
	store, _ := newTestStore(t)

	profile, err := store.Load("crypto")
	require.NoError(t, err)
	doc := profile.Document
	doc[model.FieldActivationGroup] = "paper"
	require.NoError(t, store.Save("crypto", doc))
	require.NoError(t, store.SetActive("paper", "crypto"))

	paper, ok := store.ActivePointer("paper")
	require.True(t, ok)
	assert.Equal(t, "crypto", paper.Market)

	def, ok := store.ActivePointer(model.DefaultGroup)
	require.True(t, ok)
	assert.Equal(t, "us", def.Market, "other groups keep their own pointer")

	assert.Equal(t, []string{"default", "paper"}, store.Groups())
}

func TestFileStoreConcurrentUpdatesSerialize(t *testing.T) {
	store, _ := newTestStore(t)

	const writers = 8
	const rounds = 10

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				err := store.UpdateDocument("us", func(doc model.Document) (model.Document, error) {
					n, _ := doc["counter"].(float64)
					doc["counter"] = n + 1
					return doc, nil
				})
				if err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	profile, err := store.Load("us")
	require.NoError(t, err)
	assert.Equal(t, float64(writers*rounds), profile.Document["counter"], "read-modify-write must not lose updates")
}

func TestFileStoreDocumentsAreHumanEditable(t *testing.T) {
	store, dir := newTestStore(t)
	_ = store

	raw, err := os.ReadFile(filepath.Join(dir, "us_market_config.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"", "documents are written indented for hand edits")
}
