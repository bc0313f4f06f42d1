package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/npcintent/internal/game/npc"
)

type memStore struct {
	ids []string
	err error
}

func (m *memStore) Upsert(_ context.Context, def *npc.Definition) error {
	if m.err != nil {
		return m.err
	}
	m.ids = append(m.ids, def.ID)
	return nil
}

func mixedCatalog(t *testing.T) *npc.Catalog {
	t.Helper()
	c, err := npc.NewCatalog([]*npc.Definition{
		{ID: "npc_bob", DisplayName: "Bob", ShortDescription: "desc"},
		{ID: "npc_nameless"},
		{DisplayName: "Anon", ShortDescription: "desc"},
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestCheckDefinitions_InvalidIsNotFatal(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	invalid, err := checkDefinitions(mixedCatalog(t), zap.New(core), false)
	require.NoError(t, err)
	assert.Equal(t, 2, invalid)
	assert.Equal(t, 1, logs.FilterMessage("definitions failed validation").Len())
}

func TestCheckDefinitions_StrictRejects(t *testing.T) {
	invalid, err := checkDefinitions(mixedCatalog(t), zap.NewNop(), true)
	assert.Equal(t, 2, invalid)
	assert.ErrorIs(t, err, errValidation)
}

func TestImportDefinitions_StoresInvalidSkipsMissingID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	store := &memStore{}
	imported, skipped, err := importDefinitions(context.Background(), mixedCatalog(t), store, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, 1, skipped)
	assert.ElementsMatch(t, []string{"npc_bob", "npc_nameless"}, store.ids)
	assert.Equal(t, 1, logs.FilterMessage("skipping definition without id").Len())
}

func TestImportDefinitions_StoreError(t *testing.T) {
	boom := errors.New("connection reset")
	_, _, err := importDefinitions(context.Background(), mixedCatalog(t), &memStore{err: boom}, zap.NewNop())
	assert.ErrorIs(t, err, boom)
}
