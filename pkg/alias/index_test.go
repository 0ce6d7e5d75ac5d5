package alias

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tracked(id, typ, name string, created int64, aliases ...string) Entity {
	return Entity{
		ID:                id,
		Type:              typ,
		Name:              name,
		Aliases:           aliases,
		CreatedAt:         created,
		IsTrackingEnabled: true,
	}
}

func TestBuildRegistersNamesAndAliases(t *testing.T) {
	ix := Build([]Entity{
		tracked("elena", "character", "Elena Blackwood", 1, "The Shadow Mage", "Lady Elena"),
		tracked("castle", "location", "Castle", 2),
	})

	require.Equal(t, 4, ix.Len())

	e, ok := ix.Lookup("the shadow mage")
	require.True(t, ok)
	assert.Equal(t, "elena", e.EntityID)
	assert.Equal(t, "character", e.EntityType)

	e, ok = ix.Lookup("  CASTLE ")
	require.True(t, ok)
	assert.Equal(t, "castle", e.EntityID)

	_, ok = ix.Lookup("Blackwood")
	assert.False(t, ok)
}

func TestTermsAreLongestFirst(t *testing.T) {
	ix := Build([]Entity{
		tracked("ann", "character", "Ann", 1),
		tracked("anna", "character", "Anna", 2),
		tracked("annabelle", "character", "Annabelle", 3),
		tracked("bo", "character", "Bo", 4),
	})

	assert.Equal(t, []string{"annabelle", "anna", "ann", "bo"}, ix.Terms())
}

func TestBuildSkipsArchivedAndUntracked(t *testing.T) {
	archived := tracked("old", "item", "Old Sword", 1)
	archived.IsArchived = true
	untracked := tracked("quiet", "lore", "Quiet Lore", 2)
	untracked.IsTrackingEnabled = false

	ix := Build([]Entity{archived, untracked, tracked("live", "item", "Live Sword", 3)})

	assert.Equal(t, 1, ix.Len())
	_, ok := ix.Lookup("old sword")
	assert.False(t, ok)
	_, ok = ix.Lookup("quiet lore")
	assert.False(t, ok)
	assert.Equal(t, []string{"live"}, ix.EntityIDs())
}

func TestCollisionEarliestCreatedWins(t *testing.T) {
	// Input order must not matter: the older entity keeps the shared alias.
	ix := Build([]Entity{
		tracked("newer", "character", "Marcus", 20, "The Captain"),
		tracked("older", "character", "Helena", 10, "the captain"),
	})

	e, ok := ix.Lookup("The Captain")
	require.True(t, ok)
	assert.Equal(t, "older", e.EntityID)

	require.Len(t, ix.Collisions(), 1)
	assert.Equal(t, Collision{Term: "the captain", KeptID: "older", DroppedID: "newer"}, ix.Collisions()[0])
}

func TestCollisionTieBrokenByID(t *testing.T) {
	ix := Build([]Entity{
		tracked("b", "character", "Twin", 5),
		tracked("a", "character", "Twin", 5),
	})
	e, _ := ix.Lookup("twin")
	assert.Equal(t, "a", e.EntityID)
}

func TestEmptyAndDuplicateTerms(t *testing.T) {
	ix := Build([]Entity{
		tracked("x", "lore", "Ember", 1, "", "   ", "EMBER", "Ember  Rite"),
	})

	assert.Equal(t, []string{"ember rite", "ember"}, ix.Terms())
	assert.Empty(t, ix.Collisions(), "self-duplicates are not collisions")
}

func TestNilIndexIsEmpty(t *testing.T) {
	var ix *Index
	assert.Equal(t, 0, ix.Len())
	assert.Nil(t, ix.Terms())
	_, ok := ix.Lookup("anything")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "élodie du pré", Normalize("  ÉLODIE   du\tPré "))
	assert.Equal(t, "", Normalize(" \n "))
}
