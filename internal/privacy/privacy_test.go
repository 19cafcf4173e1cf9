package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsheet/internal/query"
)

func TestSourceIDIsStablePerKindAndIdentity(t *testing.T) {
	a := query.Source{Kind: query.SourceCSV, Path: "/data/a.csv"}
	b := query.Source{Kind: query.SourceCSV, Path: "/data/a.csv"}
	c := query.Source{Kind: query.SourceCSV, Path: "/data/b.csv"}
	assert.Equal(t, SourceID(a), SourceID(b))
	assert.NotEqual(t, SourceID(a), SourceID(c))
}

func TestCheckCombineAllowsPublicWithAnything(t *testing.T) {
	levels := Levels{
		"table:Public":  LevelPublic,
		"table:Private": LevelPrivate,
	}
	pub := query.Source{Kind: query.SourceTable, TableName: "Public"}
	priv := query.Source{Kind: query.SourceTable, TableName: "Private"}
	assert.NoError(t, levels.CheckCombine(pub, priv))
}

func TestCheckCombineRejectsPrivateWithOrganizational(t *testing.T) {
	levels := Levels{
		"table:Private": LevelPrivate,
		"table:Org":     LevelOrganizational,
	}
	priv := query.Source{Kind: query.SourceTable, TableName: "Private"}
	org := query.Source{Kind: query.SourceTable, TableName: "Org"}
	err := levels.CheckCombine(priv, org)
	require.Error(t, err)
	var fwErr *FirewallError
	assert.ErrorAs(t, err, &fwErr)
}

func TestCheckCombineAllowsUnsetLevels(t *testing.T) {
	a := query.Source{Kind: query.SourceTable, TableName: "A"}
	b := query.Source{Kind: query.SourceTable, TableName: "B"}
	var levels Levels
	assert.NoError(t, levels.CheckCombine(a, b))
}

func TestSourcePrivacyLevelOverridesContextMap(t *testing.T) {
	levels := Levels{"table:Orders": LevelPublic}
	src := query.Source{Kind: query.SourceTable, TableName: "Orders", PrivacyLevel: "private"}
	assert.Equal(t, LevelPrivate, levels.LevelOf(src))
}

func TestCheckCombineAllowsMatchingPrivateSources(t *testing.T) {
	levels := Levels{
		"table:A": LevelPrivate,
		"table:B": LevelPrivate,
	}
	a := query.Source{Kind: query.SourceTable, TableName: "A"}
	b := query.Source{Kind: query.SourceTable, TableName: "B"}
	assert.NoError(t, levels.CheckCombine(a, b))
}
