package clclubs

import (
	"path/filepath"
	"testing"

	"clubpulse/internal/models/clconfig"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfig(t *testing.T) *clconfig.Config {
	dir := t.TempDir()
	return &clconfig.Config{
		Production: true,
		Clubs: []clconfig.ClubConfig{
			{Id: 0, Name: "Default", Hostname: "localhost", Db: "sqlite", Path: filepath.Join(dir, "club0.db")},
			{Id: 7, Name: "Gold", Hostname: "gold.example.com", Db: "sqlite", Path: filepath.Join(dir, "club7.db")},
		},
	}
}

func TestInit(t *testing.T) {
	reg, err := Init(newConfig(t), "1.0.0")
	require.NoError(t, err)
	defer reg.Close()

	require.Len(t, reg.Clubs, 2)
	assert.Equal(t, "club-7", reg.Clubs[7].Store.Name())
	assert.True(t, reg.Clubs[7].Store.DB().Migrator().HasTable("analytics_events"))
	assert.True(t, reg.Clubs[7].Store.DB().Migrator().HasTable("analytics_sessions"))
	assert.True(t, reg.Clubs[7].Store.DB().Migrator().HasTable("notification_logs"))
}

func TestInitErrors(t *testing.T) {
	conf := newConfig(t)
	conf.Clubs[1].Id = 0
	_, err := Init(conf, "1.0.0")
	assert.ErrorContains(t, err, "unique")

	conf = newConfig(t)
	conf.Clubs[1].Db = "oracle"
	_, err = Init(conf, "1.0.0")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	reg, err := Init(newConfig(t), "1.0.0")
	require.NoError(t, err)
	defer reg.Close()

	assert.Equal(t, uint(7), reg.Resolve("7", "").Config.Id)
	assert.Equal(t, uint(7), reg.Resolve("", "Gold.Example.com").Config.Id)
	// en-tête prioritaire sur l'hôte
	assert.Equal(t, uint(0), reg.Resolve("0", "gold.example.com").Config.Id)
	// valeurs inconnues : repli sur le club 0
	assert.Equal(t, uint(0), reg.Resolve("99", "unknown.example.com").Config.Id)
	assert.Equal(t, uint(0), reg.Resolve("abc", "").Config.Id)

	empty := &Registry{Clubs: map[uint]*Club{}, Hosts: map[string]uint{}}
	assert.Nil(t, empty.Resolve("", ""))
}

func TestStoreName(t *testing.T) {
	assert.Equal(t, "club-0", StoreName(0))
	assert.Equal(t, "club-42", StoreName(42))
}
