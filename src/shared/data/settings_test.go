package data

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/snowledge-labs/snowvote/src/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSettingsCache(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:settings_test?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	require.NoError(t, db.Create(&types.Setting{ID: 1, Name: "accept_threshold", Value: "3"}).Error)
	require.NoError(t, db.Create(&types.Setting{ID: 2, Name: "result_channel", Value: "results"}).Error)
	require.NoError(t, db.Create(&types.Setting{ID: 3, Name: "broken_number", Value: "three"}).Error)

	require.NoError(t, LoadSettings(db))

	assert.Equal(t, "results", GetSetting("result_channel"))
	assert.Equal(t, "", GetSetting("missing"))

	assert.Equal(t, 3, GetSettingInt("accept_threshold", 1))
	assert.Equal(t, 1, GetSettingInt("missing", 1))
	assert.Equal(t, 7, GetSettingInt("broken_number", 7))

	require.NoError(t, db.Model(&types.Setting{}).Where("id = ?", 1).Update("value", "5").Error)
	require.NoError(t, RefreshSettings(db))
	assert.Equal(t, 5, GetSettingInt("accept_threshold", 1))
}
