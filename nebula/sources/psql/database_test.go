package psql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestOpen_MigratesSchema(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db, err := Open(context.Background(), gdb)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"users", "chats", "messages"} {
		require.True(t, db.DB.Migrator().HasTable(table), table)
	}
	require.True(t, db.DB.Migrator().HasIndex("messages", "idx_messages_chat_created"))
}
