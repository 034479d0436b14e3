package data

import (
	"log"

	"github.com/snowledge-labs/snowvote/src/shared/types"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func MustMySQL(dsn string) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	return db
}

// Migrate creates or updates the tables owned by this service.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Community{},
		&types.User{},
		&types.Member{},
		&types.GuildLink{},
		&types.Proposal{},
		&types.Vote{},
		&types.Setting{},
	)
}
