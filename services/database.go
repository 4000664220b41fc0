package services

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"crowdnav-backend/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var db *gorm.DB

// InitDatabase - connect to MySQL via environment variables
func InitDatabase() error {
	host := os.Getenv("MYSQL_HOST")
	portStr := os.Getenv("MYSQL_PORT")
	user := os.Getenv("MYSQL_USER")
	password := os.Getenv("MYSQL_PASSWORD")
	dbname := os.Getenv("MYSQL_DATABASE")

	if host == "" || user == "" || password == "" || dbname == "" {
		return fmt.Errorf("MySQL environment is incomplete: MYSQL_HOST, MYSQL_USER, MYSQL_PASSWORD, MYSQL_DATABASE are required")
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port == 0 {
		port = 3306
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)

	var errDB error
	db, errDB = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if errDB != nil {
		return fmt.Errorf("database connection failed: %v", errDB)
	}

	errMigrate := db.AutoMigrate(
		&models.PlanEvent{},
	)
	if errMigrate != nil {
		return fmt.Errorf("migration failed: %v", errMigrate)
	}

	log.Println("✅ MySQL connected and migrated")
	log.Printf("📡 connection: %s@%s:%d/%s", user, host, port, dbname)
	return nil
}

// GetDB - GORM instance
func GetDB() *gorm.DB {
	return db
}
