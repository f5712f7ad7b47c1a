package database

import (
	"coder_assessment_backend/internal/assessment"
	"coder_assessment_backend/internal/config"
	"coder_assessment_backend/internal/model"
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.DBName,
		dbCfg.Charset,
		dbCfg.ParseTime,
	)

	logLevel := logger.Info
	if cfg.Server.Mode == "release" {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	// release 模式下默认跳过迁移，除非显式指定 -migrate
	if cfg.Server.Mode == "release" && !cfg.ForceMigrate {
		return db, nil
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Test{},
		&model.TestSection{},
		&model.MCQQuestion{},
		&model.CodingQuestion{},
		&model.TestSubmission{},
		&model.QuizResult{},
	)
	if err != nil {
		return err
	}

	log.Println("Database migration completed")

	// 题库为空时写入几道示例选择题，便于直接体验限时测验
	var count int64
	db.Model(&model.MCQQuestion{}).Count(&count)
	if count == 0 {
		samples := []assessment.MCQQuestion{
			{Prompt: "Which keyword declares a constant in Go?", Options: []string{"var", "const", "let", "static"}, Answer: assessment.IndexKey(1), Genre: "go"},
			{Prompt: "What does len(\"héllo\") return in Go?", Options: []string{"5", "6", "4", "an error"}, Answer: assessment.TextKey("6"), Genre: "go"},
			{Prompt: "Which data structure gives O(1) average lookup by key?", Options: []string{"Linked list", "Binary heap", "Hash map", "Sorted array"}, Answer: assessment.TextKey("C"), Genre: "algorithms"},
			{Prompt: "Binary search requires the input to be...", Options: []string{"sorted", "unique", "non-empty", "numeric"}, Answer: assessment.IndexKey(0), Genre: "algorithms"},
		}
		for _, q := range samples {
			row, err := model.NewMCQQuestion(q, 0)
			if err != nil {
				return err
			}
			if err := db.Create(row).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
