package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the postgres-backed store.
type DB struct {
	db *gorm.DB
}

func Open(dsn string) (*DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&Race{}, &Sentence{}, &Result{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{db: db}, nil
}

// SeedSentences inserts the stock pool when the sentences table is
// empty. Safe to call on every boot.
func (d *DB) SeedSentences(ctx context.Context) error {
	var count int64
	if err := d.db.WithContext(ctx).Model(&Sentence{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	rows := make([]Sentence, len(seedSentences))
	copy(rows, seedSentences)
	return d.db.WithContext(ctx).Create(&rows).Error
}

func (d *DB) SaveRaceMetadata(ctx context.Context, race Race) error {
	return d.db.WithContext(ctx).Save(&race).Error
}

func (d *DB) LoadRaceMetadata(ctx context.Context, raceID string) (Race, error) {
	var race Race
	err := d.db.WithContext(ctx).First(&race, "race_id = ?", raceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Race{}, ErrNotFound
	}
	return race, err
}

// RandomSentence picks one sentence at random, preferring the requested
// difficulty but falling back to the whole pool when nothing matches.
// The winner's usage counter is bumped.
func (d *DB) RandomSentence(ctx context.Context, difficulty string) (Sentence, error) {
	var s Sentence
	q := d.db.WithContext(ctx).Order("RANDOM()")
	if difficulty != "" {
		q = q.Where("difficulty = ?", difficulty)
	}
	err := q.Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && difficulty != "" {
		err = d.db.WithContext(ctx).Order("RANDOM()").Take(&s).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Sentence{}, ErrNoSentences
	}
	if err != nil {
		return Sentence{}, err
	}
	err = d.db.WithContext(ctx).Model(&Sentence{}).
		Where("sentence_id = ?", s.SentenceID).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error
	return s, err
}

func (d *DB) SaveFinalResults(ctx context.Context, raceID string, results []Result) error {
	if len(results) == 0 {
		return nil
	}
	for i := range results {
		results[i].RaceID = raceID
	}
	return d.db.WithContext(ctx).Create(&results).Error
}

func (d *DB) LoadFinalResults(ctx context.Context, raceID string) ([]Result, error) {
	var results []Result
	err := d.db.WithContext(ctx).
		Where("race_id = ?", raceID).
		Order("rank ASC").
		Find(&results).Error
	return results, err
}
