package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/SoundScope/pkg/models"
	"github.com/himanishpuri/SoundScope/pkg/utils"
)

const DefaultDBFile = "soundscope.sqlite3"
const errDBClientNil = "db client is nil"

// ErrNotFound is returned when no reference has the requested id.
var ErrNotFound = errors.New("reference not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Reference is one stored analysis. The measurements are kept as a JSON
// column so the band table can grow without a migration.
type Reference struct {
	ID        string               `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string               `gorm:"index:idx_reference_name" json:"name"`
	Analysis  models.TrackAnalysis `gorm:"serializer:json" json:"analysis"`
	CreatedAt time.Time            `gorm:"index:idx_reference_created" json:"created_at"`
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("SOUNDSCOPE_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// sqlite serialises writers; one connection avoids SQLITE_BUSY under
	// concurrent saves.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Reference{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// SaveReference stores analysis under a fresh id. An empty name falls back
// to the analysed file's name.
func (c *DBClient) SaveReference(name string, analysis models.TrackAnalysis) (*Reference, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = analysis.Track.Name
	}
	if name == "" {
		name = filepath.Base(analysis.Track.Path)
	}

	ref := Reference{
		ID:        utils.GenerateUUID(),
		Name:      name,
		Analysis:  analysis,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.DB.Create(&ref).Error; err != nil {
		return nil, fmt.Errorf("creating reference: %w", err)
	}
	return &ref, nil
}

func (c *DBClient) GetReference(id string) (*Reference, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	if !utils.IsUUID(id) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	var ref Reference
	err := c.DB.Where("id = ?", id).First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying reference: %w", err)
	}
	return &ref, nil
}

// ListReferences returns every stored reference, newest first.
func (c *DBClient) ListReferences() ([]Reference, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var refs []Reference
	if err := c.DB.Order("created_at DESC").Order("id").Find(&refs).Error; err != nil {
		return nil, fmt.Errorf("listing references: %w", err)
	}
	return refs, nil
}

func (c *DBClient) DeleteReference(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	res := c.DB.Where("id = ?", id).Delete(&Reference{})
	if res.Error != nil {
		return fmt.Errorf("deleting reference: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// CountReferences is used by health checks.
func (c *DBClient) CountReferences() (int64, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var n int64
	if err := c.DB.Model(&Reference{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting references: %w", err)
	}
	return n, nil
}
