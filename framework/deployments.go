package framework

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Deployment records where a contract was deployed.
type Deployment struct {
	gorm.Model
	Name        string    `gorm:"column:contract_name;not null;index;size:255"`
	ChainID     uint64    `gorm:"column:chain_id;not null;index"`
	Address     string    `gorm:"column:address;not null;size:42"`
	TxHash      string    `gorm:"column:tx_hash;not null;unique;size:66"`
	BlockNumber uint64    `gorm:"column:block_number;not null"`
	Deployer    string    `gorm:"column:deployer;not null;size:42"`
	DeployedAt  time.Time `gorm:"column:deployed_at;not null"`
}

func (Deployment) TableName() string {
	return "deployments"
}

// Deployments is a sqlite backed store of Deployment records.
type Deployments struct {
	db *gorm.DB
}

func OpenDeployments(path string) (*Deployments, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create deployments directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open deployments db %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Deployment{}); err != nil {
		return nil, fmt.Errorf("failed to migrate deployments db: %w", err)
	}
	return &Deployments{db: db}, nil
}

func (d *Deployments) Record(ctx context.Context, dep *Deployment) error {
	if err := d.db.WithContext(ctx).Create(dep).Error; err != nil {
		return fmt.Errorf("failed to record deployment of %s: %w", dep.Name, err)
	}
	return nil
}

// Latest returns the most recent deployment of the named contract on a chain.
func (d *Deployments) Latest(ctx context.Context, chainID uint64, name string) (*Deployment, error) {
	var dep Deployment
	err := d.db.WithContext(ctx).
		Where("chain_id = ? AND contract_name = ?", chainID, name).
		Order("id desc").
		First(&dep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s on chain %d", ErrNoDeployment, name, chainID)
	}
	if err != nil {
		return nil, err
	}
	return &dep, nil
}

// List returns all deployments on a chain, oldest first.
func (d *Deployments) List(ctx context.Context, chainID uint64) ([]Deployment, error) {
	var deps []Deployment
	err := d.db.WithContext(ctx).
		Where("chain_id = ?", chainID).
		Order("id asc").
		Find(&deps).Error
	if err != nil {
		return nil, err
	}
	return deps, nil
}

func (d *Deployments) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
