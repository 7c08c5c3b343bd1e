package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/domain"
)

type domainRow struct {
	ID        uint       `gorm:"primaryKey"`
	Domain    string     `gorm:"size:253;not null;uniqueIndex"`
	Count     int        `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Queries   []queryRow `gorm:"foreignKey:DomainID;constraint:OnDelete:CASCADE"`
}

func (domainRow) TableName() string { return "domain_records" }

// queryRow keeps append order in Seq; SeenAt alone cannot, because sightings
// arrive out of time order.
type queryRow struct {
	ID       uint      `gorm:"primaryKey"`
	DomainID uint      `gorm:"not null;uniqueIndex:idx_domain_query_seq"`
	Seq      int       `gorm:"not null;uniqueIndex:idx_domain_query_seq"`
	IP       string    `gorm:"size:64"`
	SeenAt   time.Time `gorm:"not null"`
}

func (queryRow) TableName() string { return "domain_queries" }

// PostgresSettings locates the postgres history database.
type PostgresSettings struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"username"`
	Password string `yaml:"password"`
}

func (p PostgresSettings) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.Name,
	)
}

type SQLConfig struct {
	ExistingDB  *gorm.DB
	Dialector   gorm.Dialector
	AutoMigrate bool
}

type SQLOption func(*SQLConfig)

func WithExistingDB(db *gorm.DB) SQLOption {
	return func(cfg *SQLConfig) {
		cfg.ExistingDB = db
	}
}

func WithDialector(d gorm.Dialector) SQLOption {
	return func(cfg *SQLConfig) {
		cfg.Dialector = d
	}
}

func WithPostgres(settings PostgresSettings) SQLOption {
	return WithDialector(postgres.Open(settings.DSN()))
}

func WithAutoMigrate(enabled bool) SQLOption {
	return func(cfg *SQLConfig) {
		cfg.AutoMigrate = enabled
	}
}

// SQLStore keeps domain history in two tables, domain_records and
// domain_queries. Appends run in a transaction that locks the domain row, so
// concurrent writers cannot lose sightings.
type SQLStore struct {
	db *gorm.DB
}

func OpenSQLStore(opts ...SQLOption) (*SQLStore, error) {
	cfg := SQLConfig{
		AutoMigrate: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var db *gorm.DB
	switch {
	case cfg.ExistingDB != nil:
		db = cfg.ExistingDB
	case cfg.Dialector != nil:
		opened, err := gorm.Open(cfg.Dialector, &gorm.Config{Logger: silentLogger()})
		if err != nil {
			return nil, fmt.Errorf("history: open connection: %w", err)
		}
		db = opened
	default:
		return nil, errors.New("history: no dialector or existing connection provided")
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(&domainRow{}, &queryRow{}); err != nil {
			return nil, fmt.Errorf("history: auto migrate: %w", err)
		}
		log.Debug("History schema migrated")
	}

	return &SQLStore{db: db}, nil
}

func silentLogger() logger.Interface {
	return logger.New(
		log.Default(),
		logger.Config{LogLevel: logger.Silent},
	)
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) Lookup(ctx context.Context, name string) (domain.DomainRecord, bool, error) {
	var row domainRow
	err := s.db.WithContext(ctx).
		Preload("Queries", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Where("domain = ?", name).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.DomainRecord{}, false, nil
	}
	if err != nil {
		return domain.DomainRecord{}, false, fmt.Errorf("history: lookup %q: %w", name, err)
	}

	rec := row.record()
	if err := checkRecord(rec); err != nil {
		return domain.DomainRecord{}, false, err
	}
	return rec, true, nil
}

func (s *SQLStore) Append(ctx context.Context, name string, q domain.Query) (domain.DomainRecord, error) {
	if name == "" {
		return domain.DomainRecord{}, errors.New("history: domain name is required")
	}

	var out domain.DomainRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row domainRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("domain = ?", name).
			Take(&row).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = domainRow{Domain: name, Count: 1}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("history: create %q: %w", name, err)
			}
			if err := tx.Create(newQueryRow(row.ID, 0, q)).Error; err != nil {
				return fmt.Errorf("history: append %q: %w", name, err)
			}
		case err != nil:
			return fmt.Errorf("history: lock %q: %w", name, err)
		default:
			var stored int64
			if err := tx.Model(&queryRow{}).Where("domain_id = ?", row.ID).Count(&stored).Error; err != nil {
				return fmt.Errorf("history: count %q: %w", name, err)
			}
			if int64(row.Count) != stored {
				return fmt.Errorf("%w: record %q: count %d, %d queries", ErrCorrupt, name, row.Count, stored)
			}
			if err := tx.Create(newQueryRow(row.ID, row.Count, q)).Error; err != nil {
				return fmt.Errorf("history: append %q: %w", name, err)
			}
			if err := tx.Model(&row).Update("count", row.Count+1).Error; err != nil {
				return fmt.Errorf("history: bump count %q: %w", name, err)
			}
		}

		var full domainRow
		if err := tx.Preload("Queries", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
			Take(&full, row.ID).Error; err != nil {
			return fmt.Errorf("history: reload %q: %w", name, err)
		}
		out = full.record()
		return nil
	})
	if err != nil {
		return domain.DomainRecord{}, err
	}
	return out, nil
}

func newQueryRow(domainID uint, seq int, q domain.Query) *queryRow {
	return &queryRow{
		DomainID: domainID,
		Seq:      seq,
		IP:       q.IP,
		SeenAt:   q.Time.Time(),
	}
}

func (r domainRow) record() domain.DomainRecord {
	rec := domain.DomainRecord{
		Domain:  r.Domain,
		Count:   r.Count,
		Queries: make([]domain.Query, 0, len(r.Queries)),
	}
	for _, q := range r.Queries {
		rec.Queries = append(rec.Queries, domain.Query{
			IP:   q.IP,
			Time: domain.TimestampOf(q.SeenAt.UTC()),
		})
	}
	return rec
}
