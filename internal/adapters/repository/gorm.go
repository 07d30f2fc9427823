package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kvetinski/bank/internal/domain"
	"github.com/kvetinski/bank/internal/telemetry"
)

// accountRow is the persistence model of an account.
type accountRow struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name     string `gorm:"column:name;type:text;not null"`
	Document string `gorm:"column:document;type:varchar(11);not null"`
	Phone    string `gorm:"column:phone;type:varchar(17);not null"`
}

func (accountRow) TableName() string {
	return "accounts"
}

func (r accountRow) toDomain() domain.Account {
	return domain.Account{
		ID:       r.ID,
		Name:     r.Name,
		Document: r.Document,
		Phone:    r.Phone,
	}
}

func fromDomain(a domain.Account) accountRow {
	return accountRow{
		ID:       a.ID,
		Name:     a.Name,
		Document: a.Document,
		Phone:    a.Phone,
	}
}

// Gorm stores accounts through gorm. It is used with the MySQL driver.
type Gorm struct {
	db      *gorm.DB
	metrics *telemetry.Metrics
}

func NewGorm(db *gorm.DB, metrics *telemetry.Metrics) *Gorm {
	return &Gorm{db: db, metrics: metrics}
}

// OpenMySQL opens a gorm handle on dsn. gorm's own logger is silenced;
// failures surface as returned errors.
func OpenMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the accounts table.
func (r *Gorm) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&accountRow{}); err != nil {
		return fmt.Errorf("migrate accounts: %w", err)
	}

	return nil
}

func (r *Gorm) Save(ctx context.Context, acc domain.Account) (out domain.Account, err error) {
	row := fromDomain(acc)

	if row.ID == 0 {
		ctx, c := startCall(ctx, r.metrics, "mysql", "insert")
		defer func() { c.end(err) }()

		if err = r.db.WithContext(ctx).Create(&row).Error; err != nil {
			err = fmt.Errorf("insert account: %w", err)
			return domain.Account{}, err
		}

		return row.toDomain(), nil
	}

	ctx, c := startCall(ctx, r.metrics, "mysql", "update")
	defer func() { c.end(err) }()

	// MySQL reports zero affected rows when the values are unchanged, so
	// existence is checked with a read inside the same transaction.
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing accountRow
		if err := tx.Select("id").First(&existing, row.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAccountNotFound
			}
			return err
		}

		return tx.Model(&accountRow{ID: row.ID}).
			Select("name", "document", "phone").
			Updates(&row).Error
	})
	if err != nil {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			err = fmt.Errorf("update account: %w", err)
		}
		return domain.Account{}, err
	}

	return row.toDomain(), nil
}

func (r *Gorm) FindByID(ctx context.Context, id int64) (out domain.Account, err error) {
	ctx, c := startCall(ctx, r.metrics, "mysql", "find_by_id")
	defer func() { c.end(err) }()

	var row accountRow
	if err = r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = domain.ErrAccountNotFound
			return domain.Account{}, err
		}

		err = fmt.Errorf("get account: %w", err)
		return domain.Account{}, err
	}

	return row.toDomain(), nil
}

func (r *Gorm) FindAll(ctx context.Context) (out []domain.Account, err error) {
	ctx, c := startCall(ctx, r.metrics, "mysql", "find_all")
	defer func() { c.end(err) }()

	var rows []accountRow
	if err = r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		err = fmt.Errorf("list accounts: %w", err)
		return nil, err
	}

	out = make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}

	return out, nil
}

func (r *Gorm) DeleteByID(ctx context.Context, id int64) (err error) {
	ctx, c := startCall(ctx, r.metrics, "mysql", "delete")
	defer func() { c.end(err) }()

	res := r.db.WithContext(ctx).Delete(&accountRow{}, id)
	if res.Error != nil {
		err = fmt.Errorf("delete account: %w", res.Error)
		return err
	}

	if res.RowsAffected == 0 {
		err = domain.ErrAccountNotFound
		return err
	}

	return nil
}

// Close releases the underlying connection pool.
func (r *Gorm) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
