package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/aryan0dhankhar/insightdash/internal/domain"
)

// PostgresCompanyRepository stores portfolio companies
type PostgresCompanyRepository struct {
	t *ownedTable[domain.Company]
}

func NewPostgresCompanyRepository(db *sql.DB, logger *slog.Logger) *PostgresCompanyRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCompanyRepository{t: &ownedTable[domain.Company]{
		db:     db,
		logger: logger,
		table:  "companies",
		columns: `id, name, sector, region, founded_date, employees, revenue, ebitda, net_income,
			total_assets, total_debt, equity, market_cap, description, stage, user_id, created_at`,
		scan: scanCompany,
	}}
}

func scanCompany(s scanner) (*domain.Company, error) {
	c := &domain.Company{}
	var sector, region, description, stage sql.NullString
	var founded sql.NullTime
	var employees sql.NullInt64
	err := s.Scan(
		&c.ID, &c.Name, &sector, &region, &founded, &employees,
		&c.Revenue, &c.EBITDA, &c.NetIncome, &c.TotalAssets, &c.TotalDebt, &c.Equity, &c.MarketCap,
		&description, &stage, &c.UserID, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Sector = stringPtr(sector)
	c.Region = stringPtr(region)
	c.FoundedDate = datePtr(founded)
	c.Employees = intPtr(employees)
	c.Description = stringPtr(description)
	c.Stage = stringPtr(stage)
	return c, nil
}

func companyArgs(c *domain.Company) []any {
	return []any{
		c.Name, nullString(c.Sector), nullString(c.Region), nullDate(c.FoundedDate), nullInt(c.Employees),
		c.Revenue, c.EBITDA, c.NetIncome, c.TotalAssets, c.TotalDebt, c.Equity, c.MarketCap,
		nullString(c.Description), nullString(c.Stage),
	}
}

func (r *PostgresCompanyRepository) Create(ctx context.Context, c *domain.Company) error {
	query := `
		INSERT INTO companies (name, sector, region, founded_date, employees, revenue, ebitda, net_income,
			total_assets, total_debt, equity, market_cap, description, stage, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at
	`
	args := append(companyArgs(c), c.UserID)
	return r.t.queryRow(ctx, "create", query, args, &c.ID, &c.CreatedAt)
}

func (r *PostgresCompanyRepository) Get(ctx context.Context, userID, id int64) (*domain.Company, error) {
	return r.t.get(ctx, userID, id)
}

func (r *PostgresCompanyRepository) List(ctx context.Context, userID int64) ([]*domain.Company, error) {
	return r.t.list(ctx, userID)
}

func (r *PostgresCompanyRepository) Update(ctx context.Context, c *domain.Company) error {
	query := `
		UPDATE companies
		SET name = $1, sector = $2, region = $3, founded_date = $4, employees = $5, revenue = $6, ebitda = $7,
			net_income = $8, total_assets = $9, total_debt = $10, equity = $11, market_cap = $12,
			description = $13, stage = $14
		WHERE id = $15 AND user_id = $16
		RETURNING created_at
	`
	args := append(companyArgs(c), c.ID, c.UserID)
	return r.t.queryRow(ctx, "update", query, args, &c.CreatedAt)
}

func (r *PostgresCompanyRepository) Delete(ctx context.Context, userID, id int64) error {
	return r.t.delete(ctx, userID, id)
}
