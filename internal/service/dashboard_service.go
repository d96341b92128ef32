package service

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aryan0dhankhar/insightdash/internal/domain"
	"github.com/aryan0dhankhar/insightdash/internal/observability/metrics"
	"github.com/aryan0dhankhar/insightdash/internal/observability/tracing"
	"github.com/aryan0dhankhar/insightdash/pkg/cache"
)

const (
	performanceMonths = 6
	topPerformerCount = 5
	unassignedSector  = "Unassigned"
)

var hundred = decimal.NewFromInt(100)

// PortfolioMetrics is the headline aggregate of a user's portfolio
type PortfolioMetrics struct {
	TotalValue        decimal.Decimal `json:"totalValue"`
	ActiveInvestments int             `json:"activeInvestments"`
	AverageIRR        decimal.Decimal `json:"averageIrr"`
	DataQualityScore  decimal.Decimal `json:"dataQualityScore"`
}

// Dataset is one named series of a time series chart
type Dataset struct {
	Label string            `json:"label"`
	Data  []decimal.Decimal `json:"data"`
}

type PortfolioPerformance struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

type SectorAllocation struct {
	Labels []string          `json:"labels"`
	Data   []decimal.Decimal `json:"data"`
}

type TopPerformer struct {
	Name        string          `json:"name"`
	Sector      string          `json:"sector"`
	Performance decimal.Decimal `json:"performance"`
	Value       decimal.Decimal `json:"value"`
}

// DashboardService computes portfolio aggregates from the caller's companies.
// Results are cached per user until a company changes or the TTL passes.
type DashboardService struct {
	companies domain.OwnedRepository[domain.Company]
	cache     cache.Store
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewDashboardService(companies domain.OwnedRepository[domain.Company], store cache.Store, ttl time.Duration, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{
		companies: companies,
		cache:     store,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

func cacheKey(userID int64, view string) string {
	return fmt.Sprintf("%s%s", cachePrefix(userID), view)
}

func cachePrefix(userID int64) string {
	return fmt.Sprintf("dashboard:%d:", userID)
}

// Invalidate drops every cached view of userID
func (s *DashboardService) Invalidate(ctx context.Context, userID int64) {
	s.cache.Invalidate(ctx, cachePrefix(userID))
}

// cached serves view from the cache, computing and storing it on a miss
func cached[R any](ctx context.Context, s *DashboardService, view string, compute func([]*domain.Company) R) (R, error) {
	var out R
	userID, err := caller(ctx)
	if err != nil {
		return out, err
	}

	key := cacheKey(userID, view)
	if raw, ok := s.cache.Get(ctx, key); ok {
		if err := json.Unmarshal(raw, &out); err == nil {
			metrics.ObserveDashboardCache(true)
			return out, nil
		}
		s.logger.Warn("discarding unreadable cache entry", slog.String("key", key))
	}
	metrics.ObserveDashboardCache(false)

	ctx, span := tracing.Start(ctx, "dashboard."+view)
	defer span.End()

	companies, err := s.companies.List(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return out, err
	}
	out = compute(companies)

	if raw, err := json.Marshal(out); err == nil {
		s.cache.Set(ctx, key, raw, s.ttl)
	}
	return out, nil
}

func (s *DashboardService) Metrics(ctx context.Context) (PortfolioMetrics, error) {
	return cached(ctx, s, "metrics", computeMetrics)
}

func (s *DashboardService) PortfolioPerformance(ctx context.Context) (PortfolioPerformance, error) {
	now := s.now()
	return cached(ctx, s, "portfolio-performance", func(cs []*domain.Company) PortfolioPerformance {
		return computePerformance(cs, now)
	})
}

func (s *DashboardService) SectorAllocation(ctx context.Context) (SectorAllocation, error) {
	return cached(ctx, s, "sector-allocation", computeSectorAllocation)
}

func (s *DashboardService) TopPerformers(ctx context.Context) ([]TopPerformer, error) {
	return cached(ctx, s, "top-performers", computeTopPerformers)
}

func value(d decimal.NullDecimal) decimal.Decimal {
	if d.Valid {
		return d.Decimal
	}
	return decimal.Zero
}

// computeMetrics: IRR is approximated by return on equity over companies with positive equity.
// Data quality is the share of populated financial fields.
func computeMetrics(companies []*domain.Company) PortfolioMetrics {
	m := PortfolioMetrics{
		TotalValue:        decimal.Zero,
		ActiveInvestments: len(companies),
		AverageIRR:        decimal.Zero,
		DataQualityScore:  decimal.Zero,
	}
	if len(companies) == 0 {
		return m
	}

	var irrSum decimal.Decimal
	irrCount, populated, total := 0, 0, 0
	for _, c := range companies {
		m.TotalValue = m.TotalValue.Add(value(c.MarketCap))

		if c.NetIncome.Valid && c.Equity.Valid && c.Equity.Decimal.IsPositive() {
			irrSum = irrSum.Add(c.NetIncome.Decimal.Div(c.Equity.Decimal).Mul(hundred))
			irrCount++
		}

		for _, f := range financials(c) {
			total++
			if f.Valid {
				populated++
			}
		}
	}

	if irrCount > 0 {
		m.AverageIRR = irrSum.Div(decimal.NewFromInt(int64(irrCount))).Round(2)
	}
	m.DataQualityScore = decimal.NewFromInt(int64(populated)).Mul(hundred).Div(decimal.NewFromInt(int64(total))).Round(2)
	return m
}

func financials(c *domain.Company) []decimal.NullDecimal {
	return []decimal.NullDecimal{c.Revenue, c.EBITDA, c.NetIncome, c.TotalAssets, c.TotalDebt, c.Equity, c.MarketCap}
}

// computePerformance returns cumulative revenue and EBITDA of the companies
// held at the end of each of the last six months
func computePerformance(companies []*domain.Company, now time.Time) PortfolioPerformance {
	perf := PortfolioPerformance{
		Labels: make([]string, 0, performanceMonths),
		Datasets: []Dataset{
			{Label: "Revenue", Data: make([]decimal.Decimal, 0, performanceMonths)},
			{Label: "EBITDA", Data: make([]decimal.Decimal, 0, performanceMonths)},
		},
	}

	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(performanceMonths - 1), 0)
	for i := 0; i < performanceMonths; i++ {
		month := start.AddDate(0, i, 0)
		end := month.AddDate(0, 1, 0)

		revenue, ebitda := decimal.Zero, decimal.Zero
		for _, c := range companies {
			if c.CreatedAt.Before(end) {
				revenue = revenue.Add(value(c.Revenue))
				ebitda = ebitda.Add(value(c.EBITDA))
			}
		}
		perf.Labels = append(perf.Labels, month.Format("Jan 2006"))
		perf.Datasets[0].Data = append(perf.Datasets[0].Data, revenue)
		perf.Datasets[1].Data = append(perf.Datasets[1].Data, ebitda)
	}
	return perf
}

func sectorOf(c *domain.Company) string {
	if c.Sector == nil || *c.Sector == "" {
		return unassignedSector
	}
	return *c.Sector
}

// computeSectorAllocation returns each sector's share of portfolio value, largest first
func computeSectorAllocation(companies []*domain.Company) SectorAllocation {
	alloc := SectorAllocation{Labels: []string{}, Data: []decimal.Decimal{}}

	bySector := map[string]decimal.Decimal{}
	total := decimal.Zero
	for _, c := range companies {
		sector := sectorOf(c)
		v := value(c.MarketCap)
		bySector[sector] = bySector[sector].Add(v)
		total = total.Add(v)
	}
	if total.IsZero() {
		return alloc
	}

	sectors := make([]string, 0, len(bySector))
	for sector := range bySector {
		sectors = append(sectors, sector)
	}
	slices.SortFunc(sectors, func(a, b string) int {
		if c := bySector[b].Cmp(bySector[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	for _, sector := range sectors {
		alloc.Labels = append(alloc.Labels, sector)
		alloc.Data = append(alloc.Data, bySector[sector].Mul(hundred).Div(total).Round(2))
	}
	return alloc
}

// computeTopPerformers ranks companies with revenue by EBITDA margin
func computeTopPerformers(companies []*domain.Company) []TopPerformer {
	out := []TopPerformer{}
	for _, c := range companies {
		if !c.Revenue.Valid || !c.Revenue.Decimal.IsPositive() || !c.EBITDA.Valid {
			continue
		}
		sector := sectorOf(c)
		out = append(out, TopPerformer{
			Name:        c.Name,
			Sector:      sector,
			Performance: c.EBITDA.Decimal.Div(c.Revenue.Decimal).Mul(hundred).Round(2),
			Value:       value(c.MarketCap),
		})
	}

	slices.SortStableFunc(out, func(a, b TopPerformer) int {
		return b.Performance.Cmp(a.Performance)
	})
	if len(out) > topPerformerCount {
		out = out[:topPerformerCount]
	}
	return out
}
