package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aryan0dhankhar/insightdash/internal/schema"
)

const (
	WarehouseSuspended = "suspended"
	WarehouseActive    = "active"
	WarehouseResizing  = "resizing"
)

const (
	SourceCSV      = "csv"
	SourceExcel    = "excel"
	SourceJSON     = "json"
	SourceParquet  = "parquet"
	SourceDatabase = "database"
)

const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
)

const (
	QueryRunning   = "running"
	QueryCompleted = "completed"
	QueryError     = "error"
)

// Resource is a row owned by a user
type Resource interface {
	ResourceID() int64
	OwnerID() int64
	AssignOwner(userID int64)
}

// OwnedRepository is the storage port shared by every user-owned resource.
// Reads and deletes are always scoped to the owner.
type OwnedRepository[T any] interface {
	Create(ctx context.Context, item *T) error
	Get(ctx context.Context, userID, id int64) (*T, error)
	List(ctx context.Context, userID int64) ([]*T, error)
	Update(ctx context.Context, item *T) error
	Delete(ctx context.Context, userID, id int64) error
}

// DataSourceRepository adds the cross-owner lookup the ingest workers need on startup
type DataSourceRepository interface {
	OwnedRepository[DataSource]
	ListByStatus(ctx context.Context, status string) ([]*DataSource, error)
}

// ConversationRepository appends turns atomically so concurrent sends never overwrite each other
type ConversationRepository interface {
	OwnedRepository[AIConversation]
	AppendMessages(ctx context.Context, userID, id int64, messages []Message) (*AIConversation, error)
}

type Warehouse struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Size           string          `json:"size"`
	Status         string          `json:"status"`
	CreditsPerHour decimal.Decimal `json:"creditsPerHour"`
	Nodes          int64           `json:"nodes"`
	AutoSuspend    bool            `json:"autoSuspend"`
	UserID         *int64          `json:"userId"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func (w *Warehouse) ResourceID() int64 { return w.ID }
func (w *Warehouse) OwnerID() int64 {
	if w.UserID == nil {
		return 0
	}
	return *w.UserID
}
func (w *Warehouse) AssignOwner(userID int64) { w.UserID = &userID }

type DataSource struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	FileName  *string         `json:"fileName"`
	FilePath  *string         `json:"filePath"`
	Schema    json.RawMessage `json:"schema"`
	RowCount  int64           `json:"rowCount"`
	Status    string          `json:"status"`
	UserID    int64           `json:"userId"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (d *DataSource) ResourceID() int64        { return d.ID }
func (d *DataSource) OwnerID() int64           { return d.UserID }
func (d *DataSource) AssignOwner(userID int64) { d.UserID = userID }

// Column describes one inferred column of an ingested data source
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type QueryHistory struct {
	ID           int64               `json:"id"`
	Query        string              `json:"query"`
	Status       string              `json:"status"`
	Duration     *int64              `json:"duration"`
	RowsReturned *int64              `json:"rowsReturned"`
	CreditsUsed  decimal.NullDecimal `json:"creditsUsed"`
	WarehouseID  int64               `json:"warehouseId"`
	UserID       int64               `json:"userId"`
	CreatedAt    time.Time           `json:"createdAt"`
}

func (q *QueryHistory) ResourceID() int64        { return q.ID }
func (q *QueryHistory) OwnerID() int64           { return q.UserID }
func (q *QueryHistory) AssignOwner(userID int64) { q.UserID = userID }

// Terminal reports whether the query finished, successfully or not
func (q *QueryHistory) Terminal() bool {
	return q.Status == QueryCompleted || q.Status == QueryError
}

type Chart struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Config       json.RawMessage `json:"config"`
	DataSourceID int64           `json:"dataSourceId"`
	UserID       int64           `json:"userId"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func (c *Chart) ResourceID() int64        { return c.ID }
func (c *Chart) OwnerID() int64           { return c.UserID }
func (c *Chart) AssignOwner(userID int64) { c.UserID = userID }

type Dashboard struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Layout    json.RawMessage `json:"layout"`
	UserID    int64           `json:"userId"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (d *Dashboard) ResourceID() int64        { return d.ID }
func (d *Dashboard) OwnerID() int64           { return d.UserID }
func (d *Dashboard) AssignOwner(userID int64) { d.UserID = userID }

// Message is one turn of an assistant conversation
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type AIConversation struct {
	ID        int64           `json:"id"`
	Messages  []Message       `json:"messages"`
	Context   json.RawMessage `json:"context"`
	UserID    int64           `json:"userId"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (a *AIConversation) ResourceID() int64        { return a.ID }
func (a *AIConversation) OwnerID() int64           { return a.UserID }
func (a *AIConversation) AssignOwner(userID int64) { a.UserID = userID }

type Company struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Sector      *string             `json:"sector"`
	Region      *string             `json:"region"`
	FoundedDate *Date               `json:"foundedDate"`
	Employees   *int64              `json:"employees"`
	Revenue     decimal.NullDecimal `json:"revenue"`
	EBITDA      decimal.NullDecimal `json:"ebitda"`
	NetIncome   decimal.NullDecimal `json:"netIncome"`
	TotalAssets decimal.NullDecimal `json:"totalAssets"`
	TotalDebt   decimal.NullDecimal `json:"totalDebt"`
	Equity      decimal.NullDecimal `json:"equity"`
	MarketCap   decimal.NullDecimal `json:"marketCap"`
	Description *string             `json:"description"`
	Stage       *string             `json:"stage"`
	UserID      int64               `json:"userId"`
	CreatedAt   time.Time           `json:"createdAt"`
}

func (c *Company) ResourceID() int64        { return c.ID }
func (c *Company) OwnerID() int64           { return c.UserID }
func (c *Company) AssignOwner(userID int64) { c.UserID = userID }

// Date is a calendar date exchanged as YYYY-MM-DD
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string { return d.Format(schema.DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := time.Parse(schema.DateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}
