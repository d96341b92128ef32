package domain

import (
	"github.com/shopspring/decimal"

	"github.com/aryan0dhankhar/insightdash/internal/schema"
)

// Canonical entity declarations. Storage shape, request validation and the
// migration coverage test are all derived from these.
var (
	UserEntity = schema.MustDeclare("User",
		schema.Serial("id"),
		schema.String("username").NotNull().Unique(),
		schema.String("email").Unique(),
		schema.String("password").NotNull().Secret(),
		schema.Enum("role", RoleUser, RoleAdmin).NotNull().Default(RoleUser),
		schema.Boolean("isActive").NotNull().Default(true),
		schema.Timestamp("createdAt").NotNull().DefaultNow(),
	)

	WarehouseEntity = schema.MustDeclare("Warehouse",
		schema.Serial("id"),
		schema.String("name").NotNull(),
		schema.Enum("size", "X-Small", "Small", "Medium", "Large", "X-Large").NotNull().Default("X-Small"),
		schema.Enum("status", WarehouseSuspended, WarehouseActive, WarehouseResizing).NotNull().Default(WarehouseSuspended),
		schema.Decimal("creditsPerHour", 10, 2).NotNull().Default("1.00").Min(decimal.Zero),
		schema.Integer("nodes").NotNull().Default(1),
		schema.Boolean("autoSuspend").NotNull().Default(true),
		schema.Integer("userId").References("User", "id"),
		schema.Timestamp("createdAt").NotNull().DefaultNow(),
	)

	DataSourceEntity = schema.MustDeclare("DataSource",
		schema.Serial("id"),
		schema.String("name").NotNull(),
		schema.Enum("type", SourceCSV, SourceExcel, SourceJSON, SourceParquet, SourceDatabase).NotNull(),
		schema.String("fileName"),
		schema.String("filePath"),
		schema.Document("schema"),
		schema.Integer("rowCount").NotNull().Default(0),
		schema.Enum("status", StatusProcessing, StatusReady, StatusError).NotNull().Default(StatusProcessing),
		schema.Integer("userId").NotNull().References("User", "id"),
		schema.Timestamp("createdAt").NotNull().DefaultNow(),
	)

	QueryHistoryEntity = schema.MustDeclareTable("QueryHistory", "query_history",
		schema.Serial("id"),
		schema.String("query").NotNull(),
		schema.Enum("status", QueryRunning, QueryCompleted, QueryError).NotNull().Default(QueryRunning),
		schema.Integer("duration"),
		schema.Integer("rowsReturned"),
		schema.Decimal("creditsUsed", 10, 6),
		schema.Integer("warehouseId").NotNull().References("Warehouse", "id"),
		schema.Integer("userId").NotNull().References("User", "id"),
		schema.Timestamp("createdAt").NotNull().DefaultNow(),
	)

	ChartEntity = schema.MustDeclare("Chart",
		schema.Serial("id"),
		schema.String("name").NotNull(),
		schema.Enum("type", "line", "bar", "pie", "doughnut", "area", "scatter", "table").NotNull(),
		schema.Document("config").NotNull(),
		schema.Integer("dataSourceId").NotNull().References("DataSource", "id"),
		schema.Integer("userId").NotNull().References("User", "id"),
		schema.Timestamp("createdAt").NotNull().DefaultNow(),
	)

	DashboardEntity = schema.MustDeclare("Dashboard",
		schema.Serial("id"),
		schema.String("name").NotNull(),
		schema.Document("layout"),
		schema.Integer("userId").NotNull().References("User", "id"),
		schema.Timestamp("createdAt").NotNull().DefaultNow(),
	)

	AIConversationEntity = schema.MustDeclareTable("AIConversation", "ai_conversations",
		schema.Serial("id"),
		schema.Document("messages").NotNull().Default("[]"),
		schema.Document("context"),
		schema.Integer("userId").NotNull().References("User", "id"),
		schema.Timestamp("createdAt").NotNull().DefaultNow(),
	)

	CompanyEntity = schema.MustDeclare("Company",
		schema.Serial("id"),
		schema.String("name").NotNull(),
		schema.String("sector"),
		schema.String("region"),
		schema.Date("foundedDate"),
		schema.Integer("employees"),
		schema.Decimal("revenue", 15, 2),
		schema.Decimal("ebitda", 15, 2),
		schema.Decimal("netIncome", 15, 2),
		schema.Decimal("totalAssets", 15, 2),
		schema.Decimal("totalDebt", 15, 2),
		schema.Decimal("equity", 15, 2),
		schema.Decimal("marketCap", 15, 2),
		schema.String("description"),
		schema.Enum("stage", "seed", "early", "growth", "mature", "exit"),
		schema.Integer("userId").NotNull().References("User", "id"),
		schema.Timestamp("createdAt").NotNull().DefaultNow(),
	)

	SessionEntity = schema.MustDeclare("Session",
		schema.String("sid").PrimaryKey(),
		schema.Document("sess").NotNull(),
		schema.Timestamp("expire").NotNull(),
	)

	Registry = schema.MustRegistry(
		UserEntity,
		WarehouseEntity,
		DataSourceEntity,
		QueryHistoryEntity,
		ChartEntity,
		DashboardEntity,
		AIConversationEntity,
		CompanyEntity,
		SessionEntity,
	)
)

// Registration is the payload accepted when creating an account
var Registration = UserEntity.MustInsertContract(schema.Pick("username", "email", "password"))

// Credentials is the payload accepted at login
var Credentials = UserEntity.MustInsertContract(schema.Pick("username", "password"))

// Contracts pairs the create and patch contracts of an owned resource
type Contracts struct {
	Create *schema.InsertContract
	Patch  *schema.InsertContract
}

// OwnedContracts derives the contracts clients write through. The generated id,
// creation timestamp and owner reference are never client supplied.
func OwnedContracts(e *schema.Entity) Contracts {
	var omit []string
	for _, name := range []string{"id", "createdAt", "userId"} {
		if _, ok := e.Field(name); ok {
			omit = append(omit, name)
		}
	}
	return Contracts{
		Create: e.MustInsertContract(schema.Omit(omit...)),
		Patch:  e.MustInsertContract(schema.Omit(omit...), schema.Partial()),
	}
}

// Describe documents every entity of the registry with the contract clients write it through
func Describe() []schema.EntityDoc {
	docs := make([]schema.EntityDoc, 0, len(Registry.Entities()))
	for _, e := range Registry.Order() {
		var insert *schema.InsertContract
		switch e {
		case UserEntity:
			insert = Registration
		case SessionEntity:
		default:
			insert = OwnedContracts(e).Create
		}
		docs = append(docs, schema.Describe(e, insert))
	}
	return docs
}
