package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuditAction represents the type of change being recorded.
type AuditAction string

const (
	ActionCreate         AuditAction = "create"
	ActionUpdate         AuditAction = "update"
	ActionDeactivate     AuditAction = "deactivate"
	ActionActivate       AuditAction = "activate"
	ActionDelete         AuditAction = "delete"
	ActionStockAdjust    AuditAction = "stock_adjust"
	ActionStatusChange   AuditAction = "status_change"
	ActionPasswordChange AuditAction = "password_change"
	ActionLogin          AuditAction = "login"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID        string                 `json:"id"`
	Action    AuditAction            `json:"action"`
	Severity  AuditSeverity          `json:"severity"`
	TableKey  string                 `json:"tableKey"`
	RowKey    string                 `json:"rowKey,omitempty"`
	UserID    int                    `json:"userId,omitempty"`
	UserName  string                 `json:"userName,omitempty"`
	IPAddress string                 `json:"ipAddress,omitempty"`
	UserAgent string                 `json:"userAgent,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// AuditLogParams describes a change to record. Actor, IP and user agent
// are taken from the context.
type AuditLogParams struct {
	Action   AuditAction
	TableKey string
	RowKey   interface{}
	Details  map[string]interface{}
}

// AuditLogFilter narrows ListAudit.
type AuditLogFilter struct {
	TableKey string
	Action   AuditAction
	Limit    int
	Offset   int
}

func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionDelete:
		return SeverityCritical
	case ActionDeactivate, ActionPasswordChange, ActionStockAdjust:
		return SeverityHigh
	case ActionLogin:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// LogAudit records an entry. Failures are logged and swallowed so that an
// audit outage never blocks inventory work.
func (s *Service) LogAudit(ctx context.Context, p AuditLogParams) {
	s.logAudit(ctx, s.pool, p)
}

func (s *Service) logAudit(ctx context.Context, db DBTX, p AuditLogParams) {
	var details []byte
	if p.Details != nil {
		if b, err := json.Marshal(p.Details); err == nil {
			details = b
		}
	}

	// Actors without an account (API key, CLI) are stored with a NULL
	// user_id and keep only their name.
	var userID *int
	var userName *string
	if a, ok := ActorFromContext(ctx); ok {
		userName = &a.Username
		if a.ID > 0 {
			userID = &a.ID
		}
	}

	rowKey := ""
	if p.RowKey != nil {
		rowKey = fmt.Sprint(p.RowKey)
	}

	_, err := db.Exec(ctx, `
		INSERT INTO audit_log (id, action, severity, table_key, row_key, user_id, user_name, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.New(), string(p.Action), string(determineSeverity(p.Action)), p.TableKey,
		nullIfEmpty(rowKey), userID, userName,
		nullIfEmpty(GetIPAddressFromContext(ctx)), nullIfEmpty(GetUserAgentFromContext(ctx)),
		details, s.now(),
	)
	if err != nil {
		slog.Warn("audit log insert failed", "action", p.Action, "table", p.TableKey, "error", err)
	}
}

// ListAudit returns entries newest first.
// Empty filter fields match everything. A limit outside 1..500 becomes 100.
func (s *Service) ListAudit(ctx context.Context, f AuditLogFilter) ([]AuditEntry, error) {
	wb := NewWhereBuilder()
	wb.Add("table_key", f.TableKey)
	wb.Add("action", string(f.Action))
	where, _ := wb.Build()

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, action, severity, table_key, COALESCE(row_key, ''), COALESCE(user_id, 0),
		COALESCE(user_name, ''), COALESCE(ip_address, ''), COALESCE(user_agent, ''), details, created_at
		FROM audit_log` + where + ` ORDER BY created_at DESC LIMIT ` + wb.Arg(limit) + ` OFFSET ` + wb.Arg(f.Offset)

	rows, err := s.pool.Query(ctx, query, wb.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (AuditEntry, error) {
		var e AuditEntry
		var id uuid.UUID
		var action, severity string
		var details []byte
		err := row.Scan(&id, &action, &severity, &e.TableKey, &e.RowKey, &e.UserID,
			&e.UserName, &e.IPAddress, &e.UserAgent, &details, &e.CreatedAt)
		if err != nil {
			return e, err
		}
		e.ID = id.String()
		e.Action = AuditAction(action)
		e.Severity = AuditSeverity(severity)
		if len(details) > 0 {
			_ = json.Unmarshal(details, &e.Details)
		}
		return e, nil
	})
}

// PurgeAudit deletes entries older than retentionDays in batches and
// returns the number removed.
func (s *Service) PurgeAudit(ctx context.Context, retentionDays, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 5000
	}
	cutoff := s.now().AddDate(0, 0, -retentionDays)
	var total int64
	for {
		n, err := s.exec(ctx, s.pool, `
			DELETE FROM audit_log WHERE id IN (
				SELECT id FROM audit_log WHERE created_at < $1 LIMIT $2
			)`, cutoff, batchSize)
		if err != nil {
			return total, fmt.Errorf("purge audit log: %w", err)
		}
		total += n
		if n < int64(batchSize) {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}
