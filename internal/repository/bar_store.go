package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"ORBScanner/internal/domain/models"
	domrepo "ORBScanner/internal/domain/repository"
	pkgch "ORBScanner/pkg/clickhouse"
	applogger "ORBScanner/pkg/logger"
	"ORBScanner/pkg/util"
)

// DefaultBarsTable holds 1m OHLCV bars keyed by (symbol, bucket).
const DefaultBarsTable = "market.bars_1m"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CHBarStore reads 1m bars from ClickHouse for range warm start.
type CHBarStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.BarStore = (*CHBarStore)(nil)

// NewCHBarStore validates table before it is interpolated into queries.
func NewCHBarStore(ch *pkgch.Client, table string, l *applogger.Logger) (*CHBarStore, error) {
	if table == "" {
		table = DefaultBarsTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid bars table %q", table)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CHBarStore{db: ch.DB(), table: table, l: l}, nil
}

// SchemaStatements returns the DDL for the bars table.
func SchemaStatements(table string) []string {
	if table == "" {
		table = DefaultBarsTable
	}
	return []string{fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			bucket DateTime64(3, 'UTC'),
			symbol LowCardinality(String),
			open   Float64,
			high   Float64,
			low    Float64,
			close  Float64,
			vol    Float64
		) ENGINE = ReplacingMergeTree
		ORDER BY (symbol, bucket)`, table)}
}

func barsQuery(table string) string {
	return fmt.Sprintf(`
		SELECT bucket, symbol, open, high, low, close, vol
		FROM %s
		WHERE symbol = ? AND bucket >= ? AND bucket < ?
		ORDER BY bucket ASC`, table)
}

// Bars returns bars with bucket in [from, to) ordered oldest first.
func (s *CHBarStore) Bars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	start := time.Now()
	from, to = util.AlignMinutes(from, to)
	rows, err := s.db.QueryContext(ctx, barsQuery(s.table), symbol, from.UTC(), to.UTC())
	if err != nil {
		s.l.Error("clickhouse bars query error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 64)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Bucket, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			s.l.Error("clickhouse bars scan error",
				applogger.String("table", s.table),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse bars ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}
