package universe

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/pkg/logger"
)

// Querier is the subset of *pgxpool.Pool the postgres source needs
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource loads the universe from scanner.symbols
type PostgresSource struct {
	db     Querier
	logger *logger.Logger
}

// NewPostgresSource creates a new postgres universe source
func NewPostgresSource(db Querier, log *logger.Logger) *PostgresSource {
	return &PostgresSource{
		db:     db,
		logger: log.WithComponent("universe"),
	}
}

// symbolRow is one row of scanner.symbols
type symbolRow struct {
	Symbol    string
	Sector    string
	IndexTier string
}

// Load reads every active symbol; tier members come back in tier_rank order
func (s *PostgresSource) Load(ctx context.Context) (*contracts.SymbolUniverse, error) {
	query := `
		SELECT
			symbol,
			COALESCE(sector, 'Unknown'),
			COALESCE(index_tier, '')
		FROM scanner.symbols
		WHERE active = TRUE
		ORDER BY
			CASE index_tier WHEN 'primary' THEN 0 WHEN 'secondary' THEN 1 ELSE 2 END,
			tier_rank NULLS LAST,
			symbol
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	symbols := make([]symbolRow, 0)
	for rows.Next() {
		var r symbolRow
		if err := rows.Scan(&r.Symbol, &r.Sector, &r.IndexTier); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, r)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate symbols: %w", rows.Err())
	}

	u, err := fromRows(symbols)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"symbols":   u.Count(),
		"primary":   len(u.Primary()),
		"secondary": len(u.Secondary()),
	}).Info("Loaded universe from database")

	return u, nil
}

// fromRows turns ordered rows into a universe document
func fromRows(rows []symbolRow) (*contracts.SymbolUniverse, error) {
	doc := Document{Sectors: make(map[string][]string)}
	for _, r := range rows {
		doc.Sectors[r.Sector] = append(doc.Sectors[r.Sector], r.Symbol)
		switch r.IndexTier {
		case contracts.TierPrimary:
			doc.Primary = append(doc.Primary, r.Symbol)
		case contracts.TierSecondary:
			doc.Secondary = append(doc.Secondary, r.Symbol)
		}
	}
	return doc.Build()
}
