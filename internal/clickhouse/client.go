package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"github.com/embell139/prep-ILAMB/internal/domain"
	"github.com/embell139/prep-ILAMB/internal/regrid"
)

// Schema creates grid_data. Re-loading a month replaces its rows on merge.
const Schema = `
CREATE TABLE IF NOT EXISTS grid_data (
	variable   LowCardinality(String),
	timestamp  DateTime('UTC'),
	lat        Float32,
	lon        Float32,
	value      Float32,
	unit       LowCardinality(String),
	catalog_id UUID
) ENGINE = ReplacingMergeTree
ORDER BY (variable, timestamp, lat, lon)`

type Client struct {
	conn driver.Conn
}

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Logger: logger,
		Settings: clickhouse.Settings{
			"max_execution_time": 15,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &Client{conn: conn}, nil
}

// EnsureSchema creates grid_data when it does not exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create grid_data: %w", err)
	}
	return nil
}

// GridBatch is one regridded variable of one month.
type GridBatch struct {
	Variable  string
	Unit      string
	Timestamp time.Time
	CatalogID uuid.UUID
	Field     *regrid.Field
}

type row struct {
	lat, lon, value float32
}

// rows returns the cells of b that hold data.
func (b GridBatch) rows() ([]row, error) {
	if b.Field == nil || b.Field.Grid == nil {
		return nil, fmt.Errorf("batch %q has no field", b.Variable)
	}
	g := b.Field.Grid
	if len(b.Field.Values) != g.Len() {
		return nil, fmt.Errorf("batch %q has %d values for %d cells", b.Variable, len(b.Field.Values), g.Len())
	}
	out := make([]row, 0, len(b.Field.Values))
	for j, lat := range g.Lats {
		for i, lon := range g.Lons {
			v := b.Field.At(j, i)
			if math.IsNaN(v) {
				continue
			}
			out = append(out, row{lat: float32(lat), lon: float32(lon), value: float32(v)})
		}
	}
	return out, nil
}

// LoadField inserts every non-NaN cell of b and returns the row count.
func (c *Client) LoadField(ctx context.Context, b GridBatch) (int, error) {
	rows, err := b.rows()
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	batch, err := c.conn.PrepareBatch(ctx,
		"INSERT INTO grid_data (variable, timestamp, lat, lon, value, unit, catalog_id)")
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}
	defer batch.Abort()

	for _, r := range rows {
		if err := batch.Append(b.Variable, b.Timestamp, r.lat, r.lon, r.value, b.Unit, b.CatalogID); err != nil {
			return 0, fmt.Errorf("append %s: %w", b.Variable, err)
		}
	}
	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send %s: %w", b.Variable, err)
	}
	return len(rows), nil
}

func (c *Client) GetValue(
	ctx context.Context,
	variable string,
	timestamp time.Time,
	lat float32,
	lon float32,
) (*domain.GridValue, error) {
	var result domain.GridValue

	err := c.conn.QueryRow(
		ctx,
		`
		SELECT value, unit, lat, lon, catalog_id, timestamp
        FROM grid_data FINAL
        WHERE variable = @variable
          AND timestamp = (
            SELECT max(timestamp) FROM grid_data FINAL
            WHERE variable = @variable AND timestamp <= @timestamp
          )
        ORDER BY (lat - @lat) * (lat - @lat) + (lon - @lon) * (lon - @lon)
        LIMIT 1
        `,
		clickhouse.Named("variable", variable),
		clickhouse.Named("timestamp", timestamp),
		clickhouse.Named("lat", lat),
		clickhouse.Named("lon", lon),
	).Scan(&result.Value, &result.Unit, &result.Lat, &result.Lon, &result.CatalogID, &result.Timestamp)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrGridValueNotFound
	}

	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
