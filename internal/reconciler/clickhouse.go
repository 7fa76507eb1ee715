package reconciler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ClickHouseEndpoint is one side (local or remote) of a ClickHouse HTTP
// interface connection, mirroring the SOURCE_*/DEST_* settings in
// original_source/ch-sync.
type ClickHouseEndpoint struct {
	Host          string
	Port          string
	NativePort    string
	User          string
	Password      string
}

// ClickHouse implements Datastore as exact-row partition units,
// grounded directly on original_source/ch-sync's get_partitions (SELECT
// partition, sum(rows) ... GROUP BY partition) and sync_table's
// DROP PARTITION + INSERT ... FROM remote(...) repair. It deliberately
// talks the ClickHouse HTTP interface with net/http rather than a native
// driver: the Python original itself only ever does the same raw HTTP
// queries, so there is no richer client behaviour here to replace.
type ClickHouse struct {
	Local    ClickHouseEndpoint
	Remote   ClickHouseEndpoint
	Database string
	Table    string
	client   *http.Client
}

var _ Datastore = (*ClickHouse)(nil)

func NewClickHouse(local, remote ClickHouseEndpoint, database, table string) *ClickHouse {
	return &ClickHouse{Local: local, Remote: remote, Database: database, Table: table, client: &http.Client{Timeout: 2 * time.Minute}}
}

func (c *ClickHouse) Kind() UnitKind { return ExactRow }
func (c *ClickHouse) BucketStep() int { return 0 }

func (c *ClickHouse) Ping(ctx context.Context) error {
	if _, err := c.query(ctx, c.Local, "SELECT 1"); err != nil {
		return errors.Wrap(err, "local clickhouse unreachable")
	}
	if _, err := c.query(ctx, c.Remote, "SELECT 1"); err != nil {
		return errors.Wrap(err, "remote clickhouse unreachable")
	}
	return nil
}

func (c *ClickHouse) Enumerate(ctx context.Context, site string) (map[string]float64, error) {
	ep := c.endpoint(site)
	rows, err := c.query(ctx, ep, fmt.Sprintf(
		`SELECT partition, sum(rows) as rows FROM system.parts WHERE database = '%s' AND table = '%s' AND active GROUP BY partition`,
		c.Database, c.Table))
	if err != nil {
		return nil, err
	}

	units := make(map[string]float64, len(rows))
	for _, row := range rows {
		partition, _ := row["partition"].(string)
		units[partition] = toFloat(row["rows"])
	}
	return units, nil
}

// Repair drops dest's partition and re-inserts it from source via
// ClickHouse's remote() table function over the native port, matching
// sync_table exactly.
func (c *ClickHouse) Repair(ctx context.Context, source, dest, unitKey string) error {
	srcEp := c.endpoint(source)
	dstEp := c.endpoint(dest)

	dropSQL := fmt.Sprintf(`ALTER TABLE %s.%s DROP PARTITION '%s'`, c.Database, c.Table, unitKey)
	if err := c.execute(ctx, dstEp, dropSQL, 10*time.Minute); err != nil {
		return errors.Wrap(err, "drop partition")
	}

	insertSQL := fmt.Sprintf(`
		INSERT INTO %s.%s
		SELECT * FROM remote('%s:%s', '%s.%s', '%s', '%s')
		WHERE _partition_id = '%s'
	`, c.Database, c.Table, srcEp.Host, srcEp.NativePort, c.Database, c.Table, srcEp.User, srcEp.Password, unitKey)
	if err := c.execute(ctx, dstEp, insertSQL, 30*time.Minute); err != nil {
		return errors.Wrap(err, "insert from remote")
	}
	return nil
}

func (c *ClickHouse) FetchDDL(ctx context.Context, unitKey string) (string, bool, error) {
	rows, err := c.query(ctx, c.Remote, fmt.Sprintf(
		`SELECT create_table_query FROM system.tables WHERE database='%s' AND name='%s'`, c.Database, c.Table))
	if err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	ddl, _ := rows[0]["create_table_query"].(string)
	if ddl == "" {
		return "", false, nil
	}
	return ddl, true, nil
}

// Create ensures the configured database exists locally (CREATE DATABASE
// IF NOT EXISTS). It does not execute ddl, so a table that is missing
// locally is not created.
func (c *ClickHouse) Create(ctx context.Context, ddl string) error {
	return c.execute(ctx, c.Local, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", c.Database), time.Minute)
}

func (c *ClickHouse) endpoint(site string) ClickHouseEndpoint {
	if site == "remote" {
		return c.Remote
	}
	return c.Local
}

func (c *ClickHouse) query(ctx context.Context, ep ClickHouseEndpoint, sql string) ([]map[string]any, error) {
	params := url.Values{"user": {ep.User}, "query": {sql + " FORMAT JSONEachRow"}}
	if ep.Password != "" {
		params.Set("password", ep.Password)
	}
	reqURL := fmt.Sprintf("http://%s:%s/?%s", ep.Host, ep.Port, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.Errorf("clickhouse query failed: %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var rows []map[string]any
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, scanner.Err()
}

func (c *ClickHouse) execute(ctx context.Context, ep ClickHouseEndpoint, sql string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	params := url.Values{"user": {ep.User}}
	if ep.Password != "" {
		params.Set("password", ep.Password)
	}
	reqURL := fmt.Sprintf("http://%s:%s/?%s", ep.Host, ep.Port, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(sql))
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return errors.Errorf("clickhouse execute failed: %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		var f float64
		fmt.Sscanf(n, "%f", &f)
		return f
	default:
		return 0
	}
}
