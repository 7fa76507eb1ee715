package reconciler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// VictoriaMetrics implements Datastore as time-bucketed sample counts,
// grounded directly on original_source/victoriametrics/vm_sync.py's
// vm_query/vm_export/vm_import/vm_health: all plain HTTP calls against
// VictoriaMetrics's query and export/import APIs, so net/http mirrors the
// original rather than dropping a richer client.
type VictoriaMetrics struct {
	LocalURL  string
	RemoteURL string
	Metric    string
	Step      int

	client *http.Client
}

var _ Datastore = (*VictoriaMetrics)(nil)

func NewVictoriaMetrics(localURL, remoteURL, metric string, step int) *VictoriaMetrics {
	return &VictoriaMetrics{
		LocalURL: localURL, RemoteURL: remoteURL, Metric: metric, Step: step,
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (v *VictoriaMetrics) Kind() UnitKind  { return CountBucketed }
func (v *VictoriaMetrics) BucketStep() int { return v.Step }

func (v *VictoriaMetrics) Ping(ctx context.Context) error {
	if err := v.health(ctx, v.LocalURL); err != nil {
		return errors.Wrap(err, "local victoriametrics unhealthy")
	}
	if err := v.health(ctx, v.RemoteURL); err != nil {
		return errors.Wrap(err, "remote victoriametrics unhealthy")
	}
	return nil
}

func (v *VictoriaMetrics) health(ctx context.Context, base string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// Enumerate returns one bucket per Step-second window over the trailing
// lookback, keyed by the bucket's unix-second start, matching
// get_sample_counts's range query with a [step]s rollup.
func (v *VictoriaMetrics) Enumerate(ctx context.Context, site string) (map[string]float64, error) {
	base := v.LocalURL
	if site == "remote" {
		base = v.RemoteURL
	}

	now := time.Now().Unix()
	lookback := int64(v.Step * 288) // mirrors vm_sync's default 24h lookback at 5m buckets
	start := now - lookback

	query := fmt.Sprintf("count_over_time(%s[%ds])", v.Metric, v.Step)
	params := url.Values{
		"query": {query},
		"start": {strconv.FormatInt(start, 10)},
		"end":   {strconv.FormatInt(now, 10)},
		"step":  {strconv.Itoa(v.Step)},
	}
	reqURL := base + "/api/v1/query_range?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.Errorf("query_range failed: %d: %s", resp.StatusCode, body)
	}

	var parsed struct {
		Data struct {
			Result []struct {
				Values [][2]any `json:"values"`
			} `json:"result"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	units := make(map[string]float64)
	for _, series := range parsed.Data.Result {
		for _, point := range series.Values {
			ts, ok := point[0].(float64)
			if !ok {
				continue
			}
			count := toFloat(point[1])
			units[strconv.FormatInt(int64(ts), 10)] = count
		}
	}
	return units, nil
}

// Repair exports the [start,end) range (a rangeUnitKey-formatted key) from
// source and imports it into dest, matching sync_range's export/import
// pair over VictoriaMetrics's native JSON line-protocol endpoints.
func (v *VictoriaMetrics) Repair(ctx context.Context, source, dest, unitKey string) error {
	start, end, ok := parseRange(unitKey)
	if !ok {
		return errors.Errorf("malformed range unit_key: %q", unitKey)
	}

	srcBase := v.LocalURL
	if source == "remote" {
		srcBase = v.RemoteURL
	}
	dstBase := v.LocalURL
	if dest == "remote" {
		dstBase = v.RemoteURL
	}

	data, err := v.export(ctx, srcBase, start, end)
	if err != nil {
		return errors.Wrap(err, "export")
	}
	if err := v.importData(ctx, dstBase, data); err != nil {
		return errors.Wrap(err, "import")
	}
	return nil
}

func (v *VictoriaMetrics) export(ctx context.Context, base string, start, end int64) ([]byte, error) {
	params := url.Values{
		"match[]": {v.Metric},
		"start":   {strconv.FormatInt(start, 10)},
		"end":     {strconv.FormatInt(end, 10)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/v1/export?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.Errorf("export failed: %d: %s", resp.StatusCode, body)
	}
	return io.ReadAll(resp.Body)
}

func (v *VictoriaMetrics) importData(ctx context.Context, base string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/v1/import", bytes.NewReader(data))
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return errors.Errorf("import failed: %d: %s", resp.StatusCode, body)
	}
	return nil
}

// CountBucketed metrics have no DDL to fetch; a gapped bucket is repaired
// by Repair alone, and no auto-create path applies.
func (v *VictoriaMetrics) FetchDDL(ctx context.Context, unitKey string) (string, bool, error) {
	return "", false, nil
}

func (v *VictoriaMetrics) Create(ctx context.Context, ddl string) error { return nil }

func parseRange(key string) (int64, int64, bool) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '-' {
			start, err1 := strconv.ParseInt(key[:i], 10, 64)
			end, err2 := strconv.ParseInt(key[i+1:], 10, 64)
			if err1 == nil && err2 == nil {
				return start, end, true
			}
		}
	}
	return 0, 0, false
}
