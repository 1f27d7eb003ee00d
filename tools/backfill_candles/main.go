// Fetch candles from the chain bridge and write a CSV for REPLAY_CSV dry runs.
//
// Usage:
//   go run ./tools/backfill_candles -symbol SOL/USDC -timeframe 1m -limit 300 -out data/SOL-USDC.csv
//   go run ./tools/backfill_candles -pages 10 -out data/SOL-USDC.csv   # page backward with end=
//
// Notes:
// - BRIDGE_URL comes from the process env or the -env dotenv file.
// - /candles rows carry "time" (UNIX seconds or RFC3339) and "close"; open,
//   high, low and volume are copied when the bridge sends them.
// - Rows are deduped by time and written ascending with RFC3339 timestamps.
package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type candleRow struct {
	Time   time.Time
	Open   string
	High   string
	Low    string
	Close  string
	Volume string
}

func main() {
	var (
		envPath   = flag.String("env", ".env", "dotenv file with BRIDGE_URL")
		symbol    = flag.String("symbol", "SOL/USDC", "market symbol")
		timeframe = flag.String("timeframe", "1m", "candle timeframe")
		limit     = flag.Int("limit", 300, "candles per page")
		pages     = flag.Int("pages", 1, "pages to fetch, newest first")
		outPath   = flag.String("out", "data/candles.csv", "output CSV path")
	)
	flag.Parse()

	if _, err := os.Stat(*envPath); err == nil {
		if err := godotenv.Load(*envPath); err != nil {
			fail(fmt.Errorf("load %s: %w", *envPath, err))
		}
	}
	bridge := strings.TrimRight(getenv("BRIDGE_URL", "http://127.0.0.1:8787"), "/")
	hc := &http.Client{Timeout: 15 * time.Second}

	seen := map[int64]candleRow{}
	var end time.Time
	for p := 0; p < *pages; p++ {
		rows, err := fetchPage(hc, bridge, *symbol, *timeframe, *limit, end)
		if err != nil {
			fail(err)
		}
		if len(rows) == 0 {
			break
		}
		oldest := rows[0].Time
		for _, r := range rows {
			seen[r.Time.Unix()] = r
			if r.Time.Before(oldest) {
				oldest = r.Time
			}
		}
		fmt.Printf("page %d: %d rows (oldest %s)\n", p+1, len(rows), oldest.Format(time.RFC3339))
		if !end.IsZero() && !oldest.Before(end) {
			break // bridge ignores end=; no older data to page into
		}
		end = oldest
	}
	if len(seen) == 0 {
		fail(errors.New("no candles returned"))
	}

	all := make([]candleRow, 0, len(seen))
	for _, r := range seen {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Time.Before(all[j].Time) })

	if err := writeCSV(*outPath, all); err != nil {
		fail(err)
	}
	fmt.Printf("Wrote %s (%d rows)\n", *outPath, len(all))
}

func fetchPage(hc *http.Client, bridge, symbol, timeframe string, limit int, end time.Time) ([]candleRow, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("timeframe", timeframe)
	q.Set("limit", strconv.Itoa(limit))
	if !end.IsZero() {
		q.Set("end", strconv.FormatInt(end.Unix(), 10))
	}
	u := bridge + "/candles?" + q.Encode()

	resp, err := hc.Get(u)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bridge /candles status %d", resp.StatusCode)
	}

	// A JSON array of rows; tolerate {"candles":[...]} too.
	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case map[string]any:
		list, _ = v["candles"].([]any)
	}

	out := make([]candleRow, 0, len(list))
	for _, it := range list {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		ts, ok := parseTime(m["time"])
		if !ok {
			continue
		}
		r := candleRow{
			Time:   ts,
			Open:   asString(m["open"]),
			High:   asString(m["high"]),
			Low:    asString(m["low"]),
			Close:  asString(m["close"]),
			Volume: asString(m["volume"]),
		}
		if r.Close != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

func writeCSV(path string, rows []candleRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{r.Time.UTC().Format(time.RFC3339), r.Open, r.High, r.Low, r.Close, r.Volume}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case float64:
		return time.Unix(int64(t), 0).UTC(), true
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts.UTC(), true
		}
		if sec, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.Unix(sec, 0).UTC(), true
		}
	}
	return time.Time{}, false
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; avoid scientific notation.
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "backfill:", err)
	os.Exit(1)
}
