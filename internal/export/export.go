// Package export writes the enriched network out of the feature store as CSV
// or JSON, including the hydrology discharge table.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/chrissnell/brat/internal/types"
	"go.uber.org/zap"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatJSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("invalid format: %s. Must be csv or json", s)
}

// Exporter writes sources to a writer, logging progress.
type Exporter struct {
	logger *zap.SugaredLogger
}

// New returns an Exporter.
func New(logger *zap.SugaredLogger) *Exporter {
	return &Exporter{logger: logger}
}

// Write exports src to w in the given format and returns the row count.
func (e *Exporter) Write(ctx context.Context, w io.Writer, src Source, format Format) (int64, error) {
	total, err := src.Count(ctx)
	if err != nil {
		return 0, err
	}
	e.logger.Infow("exporting segments", "format", format, "rows", total)

	var n int64
	switch format {
	case FormatCSV:
		n, err = e.writeCSV(ctx, w, src, total)
	case FormatJSON:
		n, err = e.writeJSON(ctx, w, src, total)
	default:
		return 0, fmt.Errorf("invalid format: %s", format)
	}
	if err != nil {
		return n, err
	}
	e.logger.Infow("export complete", "rows", n)
	return n, nil
}

// progress logs at every tenth of the total.
type progress struct {
	logger *zap.SugaredLogger
	total  int64
	count  int64
	last   int64
}

func (p *progress) step() {
	p.count++
	if p.total <= 0 {
		return
	}
	if pct := p.count * 10 / p.total; pct != p.last {
		p.last = pct
		p.logger.Debugw("export progress", "percent", pct*10, "rows", p.count, "total", p.total)
	}
}

func (e *Exporter) writeCSV(ctx context.Context, w io.Writer, src Source, total int64) (int64, error) {
	writer := csv.NewWriter(w)
	prog := &progress{logger: e.logger, total: total}

	header := false
	err := src.Rows(ctx, func(columns []string, row map[string]any) error {
		if !header {
			if err := writer.Write(columns); err != nil {
				return fmt.Errorf("failed to write headers: %w", err)
			}
			header = true
		}

		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = formatValue(row[col])
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
		prog.step()
		return nil
	})
	if err != nil {
		return prog.count, err
	}

	writer.Flush()
	return prog.count, writer.Error()
}

func (e *Exporter) writeJSON(ctx context.Context, w io.Writer, src Source, total int64) (int64, error) {
	if _, err := io.WriteString(w, "["); err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	prog := &progress{logger: e.logger, total: total}
	err := src.Rows(ctx, func(_ []string, row map[string]any) error {
		sep := ",\n  "
		if prog.count == 0 {
			sep = "\n  "
		}
		if _, err := io.WriteString(w, sep); err != nil {
			return err
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		prog.step()
		return nil
	})
	if err != nil {
		return prog.count, err
	}

	_, err = io.WriteString(w, "]\n")
	return prog.count, err
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// HydrologyColumns is the header of the discharge table.
var HydrologyColumns = []string{types.FieldReachID, types.FieldQLow, types.FieldQ2}

// WriteHydrologyTable writes ReachID, baseflow and peakflow for each segment
// with discharge values. Segments the hydrology pass skipped are left out.
func WriteHydrologyTable(w io.Writer, segments []types.Segment) (int, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(HydrologyColumns); err != nil {
		return 0, err
	}

	n := 0
	for _, seg := range segments {
		qlow, ok1 := types.Value(seg.QLow)
		q2, ok2 := types.Value(seg.Q2)
		if !ok1 || !ok2 {
			continue
		}
		err := writer.Write([]string{
			strconv.FormatInt(seg.ID, 10),
			strconv.FormatFloat(qlow, 'f', -1, 64),
			strconv.FormatFloat(q2, 'f', -1, 64),
		})
		if err != nil {
			return n, err
		}
		n++
	}

	writer.Flush()
	return n, writer.Error()
}
