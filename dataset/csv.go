package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rushteam/fraudkit/core"
)

// LoadCSV 从文件读取带表头的 CSV
func LoadCSV(path string) (*core.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	ds, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ds, nil
}

// ReadCSV 读取带表头的 CSV，并按列推断类型：
//   - 所有非空单元格都能解析为整数 -> numeric，值为 int64
//   - 所有非空单元格都能解析为浮点数 -> numeric，值为 float64
//   - 否则 -> categorical，值为 string
//
// 空单元格记为 nil（缺失值）。空表头按 "Unnamed: <列号>" 命名。
func ReadCSV(r io.Reader) (*core.Dataset, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, core.NewDomainError(core.ModuleDataset, core.ErrorCodeInsufficientData, "csv has no header")
	}

	header := records[0]
	names := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		names[i] = h
	}

	body := records[1:]
	kinds := make([]columnType, len(names))
	for j := range names {
		kinds[j] = inferColumn(body, j)
	}

	ds := &core.Dataset{
		Columns: make([]core.Column, len(names)),
		Rows:    make([]core.Record, 0, len(body)),
	}
	for j, name := range names {
		kind := core.KindCategorical
		if kinds[j] != typeString {
			kind = core.KindNumeric
		}
		ds.Columns[j] = core.Column{Name: name, Kind: kind}
	}

	for i, row := range body {
		rec := make(core.Record, len(names))
		for j, name := range names {
			cell := strings.TrimSpace(row[j])
			if cell == "" {
				rec[name] = nil
				continue
			}
			v, err := parseCell(cell, kinds[j])
			if err != nil {
				return nil, fmt.Errorf("row %d col %s: %w", i+1, name, err)
			}
			rec[name] = v
		}
		ds.Rows = append(ds.Rows, rec)
	}
	return ds, nil
}

type columnType int

const (
	typeInt columnType = iota
	typeFloat
	typeString
)

func inferColumn(rows [][]string, j int) columnType {
	t := typeInt
	for _, row := range rows {
		cell := strings.TrimSpace(row[j])
		if cell == "" {
			continue
		}
		if t == typeInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
				continue
			}
			t = typeFloat
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return typeString
		}
	}
	return t
}

func parseCell(cell string, t columnType) (any, error) {
	switch t {
	case typeInt:
		v, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, err
		}
		return v, nil
	case typeFloat:
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return cell, nil
	}
}

// WriteCSV 按列顺序写出数据集（nil 写为空单元格）
func WriteCSV(w io.Writer, ds *core.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.ColumnNames()); err != nil {
		return err
	}
	row := make([]string, len(ds.Columns))
	for _, r := range ds.Rows {
		for j, c := range ds.Columns {
			row[j] = formatCell(r[c.Name])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
