// Package obsinn implements the Obsinn Parser (C4): a pure function
// from a text blob to a header plus a sequence of typed observation
// rows, per spec.md §4.1's batch grammar:
//
//	header-line \n
//	column-line \n
//	(data-line \n?)+
package obsinn

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/metno/lard/internal/errs"
	"github.com/metno/lard/internal/paramreg"
)

// Header carries the chunk-level metadata parsed from the header-line.
type Header struct {
	StationID int32
	TypeID    int32
	MessageID int
}

// Column is one column spec from the column-line: NAME or
// NAME(sensor,level).
type Column struct {
	Name   string
	Sensor *int32
	Level  *int32
}

// Value is a parsed data-line cell: either a float (scalar parameter)
// or an opaque string (non-scalar or unregistered parameter).
type Value struct {
	Float   float32
	IsFloat bool
	Text    string
}

// Row is one timestamped line of the batch, already split into one
// Value per Column.
type Row struct {
	Timestamp time.Time
	Values    []Value
}

// Batch is the full parsed chunk: the header, the column specs, and
// every data row.
type Batch struct {
	Header  Header
	Columns []Column
	Rows    []Row
}

const timeLayout = "20060102150405"

// Parse parses body (the text blob received as the POST /kldata request
// body) into a Batch. reg is consulted to decide, per column, whether a
// value must parse as a float (registered scalar parameter) or is
// carried through as opaque text (registered non-scalar, or
// unregistered). Non-UTF-8 input is a hard parse error (§4.1).
func Parse(body string, reg *paramreg.Registry) (Batch, error) {
	const op = "obsinn.Parse"

	if !utf8.ValidString(body) {
		return Batch{}, errs.E(op, errs.Parse, fmt.Errorf("input is not valid UTF-8"))
	}

	lines := splitLines(body)
	if len(lines) < 3 {
		return Batch{}, errs.E(op, errs.Parse, fmt.Errorf("empty row"))
	}

	header, err := parseHeader(lines[0])
	if err != nil {
		return Batch{}, errs.E(op, errs.Parse, err)
	}

	columns, err := parseColumnLine(lines[1])
	if err != nil {
		return Batch{}, errs.E(op, errs.Parse, err)
	}

	var rows []Row
	for _, line := range lines[2:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		row, err := parseDataLine(line, columns, reg)
		if err != nil {
			return Batch{}, errs.E(op, errs.Parse, err)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return Batch{}, errs.E(op, errs.Parse, fmt.Errorf("empty row"))
	}

	return Batch{Header: header, Columns: columns, Rows: rows}, nil
}

func splitLines(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	lines := strings.Split(body, "\n")
	// Drop a single trailing empty line from a final newline; §6 says
	// "no trailing newline required" so both shapes must parse the same.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func parseHeader(line string) (Header, error) {
	fields := strings.Split(line, "/")
	if len(fields) == 0 || fields[0] != "kldata" {
		return Header{}, fmt.Errorf("header must start with 'kldata'")
	}

	h := Header{MessageID: 0}
	var haveStation, haveType bool

	for _, f := range fields[1:] {
		if f == "add" {
			continue // legacy marker, ignored
		}

		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			return Header{}, fmt.Errorf("malformed header field %q", f)
		}
		key, val := kv[0], kv[1]

		switch key {
		case "nationalnr":
			n, err := strconv.ParseInt(val, 10, 32)
			if err != nil {
				return Header{}, fmt.Errorf("invalid nationalnr %q: %w", val, err)
			}
			h.StationID = int32(n)
			haveStation = true
		case "type":
			n, err := strconv.ParseInt(val, 10, 32)
			if err != nil {
				return Header{}, fmt.Errorf("invalid type %q: %w", val, err)
			}
			h.TypeID = int32(n)
			haveType = true
		case "messageid":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Header{}, fmt.Errorf("invalid messageid %q: %w", val, err)
			}
			h.MessageID = n
		case "received_time":
			// opaque, ignored by the core per §4.1
		default:
			return Header{}, fmt.Errorf("unknown header key %q", key)
		}
	}

	if !haveStation {
		return Header{}, fmt.Errorf("missing required header key 'nationalnr'")
	}
	if !haveType {
		return Header{}, fmt.Errorf("missing required header key 'type'")
	}

	return h, nil
}

func parseColumnLine(line string) ([]Column, error) {
	// Split on commas outside parentheses so NAME(sensor,level) stays whole.
	var specs []string
	depth, from := 0, 0
	for i, r := range line {
		if r == '(' {
			depth++
		} else if r == ')' {
			depth--
		} else if r == ',' && depth == 0 {
			specs = append(specs, line[from:i])
			from = i + 1
		}
	}
	specs = append(specs, line[from:])
	columns := make([]Column, 0, len(specs))

	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			return nil, fmt.Errorf("empty column spec")
		}

		open := strings.IndexByte(spec, '(')
		if open < 0 {
			columns = append(columns, Column{Name: spec})
			continue
		}
		if !strings.HasSuffix(spec, ")") {
			return nil, fmt.Errorf("malformed column spec %q", spec)
		}

		name := spec[:open]
		inner := spec[open+1 : len(spec)-1]
		parts := strings.Split(inner, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed column spec %q: want NAME(sensor,level)", spec)
		}

		sensor, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid sensor in %q: %w", spec, err)
		}
		level, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid level in %q: %w", spec, err)
		}

		s32, l32 := int32(sensor), int32(level)
		columns = append(columns, Column{Name: name, Sensor: &s32, Level: &l32})
	}

	return columns, nil
}

func parseDataLine(line string, columns []Column, reg *paramreg.Registry) (Row, error) {
	fields := strings.Split(line, ",")
	if len(fields) != len(columns)+1 {
		return Row{}, fmt.Errorf("data line has %d fields, want %d (1 timestamp + %d columns)",
			len(fields), len(columns)+1, len(columns))
	}

	ts, err := time.Parse(timeLayout, strings.TrimSpace(fields[0]))
	if err != nil {
		return Row{}, fmt.Errorf("invalid timestamp %q: %w", fields[0], err)
	}
	ts = ts.UTC()

	values := make([]Value, len(columns))
	for i, col := range columns {
		raw := strings.TrimSpace(fields[i+1])

		entry, known := reg.Lookup(col.Name)
		if known && entry.IsScalar {
			f, err := strconv.ParseFloat(raw, 32)
			if err != nil {
				return Row{}, fmt.Errorf("column %q: invalid scalar value %q: %w", col.Name, raw, err)
			}
			values[i] = Value{Float: float32(f), IsFloat: true}
			continue
		}

		values[i] = Value{Text: raw}
	}

	return Row{Timestamp: ts, Values: values}, nil
}
