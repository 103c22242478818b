package obsinn

import (
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/metno/lard/internal/errs"
	"github.com/metno/lard/internal/paramreg"
)

func testRegistry(t *testing.T) *paramreg.Registry {
	t.Helper()
	// TA/TGX scalar per S1/S2; KLOBS kept non-scalar to exercise the
	// opaque-text path.
	const csv = "106,TA,215108,t\n107,TGX,215109,t\n2001,KLOBS,900001,f\n"
	reg, err := paramreg.Load(writeTemp(t, csv))
	if err != nil {
		t.Fatalf("loading fixture registry: %v", err)
	}
	return reg
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	f := t.TempDir() + "/params.csv"
	if err := os.WriteFile(f, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return f
}

func TestParseHappyPath(t *testing.T) {
	reg := testRegistry(t)
	batch := "kldata/nationalnr=20001/type=501/messageid=23\n" +
		"TA,TGX\n" +
		"20240101000000,1.5,2.5\n" +
		"20240101010000,1.6,2.6\n"

	b, err := Parse(batch, reg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if b.Header.StationID != 20001 || b.Header.TypeID != 501 || b.Header.MessageID != 23 {
		t.Fatalf("unexpected header: %+v", b.Header)
	}
	if len(b.Columns) != 2 || b.Columns[0].Name != "TA" || b.Columns[1].Name != "TGX" {
		t.Fatalf("unexpected columns: %+v", b.Columns)
	}
	if len(b.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(b.Rows))
	}
	if !b.Rows[0].Values[0].IsFloat || b.Rows[0].Values[0].Float != 1.5 {
		t.Errorf("unexpected first value: %+v", b.Rows[0].Values[0])
	}
}

func TestParseMissingRequiredHeaderKeys(t *testing.T) {
	reg := testRegistry(t)
	_, err := Parse("kldata/type=501\nTA\n20240101000000,1.0\n", reg)
	if errs.KindOf(err) != errs.Parse {
		t.Fatalf("expected Parse-kind error for missing nationalnr, got %v", err)
	}

	_, err = Parse("kldata/nationalnr=20001\nTA\n20240101000000,1.0\n", reg)
	if errs.KindOf(err) != errs.Parse {
		t.Fatalf("expected Parse-kind error for missing type, got %v", err)
	}
}

func TestParseUnknownHeaderKey(t *testing.T) {
	reg := testRegistry(t)
	_, err := Parse("kldata/nationalnr=1/type=1/bogus=xyz\nTA\n20240101000000,1.0\n", reg)
	if errs.KindOf(err) != errs.Parse {
		t.Fatalf("expected Parse-kind error for unknown header key, got %v", err)
	}
}

func TestParseColumnWithSensorLevel(t *testing.T) {
	reg := testRegistry(t)
	b, err := Parse("kldata/nationalnr=1/type=1\nTA(0,2)\n20240101000000,1.0\n", reg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	col := b.Columns[0]
	if col.Sensor == nil || *col.Sensor != 0 {
		t.Errorf("unexpected sensor: %+v", col.Sensor)
	}
	if col.Level == nil || *col.Level != 2 {
		t.Errorf("unexpected level: %+v", col.Level)
	}
}

func TestParseNonScalarCarriesOpaqueText(t *testing.T) {
	reg := testRegistry(t)
	b, err := Parse("kldata/nationalnr=1/type=1\nKLOBS\n20240101000000,some-code\n", reg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.Rows[0].Values[0].IsFloat {
		t.Error("KLOBS should not be parsed as scalar")
	}
	if b.Rows[0].Values[0].Text != "some-code" {
		t.Errorf("unexpected text: %q", b.Rows[0].Values[0].Text)
	}
}

func TestParseUnregisteredColumnIsOpaque(t *testing.T) {
	reg := testRegistry(t)
	b, err := Parse("kldata/nationalnr=1/type=1\nUNKNOWNCODE\n20240101000000,anything\n", reg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.Rows[0].Values[0].IsFloat {
		t.Error("unregistered column should not be parsed as scalar")
	}
}

func TestParseScalarColumnBadValueIsError(t *testing.T) {
	reg := testRegistry(t)
	_, err := Parse("kldata/nationalnr=1/type=1\nTA\n20240101000000,not-a-number\n", reg)
	if errs.KindOf(err) != errs.Parse {
		t.Fatalf("expected Parse-kind error, got %v", err)
	}
}

func TestParseEmptyRowIsError(t *testing.T) {
	reg := testRegistry(t)
	_, err := Parse("kldata/nationalnr=1/type=1\nTA\n", reg)
	if errs.KindOf(err) != errs.Parse {
		t.Fatalf("expected Parse-kind error for empty row, got %v", err)
	}
}

func TestParseNonUTF8IsError(t *testing.T) {
	reg := testRegistry(t)
	bad := "kldata/nationalnr=1/type=1\nTA\n" + string([]byte{0xff, 0xfe}) + "\n"
	_, err := Parse(bad, reg)
	if errs.KindOf(err) != errs.Parse {
		t.Fatalf("expected Parse-kind error for non-UTF8 input, got %v", err)
	}
}

func TestParseTolerantOfMissingTrailingNewline(t *testing.T) {
	reg := testRegistry(t)
	withNL, err1 := Parse("kldata/nationalnr=1/type=1\nTA\n20240101000000,1.0\n", reg)
	withoutNL, err2 := Parse("kldata/nationalnr=1/type=1\nTA\n20240101000000,1.0", reg)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v / %v", err1, err2)
	}
	if len(withNL.Rows) != len(withoutNL.Rows) {
		t.Errorf("trailing newline changed row count: %d vs %d", len(withNL.Rows), len(withoutNL.Rows))
	}
}

// TestParseRoundTrip exercises property 1 of §8: re-emitting a parsed
// batch as the same wire format and re-parsing it yields the same
// observation set.
func TestParseRoundTrip(t *testing.T) {
	reg := testRegistry(t)
	original := "kldata/nationalnr=20001/type=501/messageid=7\n" +
		"TA,TGX\n" +
		"20240101000000,1.5,2.5\n" +
		"20240101010000,1.6,2.6\n"

	b1, err := Parse(original, reg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	re := emit(b1)
	b2, err := Parse(re, reg)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}

	if len(b1.Rows) != len(b2.Rows) {
		t.Fatalf("row count mismatch: %d vs %d", len(b1.Rows), len(b2.Rows))
	}
	for i := range b1.Rows {
		if !b1.Rows[i].Timestamp.Equal(b2.Rows[i].Timestamp) {
			t.Errorf("row %d timestamp mismatch", i)
		}
		for j := range b1.Rows[i].Values {
			if b1.Rows[i].Values[j] != b2.Rows[i].Values[j] {
				t.Errorf("row %d col %d value mismatch: %+v vs %+v", i, j, b1.Rows[i].Values[j], b2.Rows[i].Values[j])
			}
		}
	}
}

// emit re-serializes a Batch back to the wire format, used only by the
// round-trip test above.
func emit(b Batch) string {
	var sb strings.Builder
	sb.WriteString("kldata/nationalnr=")
	sb.WriteString(strconv.Itoa(int(b.Header.StationID)))
	sb.WriteString("/type=")
	sb.WriteString(strconv.Itoa(int(b.Header.TypeID)))
	sb.WriteString("/messageid=")
	sb.WriteString(strconv.Itoa(b.Header.MessageID))
	sb.WriteByte('\n')

	for i, c := range b.Columns {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(c.Name)
	}
	sb.WriteByte('\n')

	for _, row := range b.Rows {
		sb.WriteString(row.Timestamp.Format(timeLayout))
		for _, v := range row.Values {
			sb.WriteByte(',')
			if v.IsFloat {
				sb.WriteString(strconv.FormatFloat(float64(v.Float), 'f', -1, 32))
			} else {
				sb.WriteString(v.Text)
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
