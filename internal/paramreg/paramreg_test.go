package paramreg

import (
	"strings"
	"testing"

	"github.com/metno/lard/internal/errs"
)

const sampleCSV = "106,TA,215108,t\n" +
	"107,TGX,215109,t\n" +
	"2001,KLOBS,900001,f\n"

func TestParseAndLookup(t *testing.T) {
	reg, err := parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if reg.Len() != 3 {
		t.Fatalf("got %d entries, want 3", reg.Len())
	}

	ta, ok := reg.Lookup("TA")
	if !ok {
		t.Fatal("TA not found")
	}
	if ta.ID != 106 || ta.ElementID != "215108" || !ta.IsScalar {
		t.Errorf("unexpected TA entry: %+v", ta)
	}

	kl, ok := reg.Lookup("KLOBS")
	if !ok {
		t.Fatal("KLOBS not found")
	}
	if kl.IsScalar {
		t.Error("KLOBS should be non-scalar")
	}

	if _, ok := reg.Lookup("MISSING"); ok {
		t.Error("expected miss for unregistered code")
	}
}

func TestParseInvalidRow(t *testing.T) {
	_, err := parse(strings.NewReader("not-an-int,TA,1,t\n"))
	if errs.KindOf(err) != errs.Config {
		t.Fatalf("expected Config-kind error, got %v", err)
	}
}
