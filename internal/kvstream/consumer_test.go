package kvstream

import (
	"testing"

	"github.com/metno/lard/internal/errs"
)

func TestHandlePayloadRejectsNonXML(t *testing.T) {
	w := New(nil)
	err := w.HandlePayload([]byte("not xml at all"))
	if errs.KindOf(err) != errs.Parse {
		t.Fatalf("expected Parse-kind error, got %v", err)
	}
}

func TestHandlePayloadRejectsMissingPrologEnd(t *testing.T) {
	w := New(nil)
	err := w.HandlePayload([]byte("<?xml version=\"1.0\""))
	if errs.KindOf(err) != errs.Parse {
		t.Fatalf("expected Parse-kind error, got %v", err)
	}
}
