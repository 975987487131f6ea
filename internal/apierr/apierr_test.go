package apierr

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCodeOfUnwrapsWrappedError(t *testing.T) {
	inner := New(CodeNoMatch, "nothing matched")
	outer := Wrap(inner, CodeInvalidBody, "handler failed")
	if CodeOf(outer) != CodeInvalidBody {
		t.Fatalf("CodeOf(outer) = %q, want %q", CodeOf(outer), CodeInvalidBody)
	}
}

func TestCodeOfReturnsEmptyForPlainError(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != "" {
		t.Fatalf("CodeOf(plain error) = %q, want empty", got)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Code]int{
		CodeNotFound:         404,
		CodeInvalidBody:      400,
		CodeMultipleMatches:  400,
		CodeCDPNotAttached:   400,
		CodeCDPClosed:        500,
		CodeOperatorError:    500,
	}
	for code, want := range cases {
		if got := code.HTTPStatus(); got != want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", code, got, want)
		}
	}
}

func TestWriteErrorSetsStatusAndEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, New(CodeMultipleMatches, "2 matches"))
	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"ok":false`) || !strings.Contains(body, `"code":"multiple_matches"`) {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestWriteOKMergesPayloadFields(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteOK(rec, map[string]any{"matches": 2, "clicked": 2})
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"ok":true`) || !strings.Contains(body, `"matches":2`) {
		t.Fatalf("unexpected body: %s", body)
	}
}
