package cliapp

import (
	"testing"

	"github.com/argus-dev/argus/internal/apierr"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"invalid body", apierr.New(apierr.CodeInvalidBody, "bad"), exitUserInput},
		{"not found", apierr.New(apierr.CodeNotFound, "missing"), exitUserInput},
		{"multiple matches", apierr.New(apierr.CodeMultipleMatches, "ambiguous"), exitUserInput},
		{"connect failed", apierr.New(apierr.CodeConnectFailed, "down"), exitOperational},
		{"operator error", apierr.New(apierr.CodeOperatorError, "boom"), exitOperational},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestUsageErrorIsUserInput(t *testing.T) {
	err := usageError("missing key")
	if apierr.CodeOf(err) != apierr.CodeInvalidBody {
		t.Errorf("CodeOf(usageError(...)) = %v, want invalid_body", apierr.CodeOf(err))
	}
	if exitCodeFor(err) != exitUserInput {
		t.Errorf("exitCodeFor(usageError(...)) = %d, want %d", exitCodeFor(err), exitUserInput)
	}
}
