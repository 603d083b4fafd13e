package main

import (
	"errors"
	"fmt"
	"testing"
)

func TestCommandError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *CommandError
		want string
	}{
		{
			name: "with stderr",
			err:  NewCommandError("docker pull redis:7.2.3", 1, "no space left on device\n", nil),
			want: "docker pull redis:7.2.3 (exit 1): no space left on device",
		},
		{
			name: "wrapped only",
			err:  NewCommandError("npm ci", -1, "", errors.New("executable not found")),
			want: "npm ci (exit -1): executable not found",
		},
		{
			name: "bare",
			err:  NewCommandError("docker info", 1, "", nil),
			want: "docker info (exit 1)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	inner := errors.New("exit status 125")
	err := NewCommandError("docker compose up", 125, "", inner)
	if !errors.Is(err, inner) {
		t.Error("errors.Is did not reach the wrapped error")
	}
}

func TestWrapCommandError_NoDoubleWrap(t *testing.T) {
	original := NewCommandError("docker pull minio/minio:latest", 1, "timeout", nil)
	wrapped := WrapCommandError(original, "other", 2, "other stderr")
	if wrapped != original {
		t.Error("existing CommandError was re-wrapped")
	}
	if WrapCommandError(nil, "cmd", 0, "") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestExtractStderr(t *testing.T) {
	cmdErr := NewCommandError("docker pull traefik:v2.10", 1, "manifest unknown", nil)
	chained := fmt.Errorf("pulling images: %w", fmt.Errorf("attempt 3: %w", cmdErr))

	if got := ExtractStderr(chained); got != "manifest unknown" {
		t.Errorf("ExtractStderr() = %q, want manifest unknown", got)
	}
	if got := ExtractStderr(errors.New("plain")); got != "" {
		t.Errorf("ExtractStderr(plain) = %q, want empty", got)
	}
	if got := ExtractStderr(NewCommandError("docker info", 1, "", nil)); got != "" {
		t.Errorf("ExtractStderr(no stderr) = %q, want empty", got)
	}
}

func TestSetupError_WrapsCause(t *testing.T) {
	cause := NewCommandError("docker info", 1, "daemon not running", nil)
	err := NewSetupError("preflight", cause)

	if err.Error() != `setup step "preflight" failed: docker info (exit 1): daemon not running` {
		t.Errorf("Error() = %q", err.Error())
	}
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Error("errors.As did not reach the CommandError through SetupError")
	}
	if got := ExtractStderr(err); got != "daemon not running" {
		t.Errorf("ExtractStderr through SetupError = %q", got)
	}
}
