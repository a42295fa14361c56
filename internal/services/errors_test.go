package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"cdbs/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "cdbsapi", "confirm", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"cdbsapi", "confirm", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestExitCodeMapping(t *testing.T) {
	validationErr := services.Wrap(services.ErrValidation, "selection", "expand", "duplicate name", nil)
	if code := services.ExitCode(validationErr); code != services.ExitInvalidInput {
		t.Fatalf("expected invalid input exit for validation error, got %d", code)
	}

	authErr := fmt.Errorf("confirm: %w", services.ErrUnauthorized)
	if code := services.ExitCode(authErr); code != services.ExitUnauthorized {
		t.Fatalf("expected unauthorized exit, got %d", code)
	}

	transientErr := services.Wrap(services.ErrTransient, "upload", "transfer", "put failed", errors.New("io"))
	if code := services.ExitCode(transientErr); code != services.ExitFailure {
		t.Fatalf("expected failure exit for transient error, got %d", code)
	}

	if code := services.ExitCode(nil); code != 0 {
		t.Fatalf("expected zero exit for nil error, got %d", code)
	}
}
