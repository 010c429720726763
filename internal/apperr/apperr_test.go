package apperr

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestInvalid(t *testing.T) {
	err := Invalid("length must be positive, got %d", -1)
	if !errors.Is(err, ErrInputValidation) {
		t.Fatalf("expected ErrInputValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "got -1") {
		t.Errorf("message lost: %q", err.Error())
	}
}

func TestModel_WrapsBoth(t *testing.T) {
	err := Model("summarize chunk 2", context.DeadlineExceeded)
	if !errors.Is(err, ErrModelInvocation) {
		t.Error("expected ErrModelInvocation")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected cause to stay reachable")
	}
}

func TestModel_NoDoubleWrap(t *testing.T) {
	inner := Model("generate", errors.New("boom"))
	outer := Model("step 3", inner)
	if got := strings.Count(outer.Error(), ErrModelInvocation.Error()); got != 1 {
		t.Errorf("expected sentinel text once, got %d in %q", got, outer.Error())
	}
}

func TestModel_Nil(t *testing.T) {
	if Model("noop", nil) != nil {
		t.Error("expected nil for nil error")
	}
}
