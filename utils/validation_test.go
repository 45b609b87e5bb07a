package utils

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
)

type testReward struct {
	RewardID   string `json:"reward_id" validate:"required"`
	RewardType string `json:"reward_type" validate:"required,reward_type"`
}

type testRedeem struct {
	CustomerID int64        `json:"customer_id" validate:"required,gt=0"`
	Rewards    []testReward `json:"redeemed_rewards" validate:"dive"`
}

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	if err := RegisterValidators(v); err != nil {
		t.Fatalf("register validators: %v", err)
	}
	return v
}

func TestSanitizeValidationErrorUsesJSONNames(t *testing.T) {
	v := newValidator(t)

	err := v.Struct(testRedeem{})
	if err == nil {
		t.Fatal("expected validation error for missing customer_id")
	}

	msg := SanitizeValidationError(err)
	if !strings.Contains(msg, "customer_id is required") {
		t.Errorf("expected message to name customer_id, got: %s", msg)
	}
	if strings.Contains(msg, "CustomerID") {
		t.Errorf("message leaks Go field name: %s", msg)
	}
}

func TestRewardTypeValidator(t *testing.T) {
	v := newValidator(t)

	ok := testRedeem{CustomerID: 1, Rewards: []testReward{
		{RewardID: "a", RewardType: "cashback"},
		{RewardID: "b", RewardType: "limited_usage"},
		{RewardID: "c", RewardType: "custom"},
	}}
	if err := v.Struct(ok); err != nil {
		t.Fatalf("expected valid request, got: %v", err)
	}

	bad := testRedeem{CustomerID: 1, Rewards: []testReward{{RewardID: "a", RewardType: "voucher"}}}
	err := v.Struct(bad)
	if err == nil {
		t.Fatal("expected error for unknown reward_type")
	}
	msg := SanitizeValidationError(err)
	if !strings.Contains(msg, "redeemed_rewards[0].reward_type") {
		t.Errorf("expected nested field path, got: %s", msg)
	}
	if !strings.Contains(msg, "cashback, limited_usage, custom") {
		t.Errorf("expected allowed values in message, got: %s", msg)
	}
}

func TestSanitizeValidationErrorNilReturnsEmpty(t *testing.T) {
	msg := SanitizeValidationError(nil)
	if msg != "" {
		t.Errorf("expected empty string for nil error, got: %s", msg)
	}
}

func TestSanitizeValidationErrorNonValidatorError(t *testing.T) {
	msg := SanitizeValidationError(errors.New("json: cannot unmarshal string into Go struct field"))
	if !strings.Contains(msg, "wrong type") {
		t.Errorf("expected type error message, got: %s", msg)
	}

	msg = SanitizeValidationError(errors.New("EOF"))
	if msg != "Invalid request body" {
		t.Errorf("expected generic message, got: %s", msg)
	}
}

func TestSanitizeValidationErrorGreaterThan(t *testing.T) {
	v := newValidator(t)
	err := v.Struct(testRedeem{CustomerID: -3})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if msg := SanitizeValidationError(err); !strings.Contains(msg, "greater than 0") {
		t.Errorf("expected gt message, got: %s", msg)
	}
}
