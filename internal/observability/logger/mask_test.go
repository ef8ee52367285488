package logger

import (
	"net/http"
	"testing"
)

func TestMaskAuthorization(t *testing.T) {
	got := MaskAuthorization("Bearer abcdef1234")
	want := "Bearer ****1234"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMaskAPIKey(t *testing.T) {
	got := MaskAPIKey("lmn_abcdef1234")
	want := "****1234"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMaskHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer abcdef1234")
	headers.Set("Content-Type", "application/json")

	masked := MaskHeaders(headers)
	if masked["Authorization"] != "Bearer ****1234" {
		t.Fatalf("expected masked authorization, got %q", masked["Authorization"])
	}
	if masked["Content-Type"] != "application/json" {
		t.Fatalf("expected content type untouched, got %q", masked["Content-Type"])
	}
}

func TestMaskProperties(t *testing.T) {
	input := map[string]any{
		"password": "hunter2",
		"token":    "abc12345",
		"user_id":  "u-1",
		"nested": map[string]any{
			"api_key": "key_12345678",
		},
	}
	masked := MaskProperties(input)
	if masked["password"] != "****ter2" {
		t.Fatalf("expected masked password, got %v", masked["password"])
	}
	if masked["token"] != "****2345" {
		t.Fatalf("expected masked token, got %v", masked["token"])
	}
	if masked["user_id"] != "u-1" {
		t.Fatalf("expected user_id untouched, got %v", masked["user_id"])
	}
	nested, ok := masked["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested map")
	}
	if nested["api_key"] != "****5678" {
		t.Fatalf("expected masked api_key, got %v", nested["api_key"])
	}
}
