package discord

import (
	"errors"
	"testing"
)

func TestIsMessageNotFoundDetection(t *testing.T) {
	if !isMessageNotFound(errors.New("HTTP 404 Not Found, {\"message\": \"Unknown Message\", \"code\": 10008}")) {
		t.Fatal("expected not-found to be detected")
	}
	if isMessageNotFound(errors.New("some other error")) {
		t.Fatal("expected unrelated error not to match")
	}
}
