package qnx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMockModeShortCircuits(t *testing.T) {
	c := NewClient(ModeMock, "http://should-not-be-called", time.Second)
	payload := map[string]any{"plant_id": "p1", "servo_angle_deg": 45.0}

	res, err := c.SendWaterCommand(context.Background(), payload)
	if err != nil {
		t.Fatalf("SendWaterCommand error: %v", err)
	}
	if res.Status != "queued_mock" || res.Forwarded {
		t.Fatalf("result = %+v", res)
	}
}

func TestRealModeWithoutBaseURLFallsBackToMock(t *testing.T) {
	c := NewClient(ModeReal, "", time.Second)
	res, err := c.SendWaterCommand(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "queued_mock" || res.Forwarded {
		t.Fatalf("result = %+v", res)
	}
}

func TestRealModeForwardsCommand(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		json.NewEncoder(w).Encode(map[string]any{"ack": true})
	}))
	defer srv.Close()

	c := NewClient(ModeReal, srv.URL, time.Second)
	res, err := c.SendWaterCommand(context.Background(), map[string]any{"water_ml": 10.0})
	if err != nil {
		t.Fatalf("SendWaterCommand error: %v", err)
	}

	if gotPath != "/api/servo/water" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["water_ml"] != 10.0 {
		t.Errorf("forwarded body = %v", gotBody)
	}
	if res.Status != "sent" || !res.Forwarded {
		t.Errorf("result = %+v", res)
	}
	resp, ok := res.Response.(map[string]any)
	if !ok || resp["ack"] != true {
		t.Errorf("response = %v", res.Response)
	}
}

func TestRealModeWrapsNonJSONReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "OK")
	}))
	defer srv.Close()

	c := NewClient(ModeReal, srv.URL, time.Second)
	res, err := c.SendWaterCommand(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	wrapped, ok := res.Response.(map[string]any)
	if !ok || wrapped["text"] != "OK" {
		t.Fatalf("response = %v", res.Response)
	}
}

func TestRealModeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "servo jammed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(ModeReal, srv.URL, time.Second)
	if _, err := c.SendWaterCommand(context.Background(), nil); err == nil {
		t.Fatal("error status not surfaced")
	}
}
