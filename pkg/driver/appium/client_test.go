package appium

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/devicelab-dev/flowdriver/pkg/core"
)

// writeJSON encodes data as JSON to the response writer.
func writeJSON(w http.ResponseWriter, data interface{}) {
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeWebDriverError writes a W3C error body.
func writeWebDriverError(w http.ResponseWriter, status int, code, message string) {
	w.WriteHeader(status)
	writeJSON(w, map[string]interface{}{
		"value": map[string]interface{}{
			"error":   code,
			"message": message,
		},
	})
}

func TestClient_Connect(t *testing.T) {
	var settingsCalled, timeoutsCalled bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/session" && r.Method == "POST":
			writeJSON(w, map[string]interface{}{
				"value": map[string]interface{}{
					"sessionId": "test-session-123",
					"capabilities": map[string]interface{}{
						"platformName":    "Android",
						"platformVersion": "14",
					},
				},
			})
		case r.URL.Path == "/session/test-session-123/appium/settings":
			settingsCalled = true
			writeJSON(w, map[string]interface{}{"value": nil})
		case r.URL.Path == "/session/test-session-123/timeouts":
			timeoutsCalled = true
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["implicit"] != 0.0 {
				t.Errorf("Expected implicit wait 0, got %v", body["implicit"])
			}
			writeJSON(w, map[string]interface{}{"value": nil})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Connect(context.Background(), map[string]interface{}{
		"platformName": "Android",
	})

	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if client.sessionID != "test-session-123" {
		t.Errorf("Expected sessionID 'test-session-123', got '%s'", client.sessionID)
	}

	if client.platform != "android" {
		t.Errorf("Expected platform 'android', got '%s'", client.platform)
	}

	if !settingsCalled || !timeoutsCalled {
		t.Errorf("Expected settings and timeouts calls, got settings=%v timeouts=%v", settingsCalled, timeoutsCalled)
	}
}

func TestClient_ConnectNoSessionID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"value": map[string]interface{}{},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Connect(context.Background(), map[string]interface{}{})
	if err == nil {
		t.Fatal("Expected error for missing session ID")
	}
}

func TestClient_Disconnect(t *testing.T) {
	deleteCalled := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/test-session" && r.Method == "DELETE" {
			deleteCalled = true
			writeJSON(w, map[string]interface{}{"value": nil})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "test-session"

	if err := client.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	if !deleteCalled {
		t.Error("Expected DELETE request")
	}

	if client.sessionID != "" {
		t.Error("Expected sessionID to be cleared")
	}

	// Second disconnect is a no-op
	if err := client.Disconnect(context.Background()); err != nil {
		t.Errorf("Second Disconnect failed: %v", err)
	}
}

func TestClient_FindElement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/test-session/element" && r.Method == "POST" {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["using"] != "accessibility id" || body["value"] != "myButton" {
				t.Errorf("Unexpected find body: %v", body)
			}
			writeJSON(w, map[string]interface{}{
				"value": map[string]interface{}{
					"element-6066-11e4-a52e-4f735466cecf": "elem-123",
				},
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "test-session"

	elemID, err := client.FindElement(context.Background(), "accessibility id", "myButton")
	if err != nil {
		t.Fatalf("FindElement failed: %v", err)
	}

	if elemID != "elem-123" {
		t.Errorf("Expected element ID 'elem-123', got '%s'", elemID)
	}
}

func TestClient_FindElementNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeWebDriverError(w, http.StatusNotFound, "no such element", "An element could not be located")
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "test-session"

	_, err := client.FindElement(context.Background(), "xpath", "//missing")
	if err == nil {
		t.Fatal("Expected error")
	}

	if !errors.Is(err, core.ErrNoSuchElement) {
		t.Errorf("Expected ErrNoSuchElement, got %v", err)
	}

	var wdErr *WebDriverError
	if !errors.As(err, &wdErr) {
		t.Fatalf("Expected *WebDriverError, got %T", err)
	}
	if wdErr.Status != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", wdErr.Status)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		code     string
		notFound bool
	}{
		{"no such element", true},
		{"stale element reference", true},
		{"invalid session id", false},
		{"unknown error", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := error(&WebDriverError{Status: 500, Code: tt.code, Message: "x"})
			if IsNoSuchElement(err) != tt.notFound {
				t.Errorf("IsNoSuchElement(%q) = %v, want %v", tt.code, !tt.notFound, tt.notFound)
			}
		})
	}
}

func TestClient_HTTPErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		writeJSON(w, map[string]interface{}{"value": nil})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "test-session"

	err := client.ClickElement(context.Background(), "elem-1")
	if err == nil {
		t.Fatal("Expected error for 502")
	}
	if IsNoSuchElement(err) {
		t.Error("502 must not be treated as a missing element")
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		writeJSON(w, map[string]interface{}{"value": nil})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "test-session"

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.IsElementDisplayed(ctx, "elem-1")
	if err == nil {
		t.Fatal("Expected error from cancelled context")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Request did not honour the context deadline")
	}
}

func TestClient_IsElementDisplayed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/test-session/element/elem-1/displayed" && r.Method == "GET" {
			writeJSON(w, map[string]interface{}{"value": true})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "test-session"

	displayed, err := client.IsElementDisplayed(context.Background(), "elem-1")
	if err != nil {
		t.Fatalf("IsElementDisplayed failed: %v", err)
	}
	if !displayed {
		t.Error("Expected element to be displayed")
	}
}

func TestClient_GetElementText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/test-session/element/elem-1/text" {
			writeJSON(w, map[string]interface{}{
				"value": "Hello World",
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "test-session"

	text, err := client.GetElementText(context.Background(), "elem-1")
	if err != nil {
		t.Fatalf("GetElementText failed: %v", err)
	}

	if text != "Hello World" {
		t.Errorf("Expected 'Hello World', got '%s'", text)
	}
}

func TestClient_ClickElement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/test-session/element/elem-1/click" {
			writeJSON(w, map[string]interface{}{"value": nil})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "test-session"

	err := client.ClickElement(context.Background(), "elem-1")
	if err != nil {
		t.Fatalf("ClickElement failed: %v", err)
	}
}

func TestClient_ClearElement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/test-session/element/elem-1/clear" {
			writeJSON(w, map[string]interface{}{"value": nil})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "test-session"

	err := client.ClearElement(context.Background(), "elem-1")
	if err != nil {
		t.Fatalf("ClearElement failed: %v", err)
	}
}

func TestClient_SendElementKeys(t *testing.T) {
	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/test-session/element/elem-1/value" {
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			received, _ = body["text"].(string)
			writeJSON(w, map[string]interface{}{"value": nil})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "test-session"

	if err := client.SendElementKeys(context.Background(), "elem-1", "John"); err != nil {
		t.Fatalf("SendElementKeys failed: %v", err)
	}

	if received != "John" {
		t.Errorf("Expected text 'John', got %q", received)
	}
}

func TestClient_ActivateApp(t *testing.T) {
	tests := []struct {
		platform string
		key      string
	}{
		{"android", "appId"},
		{"ios", "bundleId"},
	}

	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			var body map[string]interface{}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/session/test-session/appium/device/activate_app" {
					_ = json.NewDecoder(r.Body).Decode(&body)
					writeJSON(w, map[string]interface{}{"value": nil})
					return
				}
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			client := NewClient(server.URL)
			client.sessionID = "test-session"
			client.platform = tt.platform

			if err := client.ActivateApp(context.Background(), "com.swaglabsmobileapp"); err != nil {
				t.Fatalf("ActivateApp failed: %v", err)
			}
			if body[tt.key] != "com.swaglabsmobileapp" {
				t.Errorf("Expected %s in body, got %v", tt.key, body)
			}
		})
	}
}

func TestClient_ExecuteMobile(t *testing.T) {
	var raw string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/test-session/execute/sync" {
			b, _ := io.ReadAll(r.Body)
			raw = string(b)
			writeJSON(w, map[string]interface{}{"value": true})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "test-session"

	value, err := client.ExecuteMobile(context.Background(), "scroll", map[string]interface{}{
		"strategy": "accessibility id",
		"selector": "test-Username",
	})
	if err != nil {
		t.Fatalf("ExecuteMobile failed: %v", err)
	}
	if value != true {
		t.Errorf("Expected value true, got %v", value)
	}
	if !strings.Contains(raw, `"mobile: scroll"`) || !strings.Contains(raw, `"test-Username"`) {
		t.Errorf("Unexpected execute body: %s", raw)
	}
}

func TestClient_SetImplicitWait(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/test-session/timeouts" {
			writeJSON(w, map[string]interface{}{"value": nil})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "test-session"

	err := client.SetImplicitWait(context.Background(), 10*time.Second)
	if err != nil {
		t.Fatalf("SetImplicitWait failed: %v", err)
	}
}

func TestExtractElementID(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]interface{}
		expected string
	}{
		{
			"W3C format",
			map[string]interface{}{"element-6066-11e4-a52e-4f735466cecf": "elem-123"},
			"elem-123",
		},
		{
			"Legacy format",
			map[string]interface{}{"ELEMENT": "elem-456"},
			"elem-456",
		},
		{
			"Empty",
			map[string]interface{}{},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractElementID(tt.input)
			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}
