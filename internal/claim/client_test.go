package claim

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClaim_Success(t *testing.T) {
	var got Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "weatherbird-prov/") {
			t.Errorf("User-Agent = %q", ua)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req := Request{
		DeviceEmail:    "ESPabc@sourceauditor.com",
		DevicePassword: "AbcDefGhiJkl",
		StationID:      "ESPabc",
		OwnerID:        "user123",
	}
	client := NewClient(server.URL, time.Second)
	if err := client.Claim(context.Background(), req); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if got != req {
		t.Errorf("server received %+v, want %+v", got, req)
	}
}

func TestClaim_BodyFieldNames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]string
		_ = json.NewDecoder(r.Body).Decode(&raw)
		for _, key := range []string{"deviceEmail", "devicePassword", "stationId", "ownerId"} {
			if _, ok := raw[key]; !ok {
				t.Errorf("body missing %q", key)
			}
		}
	}))
	defer server.Close()

	_ = NewClient(server.URL, time.Second).Claim(context.Background(), Request{})
}

func TestClaim_NonOKStatus(t *testing.T) {
	tests := []int{http.StatusCreated, http.StatusNoContent, http.StatusBadRequest, http.StatusInternalServerError}
	for _, status := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		err := NewClient(server.URL, time.Second).Claim(context.Background(), Request{OwnerID: "u"})
		server.Close()

		if !IsHTTPError(err) {
			t.Errorf("status %d: error = %v, want HTTP error", status, err)
			continue
		}
		var claimErr *Error
		if errors.As(err, &claimErr) && claimErr.StatusCode != status {
			t.Errorf("StatusCode = %d, want %d", claimErr.StatusCode, status)
		}
	}
}

func TestClaim_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	err = NewClient("http://"+addr+"/claim", time.Second).Claim(context.Background(), Request{})
	if err == nil {
		t.Fatal("Claim() should fail when nothing listens")
	}
	if !IsNetworkError(err) {
		t.Errorf("error = %v, want network error", err)
	}
	if IsHTTPError(err) {
		t.Error("transport failure should not be an HTTP error")
	}
}

func TestClaim_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, 50*time.Millisecond)
	err := client.Claim(context.Background(), Request{})
	if !IsTimeout(err) {
		t.Errorf("error = %v, want timeout", err)
	}
}

func TestErrorTypeString(t *testing.T) {
	if ErrTypeHTTP.String() != "HTTP Error" {
		t.Errorf("ErrTypeHTTP.String() = %q", ErrTypeHTTP.String())
	}
	if ErrorType(99).String() != "ErrorType(99)" {
		t.Errorf("unknown type = %q", ErrorType(99).String())
	}
}

func TestGeneratePassword(t *testing.T) {
	pw, err := GeneratePassword(PasswordLength)
	if err != nil {
		t.Fatalf("GeneratePassword() error = %v", err)
	}
	if len(pw) != PasswordLength {
		t.Errorf("length = %d, want %d", len(pw), PasswordLength)
	}
	for _, r := range pw {
		if !strings.ContainsRune(letters, r) {
			t.Errorf("unexpected character %q", r)
		}
	}

	other, _ := GeneratePassword(PasswordLength)
	if other == pw {
		t.Error("two generated passwords should differ")
	}

	if _, err := GeneratePassword(0); err == nil {
		t.Error("GeneratePassword(0) should fail")
	}
}
