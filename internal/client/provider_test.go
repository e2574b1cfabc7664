package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/dispatch-engine/internal/model"
)

func TestProviderClient_SendText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/instances/inst-1/messages/text" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("expected bearer auth, got %q", got)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["to"] != "361234@c.us" || body["text"] != "hello" {
			t.Fatalf("unexpected payload: %+v", body)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messageId":      "m-1",
			"conversationId": "361234-canonical@c.us",
		})
	}))
	t.Cleanup(srv.Close)

	c := NewProviderClient(srv.URL, "secret", 0)
	receipt, err := c.SendText(context.Background(), "inst-1", "361234@c.us", "hello")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if receipt.MessageID != "m-1" {
		t.Fatalf("expected messageId m-1, got %q", receipt.MessageID)
	}
	if receipt.ConversationID != "361234-canonical@c.us" {
		t.Fatalf("expected provider conversation id, got %q", receipt.ConversationID)
	}
}

func TestProviderClient_SendImage_MediaPayload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instances/inst-1/messages/image" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["url"] != "https://img.example/a.png" || body["caption"] != "hi" {
			t.Fatalf("unexpected payload: %+v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"messageId": "m-2", "conversationId": "x"})
	}))
	t.Cleanup(srv.Close)

	c := NewProviderClient(srv.URL, "", 0)
	_, err := c.SendImage(context.Background(), "inst-1", "t", model.Content{
		URL:     "https://img.example/a.png",
		Caption: "hi",
	})
	if err != nil {
		t.Fatalf("SendImage: %v", err)
	}
}

func TestProviderClient_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "instance disconnected", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := NewProviderClient(srv.URL, "", 0)
	if _, err := c.SendText(context.Background(), "inst-1", "t", "x"); err == nil {
		t.Fatalf("expected error on 502 response")
	}
}

func TestProviderClient_MissingMessageID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"conversationId": "x"})
	}))
	t.Cleanup(srv.Close)

	c := NewProviderClient(srv.URL, "", 0)
	if _, err := c.SendText(context.Background(), "inst-1", "t", "x"); err == nil {
		t.Fatalf("expected error for missing messageId")
	}
}

func TestProviderClient_DeleteMessage(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Fatalf("expected DELETE, got %s", r.Method)
		}
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	c := NewProviderClient(srv.URL, "", 0)
	if err := c.DeleteMessage(context.Background(), "inst-1", "conv-1", "m-1"); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if gotPath != "/instances/inst-1/conversations/conv-1/messages/m-1" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestConversationAddress(t *testing.T) {
	t.Parallel()

	c := NewProviderClient("http://x", "", 0)

	cases := []struct {
		in, want string
	}{
		{"+36 30 123 4567", "36301234567@c.us"},
		{"36301234567", "36301234567@c.us"},
		{"+55 (11) 99999-0000", "5511999990000@c.us"},
	}
	for _, tc := range cases {
		if got := c.ConversationAddress(tc.in); got != tc.want {
			t.Fatalf("ConversationAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
