package repo

import (
	"context"
	"testing"

	"github.com/nexoplatform/nexo-bot/internal/domain"
)

func TestCreateLinkedServer_SetsDefaults(t *testing.T) {
	db := newRepoDB(t, &domain.LinkedServer{})

	s, err := CreateLinkedServer(context.Background(), db, 42, "srv-1", "My Server", "Basic Plan")
	if err != nil {
		t.Fatalf("CreateLinkedServer: %v", err)
	}
	if s.ID == 0 || s.TelegramID != 42 || s.ServerID != "srv-1" || s.Status != "active" {
		t.Fatalf("unexpected LinkedServer fields: %+v", s)
	}
	if s.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be set")
	}
}

func TestListLinkedServers_OnlyOwnRows(t *testing.T) {
	db := newRepoDB(t, &domain.LinkedServer{})
	ctx := context.Background()

	for _, tc := range []struct {
		telegramID int64
		serverID   string
	}{
		{1, "a"}, {1, "b"}, {2, "c"},
	} {
		if _, err := CreateLinkedServer(ctx, db, tc.telegramID, tc.serverID, "s", "p"); err != nil {
			t.Fatalf("CreateLinkedServer(%d,%s): %v", tc.telegramID, tc.serverID, err)
		}
	}

	got, err := ListLinkedServers(ctx, db, 1)
	if err != nil {
		t.Fatalf("ListLinkedServers: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 servers for user 1, got %d", len(got))
	}
	for _, s := range got {
		if s.TelegramID != 1 {
			t.Fatalf("foreign row leaked: %+v", s)
		}
	}

	n, err := CountLinkedServers(ctx, db, 2)
	if err != nil {
		t.Fatalf("CountLinkedServers: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 server for user 2, got %d", n)
	}
}
