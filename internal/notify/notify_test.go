package notify

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"udb/internal/domain"
	"udb/internal/store"
)

func follower(email string) *domain.User {
	u := &domain.User{Username: "pdupont", Fullname: "Pierre Dupont", Email: email}
	u.ID = 7
	return u
}

func TestNotifyComposesOneMailPerFollower(t *testing.T) {
	var sent []string
	var recipients [][]string
	m := New(Config{Server: "mail.example.com:25", From: "udb@example.com", HeaderName: "UDB"})
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, string(msg))
		recipients = append(recipients, to)
		return nil
	}

	msg := &domain.Message{ModelName: domain.KindSubnet, ModelID: 3, Type: domain.MessageDirty}
	if err := msg.SetChangeSet(domain.ChangeSet{"notes": {"old", "new"}}); err != nil {
		t.Fatal(err)
	}
	m.Notify(context.Background(), []store.Notification{
		{User: follower("pierre@example.com"), Messages: []*domain.Message{msg}},
		{User: follower(""), Messages: []*domain.Message{msg}}, // no email, skipped
	})

	if len(sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(sent))
	}
	if recipients[0][0] != "pierre@example.com" {
		t.Errorf("unexpected recipient %v", recipients[0])
	}
	body := sent[0]
	for _, want := range []string{"Subject: [UDB] subnet #3 changed", "notes: old -> new", "by system"} {
		if !strings.Contains(body, want) {
			t.Errorf("mail body missing %q:\n%s", want, body)
		}
	}
}

func TestNotifyCatchAll(t *testing.T) {
	var recipients []string
	m := New(Config{Server: "mail.example.com:25", From: "udb@example.com", CatchAllEmail: "audit@example.com"})
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		recipients = to
		return nil
	}
	m.Notify(context.Background(), []store.Notification{
		{User: follower("pierre@example.com"), Messages: []*domain.Message{{ModelName: domain.KindVrf, ModelID: 1, Type: domain.MessageNew}}},
	})
	if len(recipients) != 2 || recipients[1] != "audit@example.com" {
		t.Errorf("expected catch-all recipient, got %v", recipients)
	}
}

func TestNotifyWithoutServerIsNoop(t *testing.T) {
	m := New(Config{})
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		t.Fatal("send must not be called")
		return nil
	}
	m.Notify(context.Background(), []store.Notification{
		{User: follower("pierre@example.com"), Messages: []*domain.Message{{ModelName: domain.KindVrf, ModelID: 1}}},
	})
}
