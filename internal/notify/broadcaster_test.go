package notify_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
	"github.com/vladislavdragonenkov/order-notifier/internal/notify"
)

type recordingMirror struct {
	events []domain.StatusEvent
	fail   bool
}

func (m *recordingMirror) MirrorStatus(event domain.StatusEvent) error {
	if m.fail {
		return errors.New("broker unavailable")
	}
	m.events = append(m.events, event)
	return nil
}

func TestBroadcaster_AnnounceStatusPayload(t *testing.T) {
	registry := notify.NewRegistry(testLogger())
	broadcaster := notify.NewBroadcaster(registry, testLogger())

	sub := registry.Subscribe("AB123456")
	broadcaster.AnnounceStatus("AB123456", domain.StatusOutForDelivery, nil)

	var payload map[string]any
	if err := json.Unmarshal(<-sub.C, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["orderKey"] != "AB123456" {
		t.Fatalf("expected orderKey AB123456, got %v", payload["orderKey"])
	}
	if payload["status"] != "OutForDelivery" {
		t.Fatalf("expected status OutForDelivery, got %v", payload["status"])
	}
}

func TestBroadcaster_ExtraFieldsCannotOverrideCore(t *testing.T) {
	registry := notify.NewRegistry(testLogger())
	broadcaster := notify.NewBroadcaster(registry, testLogger())

	sub := registry.Subscribe("AB123456")
	broadcaster.AnnounceStatus("AB123456", domain.StatusDelivered, map[string]any{
		"status": "forged",
		"branch": "centro",
	})

	var payload map[string]any
	if err := json.Unmarshal(<-sub.C, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["status"] != "Delivered" {
		t.Fatalf("core status field must win, got %v", payload["status"])
	}
	if payload["branch"] != "centro" {
		t.Fatalf("extra field lost, got %v", payload["branch"])
	}
}

func TestBroadcaster_NoSubscribersIsSilent(t *testing.T) {
	registry := notify.NewRegistry(testLogger())
	broadcaster := notify.NewBroadcaster(registry, testLogger())

	// Не должно ни паниковать, ни блокироваться.
	broadcaster.AnnounceStatus("GHOST000", domain.StatusCancelled, nil)
}

func TestBroadcaster_MirrorReceivesCommittedEvent(t *testing.T) {
	registry := notify.NewRegistry(testLogger())
	mirror := &recordingMirror{}
	broadcaster := notify.NewBroadcaster(registry, testLogger(), notify.WithMirror(mirror))

	broadcaster.AnnounceStatus("AB123456", domain.StatusPreparing, nil)

	if len(mirror.events) != 1 {
		t.Fatalf("expected 1 mirrored event, got %d", len(mirror.events))
	}
	if mirror.events[0].OrderKey != "AB123456" || mirror.events[0].Status != "Preparing" {
		t.Fatalf("unexpected mirrored event %+v", mirror.events[0])
	}
}

func TestBroadcaster_MirrorFailureDoesNotAffectDelivery(t *testing.T) {
	registry := notify.NewRegistry(testLogger())
	mirror := &recordingMirror{fail: true}
	broadcaster := notify.NewBroadcaster(registry, testLogger(), notify.WithMirror(mirror))

	sub := registry.Subscribe("AB123456")
	broadcaster.AnnounceStatus("AB123456", domain.StatusPreparing, nil)

	select {
	case <-sub.C:
	default:
		t.Fatal("subscriber must receive the event even when the mirror fails")
	}
}
