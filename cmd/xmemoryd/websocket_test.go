package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/xmemory/xmemory/internal/models"
)

// testClient registers a bare client on the hub. The pumps never start, so
// the nil conn is never touched; events land on the send channel.
func testClient(hub *WSHub, id string, userID models.UUID) *WSClient {
	client := &WSClient{
		id:     id,
		userID: userID,
		send:   make(chan []byte, 64),
		hub:    hub,
	}
	hub.register <- client
	return client
}

func receiveEnvelope(t *testing.T, client *WSClient) WSEnvelope {
	t.Helper()
	select {
	case data := <-client.send:
		var envelope WSEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			t.Fatalf("event is not JSON: %v", err)
		}
		return envelope
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return WSEnvelope{}
	}
}

func assertNoEvent(t *testing.T, client *WSClient) {
	t.Helper()
	select {
	case data := <-client.send:
		t.Fatalf("unexpected event: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestWSHub_RoutesPerUser verifies events only reach the owning user's
// connections.
func TestWSHub_RoutesPerUser(t *testing.T) {
	hub := NewWSHub()
	alice1 := testClient(hub, "c1", "alice")
	alice2 := testClient(hub, "c2", "alice")
	bob := testClient(hub, "c3", "bob")

	hub.MemorySynced("alice", "mem-1", "updated", 2, "+1")

	for _, client := range []*WSClient{alice1, alice2} {
		envelope := receiveEnvelope(t, client)
		if envelope.Type != EventMemorySynced {
			t.Errorf("type = %q", envelope.Type)
		}
		if envelope.Data["memory_id"] != "mem-1" || envelope.Data["version_number"] != float64(2) {
			t.Errorf("data = %v", envelope.Data)
		}
	}
	assertNoEvent(t, bob)
}

// TestWSHub_EventShapes checks each broadcaster event's type and payload.
func TestWSHub_EventShapes(t *testing.T) {
	hub := NewWSHub()
	client := testClient(hub, "c1", "alice")

	hub.MemoryRestored("alice", "mem-1", 3, 7)
	envelope := receiveEnvelope(t, client)
	if envelope.Type != EventMemoryRestored {
		t.Errorf("type = %q", envelope.Type)
	}
	if envelope.Data["restored_from"] != float64(3) || envelope.Data["new_version"] != float64(7) {
		t.Errorf("data = %v", envelope.Data)
	}

	hub.MemoryDeleted("alice", "mem-1")
	envelope = receiveEnvelope(t, client)
	if envelope.Type != EventMemoryDeleted {
		t.Errorf("type = %q", envelope.Type)
	}

	hub.VersionsPruned("alice", "mem-1", 4)
	envelope = receiveEnvelope(t, client)
	if envelope.Type != EventVersionsPruned {
		t.Errorf("type = %q", envelope.Type)
	}
	if envelope.Data["deleted"] != float64(4) {
		t.Errorf("data = %v", envelope.Data)
	}
}

// TestWSHub_Unregister verifies a departed client stops receiving events.
func TestWSHub_Unregister(t *testing.T) {
	hub := NewWSHub()
	client := testClient(hub, "c1", "alice")

	hub.unregister <- client
	// The close of send signals removal has landed
	select {
	case _, open := <-client.send:
		if open {
			t.Fatal("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for unregister")
	}

	hub.MemoryDeleted("alice", "mem-1")
	// Delivery to a removed client would panic on the closed channel inside
	// the hub loop; reaching here without one means routing skipped it.
	time.Sleep(50 * time.Millisecond)
}
