package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/thereayou/roomgate/internal/admission"
	"github.com/thereayou/roomgate/internal/events"
	"github.com/thereayou/roomgate/internal/memstore"
	"github.com/thereayou/roomgate/internal/models"
	ws "github.com/thereayou/roomgate/internal/websocket"
)

func TestCommandHandler_RepeatedApproveRepliesWithState(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	bus := events.NewLocal()
	registry := admission.NewRegistry(store, admission.RegistryOptions{Publisher: bus})
	queue := admission.NewQueue(store, registry, bus)
	controller := admission.NewController(registry, queue, admission.NewLiveKitIssuer(admission.LiveKitOptions{AppID: "test"}), admission.ControllerOptions{Subscriber: bus})
	commands := NewCommandHandler(controller, queue)

	if err := registry.RegisterCreator(ctx, "abc123", "U1"); err != nil {
		t.Fatal(err)
	}
	res, err := controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "Guest"})
	if err != nil {
		t.Fatal(err)
	}

	admin := ws.NewClient(ws.NewHub(nil), nil, "U1", "Admin")
	payload, _ := json.Marshal(map[string]string{"request_id": res.Request.ID.String()})

	for i, msgType := range []ws.MessageType{ws.TypeJoinApprove, ws.TypeJoinReject} {
		if err := commands.HandleMessage(admin, &ws.Message{Type: msgType, RoomID: "abc123", Data: payload}); err != nil {
			t.Fatalf("command %d (%s) error = %v", i, msgType, err)
		}

		var msg ws.Message
		if err := json.Unmarshal(<-admin.Send, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.Type != ws.TypeJoinResolved {
			t.Fatalf("reply %d type = %s, want join_request_resolved", i, msg.Type)
		}
		var req models.JoinRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			t.Fatal(err)
		}
		if req.Status != models.JoinRequestApproved {
			t.Errorf("reply %d status = %s, want approved", i, req.Status)
		}
	}
}
