package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"amoria/internal/store"
	"amoria/internal/testutil"
)

func TestChatroomLifecycle(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()
	agentID, subID := seedCandidate(t, st, ctx)

	if _, err := st.ExistingChatroom(ctx, "user-1", subID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("lookup before create = %v, want ErrNotFound", err)
	}

	room, err := st.CreateChatroom(ctx, "user-1", subID, agentID)
	if err != nil {
		t.Fatalf("create chatroom: %v", err)
	}
	if room.Status != store.ChatroomStatusActive {
		t.Fatalf("status = %q, want active", room.Status)
	}
	if !strings.HasPrefix(room.ChannelName, "presence-chatroom-") {
		t.Fatalf("channel = %q, want presence-chatroom- prefix", room.ChannelName)
	}

	existing, err := st.ExistingChatroom(ctx, "user-1", subID)
	if err != nil {
		t.Fatalf("existing lookup: %v", err)
	}
	if existing.ID != room.ID {
		t.Fatalf("existing = %s, want %s", existing.ID, room.ID)
	}

	ended, err := st.EndChatroom(ctx, room.ID)
	if err != nil || !ended {
		t.Fatalf("end: ended=%v err=%v", ended, err)
	}
	ended, err = st.EndChatroom(ctx, room.ID)
	if err != nil {
		t.Fatalf("double end: %v", err)
	}
	if ended {
		t.Fatal("double end reported a state change")
	}

	got, err := st.ChatroomByID(ctx, room.ID)
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	if got.Status != store.ChatroomStatusEnded || got.EndedAt == nil {
		t.Fatalf("ended room = %+v", got)
	}

	rooms, err := st.UserChatrooms(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("user chatrooms: %v", err)
	}
	if len(rooms) != 1 {
		t.Fatalf("got %d rooms, want 1", len(rooms))
	}
}
