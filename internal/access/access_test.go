package access

import (
	"context"
	"testing"

	"github.com/driftchat/drift-server/internal/store"
	"github.com/driftchat/drift-server/internal/store/sqlite"
)

type fixture struct {
	store    *sqlite.SQLiteStore
	resolver *Resolver

	alice, bob, carol *store.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	alice, _ := st.CreateUser(ctx, "alice", "Alice")
	bob, _ := st.CreateUser(ctx, "bob", "Bob")
	carol, _ := st.CreateUser(ctx, "carol", "Carol")

	return &fixture{
		store:    st,
		resolver: NewResolver(st),
		alice:    alice,
		bob:      bob,
		carol:    carol,
	}
}

func TestDirectChat_ResolvesOtherParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	chat, err := f.store.CreateDirectChat(ctx, []int64{f.alice.ID, f.bob.ID})
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}

	res, err := f.resolver.DirectChat(ctx, chat.ID, f.alice.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Other.ID != f.bob.ID || res.Other.DisplayName != "Bob" {
		t.Fatalf("unexpected other participant: %+v", res.Other)
	}
}

func TestDirectChat_RejectsNonParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	chat, _ := f.store.CreateDirectChat(ctx, []int64{f.alice.ID, f.bob.ID})

	_, err := f.resolver.DirectChat(ctx, chat.ID, f.carol.ID)
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestDirectChat_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.DirectChat(context.Background(), 999, f.alice.ID)
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServer_ResolvesByIDAndShortID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	srv, err := f.store.CreateServer(ctx, "general", "friends-of-alice", f.alice.ID)
	if err != nil {
		t.Fatalf("create server: %v", err)
	}

	byID, err := f.resolver.ServerByID(ctx, srv.ID, f.alice.ID)
	if err != nil {
		t.Fatalf("resolve by id: %v", err)
	}
	byShort, err := f.resolver.Server(ctx, "friends-of-alice", f.alice.ID)
	if err != nil {
		t.Fatalf("resolve by short id: %v", err)
	}
	if byID.Server.ID != byShort.Server.ID {
		t.Fatalf("id and short id resolved different servers")
	}
	if byID.Membership.UserID != f.alice.ID {
		t.Fatalf("unexpected membership: %+v", byID.Membership)
	}
}

func TestServer_RejectsNonMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	srv, _ := f.store.CreateServer(ctx, "general", "srv-1", f.alice.ID)

	_, err := f.resolver.ServerByID(ctx, srv.ID, f.bob.ID)
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestChannel_DisallowedRoleDeniesAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	srv, _ := f.store.CreateServer(ctx, "general", "srv-1", f.alice.ID)
	muted, _ := f.store.CreateRole(ctx, srv.ID, "muted")

	ch, err := f.store.CreateChannel(ctx, srv.ID, "staff", 0, []int64{muted.ID})
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}

	member, _ := f.store.AddMember(ctx, srv.ID, f.bob.ID, "")
	if err := f.store.AssignRole(ctx, member.ID, muted.ID); err != nil {
		t.Fatalf("assign role: %v", err)
	}

	if _, err := f.resolver.Channel(ctx, ch.ID, f.bob.ID); !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized for disallowed role, got %v", err)
	}

	// The owner carries no disallowed role and passes.
	if _, err := f.resolver.Channel(ctx, ch.ID, f.alice.ID); err != nil {
		t.Fatalf("expected access for owner, got %v", err)
	}
}

func TestVisibleChannels_FiltersDisallowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	srv, _ := f.store.CreateServer(ctx, "general", "srv-1", f.alice.ID)
	muted, _ := f.store.CreateRole(ctx, srv.ID, "muted")

	if _, err := f.store.CreateChannel(ctx, srv.ID, "lobby", 0, nil); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if _, err := f.store.CreateChannel(ctx, srv.ID, "staff", 1, []int64{muted.ID}); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	member, _ := f.store.AddMember(ctx, srv.ID, f.bob.ID, "")
	_ = f.store.AssignRole(ctx, member.ID, muted.ID)

	mutedMember, _ := f.store.GetMembership(ctx, srv.ID, f.bob.ID)
	visible, err := f.resolver.VisibleChannels(ctx, srv.ID, mutedMember)
	if err != nil {
		t.Fatalf("visible channels: %v", err)
	}
	if len(visible) != 1 || visible[0].Name != "lobby" {
		t.Fatalf("expected only lobby visible, got %+v", visible)
	}

	ownerMember, _ := f.store.GetMembership(ctx, srv.ID, f.alice.ID)
	visible, err = f.resolver.VisibleChannels(ctx, srv.ID, ownerMember)
	if err != nil {
		t.Fatalf("visible channels: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("expected both channels for owner, got %d", len(visible))
	}
}
