package hub

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kestrel-signaling-server/domain"
)

type mockConn struct {
	id       string
	received [][]byte
	closed   bool
	mu       sync.Mutex
	sendErr  error
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, data)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) getReceived() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

func TestHub_CreateRoom(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*Hub)
		room    string
		wantErr error
	}{
		{
			name: "new room",
			room: "lobby",
		},
		{
			name: "duplicate name",
			setup: func(h *Hub) {
				require.NoError(t, h.CreateRoom("lobby", "pw1", "alice", &mockConn{id: "c1"}))
			},
			room:    "lobby",
			wantErr: domain.ErrRoomExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			if tt.setup != nil {
				tt.setup(h)
			}

			err := h.CreateRoom(tt.room, "pw2", "bob", &mockConn{id: "c2"})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			info, ok := h.Lookup("c2")
			require.True(t, ok)
			assert.Equal(t, "bob", info.Username)
			assert.Equal(t, tt.room, info.RoomName)

			snapshot, err := h.RoomInfo(tt.room)
			require.NoError(t, err)
			assert.Equal(t, "bob", snapshot.CreatedBy)
			assert.Equal(t, []string{"bob"}, snapshot.Users)
		})
	}
}

func TestHub_JoinRoom(t *testing.T) {
	tests := []struct {
		name     string
		room     string
		password string
		username string
		wantErr  error
	}{
		{
			name:     "valid join",
			room:     "lobby",
			password: "pw1",
			username: "bob",
		},
		{
			name:     "room does not exist",
			room:     "nowhere",
			password: "pw1",
			username: "bob",
			wantErr:  domain.ErrRoomNotFound,
		},
		{
			name:     "wrong password",
			room:     "lobby",
			password: "wrong",
			username: "bob",
			wantErr:  domain.ErrWrongPassword,
		},
		{
			name:     "username taken",
			room:     "lobby",
			password: "pw1",
			username: "alice",
			wantErr:  domain.ErrUsernameTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			require.NoError(t, h.CreateRoom("lobby", "pw1", "alice", &mockConn{id: "c1"}))

			existing, err := h.JoinRoom(tt.room, tt.password, tt.username, &mockConn{id: "c2"})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				// A rejected join never mutates directory or registry.
				_, bound := h.Lookup("c2")
				assert.False(t, bound)
				snapshot, err := h.RoomInfo("lobby")
				require.NoError(t, err)
				assert.Equal(t, 1, snapshot.UserCount)
				return
			}

			require.NoError(t, err)
			require.Len(t, existing, 1)
			assert.Equal(t, "c1", existing[0].ConnectionID)
			assert.Equal(t, "alice", existing[0].Username)

			snapshot, err := h.RoomInfo("lobby")
			require.NoError(t, err)
			assert.Equal(t, []string{"alice", "bob"}, snapshot.Users)
		})
	}
}

func TestHub_JoinSnapshotExcludesJoiner(t *testing.T) {
	h := New()
	require.NoError(t, h.CreateRoom("lobby", "pw1", "alice", &mockConn{id: "c1"}))

	existing, err := h.JoinRoom("lobby", "pw1", "bob", &mockConn{id: "c2"})
	require.NoError(t, err)
	existing2, err := h.JoinRoom("lobby", "pw1", "carol", &mockConn{id: "c3"})
	require.NoError(t, err)

	assert.Equal(t, []domain.UserRef{{ConnectionID: "c1", Username: "alice"}}, existing)
	assert.Equal(t, []domain.UserRef{
		{ConnectionID: "c1", Username: "alice"},
		{ConnectionID: "c2", Username: "bob"},
	}, existing2)
}

func TestHub_Leave(t *testing.T) {
	h := New()
	require.NoError(t, h.CreateRoom("lobby", "pw1", "alice", &mockConn{id: "c1"}))
	_, err := h.JoinRoom("lobby", "pw1", "bob", &mockConn{id: "c2"})
	require.NoError(t, err)

	result, ok := h.Leave("c2")
	require.True(t, ok)
	assert.Equal(t, "lobby", result.RoomName)
	assert.Equal(t, domain.UserRef{ConnectionID: "c2", Username: "bob"}, result.User)
	assert.False(t, result.RoomDeleted)

	snapshot, err := h.RoomInfo("lobby")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, snapshot.Users)

	// Last member out deletes the room.
	result, ok = h.Leave("c1")
	require.True(t, ok)
	assert.True(t, result.RoomDeleted)

	_, err = h.RoomInfo("lobby")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	// Second leave for an unbound connection is a no-op.
	_, ok = h.Leave("c1")
	assert.False(t, ok)
}

func TestHub_MembershipMatchesRegistry(t *testing.T) {
	h := New()
	conns := make(map[string]*mockConn)
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("c%d", i)
		conns[id] = &mockConn{id: id}
		h.Register(conns[id])
	}

	require.NoError(t, h.CreateRoom("lobby", "pw1", "u1", conns["c1"]))
	for i, id := range []string{"c2", "c3", "c4"} {
		_, err := h.JoinRoom("lobby", "pw1", fmt.Sprintf("u%d", i+2), conns[id])
		require.NoError(t, err)
	}
	_, ok := h.Leave("c3")
	require.True(t, ok)

	snapshot, err := h.RoomInfo("lobby")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u4"}, snapshot.Users)

	// Every remaining member has a registry entry naming the room, and
	// the removed one has none.
	for _, id := range []string{"c1", "c2", "c4"} {
		info, bound := h.Lookup(id)
		require.True(t, bound, "connection %s", id)
		assert.Equal(t, "lobby", info.RoomName)
	}
	_, bound := h.Lookup("c3")
	assert.False(t, bound)
}

func TestHub_SendTo(t *testing.T) {
	h := New()
	conn := &mockConn{id: "c1"}
	h.Register(conn)

	h.SendTo("c1", []byte("hello"))
	h.SendTo("ghost", []byte("dropped"))

	require.Len(t, conn.getReceived(), 1)
	assert.Equal(t, []byte("hello"), conn.getReceived()[0])
}

func TestHub_Broadcast(t *testing.T) {
	h := New()
	sender := &mockConn{id: "c1"}
	peer := &mockConn{id: "c2"}
	outsider := &mockConn{id: "c3"}
	for _, c := range []*mockConn{sender, peer, outsider} {
		h.Register(c)
	}

	require.NoError(t, h.CreateRoom("lobby", "pw1", "alice", sender))
	_, err := h.JoinRoom("lobby", "pw1", "bob", peer)
	require.NoError(t, err)
	require.NoError(t, h.CreateRoom("other", "pw2", "carol", outsider))

	h.Broadcast("lobby", "c1", []byte("note"))

	assert.Empty(t, sender.getReceived())
	assert.Len(t, peer.getReceived(), 1)
	assert.Empty(t, outsider.getReceived())
}

func TestHub_Stats(t *testing.T) {
	h := New()
	rooms, clients := h.Stats()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 0, clients)

	c1 := &mockConn{id: "c1"}
	c2 := &mockConn{id: "c2"}
	h.Register(c1)
	h.Register(c2)
	require.NoError(t, h.CreateRoom("lobby", "pw1", "alice", c1))

	rooms, clients = h.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 2, clients)

	h.Unregister("c2")
	h.Unregister("c2")

	rooms, clients = h.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 1, clients)
}
