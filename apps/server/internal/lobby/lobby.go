// Package lobby is the process-wide room registry: create, lookup,
// list and purge. It is the only shared mutable structure; everything
// per-room is reached through it and mutated by the room's own actor.
package lobby

import (
	"log"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"otrio-lite/apps/server/internal/protocol"
	"otrio-lite/apps/server/internal/room"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const DefaultSweepInterval = 5 * time.Minute

var (
	ErrInvalidRoomName = protocol.NewError(protocol.CodeInvalidInput, "room name must be 1..50 characters")
	ErrInvalidCapacity = protocol.NewError(protocol.CodeInvalidInput, "capacity must be 2, 3 or 4")
	ErrInvalidRoomCode = protocol.NewError(protocol.CodeInvalidInput, "access code must be 4..20 characters")
	ErrHostBusy        = protocol.NewError(protocol.CodeConflict, "host already owns a live room")
	ErrRoomNotFound    = protocol.NewError(protocol.CodeNotFound, "no such room")
)

// Lobby maps room ids to actors and host keys to the one room each
// host may own at a time. The host key is the gateway connection id,
// not a seat id: it exists before any seat does.
type Lobby struct {
	mu    sync.RWMutex
	rooms map[string]*room.Room
	hosts map[string]string // host key -> room id

	cfg        room.Config
	sweepEvery time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

func New(cfg room.Config, sweepEvery time.Duration) *Lobby {
	if sweepEvery <= 0 {
		sweepEvery = DefaultSweepInterval
	}
	l := &Lobby{
		rooms:      make(map[string]*room.Room),
		hosts:      make(map[string]string),
		cfg:        cfg,
		sweepEvery: sweepEvery,
		done:       make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Stop halts the sweeper and closes every room.
func (l *Lobby) Stop() {
	l.stopOnce.Do(func() { close(l.done) })

	l.mu.Lock()
	defer l.mu.Unlock()
	for id, r := range l.rooms {
		r.Close()
		delete(l.rooms, id)
	}
	l.hosts = make(map[string]string)
}

// Create validates the construction parameters, enforces one live
// room per host and registers the new actor.
func (l *Lobby) Create(hostKey, name string, capacity int, isPrivate bool, code string, broadcast room.BroadcastFunc) (*room.Room, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < 1 || n > 50 {
		return nil, ErrInvalidRoomName
	}
	if capacity < 2 || capacity > 4 {
		return nil, ErrInvalidCapacity
	}
	var codeHash []byte
	if isPrivate {
		if n := utf8.RuneCountInString(code); n < 4 || n > 20 {
			return nil, ErrInvalidRoomCode
		}
		var err error
		codeHash, err = bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return nil, protocol.NewError(protocol.CodeInternal, "failed to hash access code")
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if prevID, ok := l.hosts[hostKey]; ok {
		prev := l.rooms[prevID]
		if prev != nil && !prev.IsClosed() && !prev.Expired(time.Now()) {
			return nil, ErrHostBusy
		}
		// The previous room is gone or dying; the host slot is free.
		delete(l.hosts, hostKey)
		if prev != nil {
			prev.Close()
			delete(l.rooms, prevID)
		}
	}

	id := uuid.NewString()
	r, err := room.New(id, room.Options{
		Name:      name,
		Capacity:  capacity,
		IsPrivate: isPrivate,
		CodeHash:  codeHash,
	}, l.cfg, broadcast)
	if err != nil {
		return nil, err
	}
	l.rooms[id] = r
	if hostKey != "" {
		l.hosts[hostKey] = id
	}
	log.Printf("[Lobby] Registered room %s (%d total)", id, len(l.rooms))
	return r, nil
}

// Get returns a live room. Closed or expired rooms read as absent.
func (l *Lobby) Get(id string) (*room.Room, error) {
	l.mu.RLock()
	r := l.rooms[id]
	l.mu.RUnlock()
	if r == nil || r.IsClosed() || r.Expired(time.Now()) {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Remove closes and unregisters a room.
func (l *Lobby) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.rooms[id]
	if r == nil {
		return
	}
	r.Close()
	delete(l.rooms, id)
	for key, rid := range l.hosts {
		if rid == id {
			delete(l.hosts, key)
		}
	}
	log.Printf("[Lobby] Removed room %s (%d left)", id, len(l.rooms))
}

// ReleaseHost frees a host key without touching its room, used when
// the owning connection goes away for good.
func (l *Lobby) ReleaseHost(hostKey string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hosts, hostKey)
}

// RoomCount reports live (not closed, not expired) rooms.
func (l *Lobby) RoomCount() int {
	now := time.Now()
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, r := range l.rooms {
		if !r.IsClosed() && !r.Expired(now) {
			n++
		}
	}
	return n
}

// ListOptions filters, orders and pages a listing. Nil pointer
// filters match everything.
type ListOptions struct {
	IsPrivate *bool
	Status    string
	HasSpace  *bool
	// Case-insensitive substring on the room name.
	Name string

	SortBy string // "name", "created" or "activity" (default "created")
	Desc   bool

	Offset int
	Limit  int // default 20
}

// List returns the matching page, the total match count and whether
// more rooms follow the page.
func (l *Lobby) List(opts ListOptions) ([]protocol.RoomSummary, int, bool) {
	now := time.Now()

	l.mu.RLock()
	live := make([]*room.Room, 0, len(l.rooms))
	for _, r := range l.rooms {
		if r.IsClosed() || r.Expired(now) {
			continue
		}
		live = append(live, r)
	}
	l.mu.RUnlock()

	matched := live[:0]
	nameNeedle := strings.ToLower(strings.TrimSpace(opts.Name))
	for _, r := range live {
		if opts.IsPrivate != nil && r.Opts.IsPrivate != *opts.IsPrivate {
			continue
		}
		if opts.Status != "" && string(r.Status()) != opts.Status {
			continue
		}
		if opts.HasSpace != nil {
			hasSpace := r.Status() == room.StatusWaiting && r.PlayerCount() < r.Opts.Capacity
			if hasSpace != *opts.HasSpace {
				continue
			}
		}
		if nameNeedle != "" && !strings.Contains(strings.ToLower(r.Opts.Name), nameNeedle) {
			continue
		}
		matched = append(matched, r)
	}

	sortRooms(matched, opts.SortBy, opts.Desc)

	total := len(matched)
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	items := make([]protocol.RoomSummary, 0, end-offset)
	for _, r := range matched[offset:end] {
		items = append(items, summarize(r))
	}
	return items, total, end < total
}

// Joinable is the /rooms view: waiting, not full, not expired.
func (l *Lobby) Joinable() []protocol.RoomSummary {
	hasSpace := true
	items, _, _ := l.List(ListOptions{
		Status:   string(room.StatusWaiting),
		HasSpace: &hasSpace,
		Limit:    1000,
	})
	return items
}

func sortRooms(rooms []*room.Room, key string, desc bool) {
	var less func(a, b *room.Room) bool
	switch key {
	case "name":
		less = func(a, b *room.Room) bool {
			an, bn := strings.ToLower(a.Opts.Name), strings.ToLower(b.Opts.Name)
			if an != bn {
				return an < bn
			}
			return a.CreatedAt().Before(b.CreatedAt())
		}
	case "activity":
		less = func(a, b *room.Room) bool { return a.ActivityAt().Before(b.ActivityAt()) }
	default:
		less = func(a, b *room.Room) bool { return a.CreatedAt().Before(b.CreatedAt()) }
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		if desc {
			return less(rooms[j], rooms[i])
		}
		return less(rooms[i], rooms[j])
	})
}

func summarize(r *room.Room) protocol.RoomSummary {
	return protocol.RoomSummary{
		ID:          r.ID,
		Name:        r.Opts.Name,
		PlayerCount: r.PlayerCount(),
		Capacity:    r.Opts.Capacity,
		IsPrivate:   r.Opts.IsPrivate,
		Status:      string(r.Status()),
	}
}

func (l *Lobby) sweepLoop() {
	ticker := time.NewTicker(l.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.done:
			return
		}
	}
}

// sweep purges rooms that closed themselves or ran out their TTL.
func (l *Lobby) sweep() {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, r := range l.rooms {
		if !r.IsClosed() && !r.Expired(now) {
			continue
		}
		r.Close()
		delete(l.rooms, id)
		for key, rid := range l.hosts {
			if rid == id {
				delete(l.hosts, key)
			}
		}
		log.Printf("[Lobby] Swept room %s", id)
	}
}
