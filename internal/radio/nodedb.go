package radio

import (
	"slices"
	"sync"
)

// nodeDB is the client's view of the radio: the node directory, the local
// channel table and the LoRa preset. It is written by the receive loop and
// read from any goroutine.
type nodeDB struct {
	mu        sync.RWMutex
	myNodeNum uint32
	nodes     map[string]NodeInfo // keyed by NodeID(num)
	channels  map[int]ChannelSettings
	preset    ModemPreset
}

func newNodeDB() *nodeDB {
	return &nodeDB{
		nodes:    make(map[string]NodeInfo),
		channels: make(map[int]ChannelSettings),
	}
}

func (db *nodeDB) setMyNodeNum(num uint32) {
	db.mu.Lock()
	db.myNodeNum = num
	db.mu.Unlock()
}

func (db *nodeDB) getMyNodeNum() uint32 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.myNodeNum
}

// upsertNode stores a full directory entry from the config dump.
func (db *nodeDB) upsertNode(info NodeInfo) {
	db.mu.Lock()
	db.nodes[NodeID(info.Num)] = info
	db.mu.Unlock()
}

// updateUser refreshes a node's identity from a NODEINFO_APP broadcast.
func (db *nodeDB) updateUser(num uint32, u User) {
	db.mu.Lock()
	defer db.mu.Unlock()

	id := NodeID(num)
	info := db.nodes[id]
	info.Num = num
	info.User = u
	db.nodes[id] = info
}

// shortName returns the short name for a node id. An entry without a
// short name counts as unknown.
func (db *nodeDB) shortName(id string) (string, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	info, ok := db.nodes[id]
	if !ok || info.User.ShortName == "" {
		return "", false
	}
	return info.User.ShortName, true
}

func (db *nodeDB) nodeCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.nodes)
}

func (db *nodeDB) setChannel(ch ChannelSettings) {
	db.mu.Lock()
	db.channels[ch.Index] = ch
	db.mu.Unlock()
}

// channelList returns every known channel slot ordered by index.
func (db *nodeDB) channelList() []ChannelSettings {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]ChannelSettings, 0, len(db.channels))
	for _, ch := range db.channels {
		out = append(out, ch)
	}
	slices.SortFunc(out, func(a, b ChannelSettings) int { return a.Index - b.Index })
	return out
}

func (db *nodeDB) channelRole(index int) (Role, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	ch, ok := db.channels[index]
	if !ok {
		return RoleDisabled, false
	}
	return ch.Role, true
}

func (db *nodeDB) setPreset(p ModemPreset) {
	db.mu.Lock()
	db.preset = p
	db.mu.Unlock()
}

func (db *nodeDB) getPreset() ModemPreset {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.preset
}
