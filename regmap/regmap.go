// Package regmap implements the LoLaN register map: a bounded table of
// path-addressed typed variables, mirroring each entry onto caller-owned
// storage without ever copying or freeing it.
package regmap

// Result mirrors the tri-state (and error) return codes exposed by the
// original's public operations (§6): YES/NO for boolean outcomes,
// GENERROR/CBORERROR/MEMERROR for the three error classes threaded through
// the command layer.
type Result int

const (
	ResultYes        Result = 1
	ResultNo         Result = 0
	ResultGenError   Result = -1
	ResultCBORError  Result = -2
	ResultMemError   Result = -3
)

// Entry is one live or free register map slot. A zero-value Path marks a
// free slot (register-map invariant: a live entry always has Path[0] != 0).
type Entry struct {
	Path       Path
	Flags      Flags
	Size       int
	ActualSize int // only meaningful for TypeData
	Storage    Storage // zero-copy handle into caller-owned memory
	Tag        any
}

func (e *Entry) live() bool { return len(e.Path) > 0 && e.Path[0] != 0 }

// Map is the per-context table of variables. It never allocates storage for
// variable data itself — Entry.Storage is an opaque, caller-owned reference.
type Map struct {
	entries  []Entry
	capacity int
	depth    int
}

// NewMap builds an empty map with room for capacity variables, each
// addressed by a path of exactly depth elements.
func NewMap(capacity, depth int) *Map {
	return &Map{
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
		depth:    depth,
	}
}

// Depth returns the configured path length D.
func (m *Map) Depth() int { return m.depth }

// Len returns the number of live entries.
func (m *Map) Len() int {
	n := 0
	for i := range m.entries {
		if m.entries[i].live() {
			n++
		}
	}
	return n
}

// Entries returns copies of the live entries in their current (sorted)
// order, in a newly allocated slice. Each copy's Path still shares memory
// with the map's own entry.
func (m *Map) Entries() []Entry {
	out := make([]Entry, 0, len(m.entries))
	for i := range m.entries {
		if m.entries[i].live() {
			out = append(out, m.entries[i])
		}
	}
	return out
}

// find returns a pointer to the live entry matching storage, or nil.
func (m *Map) find(storage Storage) *Entry {
	for i := range m.entries {
		if m.entries[i].live() && m.entries[i].Storage == storage {
			return &m.entries[i]
		}
	}
	return nil
}

// findPath returns a pointer to the live entry with exact path p, or nil.
func (m *Map) findPath(p Path) *Entry {
	np := Normalize(p, m.depth)
	for i := range m.entries {
		if m.entries[i].live() && Compare(m.entries[i].Path, np, m.depth) == 0 {
			return &m.entries[i]
		}
	}
	return nil
}

// Register inserts a new variable. See the invariants in spec §3/§4.4:
// invalid path, zero/unsupported size, duplicate path, duplicate storage,
// prefix collision, or a full map all fail without mutating the map.
func (m *Map) Register(path Path, typ VarType, storage Storage, size int, readOnly bool) error {
	np := Normalize(path, m.depth)
	if !IsValid(np, m.depth) || IsRoot(np, m.depth) {
		return ErrInvalidPath
	}
	if size <= 0 {
		return ErrZeroSize
	}
	if !typ.ValidSize(size) {
		return ErrUnsupportedSize
	}
	for i := range m.entries {
		e := &m.entries[i]
		if !e.live() {
			continue
		}
		if Compare(e.Path, np, m.depth) == 0 {
			return ErrDuplicatePath
		}
		if e.Storage == storage {
			return ErrDuplicateStore
		}
		if HasPrefix(e.Path, np, m.depth) || HasPrefix(np, e.Path, m.depth) {
			return ErrPrefixCollision
		}
	}

	entry := Entry{
		Path:    np,
		Flags:   Flags(0).withType(typ),
		Size:    size,
		Storage: storage,
	}
	if readOnly {
		entry.Flags |= FlagRemoteReadOnly
	}

	if slot := m.freeSlot(); slot >= 0 {
		m.entries[slot] = entry
	} else {
		if len(m.entries) >= m.capacity {
			return ErrMapFull
		}
		m.entries = append(m.entries, entry)
	}
	m.Sort()
	return nil
}

func (m *Map) freeSlot() int {
	for i := range m.entries {
		if !m.entries[i].live() {
			return i
		}
	}
	return -1
}

// Remove deletes the entry matching storage.
func (m *Map) Remove(storage Storage) error {
	e := m.find(storage)
	if e == nil {
		return ErrNotFound
	}
	*e = Entry{}
	m.Sort()
	return nil
}

// SetFlag ORs mask (restricted to UserMask) into storage's flags.
func (m *Map) SetFlag(storage Storage, mask Flags) error {
	e := m.find(storage)
	if e == nil {
		return ErrNotFound
	}
	e.Flags |= mask & UserMask
	return nil
}

// ClearFlag clears mask (restricted to UserMask) from storage's flags.
func (m *Map) ClearFlag(storage Storage, mask Flags) error {
	e := m.find(storage)
	if e == nil {
		return ErrNotFound
	}
	e.Flags &^= mask & UserMask
	return nil
}

// GetFlag returns storage's flags, or zero if no entry matches.
func (m *Map) GetFlag(storage Storage) Flags {
	e := m.find(storage)
	if e == nil {
		return 0
	}
	return e.Flags
}

// IsUpdated reports ResultYes if FlagRemoteUpdate is set (clearing it when
// clear is true), ResultNo if the bit is not set, or ResultGenError if
// storage matches nothing.
func (m *Map) IsUpdated(storage Storage, clear bool) Result {
	e := m.find(storage)
	if e == nil {
		return ResultGenError
	}
	if e.Flags.Has(FlagRemoteUpdate) {
		if clear {
			e.Flags &^= FlagRemoteUpdate
		}
		return ResultYes
	}
	return ResultNo
}

// ProcessUpdated invokes callback(storage) for every live entry with
// FlagRemoteUpdate set, optionally clearing the bit first. Returns
// ResultYes if at least one entry matched, ResultNo otherwise.
func (m *Map) ProcessUpdated(clear bool, callback func(storage Storage)) Result {
	matched := false
	for i := range m.entries {
		e := &m.entries[i]
		if !e.live() || !e.Flags.Has(FlagRemoteUpdate) {
			continue
		}
		matched = true
		if clear {
			e.Flags &^= FlagRemoteUpdate
		}
		callback(e.Storage)
	}
	if matched {
		return ResultYes
	}
	return ResultNo
}

// SetDataActualLength sets the in-use length of a TypeData entry's storage
// (LOLAN_ALLOW_VARLEN_LOLANDATA). n must be in [1, Size].
func (m *Map) SetDataActualLength(storage Storage, n int) error {
	e := m.find(storage)
	if e == nil {
		return ErrNotFound
	}
	if e.Flags.Type() != TypeData {
		return ErrNotData
	}
	if n < 1 || n > e.Size {
		return ErrActualLength
	}
	e.ActualSize = n
	return nil
}

// Tag returns the opaque application tag attached to storage, or nil.
func (m *Map) Tag(storage Storage) any {
	e := m.find(storage)
	if e == nil {
		return nil
	}
	return e.Tag
}

// SetTag attaches an opaque application value to storage's entry.
func (m *Map) SetTag(storage Storage, tag any) error {
	e := m.find(storage)
	if e == nil {
		return ErrNotFound
	}
	e.Tag = tag
	return nil
}

// Index returns the slot index of the entry matching storage, and true, or
// (0, false) if none matches. Supplements lolan_getIndex — useful to a host
// that wants to repeat-address a variable without a linear scan each time.
func (m *Map) Index(storage Storage) (int, bool) {
	for i := range m.entries {
		if m.entries[i].live() && m.entries[i].Storage == storage {
			return i, true
		}
	}
	return 0, false
}

// EntryAt returns the entry at slot index i and true, or the zero Entry and
// false if i is out of range or the slot is free.
func (m *Map) EntryAt(i int) (Entry, bool) {
	if i < 0 || i >= len(m.entries) || !m.entries[i].live() {
		return Entry{}, false
	}
	return m.entries[i], true
}

// Lookup returns the live entry with exact path p, if any.
func (m *Map) Lookup(p Path) (Entry, bool) {
	e := m.findPath(p)
	if e == nil {
		return Entry{}, false
	}
	return *e, true
}

// Occurrences counts live variables whose path shares p's defined prefix.
// When recursionLimit >= 0, variables whose own definition level exceeds
// p's definition level plus recursionLimit are excluded (LOLAN_REGMAP_RECURSION).
func (m *Map) Occurrences(p Path, recursionLimit int) int {
	baseLevel := DefinitionLevel(p, m.depth)
	n := 0
	for i := range m.entries {
		e := &m.entries[i]
		if !e.live() || !HasPrefix(e.Path, p, m.depth) {
			continue
		}
		if recursionLimit >= 0 {
			lvl := DefinitionLevel(e.Path, m.depth)
			if lvl > baseLevel+recursionLimit {
				continue
			}
		}
		n++
	}
	return n
}

// Sort reorders entries so live ones precede free slots and are ascending
// by lexicographic path comparison (register-map invariant 5). The INFORM
// and GET encoders rely on siblings sharing a parent path being contiguous.
func (m *Map) Sort() {
	live := make([]Entry, 0, len(m.entries))
	free := 0
	for _, e := range m.entries {
		if e.live() {
			live = append(live, e)
		} else {
			free++
		}
	}
	for i := 0; i < len(live); i++ {
		for j := i + 1; j < len(live); j++ {
			if Compare(live[j].Path, live[i].Path, m.depth) < 0 {
				live[i], live[j] = live[j], live[i]
			}
		}
	}
	m.entries = m.entries[:0]
	m.entries = append(m.entries, live...)
	for i := 0; i < free; i++ {
		m.entries = append(m.entries, Entry{})
	}
}
