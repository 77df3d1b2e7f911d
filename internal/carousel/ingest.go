package carousel

import (
	"time"

	"service-carousel/internal/chunk"
)

// Decoder extracts service ids from a raw chunk, in encounter order.
type Decoder func(data []byte) ([]string, error)

// Ingestor folds service ids into the replay state. It is not safe for
// concurrent use; the Service calls it from its event loop only.
type Ingestor struct {
	store   Store
	decode  Decoder
	spacing float64
	now     func() time.Time
}

// NewIngestor returns an Ingestor over store. A nil decode reads the Arrow
// id column; a non-positive spacing uses DefaultSpacing.
func NewIngestor(store Store, decode Decoder, spacing float64) *Ingestor {
	if decode == nil {
		decode = chunk.IDs
	}
	if spacing <= 0 {
		spacing = DefaultSpacing
	}
	return &Ingestor{store: store, decode: decode, spacing: spacing, now: time.Now}
}

// AppendChunk decodes data and merges its ids, returning how many were new.
// A chunk that fails to decode leaves the state untouched.
func (in *Ingestor) AppendChunk(data []byte) (int, error) {
	ids, err := in.decode(data)
	if err != nil {
		return 0, err
	}
	return in.AppendIDs(ids), nil
}

// ReplaceOrMerge decodes a full replay file, merges it like AppendChunk, sets
// JobID to the last id value in the file and returns a copy of the result.
func (in *Ingestor) ReplaceOrMerge(data []byte) (ReplayState, error) {
	ids, err := in.decode(data)
	if err != nil {
		return ReplayState{}, err
	}
	return in.MergeReplay(ids), nil
}

// AppendIDs merges ids into the state and returns how many were new.
// Ids already known, or repeated within ids, are skipped. The service list is
// only rebuilt when something was added; the timestamp is always refreshed.
func (in *Ingestor) AppendIDs(ids []string) int {
	st, existed := in.state()
	added := in.merge(st, ids)
	if !existed && added > 0 {
		st.JobID = st.AllServiceIDs[0]
	}
	return added
}

// MergeReplay is AppendIDs for the full-file path. JobID becomes the last
// value in ids, duplicates included, or "" when ids is empty.
func (in *Ingestor) MergeReplay(ids []string) ReplayState {
	st, _ := in.state()
	in.merge(st, ids)

	// Overwritten even when nothing new arrived.
	st.JobID = ""
	if len(ids) > 0 {
		st.JobID = ids[len(ids)-1]
	}
	return st.Clone()
}

func (in *Ingestor) state() (*ReplayState, bool) {
	if st, ok := in.store.Load(); ok {
		if st.index == nil {
			st.index = make(map[string]struct{}, len(st.AllServiceIDs))
			for _, id := range st.AllServiceIDs {
				st.index[id] = struct{}{}
			}
		}
		return st, true
	}
	st := newReplayState()
	in.store.Save(st)
	return st, false
}

func (in *Ingestor) merge(st *ReplayState, ids []string) int {
	added := 0
	for _, id := range ids {
		if _, seen := st.index[id]; seen {
			continue
		}
		st.index[id] = struct{}{}
		st.AllServiceIDs = append(st.AllServiceIDs, id)
		added++
	}
	if added > 0 {
		st.Services = layoutServices(st.AllServiceIDs, in.spacing)
	}
	st.Timestamp = in.now().UTC()
	return added
}

// ServiceCount returns the number of services in the rotation.
func (in *Ingestor) ServiceCount() int {
	st, ok := in.store.Load()
	if !ok {
		return 0
	}
	return len(st.Services)
}

// ServiceAt returns the node at position i.
func (in *Ingestor) ServiceAt(i int) (ServiceNode, bool) {
	st, ok := in.store.Load()
	if !ok || i < 0 || i >= len(st.Services) {
		return ServiceNode{}, false
	}
	return st.Services[i], true
}

// Snapshot returns a copy of the state, or false before the first ingestion.
func (in *Ingestor) Snapshot() (ReplayState, bool) {
	st, ok := in.store.Load()
	if !ok {
		return ReplayState{}, false
	}
	return st.Clone(), true
}
