package room

import "time"

// replayVote is the post-terminal unanimity vote. The voter set is
// fixed at open: seats connected at that instant. Connections coming
// or going during the window do not alter it.
type replayVote struct {
	votes    map[string]*bool
	deadline time.Time
	epoch    uint64
}

func newReplayVote(voterIDs []string, window time.Duration, epoch uint64) *replayVote {
	v := &replayVote{
		votes:    make(map[string]*bool, len(voterIDs)),
		deadline: time.Now().Add(window),
		epoch:    epoch,
	}
	for _, id := range voterIDs {
		v.votes[id] = nil
	}
	return v
}

// cast records a vote. Re-casting is allowed until the window closes;
// casting the same value twice is a silent no-op.
func (v *replayVote) cast(seatID string, vote bool) error {
	if _, ok := v.votes[seatID]; !ok {
		return ErrNotAVoter
	}
	val := vote
	v.votes[seatID] = &val
	return nil
}

// complete reports whether every voter has voted.
func (v *replayVote) complete() bool {
	for _, val := range v.votes {
		if val == nil {
			return false
		}
	}
	return true
}

// accepted is meaningful only once complete: unanimity on true.
func (v *replayVote) accepted() bool {
	for _, val := range v.votes {
		if val == nil || !*val {
			return false
		}
	}
	return true
}

// snapshot copies the vote map for event payloads.
func (v *replayVote) snapshot() map[string]*bool {
	out := make(map[string]*bool, len(v.votes))
	for id, val := range v.votes {
		if val == nil {
			out[id] = nil
			continue
		}
		cp := *val
		out[id] = &cp
	}
	return out
}
