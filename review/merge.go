package review

import (
	"bytes"
	"encoding/json"
	"slices"
)

// mergeLocked folds stored, the table another process wrote, into the
// local table with s.base as the common ancestor:
//   - reviews the other side added are appended;
//   - reviews it deleted are dropped unless edited here;
//   - reviews only it changed take its version;
//   - reviews both sides changed keep the local version with the reply
//     threads unioned.
//
// A local review whose id the other side minted too gets a fresh id. The
// renames are returned.
func (s *Store) mergeLocked(stored []Review) map[string]string {
	base := byID(s.base)
	theirs := byID(stored)
	local := byID(s.reviews)

	var renamed map[string]string
	out := make([]Review, 0, len(s.reviews)+len(stored))
	for _, r := range s.reviews {
		b, inBase := base[r.ID]
		t, inTheirs := theirs[r.ID]
		switch {
		case !inBase && inTheirs:
			if sameReview(r, t) {
				out = append(out, r)
				continue
			}
			id := s.freshIDLocked(theirs, local)
			if renamed == nil {
				renamed = make(map[string]string)
			}
			renamed[r.ID] = id
			local[id] = r
			r.ID = id
			out = append(out, t, r)
		case inBase && !inTheirs:
			if !sameReview(r, b) {
				out = append(out, r)
			}
		case inBase && inTheirs:
			switch {
			case sameReview(r, b):
				out = append(out, t)
			case sameReview(t, b):
				out = append(out, r)
			default:
				r.Replies = unionReplies(r.Replies, t.Replies)
				out = append(out, r)
			}
		default:
			out = append(out, r)
		}
	}
	for _, t := range stored {
		_, inLocal := local[t.ID]
		_, inBase := base[t.ID]
		if !inLocal && !inBase {
			out = append(out, t)
		}
	}

	for _, r := range s.reviews {
		s.removeMarker(r)
	}
	s.reviews = out
	for _, r := range s.reviews {
		s.applyMarker(r)
	}
	return renamed
}

// freshIDLocked mints an id used neither locally nor by the other writer.
func (s *Store) freshIDLocked(taken ...map[string]Review) string {
	for {
		id := s.newID()
		free := true
		for _, m := range taken {
			if _, ok := m[id]; ok {
				free = false
				break
			}
		}
		if free {
			return id
		}
	}
}

// chainRenames folds next into prev so every original id maps to its
// latest name.
func chainRenames(prev, next map[string]string) map[string]string {
	if len(next) == 0 {
		return prev
	}
	if prev == nil {
		prev = make(map[string]string, len(next))
	}
	for orig, cur := range prev {
		if to, ok := next[cur]; ok {
			prev[orig] = to
			delete(next, cur)
		}
	}
	for from, to := range next {
		prev[from] = to
	}
	return prev
}

func byID(rs []Review) map[string]Review {
	m := make(map[string]Review, len(rs))
	for _, r := range rs {
		m[r.ID] = r
	}
	return m
}

// unionReplies appends the replies of b missing from a, ordered by
// creation time. Replies sharing an id but not content are both kept.
func unionReplies(a, b []Reply) []Reply {
	out := slices.Clone(a)
	for _, rp := range b {
		if !slices.ContainsFunc(out, func(x Reply) bool { return x.ID == rp.ID && sameJSON(x, rp) }) {
			out = append(out, rp)
		}
	}
	slices.SortStableFunc(out, func(x, y Reply) int { return x.Created.Compare(y.Created) })
	return out
}

// sameReview compares reviews by their persisted form, so values read back
// from storage equal the ones that were written.
func sameReview(a, b Review) bool {
	return sameJSON(a, b)
}

func sameReviews(a, b []Review) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return sameJSON(a, b)
}

func sameJSON(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

