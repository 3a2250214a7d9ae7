// Package resolver maps playlist-entry descriptors to library tracks.
//
// Matching runs as an ordered list of tiers; the first tier that yields a
// result commits and later tiers are never consulted. Tier 1 is an exact
// location match, authoritative even when metadata hints disagree (a literal
// path hit means the file was edited since the playlist was authored, which
// is not this resolver's concern). Tier 2 is a conjunction of whichever
// metadata hints the descriptor carries, with absent hints treated as
// wildcards.
package resolver

import (
	"errors"
	"fmt"

	"cantata/internal/database"
	"cantata/pkg/models"
)

// ErrNotFound is returned when no tier produced a candidate, or when the
// descriptor carries no usable metadata beyond a dead path. Recoverable:
// the import caller surfaces it for user-directed relinking.
var ErrNotFound = errors.New("no matching track")

// Tier identifies which matching stage produced a resolution. Callers can
// use it as a confidence signal: an exact location hit needs no
// confirmation, a heuristic hit might.
type Tier int

const (
	// TierLocation is an exact track.location match.
	TierLocation Tier = iota + 1
	// TierHeuristic is a metadata-filter match.
	TierHeuristic
)

func (t Tier) String() string {
	switch t {
	case TierLocation:
		return "location"
	case TierHeuristic:
		return "heuristic"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Resolution is the result of a successful resolve.
type Resolution struct {
	TrackID int64
	Tier    Tier

	// Ambiguous is set when the heuristic tier produced more than one
	// equally-valid candidate and the lowest track id was chosen.
	// Callers should treat the match as weak confidence.
	Ambiguous  bool
	Candidates int
}

// Resolver resolves playlist-entry descriptors against a library store.
// It is read-only and safe for concurrent use.
type Resolver struct {
	db *database.Database
}

// New returns a Resolver backed by the given store.
func New(db *database.Database) *Resolver {
	return &Resolver{db: db}
}

// Resolve maps a descriptor to at most one track id. The descriptor's path
// is expected pre-normalized (absolute, platform-native separators).
func (r *Resolver) Resolve(d models.EntryDescriptor) (*Resolution, error) {
	// Tier 1: exact location. Ignores every other descriptor field.
	id, err := r.db.TrackIDByLocation(d.Path)
	if err == nil {
		return &Resolution{TrackID: id, Tier: TierLocation, Candidates: 1}, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("location lookup: %w", err)
	}

	// Tier 2: heuristic fallback. Only meaningful when the descriptor
	// carries enough metadata to narrow the library; a bare dead path
	// must report not-found rather than matching arbitrarily.
	if !usable(d) {
		return nil, ErrNotFound
	}

	candidates, err := r.db.FindTrackCandidates(d)
	if err != nil {
		return nil, fmt.Errorf("candidate query: %w", err)
	}

	switch len(candidates) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &Resolution{TrackID: candidates[0], Tier: TierHeuristic, Candidates: 1}, nil
	default:
		// Candidates come back ordered by id ascending; the lowest id
		// wins deterministically and the ambiguity is surfaced.
		return &Resolution{
			TrackID:    candidates[0],
			Tier:       TierHeuristic,
			Ambiguous:  true,
			Candidates: len(candidates),
		}, nil
	}
}

// usable reports whether the descriptor carries enough metadata for the
// heuristic tier: a title hint on its own, or a search hint combined with
// at least one other filter.
func usable(d models.EntryDescriptor) bool {
	if d.Title != nil {
		return true
	}
	if d.SearchHint == nil {
		return false
	}
	return d.AlbumArtist != nil || d.AlbumTitle != nil ||
		d.TrackArtists != nil || d.DurationSeconds != nil
}
