// Package superrel resolves relations whose member list includes another
// relation — a "super-relation" — after the sorter has placed every plain
// node and way (§4.7). Relations form a DAG in the common case; the
// resolver walks it post-order and breaks any reference cycle it finds.
package superrel

import (
	"github.com/geodesk/golbuild/internal/coord"
	"github.com/geodesk/golbuild/internal/protogol"
)

// MaxLevel is the deepest super-relation nesting the builder keeps.
// Relations resolved past this depth are dropped, per §4.7.
const MaxLevel = 9

// Member is one element of a relation's member list. Node and way
// members already carry their pile pair, assigned while the sorter
// processed their own phase; relation members carry only an id and are
// resolved as the DAG unwinds.
type Member struct {
	Type     coord.FeatureType
	ID       int64
	Role     string
	PilePair coord.PilePair
	TilePair coord.TilePair

	// Removed is set by cycle-breaking: a removed member is skipped
	// when accumulating the owning relation's tile pair, but it still
	// counts in the relation's original member list for scoring.
	Removed bool
}

// Relation is a super-relation as seen by the resolver: its own tags (for
// calculateScore), its member list, and the tile pair contributed so far
// by its non-relation members, computed by the sorter before the
// relation was handed to the resolver.
type Relation struct {
	ID      int64
	Tags    []protogol.Tag
	Members []Member

	// MissingMemberCount counts members the sorter could not place at
	// all (absent from every index), tracked independently of Removed.
	MissingMemberCount int

	resolved bool
	pending  bool
	level    int

	// tilePair is nil until some member (direct or, after resolution,
	// an indirect super-relation) has contributed a tile. A relation
	// left with a nil tilePair after resolution is empty and is
	// omitted from the final output.
	tilePair *coord.TilePair
	pilePair coord.PilePair

	removedRefcycleCount int
}

// NewRelation builds a Relation with the tentative tile pair the sorter
// already accumulated from this relation's direct node and way members.
// Pass nil if no direct non-relation member contributed a tile yet.
func NewRelation(id int64, tags []protogol.Tag, members []Member, missingMemberCount int, tentative *coord.TilePair) *Relation {
	return &Relation{
		ID:                 id,
		Tags:               tags,
		Members:            members,
		MissingMemberCount: missingMemberCount,
		tilePair:           tentative,
	}
}

// TilePair returns the relation's resolved tile pair, or false if the
// relation turned out to be empty.
func (r *Relation) TilePair() (coord.TilePair, bool) {
	if r.tilePair == nil {
		return coord.TilePair{}, false
	}
	return *r.tilePair, true
}

// PilePair returns the relation's resolved pile pair. Only meaningful
// once TilePair reports ok.
func (r *Relation) PilePair() coord.PilePair {
	return r.pilePair
}

// Level reports the relation's super-relation nesting depth once
// resolved: one more than its deepest relation-type member's level, or
// 1 if none of its relation members turned out to be another
// super-relation (including when they were all missing or removed).
// Level 0 is never assigned by the resolver — it names an ordinary
// relation with no relation members at all, which the sorter writes
// directly and never hands to this package.
func (r *Relation) Level() int {
	return r.level
}

// RemovedRefcycleCount reports how many times this relation lost a
// child link to break a reference cycle.
func (r *Relation) RemovedRefcycleCount() int {
	return r.removedRefcycleCount
}

func (r *Relation) clearMember(id int64) {
	for i := range r.Members {
		m := &r.Members[i]
		if m.Type == coord.FeatureRelation && m.ID == id && !m.Removed {
			m.Removed = true
			return
		}
	}
}
