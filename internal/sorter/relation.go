package sorter

import (
	"strconv"

	"github.com/geodesk/golbuild/internal/coord"
	"github.com/geodesk/golbuild/internal/osmsource"
	"github.com/geodesk/golbuild/internal/protogol"
	"github.com/geodesk/golbuild/internal/superrel"
)

// missingMembersKey is the synthetic tag §4.6 attaches to a relation
// written with one or more members it could not place.
const missingMembersKey = "geodesk:missing_members"

// Relation resolves each member's pile (or defers the whole relation when
// a member is itself a relation), accumulates the member tile pair, and
// either writes the relation now or hands it to the super-relation
// resolver for the post-pass (§4.6 "Relations", §4.7).
func (s *Sorter) Relation(id int64, tags []osmsource.Tag, members []osmsource.Member) error {
	if err := s.advanceTo(phaseRelations); err != nil {
		return err
	}

	var resolvedMembers []superrel.Member
	var tilePair *coord.TilePair
	missing := 0
	isSuper := false

	for _, m := range members {
		role := s.resolveString(m.RoleIdx)
		switch m.Type {
		case osmsource.MemberRelation:
			if m.ID == id {
				continue // self-reference
			}
			isSuper = true
			resolvedMembers = append(resolvedMembers, superrel.Member{
				Type: coord.FeatureRelation, ID: m.ID, Role: role,
			})
		case osmsource.MemberWay:
			pp := coord.PilePair(s.wayIndex.Get(uint64(m.ID)))
			if !pp.Valid() {
				missing++
				continue
			}
			tp := s.catalog.TilePairOfPilePair(pp)
			tilePair = combineTilePair(tilePair, tp)
			resolvedMembers = append(resolvedMembers, superrel.Member{
				Type: coord.FeatureWay, ID: m.ID, Role: role, PilePair: pp, TilePair: tp,
			})
		case osmsource.MemberNode:
			p := coord.Pile(s.nodeIndex.Get(uint64(m.ID)))
			if !p.Valid() {
				missing++
				continue
			}
			tp := coord.SingleTile(s.catalog.TileOfPile(p))
			tilePair = combineTilePair(tilePair, tp)
			resolvedMembers = append(resolvedMembers, superrel.Member{
				Type: coord.FeatureNode, ID: m.ID, Role: role, PilePair: coord.NewPilePair(p, coord.TwinNone), TilePair: tp,
			})
		}
	}

	if len(resolvedMembers) == 0 {
		// Every member was either a self-reference or missing: the
		// relation has nothing to place.
		s.stats.RelationsEmpty++
		return nil
	}

	tagList := s.resolveTags(tags)

	if isSuper {
		s.resolver.Add(superrel.NewRelation(id, tagList, resolvedMembers, missing, tilePair))
		s.stats.SuperRelationsDeferred++
		return nil
	}

	if tilePair == nil {
		s.stats.RelationsEmpty++
		return nil
	}

	normalized := s.catalog.NormalizeTilePair(*tilePair)
	pp := s.catalog.PilePairOfTilePair(normalized)
	if !pp.Valid() {
		s.stats.RelationsEmpty++
		return nil
	}
	if missing > 0 {
		tagList = append(tagList, protogol.Tag{Key: missingMembersKey, Value: strconv.Itoa(missing)})
	}
	return s.writeRelationRecord(id, pp, tagList, resolvedMembers)
}

func combineTilePair(acc *coord.TilePair, next coord.TilePair) *coord.TilePair {
	if acc == nil {
		cp := next
		return &cp
	}
	merged := coord.CombineTilePairs(*acc, next)
	return &merged
}

// writeRelationRecord writes the relation's body into pp's pile(s),
// indexes it, and emits membership records for any member living deeper
// than pp's own zoom (§4.6 step 3).
func (s *Sorter) writeRelationRecord(id int64, pp coord.PilePair, tags []protogol.Tag, members []superrel.Member) error {
	var locator *byte
	if !pp.IsSingle() {
		l := encodeLocator(s.catalog.TilePairOfPilePair(pp).A.Zoom, pp.Dir())
		locator = &l
	}

	live := make([]superrel.Member, 0, len(members))
	for _, m := range members {
		if !m.Removed {
			live = append(live, m)
		}
	}

	if err := s.writeRelationToPile(pp.Pile(), id, locator, tags, live); err != nil {
		return err
	}
	if !pp.IsSingle() {
		if err := s.writeRelationToPile(s.twinPile(pp), id, locator, tags, live); err != nil {
			return err
		}
	}
	s.relBatch.Put(uint64(id), uint64(pp))

	pairZoom := s.catalog.TilePairOfPilePair(pp).A.Zoom
	return s.writeMemberships(id, pairZoom, live)
}

func (s *Sorter) writeRelationToPile(p coord.Pile, id int64, locator *byte, tags []protogol.Tag, members []superrel.Member) error {
	hasTags := len(tags) > 0
	w := protogol.NewWriter()
	idDelta := id - s.lastRelID[p]
	s.lastRelID[p] = id
	w.WriteUvarint(protogol.EncodeTaggedDelta2(idDelta, hasTags, locator != nil))
	if locator != nil {
		w.WriteByte(*locator)
	}
	w.WriteUvarint(uint64(len(members)))
	for _, m := range members {
		w.WriteByte(byte(m.Type))
		w.WriteUvarint(uint64(m.ID))
		w.WriteUvarint(uint64(s.roleRef(m.Role)))
	}
	if hasTags {
		protogol.EncodeTags(w, s.strings, s.arena, tags)
	}
	return s.appendRecord(p, RecordRelation, w.Bytes())
}

// writeMemberships writes a back-reference into the pile(s) of every
// member living at a deeper zoom than the relation's own pair, so a
// reader of that tile alone can discover which relation(s) it belongs to
// (§4.6 step 3).
func (s *Sorter) writeMemberships(relID int64, pairZoom int, members []superrel.Member) error {
	for _, m := range members {
		if !m.PilePair.Valid() {
			continue
		}
		if s.catalog.TileOfPile(m.PilePair.Pile()).Zoom <= pairZoom {
			continue
		}
		if err := s.writeMembershipRecord(m.PilePair.Pile(), relID, m); err != nil {
			return err
		}
		if !m.PilePair.IsSingle() {
			if err := s.writeMembershipRecord(s.twinPile(m.PilePair), relID, m); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Sorter) writeMembershipRecord(p coord.Pile, relID int64, m superrel.Member) error {
	w := protogol.NewWriter()
	idDelta := relID - s.lastMembershipRelID[p]
	s.lastMembershipRelID[p] = relID
	w.WriteVarint(idDelta)
	w.WriteByte(byte(m.Type))
	w.WriteUvarint(uint64(m.ID))
	w.WriteUvarint(uint64(s.roleRef(m.Role)))
	return s.appendRecord(p, RecordMembership, w.Bytes())
}

// resolveSuperRelations runs the deferred super-relation resolver and
// writes every surviving relation, bucketed level by level so a parent's
// child relations are always written (and indexed) before the parent
// itself is considered — though since writeRelationRecord only needs the
// relation index for plain relations, not for other super-relations
// (the resolver already carries each member's resolved PilePair), level
// order here is purely for deterministic output, not a write dependency.
func (s *Sorter) resolveSuperRelations() error {
	// Resolve already omits empty relations and anything nested past
	// MaxLevel from the returned buckets, so whatever didn't come back
	// out was dropped.
	levels := s.resolver.Resolve()
	for _, level := range levels {
		for _, rel := range level {
			pp := rel.PilePair()
			tags := rel.Tags
			if rel.MissingMemberCount > 0 {
				tags = append(tags, protogol.Tag{Key: missingMembersKey, Value: strconv.Itoa(rel.MissingMemberCount)})
			}
			if err := s.writeRelationRecord(rel.ID, pp, tags, rel.Members); err != nil {
				return err
			}
			s.stats.SuperRelationsResolved++
		}
	}
	s.stats.SuperRelationsDropped = s.stats.SuperRelationsDeferred - s.stats.SuperRelationsResolved
	return s.relBatch.Flush()
}
