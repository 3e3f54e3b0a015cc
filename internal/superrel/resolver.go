package superrel

import (
	"sort"
	"strconv"

	"github.com/geodesk/golbuild/internal/coord"
	"github.com/geodesk/golbuild/internal/tilecatalog"
)

// RelationIndex looks up an already-resolved relation's pile pair by id.
// It answers with 0 (an invalid PilePair) for an id that is either not a
// relation at all or not yet indexed — the resolver treats both the same
// way, by falling back to its own in-memory super-relation table.
type RelationIndex interface {
	Get(id uint64) coord.PilePair
}

type cyclicalRelation struct {
	score    float64
	relation *Relation
	child    *Relation
}

// Resolver resolves a batch of super-relations, breaking any reference
// cycles it encounters, and buckets the result by nesting level.
type Resolver struct {
	catalog       *tilecatalog.Catalog
	relationIndex RelationIndex

	order  []*Relation
	byID   map[int64]*Relation
	cyclic []cyclicalRelation
}

// NewResolver builds an empty Resolver. estimatedCount sizes the
// relation-by-id map up front.
func NewResolver(catalog *tilecatalog.Catalog, relationIndex RelationIndex, estimatedCount int) *Resolver {
	return &Resolver{
		catalog:       catalog,
		relationIndex: relationIndex,
		byID:          make(map[int64]*Relation, estimatedCount),
	}
}

// Add registers a super-relation discovered during sorting. Add must be
// called for every super-relation before Resolve runs.
func (r *Resolver) Add(rel *Relation) {
	r.order = append(r.order, rel)
	r.byID[rel.ID] = rel
}

// Resolve resolves every added relation and returns them bucketed by
// level (index 0..MaxLevel), each level sorted by ascending id. Relations
// that end up empty (no member contributed any tile) or nested deeper
// than MaxLevel are omitted.
func (r *Resolver) Resolve() [][]*Relation {
	levels := make([][]*Relation, MaxLevel+1)

	for _, rel := range r.order {
		if !rel.resolved {
			r.resolve(rel)
		}
		if rel.tilePair == nil {
			continue
		}
		if rel.level > MaxLevel {
			continue
		}
		levels[rel.level] = append(levels[rel.level], rel)
	}

	for i := range levels {
		sort.Slice(levels[i], func(a, b int) bool {
			return levels[i][a].ID < levels[i][b].ID
		})
	}
	return levels
}

// resolve resolves rel's member list, recursing into any unresolved
// relation member. It returns false when rel's own resolution had to
// abort because it sits inside a reference cycle still being unwound;
// the caller (an enclosing resolve call) is responsible for retrying.
func (r *Resolver) resolve(rel *Relation) bool {
	rel.pending = true
	var tilePair *coord.TilePair
	if rel.tilePair != nil {
		tp := *rel.tilePair
		tilePair = &tp
	}
	maxChildLevel := 0

	for i := range rel.Members {
		member := &rel.Members[i]
		if member.Type != coord.FeatureRelation || member.Removed {
			continue
		}

		memberPilePair := r.relationIndex.Get(uint64(member.ID))
		var memberTilePair coord.TilePair
		var haveTile bool

		if memberPilePair.Valid() {
			memberTilePair = r.catalog.TilePairOfPilePair(memberPilePair)
			haveTile = true
		} else {
			child, ok := r.byID[member.ID]
			if !ok {
				// Not in the relation index, not a known super-
				// relation either: truly missing.
				member.Removed = true
				continue
			}
			if !child.resolved {
				if child.pending {
					// Reference cycle: rel -> ... -> child -> rel.
					r.cyclic = append(r.cyclic, cyclicalRelation{relation: rel, child: child})
					rel.pending = false
					return false
				}
				for !r.resolve(child) {
					r.cyclic = append(r.cyclic, cyclicalRelation{relation: rel, child: child})
					if r.cyclic[0].child == rel {
						loser := r.breakReferenceCycle()
						if rel == loser {
							break
						}
					} else {
						rel.pending = false
						return false
					}
				}
			}
			if member.Removed {
				continue
			}
			memberPilePair = child.pilePair
			if child.tilePair == nil {
				member.Removed = true
				continue
			}
			memberTilePair = *child.tilePair
			haveTile = true
			if child.level > maxChildLevel {
				maxChildLevel = child.level
			}
		}

		if !haveTile {
			continue
		}
		member.PilePair = memberPilePair
		member.TilePair = memberTilePair
		if tilePair == nil {
			tp := memberTilePair
			tilePair = &tp
		} else {
			combined := coord.CombineTilePairs(*tilePair, memberTilePair)
			tilePair = &combined
		}
	}

	if tilePair != nil {
		normalized := r.catalog.NormalizeTilePair(*tilePair)
		rel.tilePair = &normalized
		rel.pilePair = r.catalog.PilePairOfTilePair(normalized)
	}
	rel.resolved = true
	rel.pending = false
	rel.level = maxChildLevel + 1
	return true
}

// calculateScore estimates how likely rel is to sit at the top of a
// relation hierarchy: relations with only other relations as members,
// or tagged as a route/network/site grouping, or with a low
// admin_level, score higher and are preferred survivors when a
// reference cycle must be broken.
func (r *Resolver) calculateScore(rel *Relation) float64 {
	var score float64
	nonRelationMemberCount := 0
	for _, m := range rel.Members {
		if m.Type != coord.FeatureRelation {
			nonRelationMemberCount++
		}
	}
	if nonRelationMemberCount == 0 {
		score += 1_000_000_000
	} else {
		score += float64(nonRelationMemberCount)
	}

	for _, tag := range rel.Tags {
		switch tag.Key {
		case "type":
			switch tag.Value {
			case "superroute", "route_master":
				score += 50_000_000
			case "network":
				score += 100_000_000
			case "site":
				score += 20_000_000
			}
		case "admin_level":
			if level, err := strconv.ParseFloat(tag.Value, 64); err == nil {
				score += (14 - level) * 1_000_000
			}
		}
	}
	return score
}

// breakReferenceCycle scores every relation on the current cycle and
// removes the child link from the lowest scorer, breaking the cycle so
// resolution can proceed. Ties are broken by ascending relation id
// (Open Question: the original leaves this undefined; lowest id loses).
func (r *Resolver) breakReferenceCycle() *Relation {
	for i := range r.cyclic {
		r.cyclic[i].score = r.calculateScore(r.cyclic[i].relation)
	}
	sort.SliceStable(r.cyclic, func(a, b int) bool {
		ca, cb := r.cyclic[a], r.cyclic[b]
		if ca.score != cb.score {
			return ca.score < cb.score
		}
		return ca.relation.ID < cb.relation.ID
	})

	loser := r.cyclic[0].relation
	child := r.cyclic[0].child
	loser.clearMember(child.ID)
	loser.removedRefcycleCount++
	r.cyclic = r.cyclic[:0]
	return loser
}
