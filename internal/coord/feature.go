package coord

// FeatureType distinguishes the three OSM primitive kinds. The numeric
// values match the wire encoding used by the source callbacks (§6) and the
// low two bits of TypedFeatureId.
type FeatureType uint8

const (
	FeatureNode     FeatureType = 0
	FeatureWay      FeatureType = 1
	FeatureRelation FeatureType = 2
)

func (t FeatureType) String() string {
	switch t {
	case FeatureNode:
		return "node"
	case FeatureWay:
		return "way"
	case FeatureRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// TypedFeatureId packs a feature's 64-bit OSM id and its type into a single
// value: (id << 2) | type. Feature ids are monotonically non-decreasing
// within a type in the source, so sorting TypedFeatureIds within a type
// also sorts by id.
type TypedFeatureId uint64

// NewTypedFeatureId builds a TypedFeatureId from an OSM id and type.
func NewTypedFeatureId(id int64, t FeatureType) TypedFeatureId {
	return TypedFeatureId(uint64(id)<<2 | uint64(t))
}

// ID extracts the OSM feature id.
func (f TypedFeatureId) ID() int64 {
	return int64(uint64(f) >> 2)
}

// Type extracts the feature type.
func (f TypedFeatureId) Type() FeatureType {
	return FeatureType(uint64(f) & 3)
}

// Pile is a 1-based integer naming a tile in the tile catalog. Pile 0 means
// "absent" — the feature it would name was never assigned a tile, either
// because it fell outside the catalog or because lookup failed.
type Pile uint32

// PileAbsent is the reserved pile value meaning "no tile assigned".
const PileAbsent Pile = 0

// Valid reports whether p names an actual tile.
func (p Pile) Valid() bool {
	return p != PileAbsent
}

// PilePair packs a Pile and a TwinDirection: (pile << 2) | dir. A single-
// tile feature's PilePair has Dir == TwinNone and Pile equal to its one
// tile's pile.
//
// The wire field is only 2 bits wide, but TwinDirection has 5 raw values
// (None/N/W/S/E) because Opposite() needs to name all four neighbors. A
// PilePair is always built from an already-canonicalized TilePair, whose
// NewTilePair never emits N or W (it swaps A/B so the pair's own direction
// is always E or S); twinCode/codeToTwin map that 3-value subset
// (None, S, E) into the 2-bit field.
func twinCode(dir TwinDirection) uint32 {
	switch dir {
	case TwinE:
		return 1
	case TwinS:
		return 2
	default:
		return 0
	}
}

func codeToTwin(code uint32) TwinDirection {
	switch code {
	case 1:
		return TwinE
	case 2:
		return TwinS
	default:
		return TwinNone
	}
}

type PilePair uint32

// NewPilePair builds a PilePair from a pile and direction. dir must be one
// of TwinNone, TwinS, or TwinE (the only directions a canonicalized
// TilePair ever produces); N and W are accepted and folded to TwinNone,
// since they cannot arise from a real pile pair.
func NewPilePair(p Pile, dir TwinDirection) PilePair {
	return PilePair(uint32(p)<<2 | twinCode(dir))
}

// Pile extracts the primary pile.
func (pp PilePair) Pile() Pile {
	return Pile(uint32(pp) >> 2)
}

// Dir extracts the twin direction.
func (pp PilePair) Dir() TwinDirection {
	return codeToTwin(uint32(pp) & 3)
}

// IsSingle reports whether pp names a single tile rather than a pair.
func (pp PilePair) IsSingle() bool {
	return pp.Dir() == TwinNone
}

// Valid reports whether pp's primary pile is assigned.
func (pp PilePair) Valid() bool {
	return pp.Pile().Valid()
}
