// Package osmsource defines the narrow interface the build pipeline reads
// OSM primitives through (§6 "External interfaces"). Parsing the actual
// OSM PBF wire format is an explicit non-goal (§1) and an external
// collaborator; this package only specifies the callback contract a real
// parser would drive, plus a synthetic in-memory Source (fixture.go) that
// satisfies it for tests and for exercising the pipeline end to end.
package osmsource

import "context"

// MemberType identifies what kind of feature a relation member refers to,
// matching the wire encoding {0=node, 1=way, 2=relation}.
type MemberType uint8

const (
	MemberNode     MemberType = 0
	MemberWay      MemberType = 1
	MemberRelation MemberType = 2
)

func (t MemberType) String() string {
	switch t {
	case MemberNode:
		return "node"
	case MemberWay:
		return "way"
	case MemberRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// Tag is a single key/value pair, each referring to an index into the
// string table most recently delivered via Handler.StringTable. A real PBF
// reader decodes the format's delta-varint-encoded indices before calling
// back; this package's Handler contract operates one level above that, on
// already-decoded indices.
type Tag struct {
	KeyIndex   uint32
	ValueIndex uint32
}

// Member is one relation member reference: an id, its feature type, and
// a role string index into the current block's string table.
type Member struct {
	ID      int64
	Type    MemberType
	RoleIdx uint32
}

// Handler is the callback contract a Source drives (§6). Calls arrive in
// this order per file: StartFile once; then, per block: StringTable, any
// number of Node calls, BeginWayGroup then any number of Way calls,
// BeginRelationGroup then any number of Relation calls, then EndBlock.
// After the last block, AfterTasks then HarvestResults are each called
// once. A block's Node/Way/Relation groups are each optional (a block may
// hold only nodes, for instance) but never interleaved: within one block,
// all Node calls precede BeginWayGroup, all Way calls precede
// BeginRelationGroup.
type Handler interface {
	// StartFile announces the total input size in bytes, primarily so a
	// progress bar can be sized before the first block arrives.
	StartFile(size int64) error

	// StringTable delivers the string table for the block about to start.
	// Tag.KeyIndex/ValueIndex and Member.RoleIdx index into this slice
	// until the next StringTable call.
	StringTable(strings []string) error

	// Node delivers one node. lon100nd/lat100nd are coordinates in the PBF
	// convention of 100-nanodegree integer units (so a real parser need
	// not do floating point at decode time); callers project with
	// internal/coord.
	Node(id int64, lon100nd, lat100nd int64, tags []Tag) error

	// Way delivers one way. nodeIDs is already delta-decoded into
	// absolute ids, in member order.
	Way(id int64, tags []Tag, nodeIDs []int64) error

	// Relation delivers one relation, whose members are already decoded
	// into absolute ids.
	Relation(id int64, tags []Tag, members []Member) error

	BeginWayGroup() error
	BeginRelationGroup() error
	EndBlock() error

	// AfterTasks is called once all blocks have been delivered and all
	// per-block worker tasks have drained, before HarvestResults.
	AfterTasks() error

	// HarvestResults is called last, once per file, so the handler can
	// reduce per-worker state into a final result.
	HarvestResults() error
}

// Source produces one pass over an OSM primitive stream, driving a
// Handler's callbacks. The builder reads a Source twice — once in the
// analyzer, once in the sorter (§4.6 "Consumes the same primitive stream a
// second time") — so implementations must support being Read more than
// once, each time replaying the identical sequence of calls.
type Source interface {
	Read(ctx context.Context, h Handler) error
}
