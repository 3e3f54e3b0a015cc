package osmsource

import "context"

// BlockSize is the number of primitives OSM PBF groups per block (§4.5:
// "OSM PBF groups 8000 primitives per block"). The fixture builder uses
// the same grouping so tests exercise the analyzer's per-block
// string-code translation reset at realistic boundaries.
const BlockSize = 8000

// NodeFixture is a synthetic node, described with human-readable tags
// instead of pre-resolved string indices; Fixture resolves and
// deduplicates them into a per-block string table at Read time.
type NodeFixture struct {
	ID       int64
	Lon, Lat float64 // decimal degrees; converted to 100-nanodegree units
	Tags     map[string]string
}

// WayFixture is a synthetic way.
type WayFixture struct {
	ID      int64
	Tags    map[string]string
	NodeIDs []int64
}

// MemberFixture is one synthetic relation member.
type MemberFixture struct {
	ID   int64
	Type MemberType
	Role string
}

// RelationFixture is a synthetic relation.
type RelationFixture struct {
	ID      int64
	Tags    map[string]string
	Members []MemberFixture
}

// Fixture is an in-memory Source: a fixed set of nodes, ways, and
// relations, replayed deterministically on every Read call. It exists
// because OSM PBF parsing is out of scope (§1 Non-goals) but the pipeline
// needs something that satisfies the Source/Handler contract to be built
// and tested against.
type Fixture struct {
	Nodes     []NodeFixture
	Ways      []WayFixture
	Relations []RelationFixture
}

// Read drives h through the fixture's primitives, split into BlockSize-ish
// blocks, each with its own string table. The same Fixture value can be
// Read any number of times with identical results, since it holds no
// mutable replay state.
func (f *Fixture) Read(ctx context.Context, h Handler) error {
	totalSize := int64(len(f.Nodes)+len(f.Ways)+len(f.Relations)) * 64
	if err := h.StartFile(totalSize); err != nil {
		return err
	}

	nodeBlocks := chunkNodes(f.Nodes, BlockSize)
	for _, block := range nodeBlocks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.emitNodeBlock(h, block); err != nil {
			return err
		}
	}

	wayBlocks := chunkWays(f.Ways, BlockSize)
	for _, block := range wayBlocks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.emitWayBlock(h, block); err != nil {
			return err
		}
	}

	relBlocks := chunkRelations(f.Relations, BlockSize)
	for _, block := range relBlocks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.emitRelationBlock(h, block); err != nil {
			return err
		}
	}

	if err := h.AfterTasks(); err != nil {
		return err
	}
	return h.HarvestResults()
}

// stringInterner builds a block-local string table, assigning each
// distinct string the next free index the first time it's seen.
type stringInterner struct {
	table []string
	index map[string]uint32
}

func newStringInterner() *stringInterner {
	return &stringInterner{index: make(map[string]uint32)}
}

func (si *stringInterner) intern(s string) uint32 {
	if idx, ok := si.index[s]; ok {
		return idx
	}
	idx := uint32(len(si.table))
	si.table = append(si.table, s)
	si.index[s] = idx
	return idx
}

func tagsToFixtureTags(si *stringInterner, tags map[string]string) []Tag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]Tag, 0, len(tags))
	for k, v := range tags {
		out = append(out, Tag{KeyIndex: si.intern(k), ValueIndex: si.intern(v)})
	}
	return out
}

func (f *Fixture) emitNodeBlock(h Handler, block []NodeFixture) error {
	si := newStringInterner()
	type pending struct {
		id       int64
		lon, lat int64
		tags     []Tag
	}
	prepared := make([]pending, len(block))
	for i, n := range block {
		prepared[i] = pending{
			id:   n.ID,
			lon:  int64(n.Lon * 1e7),
			lat:  int64(n.Lat * 1e7),
			tags: tagsToFixtureTags(si, n.Tags),
		}
	}
	if err := h.StringTable(si.table); err != nil {
		return err
	}
	for _, p := range prepared {
		if err := h.Node(p.id, p.lon, p.lat, p.tags); err != nil {
			return err
		}
	}
	return h.EndBlock()
}

func (f *Fixture) emitWayBlock(h Handler, block []WayFixture) error {
	si := newStringInterner()
	type pending struct {
		id      int64
		tags    []Tag
		nodeIDs []int64
	}
	prepared := make([]pending, len(block))
	for i, w := range block {
		prepared[i] = pending{id: w.ID, tags: tagsToFixtureTags(si, w.Tags), nodeIDs: w.NodeIDs}
	}
	if err := h.StringTable(si.table); err != nil {
		return err
	}
	if err := h.BeginWayGroup(); err != nil {
		return err
	}
	for _, p := range prepared {
		if err := h.Way(p.id, p.tags, p.nodeIDs); err != nil {
			return err
		}
	}
	return h.EndBlock()
}

func (f *Fixture) emitRelationBlock(h Handler, block []RelationFixture) error {
	si := newStringInterner()
	type pending struct {
		id      int64
		tags    []Tag
		members []Member
	}
	prepared := make([]pending, len(block))
	for i, r := range block {
		members := make([]Member, len(r.Members))
		for j, m := range r.Members {
			members[j] = Member{ID: m.ID, Type: m.Type, RoleIdx: si.intern(m.Role)}
		}
		prepared[i] = pending{id: r.ID, tags: tagsToFixtureTags(si, r.Tags), members: members}
	}
	if err := h.StringTable(si.table); err != nil {
		return err
	}
	if err := h.BeginRelationGroup(); err != nil {
		return err
	}
	for _, p := range prepared {
		if err := h.Relation(p.id, p.tags, p.members); err != nil {
			return err
		}
	}
	return h.EndBlock()
}

func chunkNodes(items []NodeFixture, size int) [][]NodeFixture {
	var out [][]NodeFixture
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		out = append(out, items[i:end])
	}
	return out
}

func chunkWays(items []WayFixture, size int) [][]WayFixture {
	var out [][]WayFixture
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		out = append(out, items[i:end])
	}
	return out
}

func chunkRelations(items []RelationFixture, size int) [][]RelationFixture {
	var out [][]RelationFixture
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		out = append(out, items[i:end])
	}
	return out
}
