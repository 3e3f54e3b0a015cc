package areaclassifier

// Default is the built-in rule string used when a build doesn't supply
// its own areaness rules, transcribed from the original classifier's
// default table.
const Default = "aeroway (except taxiway), amenity, area, area:highway, " +
	"barrier (city_wall, ditch, hedge, retaining_wall, wall, spikes), " +
	"boundary, building, building:part, craft, golf, " +
	"highway (services, rest_area, escape, elevator), historic, indoor, " +
	"natural (except coastline, cliff, ridge, arete, tree_row), landuse, " +
	"leisure, man_made (except cutline, embankment, pipeline), military, " +
	"office, place, power (plant, substation, generator, transformer), " +
	"public_transport, railway (station, turntable, roundhouse, platform), " +
	"ruins, shop, tourism, type (multipolygon, boundary), " +
	"waterway (riverbank, dock, boatyard, dam)"

// DefaultClassifier compiles Default, panicking if it fails to parse —
// a malformed built-in rule string is a programming error, not a
// runtime condition callers need to handle.
func DefaultClassifier() *Classifier {
	c, err := Compile(Default)
	if err != nil {
		panic("areaclassifier: default rule string failed to compile: " + err.Error())
	}
	return c
}
