package fffc

import "fmt"

// Config holds the generator's tunables. Same shape as a typed
// settings map: every value remembers its own type and panics on a
// mismatched Get/Set, which catches path typos at the call site
// instead of silently returning a zero value.
type Config map[string]*cfgVal

// NewConfig creates a configuration object primed with the defaults
// the pipeline, scheduler and synthesizers expect.
func NewConfig() *Config {
	m := make(Config)
	m.SetBool("output.headers_only", false)
	m.SetBool("output.overwrite", false)
	m.SetBool("mutator.emit_donothing_stubs", true)
	m.SetInt("mutator.donothing_max_depth", 5)
	m.SetString("runtime.asan_symbol_substring", "asan")
	m.SetString("mangle.prefix", "_Z_fffc_mutator_")
	m.SetString("mangle.sizeof_prefix", "fffc_get_sizeof_")
	return &m
}

type cfgValType int

const (
	cfgValType_Undefined cfgValType = iota
	cfgValType_Bool
	cfgValType_Int
	cfgValType_String
)

func (vt cfgValType) String() string {
	return map[cfgValType]string{
		cfgValType_Undefined: "undefined",
		cfgValType_Bool:      "bool",
		cfgValType_Int:       "int",
		cfgValType_String:    "string",
	}[vt]
}

type cfgVal struct {
	typ      cfgValType
	asBool   bool
	asInt    int
	asString string
}

func (v *cfgVal) assignType(vt cfgValType) {
	if v.typ != vt && v.typ != cfgValType_Undefined {
		panic(fmt.Sprintf("Can't assign `%s` to type `%s`", vt, v.typ))
	}
	v.typ = vt
}

func (v *cfgVal) checkType(vt cfgValType) {
	if v.typ != vt {
		panic(fmt.Sprintf("Can't retrieve `%s` from `%s` variable", vt, v.typ))
	}
}

func (c *Config) SetBool(path string, v bool) {
	if _, ok := (*c)[path]; !ok {
		(*c)[path] = &cfgVal{}
	}
	(*c)[path].assignType(cfgValType_Bool)
	(*c)[path].asBool = v
}

func (c *Config) SetInt(path string, v int) {
	if _, ok := (*c)[path]; !ok {
		(*c)[path] = &cfgVal{}
	}
	(*c)[path].assignType(cfgValType_Int)
	(*c)[path].asInt = v
}

func (c *Config) SetString(path string, v string) {
	if _, ok := (*c)[path]; !ok {
		(*c)[path] = &cfgVal{}
	}
	(*c)[path].assignType(cfgValType_String)
	(*c)[path].asString = v
}

func (c *Config) GetBool(path string) bool {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_Bool)
		return val.asBool
	}
	panic(fmt.Sprintf("Bool setting `%s` does not exist", path))
}

func (c *Config) GetInt(path string) int {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_Int)
		return val.asInt
	}
	panic(fmt.Sprintf("Int setting `%s` does not exist", path))
}

func (c *Config) GetString(path string) string {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_String)
		return val.asString
	}
	panic(fmt.Sprintf("String setting `%s` does not exist", path))
}
