package style

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wegman-software/osmworld/internal/logger"
	"github.com/wegman-software/osmworld/internal/tags"
)

// DefaultHeight is the extrusion height in meters of buildings the script
// does not size
const DefaultHeight = 10.0

var heightRegex = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*(m|ft|')?\s*$`)

// Runtime evaluates a Lua style script. A script may define
//
//	function building_height(tags) ... end
//
// returning the extrusion height in meters for a building's tags.
// A Runtime is safe for concurrent use; calls into Lua are serialized.
type Runtime struct {
	L             *lua.LState
	mu            sync.Mutex
	defaultHeight float64
	heightFn      lua.LValue
}

// NewRuntime creates a Lua runtime. defaultHeight <= 0 selects DefaultHeight.
func NewRuntime(defaultHeight float64) *Runtime {
	if defaultHeight <= 0 {
		defaultHeight = DefaultHeight
	}

	r := &Runtime{
		L:             lua.NewState(),
		defaultHeight: defaultHeight,
		heightFn:      lua.LNil,
	}
	r.registerAPI()
	return r
}

// Close releases Lua resources
func (r *Runtime) Close() {
	r.L.Close()
}

// registerAPI registers the helper globals scripts may call
func (r *Runtime) registerAPI() {
	r.L.SetGlobal("tonumber_or", r.L.NewFunction(luaToNumberOr))
	r.L.SetGlobal("parse_height", r.L.NewFunction(luaParseHeight))
	r.L.SetGlobal("default_height", lua.LNumber(r.defaultHeight))
	r.L.SetGlobal("print", r.L.NewFunction(luaPrint))
}

// LoadFile loads and executes a Lua style file
func (r *Runtime) LoadFile(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to load Lua file: %w", err)
	}
	r.heightFn = r.L.GetGlobal("building_height")
	return nil
}

// LoadString loads and executes Lua code from a string
func (r *Runtime) LoadString(code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.L.DoString(code); err != nil {
		return fmt.Errorf("failed to load Lua code: %w", err)
	}
	r.heightFn = r.L.GetGlobal("building_height")
	return nil
}

// HasHeightFunction reports whether the script defines building_height
func (r *Runtime) HasHeightFunction() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.heightFn.Type() == lua.LTFunction
}

// Height returns the extrusion height for a building. The default height is
// used when the script has no building_height, raises an error, or returns
// anything but a positive number.
func (r *Runtime) Height(t *tags.Tags) float64 {
	if r == nil {
		return DefaultHeight
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.heightFn.Type() != lua.LTFunction {
		return r.defaultHeight
	}

	tbl := r.L.NewTable()
	for _, tag := range t.OSM() {
		tbl.RawSetString(tag.Key, lua.LString(tag.Value))
	}

	if err := r.L.CallByParam(lua.P{
		Fn:      r.heightFn,
		NRet:    1,
		Protect: true,
	}, tbl); err != nil {
		logger.Get().Debug("building_height failed", zap.Error(err))
		return r.defaultHeight
	}

	ret := r.L.Get(-1)
	r.L.Pop(1)

	if n, ok := ret.(lua.LNumber); ok && float64(n) > 0 {
		return float64(n)
	}
	return r.defaultHeight
}

// luaToNumberOr converts a value to a number, returning the second argument
// when that fails
func luaToNumberOr(L *lua.LState) int {
	v := L.Get(1)
	def := L.OptNumber(2, 0)

	switch val := v.(type) {
	case lua.LNumber:
		L.Push(val)
	case lua.LString:
		if f, err := strconv.ParseFloat(strings.TrimSpace(string(val)), 64); err == nil {
			L.Push(lua.LNumber(f))
		} else {
			L.Push(def)
		}
	default:
		L.Push(def)
	}
	return 1
}

// luaParseHeight parses an OSM height value such as "12", "12 m" or "40 ft"
// into meters. Returns nil when the value cannot be parsed.
func luaParseHeight(L *lua.LState) int {
	if h, ok := ParseHeight(L.OptString(1, "")); ok {
		L.Push(lua.LNumber(h))
	} else {
		L.Push(lua.LNil)
	}
	return 1
}

// ParseHeight parses an OSM height value into meters
func ParseHeight(s string) (float64, bool) {
	m := heightRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch m[2] {
	case "ft", "'":
		v *= 0.3048
	}
	return v, true
}

// luaPrint routes script output to the debug log
func luaPrint(L *lua.LState) int {
	n := L.GetTop()
	var parts []string
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	logger.Get().Debug("lua", zap.String("output", strings.Join(parts, "\t")))
	return 0
}
