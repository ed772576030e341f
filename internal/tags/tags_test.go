package tags

import (
	"testing"

	"github.com/paulmach/osm"
)

func TestAddAndGet(t *testing.T) {
	tg := New()
	tg.Add("highway", "primary")
	tg.Add("name", "Main Street")

	if v, ok := tg.Get("highway"); !ok || v != "primary" {
		t.Errorf("Get(highway) = %q, %v; want primary, true", v, ok)
	}
	if _, ok := tg.Get("building"); ok {
		t.Error("expected building to be absent")
	}
	if tg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tg.Len())
	}
}

func TestAddExistingKeyKeepsPosition(t *testing.T) {
	tg := New()
	tg.Add("a", "1")
	tg.Add("b", "2")
	tg.Add("a", "3")

	list := tg.OSM()
	if len(list) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(list))
	}
	if list[0].Key != "a" || list[0].Value != "3" {
		t.Errorf("first tag = %v, want a=3", list[0])
	}
	if list[1].Key != "b" {
		t.Errorf("second tag key = %q, want b", list[1].Key)
	}
}

func TestFromOSM(t *testing.T) {
	tg := FromOSM(osm.Tags{
		{Key: "natural", Value: "water"},
		{Key: "name", Value: "Lake"},
		{Key: "natural", Value: "wood"},
	})
	if tg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tg.Len())
	}
	if tg.Value("natural") != "wood" {
		t.Errorf("natural = %q, want wood", tg.Value("natural"))
	}
}

func TestNilTags(t *testing.T) {
	var tg *Tags
	if tg.Len() != 0 {
		t.Error("nil tags should be empty")
	}
	if tg.Has("x") {
		t.Error("nil tags should not have keys")
	}
	if len(tg.Map()) != 0 {
		t.Error("nil tags map should be empty")
	}
}

func TestJSON(t *testing.T) {
	if got := New().JSON(); got != "{}" {
		t.Errorf("empty JSON = %q, want {}", got)
	}
	tg := New()
	tg.Add("building", "yes")
	if got := tg.JSON(); got != `{"building":"yes"}` {
		t.Errorf("JSON = %q", got)
	}
}
