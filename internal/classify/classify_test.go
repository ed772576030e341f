package classify

import "testing"

func TestHighway(t *testing.T) {
	tests := []struct {
		value string
		want  HighwayClassification
	}{
		{"motorway", Motorway},
		{"motorway_link", MotorwayLink},
		{"trunk", Trunk},
		{"trunk_link", TrunkLink},
		{"primary", Primary},
		{"primary_link", PrimaryLink},
		{"secondary", Secondary},
		{"secondary_link", SecondaryLink},
		{"tertiary", Tertiary},
		{"tertiary_link", TertiaryLink},
		{"living_street", Pedestrian},
		{"pedestrian", Pedestrian},
		{"residential", Residential},
		{"footway", Road},
		{"", Road},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if got := Highway(tt.value); got != tt.want {
				t.Errorf("Highway(%q) = %s, want %s", tt.value, got, tt.want)
			}
		})
	}
}

func TestWaterway(t *testing.T) {
	tests := []struct {
		value string
		want  WaterwayClassification
	}{
		{"river", River},
		{"riverbank", River},
		{"stream", Stream},
		{"canal", Canal},
		{"water", Lake},
		{"ditch", River},
	}

	for _, tt := range tests {
		if got := Waterway(tt.value); got != tt.want {
			t.Errorf("Waterway(%q) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func TestRelation(t *testing.T) {
	for i, name := range relationNames {
		got, ok := Relation(name)
		if !ok {
			t.Errorf("Relation(%q) not recognised", name)
			continue
		}
		if got != RelationType(i) {
			t.Errorf("Relation(%q) = %s, want %s", name, got, RelationType(i))
		}
		if got.String() != name {
			t.Errorf("String() = %q, want %q", got.String(), name)
		}
	}

	if _, ok := Relation("site"); ok {
		t.Error("expected unknown relation type to be rejected")
	}
	if _, ok := Relation("Multipolygon"); ok {
		t.Error("expected relation types to be case sensitive")
	}
}

func TestForWay(t *testing.T) {
	tests := []struct {
		key, value string
		want       Kind
	}{
		{"highway", "primary", KindHighway},
		{"waterway", "river", KindWaterway},
		{"natural", "water", KindWaterway},
		{"natural", "wood", KindNone},
		{"building", "yes", KindBuilding},
		{"type", "multipolygon", KindNone},
		{"name", "Main Street", KindNone},
	}

	for _, tt := range tests {
		if got := ForWay(tt.key, tt.value); got != tt.want {
			t.Errorf("ForWay(%q, %q) = %s, want %s", tt.key, tt.value, got, tt.want)
		}
	}
}

func TestForRelation(t *testing.T) {
	tests := []struct {
		key, value string
		want       Kind
	}{
		{"type", "multipolygon", KindRelationType},
		{"building", "yes", KindBuilding},
		{"natural", "water", KindWaterway},
		{"highway", "primary", KindNone},
		{"waterway", "river", KindNone},
	}

	for _, tt := range tests {
		if got := ForRelation(tt.key, tt.value); got != tt.want {
			t.Errorf("ForRelation(%q, %q) = %s, want %s", tt.key, tt.value, got, tt.want)
		}
	}
}

func TestStringUnknown(t *testing.T) {
	if HighwayClassification(99).String() != "unknown" {
		t.Error("expected unknown highway name")
	}
	if RelationType(-1).String() != "unknown" {
		t.Error("expected unknown relation name")
	}
	if BuildingOf("house") != Building || Building.String() != "building" {
		t.Error("expected every building value to map to Building")
	}
}
