package services

import (
	"reflect"
	"testing"

	"dealfinder/models"
)

func TestCombine_CacheWinsAndOrdersByDiscount(t *testing.T) {
	cached := []models.QualifiedProperty{cachedProperty("A", 12), cachedProperty("B", 30)}
	cached[0].Source, cached[0].IsCached = models.ProvenanceCache, true
	cached[1].Source, cached[1].IsCached = models.ProvenanceCache, true

	freshA := cachedProperty("A", 40)
	fresh := []models.QualifiedProperty{freshA, cachedProperty("C", 20)}

	got := Combine(cached, fresh, 10)
	if want := []string{"B", "C", "A"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("order = %v, want %v", ids(got), want)
	}
	if got[2].DiscountPercent != 12 || got[2].Source != models.ProvenanceCache {
		t.Errorf("cached A should win the collision, got %+v", got[2])
	}
	if got[1].Source != models.ProvenanceFresh || got[1].IsCached {
		t.Errorf("fresh entry provenance = %s cached=%v", got[1].Source, got[1].IsCached)
	}
}

func TestCombine_Truncates(t *testing.T) {
	fresh := []models.QualifiedProperty{cachedProperty("A", 10), cachedProperty("B", 50), cachedProperty("C", 30)}
	got := Combine(nil, fresh, 2)
	if want := []string{"B", "C"}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("got %v, want %v", ids(got), want)
	}
}

func TestCombine_StableForTies(t *testing.T) {
	cached := []models.QualifiedProperty{cachedProperty("A", 20)}
	fresh := []models.QualifiedProperty{cachedProperty("B", 20), cachedProperty("C", 20)}
	got := Combine(cached, fresh, 10)
	if want := []string{"A", "B", "C"}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("got %v, want %v", ids(got), want)
	}
}

func TestCombine_SameSetRegardlessOfFreshOrder(t *testing.T) {
	cached := []models.QualifiedProperty{cachedProperty("A", 15)}
	fresh := []models.QualifiedProperty{cachedProperty("B", 25), cachedProperty("C", 18), cachedProperty("D", 35)}
	reversed := []models.QualifiedProperty{fresh[2], fresh[1], fresh[0]}

	a := Combine(cached, fresh, 3)
	b := Combine(cached, reversed, 3)
	if !reflect.DeepEqual(ids(a), ids(b)) {
		t.Errorf("%v != %v", ids(a), ids(b))
	}
}

func TestCombine_Empty(t *testing.T) {
	if got := Combine(nil, nil, 5); len(got) != 0 {
		t.Errorf("expected empty, got %v", ids(got))
	}
}
