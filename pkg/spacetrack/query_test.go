package spacetrack

import (
	"strings"
	"testing"
	"time"
)

func TestGPRefreshQueryPath(t *testing.T) {
	q := GPRefreshQuery(Predicate{Field: "OBJECT_NAME", Operator: OpContains, Value: "STARLINK"})
	path := q.Path()
	if !strings.Contains(path, "class/gp/") {
		t.Errorf("expected gp class, got %s", path)
	}
	if !strings.Contains(path, "DECAY_DATE/null-val") {
		t.Errorf("expected null-val decay predicate, got %s", path)
	}
	if !strings.HasSuffix(path, "/format/json") {
		t.Errorf("expected json format suffix, got %s", path)
	}
}

func TestSATCATSyncQueryHasNoDecayFilter(t *testing.T) {
	q := SATCATSyncQuery(Predicate{Field: "OBJECT_NAME", Operator: OpContains, Value: "STARLINK"})
	if strings.Contains(q.Path(), "DECAY_DATE") {
		t.Error("SATCAT sync should include decayed objects, not filter them")
	}
}

func TestGPHistoryQueryShapes(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := []int{44713, 44714}

	rangeQ := GPHistoryQuery(ids, start, end, HistoryShapeRange)
	if !strings.Contains(rangeQ.Path(), "EPOCH/--2023-01-01") {
		t.Errorf("expected range predicate, got %s", rangeQ.Path())
	}

	pairedQ := GPHistoryQuery(ids, start, end, HistoryShapePaired)
	if !strings.Contains(pairedQ.Path(), "EPOCH/>2023-01-01") || !strings.Contains(pairedQ.Path(), "EPOCH/<2024-01-01") {
		t.Errorf("expected paired predicates, got %s", pairedQ.Path())
	}

	altQ := GPHistoryQuery(ids, start, end, HistoryShapeAlternateField)
	if !strings.Contains(altQ.Path(), "CREATION_DATE") {
		t.Errorf("expected alternate field predicate, got %s", altQ.Path())
	}
}

func TestHistoryQueryShapesOrder(t *testing.T) {
	shapes := HistoryQueryShapes()
	if len(shapes) != 3 {
		t.Fatalf("expected 3 shapes, got %d", len(shapes))
	}
	if shapes[0] != HistoryShapeRange || shapes[1] != HistoryShapePaired || shapes[2] != HistoryShapeAlternateField {
		t.Errorf("unexpected shape order: %v", shapes)
	}
}

func TestEscapeValueEncodesSpaces(t *testing.T) {
	p := Predicate{Field: "OBJECT_NAME", Operator: OpContains, Value: "SPACE STATION"}
	if !strings.Contains(p.encode(), "SPACE%20STATION") {
		t.Errorf("expected encoded space, got %s", p.encode())
	}
}

func TestParsePredicateString(t *testing.T) {
	p, err := ParsePredicateString("OBJECT_NAME/contains/STARLINK")
	if err != nil {
		t.Fatalf("ParsePredicateString: %v", err)
	}
	if p.Field != "OBJECT_NAME" || p.Operator != OpContains || p.Value != "STARLINK" {
		t.Errorf("unexpected predicate: %+v", p)
	}
}

func TestParsePredicateStringMalformed(t *testing.T) {
	if _, err := ParsePredicateString("not-a-predicate"); err == nil {
		t.Error("expected error for malformed predicate string")
	}
}
