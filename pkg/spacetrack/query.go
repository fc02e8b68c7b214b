package spacetrack

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Operator is one of Space-Track's predicate operators.
type Operator string

const (
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts-with"
	OpEndsWith   Operator = "ends-with"
	OpNotEqual   Operator = "<>"
	OpLessThan   Operator = "<"
	OpGreaterThan Operator = ">"
	OpRange      Operator = "--"
	OpNullVal    Operator = "null-val"
)

// Predicate is one field/operator/value condition in a query.
type Predicate struct {
	Field    string
	Operator Operator
	Value    string
}

// encode renders a predicate as the path segments Space-Track expects:
// <field>/<operator-encoded-value>.
func (p Predicate) encode() string {
	switch p.Operator {
	case OpNullVal:
		return fmt.Sprintf("%s/null-val", p.Field)
	case OpRange, OpNotEqual, OpLessThan, OpGreaterThan:
		return fmt.Sprintf("%s/%s%s", p.Field, p.Operator, escapeValue(p.Value))
	default:
		return fmt.Sprintf("%s/%s/%s", p.Field, p.Operator, escapeValue(p.Value))
	}
}

// escapeValue percent-encodes spaces and operator-bearing characters the
// way Space-Track's query endpoint requires.
func escapeValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// Query describes one fully-built Space-Track query.
type Query struct {
	Class      Class
	Predicates []Predicate
	OrderBy    string
	Descending bool
}

// Path renders the query as a Space-Track query-endpoint path, e.g.
// "/basicspacedata/query/class/gp/OBJECT_NAME/contains/STARLINK/orderby/NORAD_CAT_ID%20asc/format/json".
func (q Query) Path() string {
	var b strings.Builder
	b.WriteString("/basicspacedata/query/class/")
	b.WriteString(string(q.Class))

	for _, p := range q.Predicates {
		b.WriteString("/")
		b.WriteString(p.encode())
	}

	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		b.WriteString("/orderby/")
		b.WriteString(q.OrderBy)
		b.WriteString("%20")
		b.WriteString(dir)
	}

	b.WriteString("/format/json")
	return b.String()
}

// ParsePredicateString parses a registry-style "FIELD/operator/VALUE"
// predicate string (e.g. "OBJECT_NAME/contains/STARLINK") into a Predicate.
func ParsePredicateString(s string) (Predicate, error) {
	parts := strings.SplitN(s, "/", 3)
	if len(parts) != 3 {
		return Predicate{}, fmt.Errorf("parsing predicate %q: expected FIELD/operator/VALUE", s)
	}
	return Predicate{Field: parts[0], Operator: Operator(parts[1]), Value: parts[2]}, nil
}

// GPRefreshQuery builds a "latest TLE for active objects" query for predicate.
func GPRefreshQuery(predicate Predicate) Query {
	return Query{
		Class: ClassGP,
		Predicates: []Predicate{
			predicate,
			{Field: "DECAY_DATE", Operator: OpNullVal},
		},
		OrderBy: "NORAD_CAT_ID",
	}
}

// SATCATSyncQuery builds a full-metadata query (including decayed objects).
func SATCATSyncQuery(predicate Predicate) Query {
	return Query{
		Class:      ClassSATCAT,
		Predicates: []Predicate{predicate},
		OrderBy:    "NORAD_CAT_ID",
	}
}

// HistoryQueryShape identifies one of the predicate shapes tried, in order,
// for GP-history queries — the upstream's gp_history endpoint is
// historically sensitive to exact predicate syntax, so the client falls
// back through alternates rather than giving up after one shape.
type HistoryQueryShape int

const (
	HistoryShapeRange HistoryQueryShape = iota
	HistoryShapePaired
	HistoryShapeAlternateField
	historyShapeCount
)

// HistoryQueryShapes returns every shape, in the order they should be tried.
func HistoryQueryShapes() []HistoryQueryShape {
	shapes := make([]HistoryQueryShape, historyShapeCount)
	for i := range shapes {
		shapes[i] = HistoryQueryShape(i)
	}
	return shapes
}

// GPHistoryQuery builds a historical-TLE query for the given catalog
// numbers and date range, using the given predicate shape.
func GPHistoryQuery(catalogNumbers []int, start, end time.Time, shape HistoryQueryShape) Query {
	ids := make([]string, len(catalogNumbers))
	for i, id := range catalogNumbers {
		ids[i] = fmt.Sprintf("%d", id)
	}
	idList := strings.Join(ids, ",")

	q := Query{
		Class:   ClassGPHistory,
		OrderBy: "EPOCH",
	}
	q.Predicates = append(q.Predicates, Predicate{Field: "NORAD_CAT_ID", Operator: OpContains, Value: idList})

	dateFormat := "2006-01-02"
	switch shape {
	case HistoryShapeRange:
		q.Predicates = append(q.Predicates, Predicate{
			Field:    "EPOCH",
			Operator: OpRange,
			Value:    start.Format(dateFormat) + "--" + end.Format(dateFormat),
		})
	case HistoryShapePaired:
		q.Predicates = append(q.Predicates,
			Predicate{Field: "EPOCH", Operator: OpGreaterThan, Value: start.Format(dateFormat)},
			Predicate{Field: "EPOCH", Operator: OpLessThan, Value: end.Format(dateFormat)},
		)
	case HistoryShapeAlternateField:
		q.Predicates = append(q.Predicates, Predicate{
			Field:    "CREATION_DATE",
			Operator: OpRange,
			Value:    start.Format(dateFormat) + "--" + end.Format(dateFormat),
		})
	}
	return q
}

// DecayQuery builds a recent-re-entries query.
func DecayQuery() Query {
	return Query{Class: ClassDecay, OrderBy: "DECAY_EPOCH", Descending: true}
}

// TIPQuery builds a re-entry-prediction query.
func TIPQuery() Query {
	return Query{Class: ClassTIP, OrderBy: "DECAY_EPOCH"}
}
