// Package spacetrack is the Upstream Client: it authenticates against
// Space-Track per account, issues queries, interprets status codes, and
// normalizes the JSON response into internal DTOs. Account selection is
// delegated entirely to pkg/accountpool.
package spacetrack

import "time"

// Class is one of Space-Track's query classes.
type Class string

const (
	ClassGP           Class = "gp"
	ClassGPHistory    Class = "gp_history"
	ClassSATCAT       Class = "satcat"
	ClassDecay        Class = "decay"
	ClassTIP          Class = "tip"
	ClassAnnouncement Class = "announcement"
	ClassBoxscore     Class = "boxscore"
)

// Record is the normalized form of one upstream GP/GP-history/SATCAT row.
// Fields absent from the upstream response for a given class are left zero.
type Record struct {
	NoradCatID      int
	ObjectName      string
	IntlDesignator  string
	Epoch           time.Time
	TLELine1        string
	TLELine2        string
	MeanMotion      float64
	Eccentricity    float64
	Inclination     float64
	SemiMajorAxis   float64
	Apoapsis        float64
	Periapsis       float64
	DecayDate       *time.Time
	LaunchDate      *time.Time
	Site            string
	Country         string
	RCS             string
	ObjectType      string
	BStar           float64
	MeanAnomaly     float64
	RAOfAscNode     float64
	ArgOfPericenter float64
}

// rawRecord mirrors the upstream's JSON field names for unmarshaling.
// Numeric and date fields arrive as strings in Space-Track's JSON format.
type rawRecord struct {
	NoradCatID      string `json:"NORAD_CAT_ID"`
	ObjectName      string `json:"OBJECT_NAME"`
	IntlDes         string `json:"INTLDES"`
	Epoch           string `json:"EPOCH"`
	TLELine1        string `json:"TLE_LINE1"`
	TLELine2        string `json:"TLE_LINE2"`
	MeanMotion      string `json:"MEAN_MOTION"`
	Eccentricity    string `json:"ECCENTRICITY"`
	Inclination     string `json:"INCLINATION"`
	SemiMajorAxis   string `json:"SEMIMAJOR_AXIS"`
	Apoapsis        string `json:"APOAPSIS"`
	Periapsis       string `json:"PERIAPSIS"`
	DecayDate       string `json:"DECAY_DATE"`
	Launch          string `json:"LAUNCH"`
	Site            string `json:"SITE"`
	Country         string `json:"COUNTRY"`
	RCS             string `json:"RCS"`
	ObjectType      string `json:"OBJECT_TYPE"`
	BStar           string `json:"BSTAR"`
	MeanAnomaly     string `json:"MEAN_ANOMALY"`
	RAOfAscNode     string `json:"RA_OF_ASC_NODE"`
	ArgOfPericenter string `json:"ARG_OF_PERICENTER"`
}
