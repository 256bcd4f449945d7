// Package wx fetches and caches aviation weather: METAR and TAF from the
// AviationWeather.gov data API and digital ATIS from the configured D-ATIS
// endpoints.
package wx

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Cloud is one cloud layer in a METAR observation
type Cloud struct {
	Cover  string   `json:"cover"`
	BaseFt *float64 `json:"base"`
}

// METARResponse represents one observation from the AviationWeather.gov
// /metar endpoint (format=json). The API returns an array; the newest
// observation comes first.
type METARResponse struct {
	MetarID     int64           `json:"metarId"`
	ICAOID      string          `json:"icaoId"`
	ReceiptTime string          `json:"receiptTime"`
	ObsTime     int64           `json:"obsTime"` // unix seconds
	ReportTime  string          `json:"reportTime"`
	Temp        *float64        `json:"temp"`
	Dewp        *float64        `json:"dewp"`
	WindDir     json.RawMessage `json:"wdir"` // number, or "VRB"
	WindSpeed   *float64        `json:"wspd"`
	WindGust    *float64        `json:"wgst"`
	Visibility  json.RawMessage `json:"visib"` // number, or "10+"
	Altimeter   *float64        `json:"altim"`
	FlightCat   string          `json:"fltCat"`
	Clouds      []Cloud         `json:"clouds"`
	RawOb       string          `json:"rawOb"`
	Name        string          `json:"name"`
	Lat         float64         `json:"lat"`
	Lon         float64         `json:"lon"`
	ElevM       float64         `json:"elev"`
}

// ObservedAt returns the observation time
func (m *METARResponse) ObservedAt() time.Time {
	return time.Unix(m.ObsTime, 0).UTC()
}

// VisibilitySM parses the mixed-type visibility field into statute miles.
// The API sends a bare number or a string like "10+".
func (m *METARResponse) VisibilitySM() (float64, bool) {
	if len(m.Visibility) == 0 || string(m.Visibility) == "null" {
		return 0, false
	}

	var num float64
	if err := json.Unmarshal(m.Visibility, &num); err == nil {
		return num, true
	}

	var s string
	if err := json.Unmarshal(m.Visibility, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "+")
	num, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return num, true
}

// CeilingFt returns the lowest broken or overcast layer base
func (m *METARResponse) CeilingFt() (float64, bool) {
	ceiling := 0.0
	found := false
	for _, layer := range m.Clouds {
		cover := strings.ToUpper(layer.Cover)
		if (cover == "BKN" || cover == "OVC" || cover == "VV") && layer.BaseFt != nil {
			if !found || *layer.BaseFt < ceiling {
				ceiling = *layer.BaseFt
				found = true
			}
		}
	}
	return ceiling, found
}

// FlightCategory returns the VFR/MVFR/IFR/LIFR category, deriving it from
// visibility and ceiling when the API omits fltCat.
func (m *METARResponse) FlightCategory() string {
	if m.FlightCat != "" {
		return m.FlightCat
	}

	vis, hasVis := m.VisibilitySM()
	ceil, hasCeil := m.CeilingFt()

	switch {
	case (hasVis && vis < 1) || (hasCeil && ceil < 500):
		return "LIFR"
	case (hasVis && vis < 3) || (hasCeil && ceil < 1000):
		return "IFR"
	case (hasVis && vis <= 5) || (hasCeil && ceil <= 3000):
		return "MVFR"
	case hasVis || hasCeil:
		return "VFR"
	}
	return ""
}

// TAFResponse represents one forecast from the AviationWeather.gov /taf
// endpoint. Forecast periods are passed through undecoded; consumers want the
// raw text.
type TAFResponse struct {
	ICAOID        string          `json:"icaoId"`
	IssueTime     string          `json:"issueTime"`
	BulletinTime  string          `json:"bulletinTime"`
	ValidTimeFrom int64           `json:"validTimeFrom"` // unix seconds
	ValidTimeTo   int64           `json:"validTimeTo"`
	RawTAF        string          `json:"rawTAF"`
	Lat           float64         `json:"lat"`
	Lon           float64         `json:"lon"`
	Forecasts     json.RawMessage `json:"fcsts"`
}

// DATISResponse is one digital ATIS broadcast for an airport. Combined
// fields use type "combined"; split ATIS airports send "arr" and "dep".
type DATISResponse struct {
	Airport string `json:"airport"`
	Type    string `json:"type"`
	Code    string `json:"code"` // information letter
	Text    string `json:"datis"`
}

// Data is the complete cached weather picture for one airport. Individual
// fetch failures leave the previous value in place and are reported in
// FetchErrors.
type Data struct {
	Airport     string          `json:"airport"`
	METAR       *METARResponse  `json:"metar,omitempty"`
	TAF         *TAFResponse    `json:"taf,omitempty"`
	DATIS       []DATISResponse `json:"datis,omitempty"`
	LastUpdated time.Time       `json:"last_updated"`
	FetchErrors []string        `json:"fetch_errors,omitempty"`
}

// Type identifies one weather product
type Type string

const (
	TypeMETAR Type = "metar"
	TypeTAF   Type = "taf"
	TypeDATIS Type = "datis"
)

// FetchResult is the outcome of fetching one weather product
type FetchResult struct {
	Type Type
	Data any
	Err  error
}
