package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/skyops/propilot/internal/geo"
	"github.com/skyops/propilot/internal/ooi"
)

// KML output uses Google's gx extension namespace so the track can carry a
// fly-through tour that replays the flight in Google Earth.

type kmlCoordinates string

type kmlLineString struct {
	Extrude      int            `xml:"extrude"`
	Tessellate   int            `xml:"tessellate"`
	AltitudeMode string         `xml:"altitudeMode"`
	Coordinates  kmlCoordinates `xml:"coordinates"`
}

type kmlPlacemark struct {
	Name       string         `xml:"name"`
	StyleURL   string         `xml:"styleUrl,omitempty"`
	LineString *kmlLineString `xml:"LineString,omitempty"`
}

type kmlLookAt struct {
	Longitude float64 `xml:"longitude"`
	Latitude  float64 `xml:"latitude"`
	Altitude  float64 `xml:"altitude"`
	Heading   float64 `xml:"heading"`
	Tilt      float64 `xml:"tilt"`
	Range     float64 `xml:"range"`
}

type kmlFlyTo struct {
	Duration float64   `xml:"gx:duration"`
	FlyMode  string    `xml:"gx:flyToMode"`
	LookAt   kmlLookAt `xml:"LookAt"`
}

type kmlPlaylist struct {
	FlyTos []kmlFlyTo `xml:"gx:FlyTo"`
}

type kmlTour struct {
	XMLName  xml.Name    `xml:"gx:Tour"`
	Name     string      `xml:"name"`
	Playlist kmlPlaylist `xml:"gx:Playlist"`
}

type kmlStyle struct {
	ID        string `xml:"id,attr"`
	LineColor string `xml:"LineStyle>color"`
	LineWidth int    `xml:"LineStyle>width"`
}

type kmlDocument struct {
	Name       string         `xml:"name"`
	Styles     []kmlStyle     `xml:"Style"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
	Tour       *kmlTour
}

type kmlRoot struct {
	XMLName  xml.Name    `xml:"kml"`
	Xmlns    string      `xml:"xmlns,attr"`
	XmlnsGx  string      `xml:"xmlns:gx,attr"`
	Document kmlDocument `xml:"Document"`
}

// tourSampleStride thins the tour so long flights replay in a reasonable time
const tourSampleStride = 10

// WriteKML renders a GPS track as a KML document with a gx:Tour that flies
// the camera along the flight path.
func WriteKML(w io.Writer, name string, samples []ooi.PositionSample) error {
	root := kmlRoot{
		Xmlns:   "http://www.opengis.net/kml/2.2",
		XmlnsGx: "http://www.google.com/kml/ext/2.2",
		Document: kmlDocument{
			Name: name,
			Styles: []kmlStyle{{
				ID:        "flightPath",
				LineColor: "ff0055ff",
				LineWidth: 3,
			}},
		},
	}

	var coords strings.Builder
	for _, s := range samples {
		fmt.Fprintf(&coords, "%f,%f,0 ", s.Lon, s.Lat)
	}

	root.Document.Placemarks = []kmlPlacemark{{
		Name:     name,
		StyleURL: "#flightPath",
		LineString: &kmlLineString{
			Tessellate:   1,
			AltitudeMode: "clampToGround",
			Coordinates:  kmlCoordinates(strings.TrimSpace(coords.String())),
		},
	}}

	root.Document.Tour = buildTour(name, samples)

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write KML header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("failed to encode KML: %w", err)
	}
	return enc.Close()
}

// buildTour converts the track into camera waypoints. Fly durations follow
// the real time between samples, compressed so one flight minute replays in
// about one second. The camera heading follows the magnetic track, the way
// the aircraft's panel shows it.
func buildTour(name string, samples []ooi.PositionSample) *kmlTour {
	if len(samples) == 0 {
		return nil
	}

	tour := &kmlTour{Name: name + " flyover"}
	var prev *ooi.PositionSample
	var heading float64
	for i := 0; i < len(samples); i += tourSampleStride {
		s := samples[i]

		duration := 1.0
		if prev != nil {
			gap := s.Timestamp.Sub(prev.Timestamp)
			duration = gap.Minutes()
			if duration < 0.5 {
				duration = 0.5
			}
			if duration > 5 {
				duration = 5
			}
		}

		switch {
		case prev != nil:
			heading = geo.TrueToMagnetic(
				geo.InitialBearing(prev.Lat, prev.Lon, s.Lat, s.Lon),
				s.Lat, s.Lon, 0, s.Timestamp)
		case i+1 < len(samples):
			// First waypoint looks toward the next fix
			next := samples[i+1]
			heading = geo.TrueToMagnetic(
				geo.InitialBearing(s.Lat, s.Lon, next.Lat, next.Lon),
				s.Lat, s.Lon, 0, s.Timestamp)
		}

		tour.Playlist.FlyTos = append(tour.Playlist.FlyTos, kmlFlyTo{
			Duration: duration,
			FlyMode:  "smooth",
			LookAt: kmlLookAt{
				Longitude: s.Lon,
				Latitude:  s.Lat,
				Altitude:  0,
				Heading:   heading,
				Tilt:      60,
				Range:     8000,
			},
		})
		prev = &samples[i]
	}
	return tour
}

// TrackName builds a display name for an exported track
func TrackName(prefix string, at time.Time) string {
	return fmt.Sprintf("%s %s", prefix, at.UTC().Format("2006-01-02 1504Z"))
}
