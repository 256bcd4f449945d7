// Package export renders trips and GPS tracks into interchange formats:
// GPX and KML for tracks, logbook CSV for legs, and a JSON backup document
// for full restore.
package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/skyops/propilot/internal/ooi"
)

const gpxCreator = "ProPilot"

type gpxTrackPoint struct {
	Lat   float64 `xml:"lat,attr"`
	Lon   float64 `xml:"lon,attr"`
	Time  string  `xml:"time"`
	Speed float64 `xml:"extensions>speed_kts"`
}

type gpxTrackSegment struct {
	Points []gpxTrackPoint `xml:"trkpt"`
}

type gpxTrack struct {
	Name     string          `xml:"name"`
	Segments gpxTrackSegment `xml:"trkseg"`
}

type gpxDocument struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	Xmlns   string   `xml:"xmlns,attr"`
	Track   gpxTrack `xml:"trk"`
}

// WriteGPX renders a GPS track as a GPX 1.1 document
func WriteGPX(w io.Writer, name string, samples []ooi.PositionSample) error {
	doc := gpxDocument{
		Version: "1.1",
		Creator: gpxCreator,
		Xmlns:   "http://www.topografix.com/GPX/1/1",
		Track:   gpxTrack{Name: name},
	}

	for _, s := range samples {
		doc.Track.Segments.Points = append(doc.Track.Segments.Points, gpxTrackPoint{
			Lat:   s.Lat,
			Lon:   s.Lon,
			Time:  s.Timestamp.UTC().Format(time.RFC3339),
			Speed: s.SpeedKts,
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write GPX header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode GPX: %w", err)
	}
	return enc.Close()
}
