// Package airport provides the airport coordinate database, ICAO/IATA code
// lookup and conversion, and proximity queries used by geofencing and OOOI
// capture.
package airport

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/skyops/propilot/internal/geo"
	"github.com/skyops/propilot/pkg/logger"
)

// Airport is a single entry from the OurAirports-format database
type Airport struct {
	ICAO        string  `json:"icao"`
	IATA        string  `json:"iata,omitempty"`
	Name        string  `json:"name"`
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
	ElevationFt int     `json:"elevation_ft"`
}

// Database is an in-memory airport database with ICAO and IATA indexes.
// It is constructed once at startup and injected into consumers; there is
// no package-level shared instance.
type Database struct {
	byICAO map[string]*Airport
	byIATA map[string]*Airport
	all    []*Airport
	logger *logger.Logger
}

// OurAirports CSV column offsets
const (
	colIdent     = 1
	colType      = 2
	colName      = 3
	colLatitude  = 4
	colLongitude = 5
	colElevation = 6
	colIATA      = 13
)

// LoadDatabase parses an OurAirports-format CSV file into a Database
func LoadDatabase(path string, log *logger.Logger) (*Database, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open airports database: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read airports CSV header: %w", err)
	}

	db := &Database{
		byICAO: make(map[string]*Airport),
		byIATA: make(map[string]*Airport),
		logger: log.Named("airport-db"),
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read airports CSV: %w", err)
	}

	var skipped int
	for _, record := range records {
		if len(record) <= colElevation {
			skipped++
			continue
		}

		ident := strings.ToUpper(strings.TrimSpace(record[colIdent]))
		if ident == "" {
			skipped++
			continue
		}

		lat, err := strconv.ParseFloat(record[colLatitude], 64)
		if err != nil {
			skipped++
			continue
		}
		lon, err := strconv.ParseFloat(record[colLongitude], 64)
		if err != nil {
			skipped++
			continue
		}

		apt := &Airport{
			ICAO:      ident,
			Name:      record[colName],
			Latitude:  lat,
			Longitude: lon,
		}

		// Elevation might be empty or a valid float
		if record[colElevation] != "" {
			if elev, err := strconv.ParseFloat(record[colElevation], 64); err == nil {
				apt.ElevationFt = int(elev)
			}
		}

		if len(record) > colIATA {
			apt.IATA = strings.ToUpper(strings.TrimSpace(record[colIATA]))
		}

		db.byICAO[apt.ICAO] = apt
		if apt.IATA != "" {
			db.byIATA[apt.IATA] = apt
		}
		db.all = append(db.all, apt)
	}

	db.logger.Info("Airport database loaded",
		logger.String("path", path),
		logger.Int("airports", len(db.all)),
		logger.Int("skipped_rows", skipped))

	return db, nil
}

// NewDatabaseFromAirports builds a database from an in-memory list (used by tests)
func NewDatabaseFromAirports(airports []*Airport, log *logger.Logger) *Database {
	db := &Database{
		byICAO: make(map[string]*Airport),
		byIATA: make(map[string]*Airport),
		logger: log.Named("airport-db"),
	}
	for _, apt := range airports {
		db.byICAO[apt.ICAO] = apt
		if apt.IATA != "" {
			db.byIATA[apt.IATA] = apt
		}
		db.all = append(db.all, apt)
	}
	return db
}

// Lookup resolves a code (ICAO or IATA, case-insensitive) to an airport
func (d *Database) Lookup(code string) (*Airport, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if apt, ok := d.byICAO[code]; ok {
		return apt, true
	}
	if apt, ok := d.byIATA[code]; ok {
		return apt, true
	}
	return nil, false
}

// ICAOToIATA converts an ICAO code to its IATA code, if one is known
func (d *Database) ICAOToIATA(icao string) (string, bool) {
	apt, ok := d.byICAO[strings.ToUpper(strings.TrimSpace(icao))]
	if !ok || apt.IATA == "" {
		return "", false
	}
	return apt.IATA, true
}

// IATAToICAO converts an IATA code to its ICAO code
func (d *Database) IATAToICAO(iata string) (string, bool) {
	apt, ok := d.byIATA[strings.ToUpper(strings.TrimSpace(iata))]
	if !ok {
		return "", false
	}
	return apt.ICAO, true
}

// Count returns the number of airports loaded
func (d *Database) Count() int {
	return len(d.all)
}

// Nearest returns the closest airport to the given position and its distance
// in nautical miles. Returns false when the database is empty.
func (d *Database) Nearest(lat, lon float64) (*Airport, float64, bool) {
	var best *Airport
	bestNM := 0.0
	for _, apt := range d.all {
		distNM := geo.MetersToNM(geo.Haversine(lat, lon, apt.Latitude, apt.Longitude))
		if best == nil || distNM < bestNM {
			best = apt
			bestNM = distNM
		}
	}
	if best == nil {
		return nil, 0, false
	}
	return best, bestNM, true
}

// NearestWithin returns the closest airport within rangeNM of the position,
// or false when none is in range.
func (d *Database) NearestWithin(lat, lon, rangeNM float64) (*Airport, float64, bool) {
	apt, distNM, ok := d.Nearest(lat, lon)
	if !ok || distNM > rangeNM {
		return nil, 0, false
	}
	return apt, distNM, true
}

// CodeMappings holds user-supplied airport code mappings plus the registry of
// codes that failed lookup during roster import. Unknown codes are surfaced
// to the user for manual mapping instead of failing the import.
type CodeMappings struct {
	mu       sync.RWMutex
	mappings map[string]string // user code -> ICAO
	unknown  map[string]int    // unresolved code -> occurrence count
	db       *Database
	logger   *logger.Logger
}

// NewCodeMappings creates an empty mapping registry backed by the database
func NewCodeMappings(db *Database, log *logger.Logger) *CodeMappings {
	return &CodeMappings{
		mappings: make(map[string]string),
		unknown:  make(map[string]int),
		db:       db,
		logger:   log.Named("airport-mappings"),
	}
}

// Resolve maps an arbitrary roster code to a known airport. User mappings are
// consulted first, then the database. Unresolvable codes are recorded in the
// unknown-code registry and returned as not found.
func (m *CodeMappings) Resolve(code string) (*Airport, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, false
	}

	m.mu.RLock()
	mapped, hasMapping := m.mappings[code]
	m.mu.RUnlock()

	if hasMapping {
		if apt, ok := m.db.Lookup(mapped); ok {
			return apt, true
		}
	}

	if apt, ok := m.db.Lookup(code); ok {
		return apt, true
	}

	m.mu.Lock()
	m.unknown[code]++
	count := m.unknown[code]
	m.mu.Unlock()

	if count == 1 {
		m.logger.Warn("Unknown airport code recorded", logger.String("code", code))
	}
	return nil, false
}

// AddMapping registers a manual code mapping. The target must resolve in the
// airport database.
func (m *CodeMappings) AddMapping(code, icao string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	icao = strings.ToUpper(strings.TrimSpace(icao))

	if _, ok := m.db.Lookup(icao); !ok {
		return fmt.Errorf("mapping target %s not found in airport database", icao)
	}

	m.mu.Lock()
	m.mappings[code] = icao
	delete(m.unknown, code)
	m.mu.Unlock()

	m.logger.Info("Airport code mapping added",
		logger.String("code", code),
		logger.String("icao", icao))
	return nil
}

// UnknownCodes returns a snapshot of the unknown-code registry
func (m *CodeMappings) UnknownCodes() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int, len(m.unknown))
	for code, count := range m.unknown {
		out[code] = count
	}
	return out
}

// Mappings returns a snapshot of the user-supplied mappings
func (m *CodeMappings) Mappings() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.mappings))
	for code, icao := range m.mappings {
		out[code] = icao
	}
	return out
}
