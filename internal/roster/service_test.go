package roster

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyops/propilot/internal/airport"
	"github.com/skyops/propilot/internal/trip"
	"github.com/skyops/propilot/pkg/logger"
)

type memPendingStorage struct {
	pending map[uuid.UUID]*PendingTrip
}

var _ PendingStorage = (*memPendingStorage)(nil)

func newMemPendingStorage() *memPendingStorage {
	return &memPendingStorage{pending: make(map[uuid.UUID]*PendingTrip)}
}

func (m *memPendingStorage) SavePendingTrip(p *PendingTrip) error {
	m.pending[p.ID] = p
	return nil
}

func (m *memPendingStorage) GetPendingTrips() ([]*PendingTrip, error) {
	var out []*PendingTrip
	for _, p := range m.pending {
		out = append(out, p)
	}
	return out, nil
}

func (m *memPendingStorage) GetPendingTrip(id uuid.UUID) (*PendingTrip, bool) {
	p, ok := m.pending[id]
	return p, ok
}

func (m *memPendingStorage) DeletePendingTrip(id uuid.UUID) error {
	delete(m.pending, id)
	return nil
}

type capturingTripSaver struct {
	saved []*trip.Trip
}

var _ TripSaver = (*capturingTripSaver)(nil)

func (c *capturingTripSaver) Save(t *trip.Trip) error {
	c.saved = append(c.saved, t)
	return nil
}

func testAirports(t *testing.T) (*airport.Database, *airport.CodeMappings) {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)

	db := airport.NewDatabaseFromAirports([]*airport.Airport{
		{ICAO: "KDEN", IATA: "DEN", Name: "Denver Intl", Latitude: 39.8617, Longitude: -104.6732},
		{ICAO: "KORD", IATA: "ORD", Name: "Chicago O'Hare Intl", Latitude: 41.9786, Longitude: -87.9048},
		{ICAO: "KLGA", IATA: "LGA", Name: "LaGuardia", Latitude: 40.7772, Longitude: -73.8726},
	}, log)
	return db, airport.NewCodeMappings(db, log)
}

func newRosterService(t *testing.T, mode string) (*Service, *memPendingStorage, *capturingTripSaver) {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)

	_, mappings := testAirports(t)
	storage := newMemPendingStorage()
	saver := &capturingTripSaver{}

	cfg := defaultRosterConfig()
	cfg.GroupingMode = mode
	return NewService(storage, saver, mappings, cfg, log), storage, saver
}

const sampleFeed = `Date,Flight,Origin,Destination,STD,STA,Aircraft
2026-08-23,UA100,DEN,ORD,06:00,08:15,B738
2026-08-23,UA101,ORD,LGA,09:00,11:10,B738
2026-08-24,UA200,LGA,ORD,07:00,09:05,B738
`

func TestImportCSVAutomaticGrouping(t *testing.T) {
	svc, storage, _ := newRosterService(t, "automatic")

	result, err := svc.ImportCSV(strings.NewReader(sampleFeed), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, 3, result.RowsImported)
	assert.Equal(t, 0, result.RowsSkipped)
	assert.Empty(t, result.UnknownCodes)

	// Overnight in LGA splits; the same-day turn in ORD does not
	require.Len(t, result.Pending, 2)
	assert.Len(t, result.Pending[0].Items, 2)
	assert.Len(t, result.Pending[1].Items, 1)

	// IATA feed codes resolved to ICAO
	assert.Equal(t, "KDEN", result.Pending[0].Items[0].Departure)
	assert.Equal(t, "KORD", result.Pending[0].Items[0].Arrival)

	stored, err := storage.GetPendingTrips()
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestImportCSVManualMode(t *testing.T) {
	svc, _, _ := newRosterService(t, "manual")

	result, err := svc.ImportCSV(strings.NewReader(sampleFeed), time.UTC)
	require.NoError(t, err)

	require.Len(t, result.Pending, 3)
	for _, p := range result.Pending {
		assert.Len(t, p.Items, 1)
	}
}

func TestImportCSVReportsUnknownCodes(t *testing.T) {
	svc, _, _ := newRosterService(t, "automatic")

	feed := "2026-08-23,UA100,XXZ,ORD,06:00,08:15,B738\n"
	result, err := svc.ImportCSV(strings.NewReader(feed), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, []string{"XXZ"}, result.UnknownCodes)
	// Unresolvable codes pass through unchanged
	assert.Equal(t, "XXZ", result.Pending[0].Items[0].Departure)
}

func TestConfirmBuildsPlanningTrip(t *testing.T) {
	svc, storage, saver := newRosterService(t, "automatic")

	result, err := svc.ImportCSV(strings.NewReader(sampleFeed), time.UTC)
	require.NoError(t, err)

	pending := result.Pending[0]
	built, err := svc.Confirm(pending.ID)
	require.NoError(t, err)

	require.Len(t, saver.saved, 1)
	assert.Equal(t, trip.StatusPlanning, built.Status)
	require.Len(t, built.Legs(), 2)
	assert.Equal(t, "KDEN", built.Legs()[0].Departure)
	assert.Equal(t, trip.LegStandby, built.Legs()[0].Status)
	require.NotNil(t, built.Legs()[0].ScheduledOut)
	assert.Equal(t, "B738", built.Aircraft)

	stored, _ := storage.GetPendingTrip(pending.ID)
	assert.Equal(t, PendingConfirmed, stored.Status)

	// Confirming twice fails
	_, err = svc.Confirm(pending.ID)
	assert.Error(t, err)
}

func TestDiscardRemovesPendingTrip(t *testing.T) {
	svc, storage, saver := newRosterService(t, "automatic")

	result, err := svc.ImportCSV(strings.NewReader(sampleFeed), time.UTC)
	require.NoError(t, err)

	pending := result.Pending[0]
	require.NoError(t, svc.Discard(pending.ID))

	_, ok := storage.GetPendingTrip(pending.ID)
	assert.False(t, ok)
	assert.Empty(t, saver.saved)
}

func TestMergeStitchesConnectingLegs(t *testing.T) {
	svc, storage, _ := newRosterService(t, "manual")

	result, err := svc.ImportCSV(strings.NewReader(sampleFeed), time.UTC)
	require.NoError(t, err)
	require.Len(t, result.Pending, 3)

	first, second := result.Pending[0], result.Pending[1]

	conns, err := svc.Connections(first.ID)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, second.ID, conns[0].ID)

	merged, err := svc.Merge(first.ID, second.ID)
	require.NoError(t, err)
	assert.Len(t, merged.Items, 2)

	_, ok := storage.GetPendingTrip(second.ID)
	assert.False(t, ok)
}

func TestBuildTripFallbackNumber(t *testing.T) {
	built := BuildTrip(nil)
	assert.Equal(t, trip.StatusPlanning, built.Status)
	assert.True(t, strings.HasPrefix(built.Number, "TRIP-"))
	require.Len(t, built.Logpages, 1)
	assert.Empty(t, built.Logpages[0].Legs)
}
