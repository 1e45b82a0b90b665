package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqmesh/station-api/internal/ledger"
	"github.com/aqmesh/station-api/internal/model"
	apperrors "github.com/aqmesh/station-api/pkg/errors"
	"github.com/aqmesh/station-api/pkg/logger"
)

const stationAddr = "0x1234567890abcdef1234567890abcdef12345678"

type fakeLedger struct {
	isStation    bool
	isStationErr error
	profileCID   string
	profileErr   error
	entries      []ledger.PointerEntry
	listErr      error
	submitErr    error

	submitted []string
	signers   []string
	readCalls int
}

func (f *fakeLedger) IsStation(_ context.Context, _ string) (bool, error) {
	f.readCalls++
	return f.isStation, f.isStationErr
}

func (f *fakeLedger) StationContentID(_ context.Context, _ string) (string, error) {
	f.readCalls++
	return f.profileCID, f.profileErr
}

func (f *fakeLedger) ListReports(_ context.Context, _ string) ([]ledger.PointerEntry, error) {
	f.readCalls++
	return f.entries, f.listErr
}

func (f *fakeLedger) SubmitReport(_ context.Context, signer, contentID string) (*ledger.Receipt, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.signers = append(f.signers, signer)
	f.submitted = append(f.submitted, contentID)
	return &ledger.Receipt{TxHash: "0xabc"}, nil
}

// fakeStore round-trips values through JSON so Get sees exactly what
// Put stored.
type fakeStore struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	putErr error
	broken map[string]bool

	puts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: make(map[string][]byte), broken: make(map[string]bool)}
}

func (f *fakeStore) Put(_ context.Context, v interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	f.puts++
	cid := fmt.Sprintf("Qm%d", f.puts)
	f.blobs[cid] = data
	return cid, nil
}

func (f *fakeStore) Get(_ context.Context, contentID string, out interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken[contentID] {
		return apperrors.NewFetch(contentID, errors.New("read timeout"))
	}
	data, ok := f.blobs[contentID]
	if !ok {
		return apperrors.NewFetch(contentID, errors.New("not found"))
	}
	return json.Unmarshal(data, out)
}

func (f *fakeStore) seed(cid string, v interface{}) {
	data, _ := json.Marshal(v)
	f.blobs[cid] = data
}

func validReport() *model.Report {
	return &model.Report{
		ReportID:  "rep-001",
		Timestamp: "2026-08-30T12:00:00Z",
		Location:  "north district",
		AQI:       87,
		PM25:      12.5,
		PM10:      20,
		Humidity:  55,
		Status:    model.StatusModerate,
	}
}

func newTestService(l *fakeLedger, store *fakeStore) *Service {
	return NewService(l, store, nil, logger.Nop(), nil, Config{FetchConcurrency: 4})
}

func TestSubmitStoresThenRecords(t *testing.T) {
	l := &fakeLedger{}
	store := newFakeStore()
	svc := newTestService(l, store)

	contentID, err := svc.Submit(context.Background(), stationAddr, validReport())
	require.NoError(t, err)
	assert.Equal(t, "Qm1", contentID)
	assert.Equal(t, []string{"Qm1"}, l.submitted)
	assert.Equal(t, []string{stationAddr}, l.signers)

	// The stored blob is the report content only, no ledger metadata.
	var stored map[string]interface{}
	require.NoError(t, json.Unmarshal(store.blobs["Qm1"], &stored))
	assert.NotContains(t, stored, "contentId")
	assert.NotContains(t, stored, "approved")
	assert.NotContains(t, stored, "reportIndex")
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Report)
		valid  bool
	}{
		{"missing reportId", func(r *model.Report) { r.ReportID = "" }, false},
		{"missing location", func(r *model.Report) { r.Location = "" }, false},
		{"missing timestamp", func(r *model.Report) { r.Timestamp = "" }, false},
		{"unknown status", func(r *model.Report) { r.Status = "Fine" }, false},
		{"aqi at upper bound", func(r *model.Report) { r.AQI = 500 }, true},
		{"aqi above bound", func(r *model.Report) { r.AQI = 501 }, false},
		{"negative aqi", func(r *model.Report) { r.AQI = -1 }, false},
		{"negative pm25", func(r *model.Report) { r.PM25 = -0.1 }, false},
		{"negative pm10", func(r *model.Report) { r.PM10 = -0.1 }, false},
		{"humidity at bound", func(r *model.Report) { r.Humidity = 100 }, true},
		{"humidity above bound", func(r *model.Report) { r.Humidity = 100.1 }, false},
		{"zero aqi", func(r *model.Report) { r.AQI = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &fakeLedger{}
			store := newFakeStore()
			svc := newTestService(l, store)

			rep := validReport()
			tt.mutate(rep)
			_, err := svc.Submit(context.Background(), stationAddr, rep)
			if tt.valid {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrValidation, apperrors.CodeOf(err))
			assert.Zero(t, store.puts, "rejected report must not reach the store")
			assert.Empty(t, l.submitted, "rejected report must not reach the ledger")
		})
	}
}

func TestSubmitStoreFailureSkipsLedger(t *testing.T) {
	l := &fakeLedger{}
	store := newFakeStore()
	store.putErr = apperrors.NewStoreWrite(errors.New("api not reachable"))
	svc := newTestService(l, store)

	_, err := svc.Submit(context.Background(), stationAddr, validReport())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrStoreWrite, apperrors.CodeOf(err))
	assert.Empty(t, l.submitted)
}

func TestSubmitLedgerFailureLeavesOrphan(t *testing.T) {
	l := &fakeLedger{submitErr: apperrors.NewLedgerWrite("addReport", errors.New("nonce too low"))}
	store := newFakeStore()
	svc := newTestService(l, store)

	_, err := svc.Submit(context.Background(), stationAddr, validReport())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrLedgerWrite, apperrors.CodeOf(err))
	assert.Equal(t, 1, store.puts, "content is stored before the ledger write")
}

func TestStationReportsInvalidAddress(t *testing.T) {
	l := &fakeLedger{}
	svc := newTestService(l, newFakeStore())

	_, err := svc.StationReports(context.Background(), "not-an-address")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidIdentity, apperrors.CodeOf(err))
	assert.Zero(t, l.readCalls, "malformed address must not hit the ledger")
}

func TestStationReportsUnknownStation(t *testing.T) {
	l := &fakeLedger{isStation: false}
	svc := newTestService(l, newFakeStore())

	_, err := svc.StationReports(context.Background(), stationAddr)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestStationReportsEmpty(t *testing.T) {
	l := &fakeLedger{isStation: true}
	svc := newTestService(l, newFakeStore())

	result, err := svc.StationReports(context.Background(), stationAddr)
	require.NoError(t, err)
	assert.Empty(t, result.Reports)
	assert.Nil(t, result.Station)
}

func TestStationReportsOrderedByTimestampDesc(t *testing.T) {
	store := newFakeStore()
	for i, ts := range []string{"2026-08-28T09:00:00Z", "2026-08-26T09:00:00Z", "2026-08-27T09:00:00Z"} {
		store.seed(fmt.Sprintf("Qm%d", i), &model.Report{
			ReportID: fmt.Sprintf("rep-%d", i), Timestamp: ts,
			Location: "x", Status: model.StatusGood,
		})
	}
	l := &fakeLedger{
		isStation: true,
		entries: []ledger.PointerEntry{
			{ContentID: "Qm0"}, {ContentID: "Qm1", Approved: true}, {ContentID: "Qm2"},
		},
	}
	svc := newTestService(l, store)

	result, err := svc.StationReports(context.Background(), stationAddr)
	require.NoError(t, err)
	require.Len(t, result.Reports, 3)
	assert.Equal(t, "rep-0", result.Reports[0].ReportID)
	assert.Equal(t, "rep-2", result.Reports[1].ReportID)
	assert.Equal(t, "rep-1", result.Reports[2].ReportID)

	// Ledger metadata survives the sort attached to its report.
	assert.Equal(t, 1, result.Reports[2].ReportIndex)
	assert.True(t, result.Reports[2].Approved)
}

func TestStationReportsDropsUnreadableEntries(t *testing.T) {
	store := newFakeStore()
	store.seed("Qm0", &model.Report{ReportID: "rep-0", Timestamp: "2026-08-28T09:00:00Z", Location: "x", Status: model.StatusGood})
	store.seed("Qm2", &model.Report{ReportID: "rep-2", Timestamp: "2026-08-26T09:00:00Z", Location: "x", Status: model.StatusGood})
	store.broken["Qm1"] = true
	l := &fakeLedger{
		isStation: true,
		entries:   []ledger.PointerEntry{{ContentID: "Qm0"}, {ContentID: "Qm1"}, {ContentID: "Qm2"}},
	}
	svc := newTestService(l, store)

	result, err := svc.StationReports(context.Background(), stationAddr)
	require.NoError(t, err, "one unreadable blob must not fail the batch")
	require.Len(t, result.Reports, 2)
	assert.Equal(t, 0, result.Reports[0].ReportIndex)
	assert.Equal(t, 2, result.Reports[1].ReportIndex, "surviving reports keep their ledger index")
}

func TestStationReportsListFailureAborts(t *testing.T) {
	l := &fakeLedger{
		isStation: true,
		listErr:   apperrors.NewLedgerRead("getReports", errors.New("connection refused")),
	}
	svc := newTestService(l, newFakeStore())

	_, err := svc.StationReports(context.Background(), stationAddr)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrLedgerRead, apperrors.CodeOf(err))
}

func TestStationProfileBestEffort(t *testing.T) {
	t.Run("pointer read failure is swallowed", func(t *testing.T) {
		l := &fakeLedger{
			isStation:  true,
			profileErr: apperrors.NewLedgerRead("getDr", errors.New("connection refused")),
		}
		svc := newTestService(l, newFakeStore())

		result, err := svc.StationReports(context.Background(), stationAddr)
		require.NoError(t, err)
		assert.Nil(t, result.Station)
	})

	t.Run("profile attached and cached", func(t *testing.T) {
		store := newFakeStore()
		store.seed("QmProfile", &model.StationRecord{Name: "North Station"})
		l := &fakeLedger{isStation: true, profileCID: "QmProfile"}
		svc := newTestService(l, store)

		result, err := svc.StationReports(context.Background(), stationAddr)
		require.NoError(t, err)
		require.NotNil(t, result.Station)
		assert.Equal(t, "North Station", result.Station.Name)

		reads := l.readCalls
		_, err = svc.StationReports(context.Background(), stationAddr)
		require.NoError(t, err)
		assert.Equal(t, reads+2, l.readCalls, "cached profile skips the pointer read")
	})
}

func TestUnparseableTimestampSortsLast(t *testing.T) {
	store := newFakeStore()
	store.seed("Qm0", &model.Report{ReportID: "rep-0", Timestamp: "yesterday", Location: "x", Status: model.StatusGood})
	store.seed("Qm1", &model.Report{ReportID: "rep-1", Timestamp: "2026-08-28T09:00", Location: "x", Status: model.StatusGood})
	l := &fakeLedger{
		isStation: true,
		entries:   []ledger.PointerEntry{{ContentID: "Qm0"}, {ContentID: "Qm1"}},
	}
	svc := newTestService(l, store)

	result, err := svc.StationReports(context.Background(), stationAddr)
	require.NoError(t, err)
	require.Len(t, result.Reports, 2)
	assert.Equal(t, "rep-1", result.Reports[0].ReportID)
	assert.Equal(t, "rep-0", result.Reports[1].ReportID)
}
