package medrecord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqmesh/station-api/internal/ledger"
	"github.com/aqmesh/station-api/internal/model"
	apperrors "github.com/aqmesh/station-api/pkg/errors"
	"github.com/aqmesh/station-api/pkg/logger"
)

const doctorAddr = "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"

type fakeLedger struct {
	isPatient  bool
	infoCID    string
	pointer    string
	pointerErr error
	addErr     error

	addCalls []addCall
}

type addCall struct {
	signer, contentID, patientID, prev string
}

func (f *fakeLedger) IsPatient(_ context.Context, _ string) (bool, error) {
	return f.isPatient, nil
}

func (f *fakeLedger) PatientInfo(_ context.Context, _ string) (string, error) {
	return f.infoCID, nil
}

func (f *fakeLedger) MedicalRecordPointer(_ context.Context, _ string) (string, error) {
	return f.pointer, f.pointerErr
}

func (f *fakeLedger) AddMedicalRecord(_ context.Context, signer, contentID, patientID, prev string) (*ledger.Receipt, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.addCalls = append(f.addCalls, addCall{signer, contentID, patientID, prev})
	f.pointer = contentID
	return &ledger.Receipt{TxHash: "0xabc"}, nil
}

type fakeStore struct {
	blobs  map[string][]byte
	putErr error
	puts   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: make(map[string][]byte)}
}

func (f *fakeStore) Put(_ context.Context, v interface{}) (string, error) {
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

func TestAppendToEmptyBundle(t *testing.T) {
	l := &fakeLedger{isPatient: true}
	store := newFakeStore()
	svc := NewService(l, store, nil, logger.Nop())

	contentID, err := svc.Append(context.Background(), doctorAddr, "patient-1", json.RawMessage(`{"diagnosis":"ok"}`))
	require.NoError(t, err)
	require.Len(t, l.addCalls, 1)
	assert.Equal(t, contentID, l.addCalls[0].contentID)
	assert.Equal(t, "", l.addCalls[0].prev, "first append carries the empty previous pointer")

	var bundle model.MedicalRecordBundle
	require.NoError(t, json.Unmarshal(store.blobs[contentID], &bundle))
	require.Len(t, bundle.Entries, 1)
	assert.Equal(t, doctorAddr, bundle.Entries[0].Author)
	assert.JSONEq(t, `{"diagnosis":"ok"}`, string(bundle.Entries[0].Payload))
}

func TestAppendPreservesExistingEntries(t *testing.T) {
	store := newFakeStore()
	store.seed("QmPrev", &model.MedicalRecordBundle{
		Entries: []model.MedicalRecordEntry{{Author: "0xfirst", Payload: json.RawMessage(`{"visit":1}`)}},
	})
	l := &fakeLedger{isPatient: true, pointer: "QmPrev"}
	svc := NewService(l, store, nil, logger.Nop())

	contentID, err := svc.Append(context.Background(), doctorAddr, "patient-1", json.RawMessage(`{"visit":2}`))
	require.NoError(t, err)
	require.Len(t, l.addCalls, 1)
	assert.Equal(t, "QmPrev", l.addCalls[0].prev, "the pointer update names the bundle it read")

	var bundle model.MedicalRecordBundle
	require.NoError(t, json.Unmarshal(store.blobs[contentID], &bundle))
	require.Len(t, bundle.Entries, 2)
	assert.Equal(t, "0xfirst", bundle.Entries[0].Author)
	assert.Equal(t, doctorAddr, bundle.Entries[1].Author)
}

func TestAppendStalePointerConflict(t *testing.T) {
	store := newFakeStore()
	store.seed("QmPrev", &model.MedicalRecordBundle{})
	l := &fakeLedger{
		isPatient: true,
		pointer:   "QmPrev",
		addErr:    apperrors.NewConflict("the patient's record was updated by another writer, retry the append", nil),
	}
	svc := NewService(l, store, nil, logger.Nop())

	_, err := svc.Append(context.Background(), doctorAddr, "patient-1", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))
}

func TestAppendUnknownPatient(t *testing.T) {
	l := &fakeLedger{isPatient: false}
	store := newFakeStore()
	svc := NewService(l, store, nil, logger.Nop())

	_, err := svc.Append(context.Background(), doctorAddr, "patient-1", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
	assert.Zero(t, store.puts)
}

func TestRecordsEmptyPointer(t *testing.T) {
	l := &fakeLedger{isPatient: true}
	svc := NewService(l, newFakeStore(), nil, logger.Nop())

	bundle, err := svc.Records(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Empty(t, bundle.Entries)
}

func TestRecordsRoundTrip(t *testing.T) {
	store := newFakeStore()
	store.seed("QmBundle", &model.MedicalRecordBundle{
		Entries: []model.MedicalRecordEntry{{Author: doctorAddr, Payload: json.RawMessage(`{"visit":1}`)}},
	})
	l := &fakeLedger{isPatient: true, pointer: "QmBundle"}
	svc := NewService(l, store, nil, logger.Nop())

	bundle, err := svc.Records(context.Background(), "patient-1")
	require.NoError(t, err)
	require.Len(t, bundle.Entries, 1)
	assert.Equal(t, doctorAddr, bundle.Entries[0].Author)
}

func TestPatientInfo(t *testing.T) {
	store := newFakeStore()
	store.seed("QmInfo", map[string]string{"name": "J. Rivera"})
	l := &fakeLedger{isPatient: true, infoCID: "QmInfo"}
	svc := NewService(l, store, nil, logger.Nop())

	info, err := svc.PatientInfo(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"J. Rivera"}`, string(info))
}

func TestPatientInfoMissingProfile(t *testing.T) {
	l := &fakeLedger{isPatient: true}
	svc := NewService(l, newFakeStore(), nil, logger.Nop())

	_, err := svc.PatientInfo(context.Background(), "patient-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}
