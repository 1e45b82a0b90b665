package medrecord

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aqmesh/station-api/internal/contentstore"
	"github.com/aqmesh/station-api/internal/ledger"
	"github.com/aqmesh/station-api/internal/model"
	apperrors "github.com/aqmesh/station-api/pkg/errors"
	"github.com/aqmesh/station-api/pkg/logger"
	"github.com/aqmesh/station-api/pkg/messaging"
)

// Ledger is the slice of the gateway the record workflows use.
type Ledger interface {
	IsPatient(ctx context.Context, id string) (bool, error)
	PatientInfo(ctx context.Context, id string) (string, error)
	MedicalRecordPointer(ctx context.Context, id string) (string, error)
	AddMedicalRecord(ctx context.Context, signer, contentID, patientID, prevContentID string) (*ledger.Receipt, error)
}

type Service struct {
	ledger Ledger
	store  contentstore.Store
	broker messaging.Broker
	logger *logger.Logger
}

func NewService(l Ledger, store contentstore.Store, broker messaging.Broker, log *logger.Logger) *Service {
	return &Service{
		ledger: l,
		store:  store,
		broker: broker,
		logger: log,
	}
}

// Append adds one entry to the patient's bundle: read the current
// bundle (absence means empty), append, write the new blob, then move
// the ledger pointer. The pointer update carries the previous content
// id as a compare-and-swap precondition, so a concurrent writer makes
// this fail with a conflict instead of losing an append.
func (s *Service) Append(ctx context.Context, signer, patientID string, payload json.RawMessage) (string, error) {
	registered, err := s.ledger.IsPatient(ctx, patientID)
	if err != nil {
		return "", err
	}
	if !registered {
		return "", apperrors.NotFound("patient", nil)
	}

	prev, err := s.ledger.MedicalRecordPointer(ctx, patientID)
	if err != nil {
		return "", err
	}

	var bundle model.MedicalRecordBundle
	if prev != "" {
		if err := s.store.Get(ctx, prev, &bundle); err != nil {
			return "", err
		}
	}

	bundle.Entries = append(bundle.Entries, model.MedicalRecordEntry{
		Author:     signer,
		Payload:    payload,
		RecordedAt: time.Now().UTC(),
	})

	contentID, err := s.store.Put(ctx, &bundle)
	if err != nil {
		return "", err
	}

	if _, err := s.ledger.AddMedicalRecord(ctx, signer, contentID, patientID, prev); err != nil {
		return "", err
	}

	s.publish(ctx, "medrecord.appended", map[string]interface{}{
		"patient":   patientID,
		"author":    signer,
		"contentId": contentID,
	})
	s.logger.Info("medical record appended", "patient", patientID, "contentId", contentID)
	return contentID, nil
}

// Records returns the patient's bundle. A patient with no recorded
// bundle yet gets an empty one, not an error.
func (s *Service) Records(ctx context.Context, patientID string) (*model.MedicalRecordBundle, error) {
	registered, err := s.ledger.IsPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, apperrors.NotFound("patient", nil)
	}

	pointer, err := s.ledger.MedicalRecordPointer(ctx, patientID)
	if err != nil {
		return nil, err
	}

	bundle := &model.MedicalRecordBundle{Entries: []model.MedicalRecordEntry{}}
	if pointer == "" {
		return bundle, nil
	}
	if err := s.store.Get(ctx, pointer, bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

// PatientInfo dereferences the patient's profile pointer.
func (s *Service) PatientInfo(ctx context.Context, patientID string) (json.RawMessage, error) {
	registered, err := s.ledger.IsPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, apperrors.NotFound("patient", nil)
	}

	contentID, err := s.ledger.PatientInfo(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if contentID == "" {
		return nil, apperrors.NotFound("patient profile", nil)
	}

	var info json.RawMessage
	if err := s.store.Get(ctx, contentID, &info); err != nil {
		return nil, err
	}
	return info, nil
}

func (s *Service) publish(ctx context.Context, event string, payload interface{}) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, event, messaging.Message{Type: event, Payload: payload}); err != nil {
		s.logger.Warn("event publish failed", "event", event, "error", err.Error())
	}
}
