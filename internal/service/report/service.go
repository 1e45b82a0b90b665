package report

import (
	"context"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/aqmesh/station-api/internal/contentstore"
	"github.com/aqmesh/station-api/internal/ledger"
	"github.com/aqmesh/station-api/internal/model"
	apperrors "github.com/aqmesh/station-api/pkg/errors"
	"github.com/aqmesh/station-api/pkg/logger"
	"github.com/aqmesh/station-api/pkg/messaging"
	"github.com/aqmesh/station-api/pkg/metrics"
)

// Ledger is the slice of the gateway the report workflows use.
type Ledger interface {
	IsStation(ctx context.Context, address string) (bool, error)
	StationContentID(ctx context.Context, address string) (string, error)
	ListReports(ctx context.Context, address string) ([]ledger.PointerEntry, error)
	SubmitReport(ctx context.Context, signer, contentID string) (*ledger.Receipt, error)
}

// Config bounds the retrieval fan-out and the profile cache.
type Config struct {
	FetchConcurrency int
	ProfileTTL       time.Duration
}

type Service struct {
	ledger   Ledger
	store    contentstore.Store
	broker   messaging.Broker
	profiles *cache.Cache
	cfg      Config
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(l Ledger, store contentstore.Store, broker messaging.Broker, log *logger.Logger, m *metrics.Metrics, cfg Config) *Service {
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 8
	}
	if cfg.ProfileTTL <= 0 {
		cfg.ProfileTTL = 5 * time.Minute
	}
	return &Service{
		ledger:   l,
		store:    store,
		broker:   broker,
		profiles: cache.New(cfg.ProfileTTL, 2*cfg.ProfileTTL),
		cfg:      cfg,
		logger:   log,
		metrics:  m,
	}
}

// Submit validates the report, persists it to the content store and
// records the pointer on the ledger under the signer's identity.
// Validation failures make no store or ledger call; a store failure
// makes no ledger call, so no pointer can ever dangle. Content left
// behind by a failed ledger write is an accepted orphan: content
// addressing means a retry re-produces the same id.
func (s *Service) Submit(ctx context.Context, signer string, rep *model.Report) (string, error) {
	if err := rep.Validate(); err != nil {
		s.countSubmitFailure("validate")
		return "", err
	}

	contentID, err := s.store.Put(ctx, rep)
	if err != nil {
		s.countSubmitFailure("store")
		return "", err
	}

	if _, err := s.ledger.SubmitReport(ctx, signer, contentID); err != nil {
		s.countSubmitFailure("ledger")
		s.logger.Error(err, "report stored but not recorded", "contentId", contentID, "reportId", rep.ReportID)
		return "", err
	}

	if s.metrics != nil {
		s.metrics.ReportsSubmitted.Inc()
	}
	s.publish(ctx, "report.submitted", map[string]interface{}{
		"station":   signer,
		"contentId": contentID,
		"reportId":  rep.ReportID,
	})
	s.logger.Info("report recorded", "station", signer, "contentId", contentID)
	return contentID, nil
}

// StationReports runs the retrieval and aggregation workflow for one
// station identity.
func (s *Service) StationReports(ctx context.Context, stationID string) (*model.StationReports, error) {
	if !ledger.ValidAddress(stationID) {
		return nil, apperrors.NewInvalidIdentity(stationID)
	}

	registered, err := s.ledger.IsStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, apperrors.NotFound("station", nil)
	}

	profile := s.stationProfile(ctx, stationID)

	entries, err := s.ledger.ListReports(ctx, stationID)
	if err != nil {
		return nil, err
	}

	reports := s.fetchAll(ctx, entries)
	sortByTimestampDesc(reports)

	return &model.StationReports{Station: profile, Reports: reports}, nil
}

// stationProfile is best-effort: any failure is logged and yields nil,
// never an aborted retrieval.
func (s *Service) stationProfile(ctx context.Context, stationID string) *model.StationRecord {
	if cached, ok := s.profiles.Get(stationID); ok {
		return cached.(*model.StationRecord)
	}

	contentID, err := s.ledger.StationContentID(ctx, stationID)
	if err != nil || contentID == "" {
		if err != nil {
			s.logger.Warn("station profile pointer unavailable", "station", stationID, "error", err.Error())
		}
		return nil
	}

	var record model.StationRecord
	if err := s.store.Get(ctx, contentID, &record); err != nil {
		s.logger.Warn("station profile fetch failed", "station", stationID, "contentId", contentID, "error", err.Error())
		return nil
	}

	s.profiles.SetDefault(stationID, &record)
	return &record
}

// fetchAll dereferences every pointer entry concurrently, bounded by
// the configured limit. A failed fetch drops that entry only; the
// surviving reports keep their original ledger index.
func (s *Service) fetchAll(ctx context.Context, entries []ledger.PointerEntry) []*model.StationReport {
	results := make([]*model.StationReport, len(entries))

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.FetchConcurrency)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			var rep model.Report
			if err := s.store.Get(ctx, entry.ContentID, &rep); err != nil {
				s.logger.Warn("dropping unreadable report", "contentId", entry.ContentID, "index", i, "error", err.Error())
				if s.metrics != nil {
					s.metrics.ReportFetchFailures.Inc()
				}
				return nil
			}
			results[i] = &model.StationReport{
				Report:      rep,
				ContentID:   entry.ContentID,
				Approved:    entry.Approved,
				ReportIndex: i,
			}
			return nil
		})
	}
	g.Wait()

	reports := make([]*model.StationReport, 0, len(results))
	for _, r := range results {
		if r != nil {
			reports = append(reports, r)
		}
	}
	return reports
}

// sortByTimestampDesc orders newest first by the caller-declared
// timestamp. The sort is stable so equal timestamps keep ledger order.
func sortByTimestampDesc(reports []*model.StationReport) {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Time().After(reports[j].Time())
	})
}

func (s *Service) countSubmitFailure(stage string) {
	if s.metrics != nil {
		s.metrics.SubmitFailures.WithLabelValues(stage).Inc()
	}
}

func (s *Service) publish(ctx context.Context, event string, payload interface{}) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, event, messaging.Message{Type: event, Payload: payload}); err != nil {
		s.logger.Warn("event publish failed", "event", event, "error", err.Error())
	}
}
