package confidence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"g2p/internal/lgd/confidence/mocks"
	"g2p/internal/lgd/metrics"
	"g2p/internal/lgd/models"
	"g2p/internal/lgd/store"
	dErrors "g2p/pkg/domain-errors"
	"g2p/pkg/requestcontext"
)

type ManagerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	notifier *mocks.MockNotifier
	records  *store.InMemoryStore
	audit    *store.InMemoryAuditStore
	metrics  *metrics.Metrics
	manager  *Manager
	now      time.Time
	ctx      context.Context
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.records = store.NewInMemoryStore()
	s.audit = store.NewInMemoryAuditStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.manager = New(s.records, s.audit,
		WithNotifier(s.notifier),
		WithMetrics(s.metrics),
		WithLinkBase("https://g2p.example.org/"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.Require().NoError(s.records.Create(s.ctx, &models.Record{
		StableID:    "G2P00001",
		Locus:       models.Locus{Symbol: "FBN1"},
		Disease:     models.Disease{DiseaseName: "Marfan syndrome"},
		Confidence:  models.ConfidenceLimited,
		LastUpdated: s.now.Add(-72 * time.Hour),
	}))
}

func (s *ManagerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ManagerSuite) request(to string) ChangeRequest {
	return ChangeRequest{StableID: "G2P00001", From: "limited", To: to, Actor: "curator-1", Justification: "two more families"}
}

func (s *ManagerSuite) TestChange() {
	s.notifier.EXPECT().NotifyConfidenceChange(gomock.Any(), models.ConfidenceChange{
		StableID:  "G2P00001",
		Old:       models.ConfidenceLimited,
		New:       models.ConfidenceStrong,
		Actor:     "curator-1",
		Timestamp: s.now,
		Link:      "https://g2p.example.org/lgd/G2P00001",
	}).Return(nil).Times(1)

	entry, err := s.manager.Change(s.ctx, s.request("Strong"))
	s.Require().NoError(err)
	s.Equal(models.ConfidenceLimited, entry.From)
	s.Equal(models.ConfidenceStrong, entry.To)
	s.Equal("two more families", entry.Justification)

	rec, err := s.records.FindByID(s.ctx, "G2P00001")
	s.Require().NoError(err)
	s.Equal(models.ConfidenceStrong, rec.Confidence)
	s.Equal(s.now, rec.LastUpdated)

	history, err := s.manager.History(s.ctx, "G2P00001")
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(entry.ID, history[0].ID)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ConfidenceTransitions.WithLabelValues("limited", "strong")))
}

func (s *ManagerSuite) TestChangeToSameLevelIsNoOp() {
	_, err := s.manager.Change(s.ctx, s.request("limited"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNoOpTransition))

	history, err := s.manager.History(s.ctx, "G2P00001")
	s.Require().NoError(err)
	s.Empty(history)

	rec, err := s.records.FindByID(s.ctx, "G2P00001")
	s.Require().NoError(err)
	s.Equal(s.now.Add(-72*time.Hour), rec.LastUpdated)
}

func (s *ManagerSuite) TestStaleFromIsConflict() {
	req := s.request("definitive")
	req.From = "moderate"

	_, err := s.manager.Change(s.ctx, req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ManagerSuite) TestValidation() {
	s.Run("observed level, actor and justification are required", func() {
		_, err := s.manager.Change(s.ctx, ChangeRequest{StableID: "G2P00001", To: "strong"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		paths := []string{}
		for _, f := range dErrors.FieldsOf(err) {
			paths = append(paths, f.Path)
		}
		s.ElementsMatch([]string{"from", "actor", "justification"}, paths)
	})

	s.Run("unknown observed level", func() {
		req := s.request("strong")
		req.From = "probable"
		_, err := s.manager.Change(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown level", func() {
		_, err := s.manager.Change(s.ctx, s.request("certain"))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown record", func() {
		req := s.request("strong")
		req.StableID = "G2P09999"
		_, err := s.manager.Change(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("cancelled context", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		_, err := s.manager.Change(ctx, s.request("strong"))
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})
}

func (s *ManagerSuite) TestNotificationFailureIsNotPropagated() {
	s.notifier.EXPECT().NotifyConfidenceChange(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	entry, err := s.manager.Change(s.ctx, s.request("moderate"))
	s.Require().NoError(err)
	s.Equal(models.ConfidenceModerate, entry.To)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.NotificationFailures))
}

func (s *ManagerSuite) TestConcurrentTransitionsApplyOnce() {
	s.notifier.EXPECT().NotifyConfidenceChange(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		noops     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.manager.Change(s.ctx, s.request("definitive"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case dErrors.HasCode(err, dErrors.CodeNoOpTransition):
				noops++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, succeeded)
	s.Equal(workers-1, noops)
	history, err := s.manager.History(s.ctx, "G2P00001")
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *ManagerSuite) TestConcurrentTransitionsToDifferentLevels() {
	s.notifier.EXPECT().NotifyConfidenceChange(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	targets := []string{"definitive", "moderate"}
	errs := make([]error, len(targets))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, to := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = s.manager.Change(s.ctx, s.request(to))
		}()
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		s.True(dErrors.HasCode(err, dErrors.CodeConflict), "loser sees the committed level: %v", err)
	}
	s.Equal(1, wins)

	history, err := s.manager.History(s.ctx, "G2P00001")
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	rec, err := s.records.FindByID(s.ctx, "G2P00001")
	s.Require().NoError(err)
	s.Equal(history[0].To, rec.Confidence)
}

func (s *ManagerSuite) TestHistoryIsNewestFirst() {
	s.notifier.EXPECT().NotifyConfidenceChange(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	_, err := s.manager.Change(s.ctx, s.request("moderate"))
	s.Require().NoError(err)
	later := requestcontext.WithTime(s.ctx, s.now.Add(time.Hour))
	next := s.request("strong")
	next.From = "moderate"
	_, err = s.manager.Change(later, next)
	s.Require().NoError(err)

	history, err := s.manager.History(s.ctx, "G2P00001")
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(models.ConfidenceStrong, history[0].To)
	s.Equal(models.ConfidenceModerate, history[1].To)
}
