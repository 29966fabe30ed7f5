package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"g2p/internal/lgd/models"
	"g2p/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func testRecord(id, gene, disease string) *models.Record {
	return &models.Record{
		StableID:           id,
		Locus:              models.Locus{Symbol: gene},
		Genotype:           "monoallelic_autosomal",
		Disease:            models.Disease{DiseaseName: disease},
		MolecularMechanism: &models.MolecularMechanism{Name: "loss of function"},
		Confidence:         models.ConfidenceStrong,
		Panels:             []string{"DD"},
		LastUpdated:        time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	s.Run("returns a copy of the stored record", func() {
		store := NewInMemoryStore()
		rec := testRecord("G2P00001", "TP53", "Li-Fraumeni syndrome")
		s.Require().NoError(store.Create(s.ctx, rec))

		found, err := store.FindByID(s.ctx, "G2P00001")
		s.Require().NoError(err)
		s.Equal(rec, found)

		found.Panels[0] = "Cancer"
		again, err := store.FindByID(s.ctx, "G2P00001")
		s.Require().NoError(err)
		s.Equal([]string{"DD"}, again.Panels)
	})

	s.Run("finds by case-insensitive record key", func() {
		store := NewInMemoryStore()
		s.Require().NoError(store.Create(s.ctx, testRecord("G2P00001", "TP53", "Li-Fraumeni syndrome")))

		probe := testRecord("", "tp53", "LI-FRAUMENI SYNDROME")
		found, err := store.FindByKey(s.ctx, probe.Key())
		s.Require().NoError(err)
		s.Equal("G2P00001", found.StableID)
	})

	s.Run("missing record is not found", func() {
		_, err := s.store.FindByID(s.ctx, "G2P99999")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestCreateRejectsDuplicates() {
	s.Require().NoError(s.store.Create(s.ctx, testRecord("G2P00001", "TP53", "Li-Fraumeni syndrome")))

	err := s.store.Create(s.ctx, testRecord("G2P00001", "FBN1", "Marfan syndrome"))
	s.ErrorIs(err, sentinel.ErrConflict)

	err = s.store.Create(s.ctx, testRecord("G2P00002", "TP53", "Li-Fraumeni syndrome"))
	s.ErrorIs(err, sentinel.ErrConflict)
	s.Contains(err.Error(), "G2P00001")
}

func (s *InMemoryStoreSuite) TestUpdate() {
	s.Require().NoError(s.store.Create(s.ctx, testRecord("G2P00001", "TP53", "Li-Fraumeni syndrome")))
	s.Require().NoError(s.store.Create(s.ctx, testRecord("G2P00002", "FBN1", "Marfan syndrome")))

	s.Run("rekeys the record", func() {
		rec, err := s.store.FindByID(s.ctx, "G2P00001")
		s.Require().NoError(err)
		rec.Disease.DiseaseName = "TP53-related cancer predisposition"
		s.Require().NoError(s.store.Update(s.ctx, rec))

		_, err = s.store.FindByKey(s.ctx, testRecord("", "TP53", "Li-Fraumeni syndrome").Key())
		s.ErrorIs(err, sentinel.ErrNotFound)
		found, err := s.store.FindByKey(s.ctx, rec.Key())
		s.Require().NoError(err)
		s.Equal("G2P00001", found.StableID)
	})

	s.Run("rejects a key owned by another record", func() {
		rec, err := s.store.FindByID(s.ctx, "G2P00001")
		s.Require().NoError(err)
		rec.Locus.Symbol = "FBN1"
		rec.Disease.DiseaseName = "Marfan syndrome"
		s.ErrorIs(s.store.Update(s.ctx, rec), sentinel.ErrConflict)
	})

	s.Run("unknown record", func() {
		s.ErrorIs(s.store.Update(s.ctx, testRecord("G2P00404", "CFTR", "cystic fibrosis")), sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestScanIsOrderedAndStoppable() {
	for _, id := range []string{"G2P00003", "G2P00001", "G2P00002"} {
		s.Require().NoError(s.store.Create(s.ctx, testRecord(id, "GENE"+id, "disease")))
	}

	var seen []string
	s.Require().NoError(s.store.Scan(s.ctx, func(r *models.Record) error {
		seen = append(seen, r.StableID)
		return nil
	}))
	s.Equal([]string{"G2P00001", "G2P00002", "G2P00003"}, seen)

	stop := errors.New("stop")
	err := s.store.Scan(s.ctx, func(*models.Record) error { return stop })
	s.ErrorIs(err, stop)
	s.Equal(3, s.store.Count())
}

func (s *InMemoryStoreSuite) TestAuditListsNewestFirst() {
	audit := NewInMemoryAuditStore()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	levels := []models.Confidence{models.ConfidenceLimited, models.ConfidenceModerate, models.ConfidenceStrong}
	for i, to := range levels {
		s.Require().NoError(audit.Append(s.ctx, models.AuditEntry{
			ID:        uuid.New(),
			StableID:  "G2P00001",
			To:        to,
			Actor:     "curator",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	entries, err := audit.ListByRecord(s.ctx, "G2P00001")
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	s.Equal(models.ConfidenceStrong, entries[0].To)
	s.Equal(models.ConfidenceLimited, entries[2].To)

	none, err := audit.ListByRecord(s.ctx, "G2P00002")
	s.Require().NoError(err)
	s.Empty(none)
}
