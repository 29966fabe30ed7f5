package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	jwttoken "g2p/internal/jwt_token"
	"g2p/internal/lgd/service"
	"g2p/internal/lgd/stableid"
	"g2p/internal/lgd/store"
	"g2p/internal/reference"
	"g2p/pkg/testutil"
)

const adminToken = "secret-token"

const submission = `{
	"locus": "COL1A1",
	"allelic_requirement": "monoallelic_autosomal",
	"disease": {"disease_name": "COL1A1-related osteogenesis imperfecta"},
	"confidence": "strong",
	"panel": ["Skeletal"],
	"publications": [{"pmid": 11111, "title": "First"}],
	"phenotypes": [{"pmid": 11111, "hpo_terms": ["HP:0002659"]}],
	"molecular_mechanism": {"name": "dominant negative", "support": "inferred"},
	"variant_consequences": [{"variant_consequence": "altered_gene_product_structure"}]
}`

type HandlerSuite struct {
	suite.Suite
	router       http.Handler
	curatorToken string
	readerToken  string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(store.NewInMemoryStore(), store.NewInMemoryAuditStore(), stableid.NewMemory(0),
		reference.Default(), service.WithLogger(logger))
	tokens := jwttoken.NewJWTService("test-key", "g2p", "g2p-api")

	var err error
	s.curatorToken, err = tokens.GenerateAccessToken("curator@example.org", []string{jwttoken.RoleCurator}, time.Hour)
	s.Require().NoError(err)
	s.readerToken, err = tokens.GenerateAccessToken("reader@example.org", nil, time.Hour)
	s.Require().NoError(err)

	r := chi.NewRouter()
	New(svc, logger, jwttoken.NewJWTServiceAdapter(tokens), adminToken).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path, token, body string) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.NewRequest(method, path, token, body))
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	return testutil.DecodeObject(s.T(), rec)
}

func (s *HandlerSuite) createRecord() string {
	rec := s.do(http.MethodPost, "/lgd", s.curatorToken, submission)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	body := s.decode(rec)
	id, _ := body["stable_id"].(string)
	s.Equal("/lgd/"+id, rec.Header().Get("Location"))
	return id
}

func (s *HandlerSuite) TestCreateRequiresCurator() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/lgd", "", submission).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodPost, "/lgd", s.readerToken, submission).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/lgd", "not-a-token", submission).Code)
}

func (s *HandlerSuite) TestRecordLifecycle() {
	id := s.createRecord()
	s.Equal("G2P00001", id)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/lgd/"+id, "", "").Code, "unreviewed record is hidden")
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/lgd/"+id, s.curatorToken, "").Code)

	rec := s.do(http.MethodPost, "/lgd/"+id+"/review", s.curatorToken, `{"is_reviewed": true}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/lgd/"+id, "", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	view := s.decode(rec)
	s.Equal("strong", view["confidence"])
	s.Contains(view, "variant_description")
	s.Contains(view, "date_created")

	rec = s.do(http.MethodPost, "/lgd/"+id+"/confidence", s.curatorToken,
		`{"from": "strong", "confidence": "definitive", "justification": "second family"}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("definitive", s.decode(rec)["to"])

	rec = s.do(http.MethodPost, "/lgd/"+id+"/confidence", s.curatorToken,
		`{"from": "strong", "confidence": "definitive", "justification": "again"}`)
	testutil.AssertStatusAndError(s.T(), rec, http.StatusConflict, "no_op_transition")

	rec = s.do(http.MethodPost, "/lgd/"+id+"/confidence", s.curatorToken,
		`{"confidence": "moderate", "justification": "no observed level"}`)
	testutil.AssertStatusAndError(s.T(), rec, http.StatusUnprocessableEntity, "validation_error")

	rec = s.do(http.MethodGet, "/lgd/"+id+"/confidence/history", s.curatorToken, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	history, _ := s.decode(rec)["history"].([]any)
	s.Len(history, 1)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/lgd/"+id+"/confidence/history", "", "").Code)

	rec = s.do(http.MethodPatch, "/lgd/"+id, s.curatorToken, `{"cross_cutting_modifier": ["typically mosaic"]}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/lgd/"+id+"/comments", s.curatorToken, `{"comment": "checked", "is_public": true}`)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/lgd/"+id+"/publications", s.curatorToken, `{"publications": [{"pmid": 22222}]}`)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	pubs, _ := s.decode(rec)["publications"].([]any)
	s.Len(pubs, 2)
}

func (s *HandlerSuite) TestValidationErrorsListFields() {
	rec := s.do(http.MethodPost, "/curation/validate", "", `{"disease": {}, "publications": [{"pmid": "abc"}]}`)
	s.Require().Equal(http.StatusUnprocessableEntity, rec.Code)
	body := s.decode(rec)
	s.Equal("validation_error", body["error"])
	errs, _ := body["errors"].([]any)
	s.GreaterOrEqual(len(errs), 3)

	rec = s.do(http.MethodPost, "/curation/validate", "", submission)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(true, s.decode(rec)["valid"])

	s.Equal(http.StatusUnprocessableEntity, s.do(http.MethodPost, "/curation/validate", "", `not json`).Code)
}

func (s *HandlerSuite) TestReadiness() {
	rec := s.do(http.MethodPost, "/curation/readiness", "",
		`{"locus": "COL1A1", "disease": {"disease_name": "COL1A1-related disorder"}}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal(false, body["ready"])
	s.NotEmpty(body["missing"])
}

func (s *HandlerSuite) TestSearch() {
	id := s.createRecord()

	rec := s.do(http.MethodGet, "/search?query=COL1A1&type=gene", s.curatorToken, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal(float64(1), body["count"])
	s.Nil(body["next"])

	rec = s.do(http.MethodGet, "/search?query=COL1A1", "", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(float64(0), s.decode(rec)["count"], "unreviewed %s is not searchable by the public", id)

	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/search?query=COL1A1&type=protein", "", "").Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/search?query=COL1A1&page=abc", "", "").Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/search", "", "").Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/search?query=COL1A1&panel=Kidney", "", "").Code)
}

func (s *HandlerSuite) TestPanelsAndVocabulary() {
	rec := s.do(http.MethodGet, "/panels", "", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.NotZero(s.decode(rec)["count"])

	s.Equal(http.StatusOK, s.do(http.MethodGet, "/panels/Skeletal", "", "").Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/panels/Skeletal/summary", "", "").Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/panels/Neuromuscular", "", "").Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/panels/Neuromuscular", s.curatorToken, "").Code)

	rec = s.do(http.MethodGet, "/vocabulary", "", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(s.decode(rec), "confidence")
}

func (s *HandlerSuite) TestBadRequestBodies() {
	id := s.createRecord()
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/lgd/"+id+"/confidence", s.curatorToken, `{`).Code)
	s.Equal(http.StatusUnprocessableEntity, s.do(http.MethodPost, "/lgd/"+id+"/review", s.curatorToken, `{}`).Code)

	big := `{"locus": "` + strings.Repeat("A", maxBodyBytes) + `"}`
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/lgd", s.curatorToken, big).Code)
}

func (s *HandlerSuite) TestAdminReindex() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/admin/reindex", "", "").Code)

	req := testutil.NewRequest(http.MethodPost, "/admin/reindex", "", "")
	req.Header.Set("X-Admin-Token", adminToken)
	s.Equal(http.StatusNoContent, testutil.DoRequest(s.router, req).Code)
}
