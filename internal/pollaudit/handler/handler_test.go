package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rollguard/internal/pollaudit/handler/mocks"
	"rollguard/internal/pollaudit/models"
	riskmodels "rollguard/internal/risk/models"
	id "rollguard/pkg/domain"
	dErrors "rollguard/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type PollAuditHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestPollAuditHandlerSuite(t *testing.T) {
	suite.Run(t, new(PollAuditHandlerSuite))
}

func (s *PollAuditHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.RegisterUploads(s.router)
	h.RegisterAuthority(s.router)
}

func (s *PollAuditHandlerSuite) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *PollAuditHandlerSuite) TestUploadForm17A() {
	s.Run("returns receipt", func() {
		batchID := id.BatchID(uuid.New())
		s.service.EXPECT().IngestBatch(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, req *models.UploadBatchRequest) (*models.BatchReceipt, error) {
				s.Equal("B-01", req.BoothID)
				s.Len(req.Records, 2)
				return &models.BatchReceipt{BatchID: batchID, BoothID: "B-01", RecordCount: 2, Digest: "ab", Flags: []*riskmodels.Flag{}}, nil
			})

		rec := s.do(http.MethodPost, "/api/audit/form17a/upload",
			`{"booth_id":"B-01","records":[{"epic_id":"A1","serial_number":"1"},{"epic_id":"A2","serial_number":"2"}]}`)
		s.Equal(http.StatusCreated, rec.Code)

		var resp map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal(batchID.String(), resp["upload_id"])
		s.EqualValues(2, resp["record_count"])
	})

	s.Run("missing records is rejected before the service", func() {
		rec := s.do(http.MethodPost, "/api/audit/form17a/upload", `{"booth_id":"B-01"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("scorer validation errors map to 400", func() {
		s.service.EXPECT().IngestBatch(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "records[0]: epic_id is required"))
		rec := s.do(http.MethodPost, "/api/audit/form17a/upload", `{"booth_id":"B-01","records":[{"serial_number":"1"}]}`)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "epic_id is required")
	})
}

func (s *PollAuditHandlerSuite) TestUploadForm17C() {
	s.service.EXPECT().IngestSummary(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, req *models.UploadSummaryRequest) (*models.SummaryReceipt, error) {
			s.Equal(607, req.TotalVotesPolled)
			return &models.SummaryReceipt{
				Summary:       &models.Form17CSummary{BoothID: req.BoothID, TotalVotesPolled: req.TotalVotesPolled},
				Form17ACount:  600,
				CountMismatch: true,
			}, nil
		})

	rec := s.do(http.MethodPost, "/api/audit/form17c/upload",
		`{"booth_id":"B-01","constituency":"New Delhi","total_electors":1000,"total_votes_polled":607}`)
	s.Equal(http.StatusCreated, rec.Code)
	s.Contains(rec.Body.String(), `"count_mismatch":true`)
}

func (s *PollAuditHandlerSuite) TestBoothRisk() {
	s.service.EXPECT().BoothRisk(gomock.Any(), "B-01").
		Return(&models.BoothRisk{BoothID: "B-01", Tier: riskmodels.TierHighRisk, FlagCount: 2, HighRiskFlags: 1}, nil)

	rec := s.do(http.MethodGet, "/api/authority/booth/B-01/risk", "")
	s.Equal(http.StatusOK, rec.Code)

	var resp struct {
		Summary map[string]any `json:"summary"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("High Risk", resp.Summary["risk_level"])
	s.EqualValues(2, resp.Summary["flag_count"])
}

func (s *PollAuditHandlerSuite) TestBoothRecordsAndSummary() {
	s.service.EXPECT().RecordsByBooth(gomock.Any(), "B-02").Return(nil, nil)
	rec := s.do(http.MethodGet, "/api/authority/booth/B-02/form17a", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"records":[]`)

	s.service.EXPECT().Summary(gomock.Any(), "B-02").
		Return(nil, dErrors.New(dErrors.CodeNotFound, "form17c summary not found"))
	rec = s.do(http.MethodGet, "/api/authority/booth/B-02/form17c", "")
	s.Equal(http.StatusNotFound, rec.Code)
}
