package handler

import (
	"context"
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

	"rollguard/internal/registry/handler/mocks"
	"rollguard/internal/registry/models"
	riskmodels "rollguard/internal/risk/models"
	id "rollguard/pkg/domain"
	dErrors "rollguard/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type RegistryHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestRegistryHandlerSuite(t *testing.T) {
	suite.Run(t, new(RegistryHandlerSuite))
}

func (s *RegistryHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.RegisterCitizen(s.router)
	h.RegisterAuthority(s.router)
}

func (s *RegistryHandlerSuite) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RegistryHandlerSuite) TestSubmit() {
	s.Run("valid submission is created", func() {
		s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req *models.SubmitRequest) (*models.VoterRequest, error) {
				s.Equal(models.RequestRegistration, req.Type)
				s.Equal("17", req.Fields.Get("age"))
				return &models.VoterRequest{
					ID:     id.VoterRequestID(uuid.New()),
					Type:   req.Type,
					Status: models.StatusPending,
					Tier:   riskmodels.TierCritical,
					Score:  100,
				}, nil
			})

		rec := s.do(http.MethodPost, "/api/voter/request",
			`{"request_type":"registration","submitted_data":{"name":"Kid","age":17,"address":"3 School Rd"}}`)
		s.Equal(http.StatusCreated, rec.Code)

		var resp map[string]map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("Critical", resp["request"]["risk_level"])
		s.EqualValues(100, resp["request"]["risk_score"])
	})

	s.Run("missing required field never reaches the service", func() {
		rec := s.do(http.MethodPost, "/api/voter/request",
			`{"request_type":"registration","submitted_data":{"name":"Kid"}}`)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "validation_error")
	})

	s.Run("malformed json", func() {
		rec := s.do(http.MethodPost, "/api/voter/request", `{"request_type":`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *RegistryHandlerSuite) TestTrack_NotFound() {
	s.service.EXPECT().Track(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "no request found"))

	rec := s.do(http.MethodPost, "/api/voter/track-status", `{"mobile":"9000000001"}`)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RegistryHandlerSuite) TestList_ParsesFilter() {
	s.service.EXPECT().List(gomock.Any(), models.RequestFilter{
		Status: models.StatusPending,
		Tier:   riskmodels.TierHighRisk,
		Type:   models.RequestTransfer,
	}).Return(nil, nil)

	rec := s.do(http.MethodGet, "/api/authority/voter-requests?status=pending&risk_level=High%20Risk&request_type=transfer", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"requests":[]`)

	bad := s.do(http.MethodGet, "/api/authority/voter-requests?status=closed", "")
	s.Equal(http.StatusBadRequest, bad.Code)
}

func (s *RegistryHandlerSuite) TestUpdateStatus() {
	requestID := id.VoterRequestID(uuid.New())

	s.Run("conflict on terminal request", func() {
		s.service.EXPECT().UpdateStatus(gomock.Any(), requestID, models.StatusRejected, "officer-7").
			Return(nil, dErrors.New(dErrors.CodeConflict, "request is already approved"))

		rec := s.do(http.MethodPost, "/api/authority/voter-request/"+requestID.String()+"/status",
			`{"status":"rejected","updated_by":"officer-7"}`)
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("invalid status", func() {
		rec := s.do(http.MethodPost, "/api/authority/voter-request/"+requestID.String()+"/status", `{"status":"closed"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("approve", func() {
		s.service.EXPECT().Approve(gomock.Any(), requestID, "").
			Return(&models.VoterRequest{ID: requestID, Status: models.StatusApproved}, nil)
		rec := s.do(http.MethodPost, "/api/authority/voter-request/"+requestID.String()+"/approve", "")
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"status":"approved"`)
	})
}
