package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sotec-iot/device-communication/internal/config"
	"github.com/sotec-iot/device-communication/internal/domain"
	"github.com/sotec-iot/device-communication/internal/platform/logger"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// TenantTopologyManager is the slice of the topology manager the management
// API drives.
type TenantTopologyManager interface {
	ProvisionTenant(ctx context.Context, tenant domain.TenantID) error
	TeardownTenant(ctx context.Context, tenant domain.TenantID) error
}

type ManagementServer struct {
	topology TenantTopologyManager
	router   *mux.Router
	config   *config.Config
}

func NewManagementServer(topology TenantTopologyManager, r *mux.Router, cfg *config.Config) *ManagementServer {
	return &ManagementServer{
		topology: topology,
		router:   r,
		config:   cfg,
	}
}

func (s *ManagementServer) Routes() {
	subRouter := s.router.PathPrefix("/tenants").Subrouter()

	subRouter.HandleFunc("/{id}", s.handleTenantProvision()).Methods(http.MethodPost)
	subRouter.HandleFunc("/{id}", s.handleTenantTeardown()).Methods(http.MethodDelete)
}

func (s *ManagementServer) handleTenantProvision() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		tenant := domain.TenantID(mux.Vars(req)["id"])

		log := logger.Log.WithFields(logrus.Fields{"tenant_id": tenant})
		log.Info("Handling tenant provision request")

		err := s.topology.ProvisionTenant(req.Context(), tenant)
		if err != nil {
			errMsg := fmt.Sprintf("Unable to provision tenant %s", tenant)
			log.WithFields(logrus.Fields{"error": err}).Error(errMsg)
			errorResponse := errorResponse{Title: errMsg,
				Status: http.StatusInternalServerError,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		writeJSONResponse(w, http.StatusCreated, struct{}{})
	}
}

func (s *ManagementServer) handleTenantTeardown() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		tenant := domain.TenantID(mux.Vars(req)["id"])

		log := logger.Log.WithFields(logrus.Fields{"tenant_id": tenant})
		log.Info("Handling tenant teardown request")

		err := s.topology.TeardownTenant(req.Context(), tenant)
		if err != nil {
			errMsg := fmt.Sprintf("Unable to tear down tenant %s", tenant)
			log.WithFields(logrus.Fields{"error": err}).Error(errMsg)
			errorResponse := errorResponse{Title: errMsg,
				Status: http.StatusInternalServerError,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		writeJSONResponse(w, http.StatusOK, struct{}{})
	}
}
