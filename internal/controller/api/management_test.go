package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sotec-iot/device-communication/internal/config"
	"github.com/sotec-iot/device-communication/internal/domain"
	"github.com/sotec-iot/device-communication/internal/platform/logger"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/mux"
)

func init() {
	logger.InitLogger()
}

type fakeTopologyManager struct {
	provisioned []domain.TenantID
	tornDown    []domain.TenantID
	err         error
}

func (m *fakeTopologyManager) ProvisionTenant(ctx context.Context, tenant domain.TenantID) error {
	if m.err != nil {
		return m.err
	}
	m.provisioned = append(m.provisioned, tenant)
	return nil
}

func (m *fakeTopologyManager) TeardownTenant(ctx context.Context, tenant domain.TenantID) error {
	if m.err != nil {
		return m.err
	}
	m.tornDown = append(m.tornDown, tenant)
	return nil
}

func buildManagementServer(manager *fakeTopologyManager) *mux.Router {
	apiMux := mux.NewRouter()
	managementServer := NewManagementServer(manager, apiMux, config.GetConfig())
	managementServer.Routes()
	return apiMux
}

func TestTenantProvisionEndpoint(t *testing.T) {
	manager := &fakeTopologyManager{}
	apiMux := buildManagementServer(manager)

	req, err := http.NewRequest("POST", "/tenants/tenant-1", nil)
	assert.Equal(t, err, nil)

	rr := httptest.NewRecorder()
	apiMux.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusCreated)
	assert.Equal(t, manager.provisioned, []domain.TenantID{"tenant-1"})
}

func TestTenantTeardownEndpoint(t *testing.T) {
	manager := &fakeTopologyManager{}
	apiMux := buildManagementServer(manager)

	req, err := http.NewRequest("DELETE", "/tenants/tenant-1", nil)
	assert.Equal(t, err, nil)

	rr := httptest.NewRecorder()
	apiMux.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusOK)
	assert.Equal(t, manager.tornDown, []domain.TenantID{"tenant-1"})
}

func TestTenantEndpointFailure(t *testing.T) {
	manager := &fakeTopologyManager{err: errors.New("pubsub unavailable")}
	apiMux := buildManagementServer(manager)

	req, _ := http.NewRequest("POST", "/tenants/tenant-1", nil)
	rr := httptest.NewRecorder()
	apiMux.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusInternalServerError)
}

func TestTenantEndpointMethodNotAllowed(t *testing.T) {
	manager := &fakeTopologyManager{}
	apiMux := buildManagementServer(manager)

	req, _ := http.NewRequest("GET", "/tenants/tenant-1", nil)
	rr := httptest.NewRecorder()
	apiMux.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusMethodNotAllowed)
}
