package busadaptor

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuxedocomputers/tccd/internal/busdata"
	"github.com/tuxedocomputers/tccd/internal/device"
)

func TestRouterGetDeviceNameReturnsDeviceID(t *testing.T) {
	coord := &fakeCoordinator{}
	svc := NewService(ServiceOptions{Coordinator: coord, DeviceID: device.ID("stellaris-16")})
	router := NewRouter(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/tccd/v1/device/name", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "stellaris-16", got)
}

func TestRouterPostDisplayBrightnessDecodesBodyAndCallsSetter(t *testing.T) {
	coord := &fakeCoordinator{}
	svc := NewService(ServiceOptions{Coordinator: coord})
	router := NewRouter(svc, nil)

	body := bytes.NewBufferString(`{"percent":60}`)
	req := httptest.NewRequest(http.MethodPost, "/tccd/v1/display/brightness", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var ok bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ok))
	assert.False(t, ok, "no backlight controller wired, setter reports false")
}

func TestRouterPostDisplayBrightnessRejectsMalformedBody(t *testing.T) {
	coord := &fakeCoordinator{}
	svc := NewService(ServiceOptions{Coordinator: coord})
	router := NewRouter(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/tccd/v1/display/brightness", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterDeleteCustomProfileUsesPathVariable(t *testing.T) {
	coord := &fakeCoordinator{deleteCustomResult: true}
	svc := NewService(ServiceOptions{Coordinator: coord})
	router := NewRouter(svc, nil)

	req := httptest.NewRequest(http.MethodDelete, "/tccd/v1/profiles/custom/custom-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"custom-1"}, coord.deleteCustomCalls)
}

func TestRouterGetFanStatusServesCachedBlob(t *testing.T) {
	coord := &fakeCoordinator{}
	store := busdata.New()
	store.SetBlob(busdata.BlobFanStatus, `[{"index":0,"temp_c":40,"percent":30}]`)
	svc := NewService(ServiceOptions{Coordinator: coord, BusData: store})
	router := NewRouter(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/tccd/v1/fan/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"index":0,"temp_c":40,"percent":30}]`, rec.Body.String())
}

func TestRouterPostChargeStartThresholdParsesPathInt(t *testing.T) {
	coord := &fakeCoordinator{}
	svc := NewService(ServiceOptions{Coordinator: coord})
	router := NewRouter(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/tccd/v1/charging/threshold/start/not-a-number", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
