package kernel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oracipher/kernel/plugin"
)

func TestIntrospectionRouter_ListPlugins(t *testing.T) {
	k := newTestKernel(t)
	k.metas.upsert(&PluginMeta{Name: "hello", Version: mustVersion(t, "1.0.0"), active: true, state: plugin.StateActive})

	router := NewIntrospectionRouter(k)
	req := httptest.NewRequest(http.MethodGet, "/plugins", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out []pluginStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].Name != "hello" || !out[0].Active {
		t.Errorf("plugins list = %+v, want one active hello entry", out)
	}
}

func TestIntrospectionRouter_GetPlugin_NotFound(t *testing.T) {
	k := newTestKernel(t)
	router := NewIntrospectionRouter(k)

	req := httptest.NewRequest(http.MethodGet, "/plugins/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestIntrospectionRouter_GetPlugin_Found(t *testing.T) {
	k := newTestKernel(t)
	k.metas.upsert(&PluginMeta{Name: "hello", Version: mustVersion(t, "2.0.0")})

	router := NewIntrospectionRouter(k)
	req := httptest.NewRequest(http.MethodGet, "/plugins/hello", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out pluginStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Version != "2.0.0" {
		t.Errorf("Version = %q, want 2.0.0", out.Version)
	}
}

func TestIntrospectionRouter_Metrics(t *testing.T) {
	k := newTestKernel(t)
	router := NewIntrospectionRouter(k)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
