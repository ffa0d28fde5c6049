package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/bryanriosb/beauty-business-sub002/internal/domain"
	"github.com/bryanriosb/beauty-business-sub002/internal/repo"
	"github.com/bryanriosb/beauty-business-sub002/internal/services"
)

type scriptedConfigAdmin struct {
	createErr  error
	setErr     error
	listItems  []domain.MessagingConfig
	listErr    error
	gotCreate  *domain.MessagingConfig
	gotSetID   string
	gotSetAcct string
	gotEnabled bool
}

func (f *scriptedConfigAdmin) Create(_ context.Context, c *domain.MessagingConfig) error {
	f.gotCreate = c
	return f.createErr
}

func (f *scriptedConfigAdmin) List(context.Context, string) ([]domain.MessagingConfig, error) {
	return f.listItems, f.listErr
}

func (f *scriptedConfigAdmin) SetEnabled(_ context.Context, id, accountID string, enabled bool) error {
	f.gotSetID, f.gotSetAcct, f.gotEnabled = id, accountID, enabled
	return f.setErr
}

func (f *scriptedConfigAdmin) VerifyWebhookToken(context.Context, string) (bool, error) {
	return false, nil
}

func newConfigRouter(cfgs ConfigAdmin) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := New(nil, nil, nil, nil, cfgs)
	r.POST("/configs", h.CreateConfig)
	r.GET("/configs", h.ListConfigs)
	r.PATCH("/configs/:id", h.UpdateConfig)
	return r
}

func doJSON(r *gin.Engine, method, path string, body []byte, acct string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if acct != "" {
		req.Header.Set("X-Account-ID", acct)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateConfig(t *testing.T) {
	cfgs := &scriptedConfigAdmin{}
	r := newConfigRouter(cfgs)

	body := []byte(`{"business_id":"b1","phone_number_id":"pn-1","access_token":"tok","verify_token":"vt"}`)
	w := doJSON(r, http.MethodPost, "/configs", body, "acct-1")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if cfgs.gotCreate == nil || cfgs.gotCreate.AccountID != "acct-1" || !cfgs.gotCreate.Enabled {
		t.Fatalf("unexpected create: %+v", cfgs.gotCreate)
	}

	// the access token never serializes back
	if bytes.Contains(w.Body.Bytes(), []byte("tok")) {
		t.Fatalf("credentials leaked in response: %s", w.Body.String())
	}
}

func TestCreateConfig_Errors(t *testing.T) {
	t.Run("unauthenticated", func(t *testing.T) {
		r := newConfigRouter(&scriptedConfigAdmin{})
		w := doJSON(r, http.MethodPost, "/configs", []byte(`{}`), "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", w.Code)
		}
	})

	t.Run("missing required fields", func(t *testing.T) {
		r := newConfigRouter(&scriptedConfigAdmin{})
		w := doJSON(r, http.MethodPost, "/configs", []byte(`{"business_id":"b1"}`), "acct-1")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", w.Code)
		}
	})

	t.Run("scope clash maps to conflict", func(t *testing.T) {
		r := newConfigRouter(&scriptedConfigAdmin{createErr: repo.ErrDuplicate})
		body := []byte(`{"phone_number_id":"pn-1","access_token":"tok"}`)
		w := doJSON(r, http.MethodPost, "/configs", body, "acct-1")
		if w.Code != http.StatusConflict {
			t.Fatalf("status = %d", w.Code)
		}
		var er ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != ErrCodeConflict {
			t.Fatalf("unexpected envelope: %s err=%v", w.Body.String(), err)
		}
	})
}

func TestListConfigs(t *testing.T) {
	cfgs := &scriptedConfigAdmin{listItems: []domain.MessagingConfig{
		{ID: "c1", AccountID: "acct-1", PhoneNumberID: "pn-1"},
	}}
	r := newConfigRouter(cfgs)

	w := doJSON(r, http.MethodGet, "/configs", nil, "acct-1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Configs []domain.MessagingConfig `json:"configs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Configs) != 1 || resp.Configs[0].ID != "c1" {
		t.Fatalf("unexpected list: %+v", resp)
	}
}

func TestUpdateConfig(t *testing.T) {
	t.Run("disable", func(t *testing.T) {
		cfgs := &scriptedConfigAdmin{}
		r := newConfigRouter(cfgs)
		w := doJSON(r, http.MethodPatch, "/configs/c1", []byte(`{"enabled":false}`), "acct-1")
		if w.Code != http.StatusNoContent {
			t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
		}
		if cfgs.gotSetID != "c1" || cfgs.gotSetAcct != "acct-1" || cfgs.gotEnabled {
			t.Fatalf("unexpected toggle: id=%s acct=%s enabled=%v", cfgs.gotSetID, cfgs.gotSetAcct, cfgs.gotEnabled)
		}
	})

	t.Run("missing enabled field", func(t *testing.T) {
		r := newConfigRouter(&scriptedConfigAdmin{})
		w := doJSON(r, http.MethodPatch, "/configs/c1", []byte(`{}`), "acct-1")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", w.Code)
		}
	})

	t.Run("foreign or missing row", func(t *testing.T) {
		r := newConfigRouter(&scriptedConfigAdmin{setErr: services.ErrConfigNotFound})
		w := doJSON(r, http.MethodPatch, "/configs/c1", []byte(`{"enabled":true}`), "acct-1")
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d", w.Code)
		}
	})
}
