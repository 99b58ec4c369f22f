package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v57/github"
)

func newTestRegistrar(t *testing.T, handler http.Handler) *Registrar {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	client.BaseURL = base
	return NewRegistrarWithClient(client)
}

func TestRegister(t *testing.T) {
	var deployReq, statusReq map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/shop/deployments", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&deployReq)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 42}`))
	})
	mux.HandleFunc("/repos/acme/shop/deployments/42/statuses", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&statusReq)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 1, "state": "success"}`))
	})

	reg := newTestRegistrar(t, mux)
	id, err := reg.Register(context.Background(), Deployment{
		Repository:  "acme/shop",
		Revision:    "abc123",
		Branch:      "master",
		Environment: "production",
		URL:         "https://shop.example.com/",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if id != 42 {
		t.Errorf("Register() id = %d, want 42", id)
	}

	if deployReq["ref"] != "abc123" || deployReq["environment"] != "production" || deployReq["auto_merge"] != false {
		t.Errorf("deployment request = %v", deployReq)
	}
	if ctxs, ok := deployReq["required_contexts"].([]any); !ok || len(ctxs) != 0 {
		t.Errorf("required_contexts = %v, want empty list", deployReq["required_contexts"])
	}
	if statusReq["state"] != "success" || statusReq["environment_url"] != "https://shop.example.com/" {
		t.Errorf("status request = %v", statusReq)
	}
}

func TestRegister_Errors(t *testing.T) {
	reg := newTestRegistrar(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "Bad credentials"}`))
	}))

	tests := []struct {
		name string
		d    Deployment
	}{
		{"bad repository", Deployment{Repository: "shop", Revision: "abc"}},
		{"missing revision", Deployment{Repository: "acme/shop"}},
		{"api failure", Deployment{Repository: "acme/shop", Revision: "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := reg.Register(context.Background(), tt.d); err == nil {
				t.Error("Register() should fail")
			}
		})
	}
}

func TestNewRegistrar_NoToken(t *testing.T) {
	if NewRegistrar(context.Background(), "") != nil {
		t.Error("NewRegistrar() without token should return nil")
	}
	if NewRegistrar(context.Background(), "token") == nil {
		t.Error("NewRegistrar() with token should return a registrar")
	}
}
