package httpupdate_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arthur-debert/batchkit/pkg/batch"
	"github.com/arthur-debert/batchkit/pkg/batch/core"
	"github.com/arthur-debert/batchkit/pkg/batch/httpupdate"
)

func TestApplyUpdateSuccess(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "user-1",
			"email": "a@x.com",
		})
	}))
	defer server.Close()

	client := httpupdate.New(server.URL)
	updated, err := client.ApplyUpdate(context.Background(), "user-1",
		map[string]interface{}{"email": "a@x.com"}, core.MergeShallow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotMethod != http.MethodPatch {
		t.Errorf("expected PATCH, got %s", gotMethod)
	}
	if gotPath != "/users/user-1" {
		t.Errorf("expected /users/user-1, got %s", gotPath)
	}
	if gotBody["merge_strategy"] != "shallow" {
		t.Errorf("expected shallow strategy in body, got %v", gotBody["merge_strategy"])
	}
	if updated["email"] != "a@x.com" {
		t.Errorf("expected the updated record back, got %v", updated)
	}
}

func TestApplyUpdateErrorKinds(t *testing.T) {
	cases := []struct {
		status int
		kind   batch.UpdateErrorKind
	}{
		{http.StatusNotFound, batch.UpdateErrNotFound},
		{http.StatusUnauthorized, batch.UpdateErrUnauthorized},
		{http.StatusForbidden, batch.UpdateErrUnauthorized},
		{http.StatusConflict, batch.UpdateErrConflict},
		{http.StatusBadRequest, batch.UpdateErrValidation},
		{http.StatusUnprocessableEntity, batch.UpdateErrValidation},
		{http.StatusInternalServerError, batch.UpdateErrNetwork},
		{http.StatusBadGateway, batch.UpdateErrNetwork},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			client := httpupdate.New(server.URL)
			_, err := client.ApplyUpdate(context.Background(), "user-1", nil, core.MergeShallow)

			var ue *batch.UpdateError
			if !errors.As(err, &ue) {
				t.Fatalf("expected *batch.UpdateError, got %v", err)
			}
			if ue.Kind != tc.kind {
				t.Errorf("status %d: expected kind %s, got %s", tc.status, tc.kind, ue.Kind)
			}
			if ue.TargetID != "user-1" {
				t.Errorf("expected target recorded, got %s", ue.TargetID)
			}
		})
	}
}

func TestApplyUpdateTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // connection refused from here on

	client := httpupdate.New(server.URL)
	_, err := client.ApplyUpdate(context.Background(), "user-1", nil, core.MergeShallow)

	var ue *batch.UpdateError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *batch.UpdateError, got %v", err)
	}
	if ue.Kind != batch.UpdateErrNetwork {
		t.Errorf("expected network kind, got %s", ue.Kind)
	}
}

func TestApplyUpdateHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := httpupdate.New(server.URL)
	_, err := client.ApplyUpdate(ctx, "user-1", nil, core.MergeShallow)
	if err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
}
