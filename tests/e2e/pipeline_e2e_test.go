package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"reprosign/internal/api"
	"reprosign/internal/types"
	"reprosign/tests/testutil"
)

const e2eRecipes = `
recipes:
  - id: release
    command: ["sh", "-c", "printf 'release build of %s' \"$REPROSIGN_SOURCE_REF\" > artifact.bin"]
    output: artifact.bin
`

// TestHTTPPipeline drives the whole workflow over the wire: submit a
// build against real sandboxes, approve the signing request as two
// authorizers, suspend and lift the signed artifact, and finally
// verify the audit chain through the API.
func TestHTTPPipeline(t *testing.T) {
	pub := testutil.NewPublisher(t)
	fx := testutil.NewService(t, testutil.ServiceConfig{
		RecipesYAML: e2eRecipes,
		Publisher:   pub,
	})
	srv := httptest.NewServer(api.NewHandler(fx.Service))
	t.Cleanup(srv.Close)

	sourceRef := "git+https://src.example/app@77aa00"
	var submitted struct {
		JobID            string `json:"job_id"`
		State            string `json:"state"`
		SigningRequestID string `json:"signing_request_id"`
		Decision         struct {
			WinningDigest string `json:"winning_digest"`
		} `json:"decision"`
	}
	postJSON(t, srv, "/v1/build-jobs", map[string]any{
		"source_ref":       sourceRef,
		"source_signature": pub.Sign(sourceRef),
		"recipe_id":        "release",
	}, http.StatusCreated, &submitted)
	require.Equal(t, string(types.JobStateVerified), submitted.State)
	require.NotEmpty(t, submitted.SigningRequestID)

	digest := submitted.Decision.WinningDigest
	authPath := fmt.Sprintf("/v1/signing-requests/%s/authorize", submitted.SigningRequestID)

	var voted struct {
		State     string `json:"state"`
		Signature string `json:"signature"`
	}
	postJSON(t, srv, authPath, map[string]any{
		"authorizer_id": "alice", "decision": "approve", "digest": digest,
	}, http.StatusOK, &voted)
	require.Equal(t, string(types.RequestStateAwaitingQuorum), voted.State)

	postJSON(t, srv, authPath, map[string]any{
		"authorizer_id": "bob", "decision": "approve", "digest": digest,
	}, http.StatusOK, &voted)
	require.Equal(t, string(types.RequestStateSigned), voted.State)
	require.NotEmpty(t, voted.Signature)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/suspensions",
		bytes.NewBufferString(fmt.Sprintf(`{"artifact_id":%q,"reason":"incident"}`, digest)))
	require.NoError(t, err)
	req.Header.Set("X-Authority-Token", "tok-sec")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req, err = http.NewRequest(http.MethodDelete, srv.URL+"/v1/suspensions/"+digest, nil)
	require.NoError(t, err)
	req.Header.Set("X-Authority-Token", "tok-sec")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var verify struct {
		Entries int  `json:"entries"`
		Valid   bool `json:"valid"`
	}
	getJSON(t, srv, "/v1/audit/verify", &verify)
	require.True(t, verify.Valid)
	require.Greater(t, verify.Entries, 8)
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any, wantStatus int, out any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func getJSON(t *testing.T, srv *httptest.Server, path string, out any) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}
