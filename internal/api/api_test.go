package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reprosign/internal/adapters"
	"reprosign/internal/app"
	"reprosign/internal/policies"
	"reprosign/internal/ports"
	"reprosign/internal/shared"
	"reprosign/internal/types"
)

// fixedPool always produces the same artifact, so every submission
// reaches consensus.
type fixedPool struct {
	artifact []byte
	size     int
}

func (p fixedPool) Size() int { return p.size }

func (p fixedPool) Provision(ctx context.Context, builderID string) (ports.Sandbox, error) {
	return fixedSandbox{id: builderID + "-sb", artifact: p.artifact}, nil
}

type fixedSandbox struct {
	id       string
	artifact []byte
}

func (s fixedSandbox) ID() string { return s.id }

func (s fixedSandbox) Run(ctx context.Context, spec ports.BuildSpec) (ports.BuildOutput, error) {
	return ports.BuildOutput{
		Digest:   shared.DigestBytes(s.artifact),
		Artifact: s.artifact,
		LogRef:   s.id + "/build.log",
	}, nil
}

func (s fixedSandbox) Destroy() error { return nil }

type openSource struct{}

func (openSource) VerifySource(ctx context.Context, sourceRef, signature string) error {
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *adapters.SoftwareVault) {
	t.Helper()
	ctx := context.Background()

	vault := adapters.NewSoftwareVault()
	root, err := vault.CreateKey(ctx, types.KeyRoleRoot, "")
	require.NoError(t, err)
	repo, err := vault.CreateKey(ctx, types.KeyRoleRepositorySigning, root.ID)
	require.NoError(t, err)
	appKey, err := vault.CreateKey(ctx, types.KeyRoleAppSigning, repo.ID)
	require.NoError(t, err)

	audit, err := adapters.NewFileAuditLog(filepath.Join(t.TempDir(), "audit.log"))
	require.NoError(t, err)

	signingPolicy, err := policies.NewSigningPolicy(2, []string{"alice", "bob"}, time.Hour)
	require.NoError(t, err)

	store := adapters.NewMemoryStore()
	svc := app.NewService(app.Deps{
		Jobs:          store,
		Signing:       store,
		Suspensions:   store,
		Audit:         audit,
		Vault:         vault,
		Pool:          fixedPool{artifact: []byte("served artifact"), size: 3},
		Source:        openSource{},
		SigningPolicy: signingPolicy,
		CeremonyPolicy: policies.CeremonyPolicy{
			Participants: []string{"alice", "bob"},
		},
		Authority: policies.NewAuthorityPolicy(map[string]string{
			"tok-sec": "security-response",
		}),
		SigningKeyID: appKey.ID,
	})

	srv := httptest.NewServer(NewHandler(svc))
	t.Cleanup(srv.Close)
	return srv, vault
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func submitJob(t *testing.T, srv *httptest.Server) submitResponse {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/build-jobs", submitRequest{
		SourceRef:       "git+https://src.example/app@deadbeef",
		SourceSignature: "sig",
		RecipeID:        "release",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var out submitResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestSubmitAndStatusEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	out := submitJob(t, srv)
	require.Equal(t, types.JobStateVerified, out.State)
	require.NotEmpty(t, out.SigningRequestID)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/build-jobs/"+out.JobID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st statusResponse
	require.NoError(t, json.Unmarshal(body, &st))
	require.Equal(t, out.JobID, st.Job.ID)
	require.NotNil(t, st.Decision)
	require.NotNil(t, st.Request)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/build-jobs/absent", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuthorizeEndpointReachesSignature(t *testing.T) {
	srv, vault := newTestServer(t)
	out := submitJob(t, srv)
	digest := out.Decision.WinningDigest
	url := fmt.Sprintf("%s/v1/signing-requests/%s/authorize", srv.URL, out.SigningRequestID)

	resp, body := doJSON(t, http.MethodPost, url, authorizeRequest{
		AuthorizerID: "alice", Decision: "approve", Digest: digest,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doJSON(t, http.MethodPost, url, authorizeRequest{
		AuthorizerID: "bob", Decision: "approve", Digest: digest,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var res authorizeResponse
	require.NoError(t, json.Unmarshal(body, &res))
	require.Equal(t, types.RequestStateSigned, res.State)
	require.NotEmpty(t, res.Signature)

	// The signature checks out against the signing key.
	keys := listKeys(t, srv)
	var appKeyID string
	for _, k := range keys {
		if k.Role == types.KeyRoleAppSigning {
			appKeyID = k.ID
		}
	}
	ok, err := vault.Verify(context.Background(), appKeyID, digest, res.Signature)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAuthorizeEndpointRejectsDigestMismatch(t *testing.T) {
	srv, _ := newTestServer(t)
	out := submitJob(t, srv)
	url := fmt.Sprintf("%s/v1/signing-requests/%s/authorize", srv.URL, out.SigningRequestID)

	resp, _ := doJSON(t, http.MethodPost, url, authorizeRequest{
		AuthorizerID: "alice",
		Decision:     "approve",
		Digest:       shared.DigestBytes([]byte("other artifact")),
	}, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func listKeys(t *testing.T, srv *httptest.Server) []types.KeyRecord {
	t.Helper()
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/keys", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var keys []types.KeyRecord
	require.NoError(t, json.Unmarshal(body, &keys))
	return keys
}

func TestSuspensionEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/suspensions", suspendRequest{
		ArtifactID: "app-1", Reason: "cve",
	}, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	auth := map[string]string{authorityHeader: "tok-sec"}
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/suspensions", suspendRequest{
		ArtifactID: "app-1", Reason: "cve",
	}, auth)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/v1/suspensions/app-1", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/suspensions/app-1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []types.SuspensionRecord
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history, 1)
	require.False(t, history[0].Active)
}

func TestAuditEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	submitJob(t, srv)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/audit", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []types.AuditEntry
	require.NoError(t, json.Unmarshal(body, &entries))
	require.NotEmpty(t, entries)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/audit/verify", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var verify auditVerifyResponse
	require.NoError(t, json.Unmarshal(body, &verify))
	require.True(t, verify.Valid)
	require.Equal(t, len(entries), verify.Entries)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/audit?from=x", nil, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/healthz", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/build-jobs", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
