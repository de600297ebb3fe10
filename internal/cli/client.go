package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/viper"
)

// apiClient talks to a running reprosign server.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient() apiClient {
	return apiClient{
		base: strings.TrimRight(viper.GetString("server_url"), "/"),
		http: &http.Client{Timeout: viper.GetDuration("attempt_timeout") + time.Minute},
	}
}

type remoteError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (c apiClient) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("server unreachable").
			WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var remote remoteError
		if json.Unmarshal(data, &remote) == nil && remote.Message != "" {
			return errbuilder.New().
				WithCode(codeForStatus(resp.StatusCode)).
				WithMsg(remote.Message)
		}
		return errbuilder.New().
			WithCode(codeForStatus(resp.StatusCode)).
			WithMsg(fmt.Sprintf("server returned %s", resp.Status))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func codeForStatus(status int) errbuilder.ErrCode {
	switch status {
	case http.StatusBadRequest:
		return errbuilder.CodeInvalidArgument
	case http.StatusNotFound:
		return errbuilder.CodeNotFound
	case http.StatusConflict:
		return errbuilder.CodeAlreadyExists
	case http.StatusForbidden:
		return errbuilder.CodePermissionDenied
	case http.StatusPreconditionFailed:
		return errbuilder.CodeFailedPrecondition
	case http.StatusRequestTimeout:
		return errbuilder.CodeDeadlineExceeded
	case http.StatusUnauthorized:
		return errbuilder.CodeUnauthenticated
	default:
		return errbuilder.CodeInternal
	}
}
