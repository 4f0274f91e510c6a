package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/idemverify/pkg/protocol"
)

func serve(t *testing.T, dir string, requests ...string) []protocol.Response {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetIn(strings.NewReader(strings.Join(requests, "\n") + "\n"))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"serve",
		"--config", filepath.Join(dir, "config.yaml"),
		"--platforms", filepath.Join(dir, "platforms.yaml"),
		"--store", filepath.Join(dir, "state.db"),
		"--log-level", "error",
	})
	require.NoError(t, cmd.Execute())

	var responses []protocol.Response
	dec := json.NewDecoder(&out)
	for dec.More() {
		var r protocol.Response
		require.NoError(t, dec.Decode(&r))
		responses = append(responses, r)
	}
	return responses
}

func request(t *testing.T, id int, method string, params any) string {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	data, err := json.Marshal(protocol.Request{JSONRPC: "2.0", ID: id, Method: method, Params: raw})
	require.NoError(t, err)
	return string(data)
}

func decodeResult(t *testing.T, resp protocol.Response, out any) {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected error: %+v", resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestServeVerifyAndHistory(t *testing.T) {
	dir := t.TempDir()
	specPath := writeFile(t, dir, "web.yaml", fooSpec)
	factsPath := writeFile(t, dir, "facts.yaml", fooFacts("delete"))

	responses := serve(t, dir,
		request(t, 1, protocol.MethodVerify, protocol.VerifyParams{Specs: []string{specPath}, Facts: []string{factsPath}}),
		request(t, 2, protocol.MethodHistoryList, nil),
		request(t, 3, protocol.MethodKinds, nil),
	)
	require.Len(t, responses, 3)

	var vr protocol.VerifyResult
	decodeResult(t, responses[0], &vr)
	assert.Equal(t, "failed", vr.Status)
	assert.Equal(t, 2, vr.Passed)
	assert.Equal(t, 1, vr.Failed)
	require.Len(t, vr.Outcomes, 3)
	var failures []protocol.OutcomeResult
	for _, o := range vr.Outcomes {
		if !o.Passed {
			failures = append(failures, o)
		}
	}
	require.Len(t, failures, 1)
	assert.Equal(t, "file[/etc/foo] action", failures[0].Name)
	assert.Contains(t, failures[0].Message, `actual "delete"`)

	var history []struct{ ID string }
	decodeResult(t, responses[1], &history)
	require.Len(t, history, 1)
	assert.Equal(t, vr.ReportID, history[0].ID)

	var kinds []protocol.KindInfo
	decodeResult(t, responses[2], &kinds)
	assert.NotEmpty(t, kinds)
}

func TestServeErrors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", strings.Replace(fooSpec, `mode: "0644"`, "mode: 0644", 1))

	responses := serve(t, dir,
		request(t, 1, protocol.MethodVerify, protocol.VerifyParams{}),
		request(t, 2, protocol.MethodVerify, protocol.VerifyParams{Specs: []string{bad}}),
		request(t, 3, protocol.MethodVerify, protocol.VerifyParams{Specs: []string{filepath.Join(dir, "missing.yaml")}}),
		request(t, 4, protocol.MethodHistoryShow, protocol.HistoryShowParams{ID: "nope"}),
		request(t, 5, protocol.MethodValidate, protocol.ValidateParams{Specs: []string{bad}}),
	)
	require.Len(t, responses, 5)

	codes := make([]int, 0, 4)
	for _, r := range responses[:4] {
		require.NotNil(t, r.Error)
		codes = append(codes, r.Error.Code)
	}
	assert.Equal(t, []int{
		protocol.CodeInvalidParams,
		protocol.CodeSpecInvalid,
		protocol.CodeInvalidParams,
		protocol.CodeNotFound,
	}, codes)

	var results []protocol.ValidateResult
	decodeResult(t, responses[4], &results)
	require.Len(t, results, 1)
	assert.False(t, results[0].Valid)
}

func TestServeUntilDoneStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveUntilDone(ctx, srv, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
