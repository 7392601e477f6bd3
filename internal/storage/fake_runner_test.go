package storage

import (
	"context"
	"strings"

	"github.com/jradxl/idrived2backend/internal/config"
	"github.com/jradxl/idrived2backend/internal/run"
)

// fakeRunner replays scripted responses in order and records every
// invocation, so tests can assert the exact external command sequence.
type fakeRunner struct {
	calls     [][]string
	responses []fakeResponse
}

type fakeResponse struct {
	result run.Result
	err    error
	// hook runs before the response is returned, with the invocation's
	// arguments; used to simulate the utility's filesystem side effects.
	hook func(args []string)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (run.Result, error) {
	f.calls = append(f.calls, append([]string{name}, args...))

	if len(f.responses) == 0 {
		return run.Result{}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	if resp.hook != nil {
		resp.hook(args)
	}
	return resp.result, resp.err
}

func okResponse(output string) fakeResponse {
	return fakeResponse{result: run.Result{Stdout: output}}
}

// handshakeResponses scripts a successful validate + getServerAddress pair.
func handshakeResponses() []fakeResponse {
	return []fakeResponse{
		okResponse(`<tree message="SUCCESS" desc="VALID ACCOUNT" cnfgstat="SET" enctype="DEFAULT">`),
		okResponse(`<tree message="SUCCESS" cmdUtilityServer="evs1.example.com">`),
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Util: config.UtilConfig{
			Dir:          "/opt/idrive",
			Account:      "acct",
			PasswordFile: "/etc/idrive/password",
		},
		Remote: config.RemoteConfig{Prefix: "backups"},
	}
}

// opOf classifies a recorded invocation by its distinguishing flag.
func opOf(call []string) string {
	hasArg := func(want string) bool {
		for _, a := range call[1:] {
			if a == want {
				return true
			}
		}
		return false
	}
	hasPrefix := func(want string) bool {
		for _, a := range call[1:] {
			if strings.HasPrefix(a, want) {
				return true
			}
		}
		return false
	}

	switch {
	case hasArg("--validate"):
		return "validate"
	case hasArg("--getServerAddress"):
		return "server-address"
	case hasArg("--copy-within"):
		return "copy-within"
	case hasArg("--delete-items"):
		return "delete"
	case hasArg("--deleteTrash"):
		return "purge-trash"
	case hasArg("--auth-list"):
		return "list"
	case hasPrefix("--files-from="):
		return "transfer"
	}
	return "unknown"
}

func argWithPrefix(call []string, prefix string) string {
	for _, a := range call[1:] {
		if strings.HasPrefix(a, prefix) {
			return a
		}
	}
	return ""
}
