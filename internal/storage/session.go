package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jradxl/idrived2backend/internal/config"
	"github.com/jradxl/idrived2backend/internal/parser"
	"github.com/jradxl/idrived2backend/internal/run"
)

// utilName is the transfer utility binary inside EVS_UTIL_DIR.
const utilName = "idevsutil"

// Well-known attributes and markers of idevsutil status replies.
const (
	attrMessage    = "message"
	attrDesc       = "desc"
	attrConfigured = "cnfgstat"
	attrEncType    = "enctype"
	attrServer     = "cmdUtilityServer"

	markerSuccess    = "SUCCESS"
	markerValid      = "VALID ACCOUNT"
	markerConfigured = "SET"
	encPrivate       = "PRIVATE"
)

// Session is the immutable authenticated state shared by every operation:
// the resolved utility path, the account, the auth flags appended to each
// command line and the server the account is homed on. It is produced once
// by Establish and never mutated afterwards.
type Session struct {
	ExecPath string
	Account  string
	AuthArgs []string
	Server   string
}

// Establish runs the handshake: resolve credentials from configuration,
// validate the account and discover the serving endpoint. Each step is a
// hard precondition for the next.
func Establish(ctx context.Context, cfg *config.Config, runner run.Runner, logger *zap.Logger) (*Session, error) {
	if cfg.Util.Dir == "" {
		return nil, &ConfigError{Setting: config.SettingUtilDir}
	}
	if cfg.Util.Account == "" {
		return nil, &ConfigError{Setting: config.SettingAccount}
	}
	if cfg.Util.PasswordFile == "" {
		return nil, &ConfigError{Setting: config.SettingPasswordFile}
	}

	execPath := filepath.Join(cfg.Util.Dir, utilName)
	authArgs := []string{"--password-file=" + cfg.Util.PasswordFile}

	args := append([]string{"--validate", "--user=" + cfg.Util.Account}, authArgs...)
	res, err := runner.Run(ctx, execPath, args...)

	// The utility reports validation results in its output even on failure
	// exits, so the output is parsed before err is considered.
	status := parser.ParseStatus(res.Combined())
	if status == nil {
		if err != nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("account validation produced no status tree: %v", err)}
		}
		return nil, &ProtocolError{Reason: "account validation produced no status tree"}
	}
	if msg := status.Attr(attrMessage); msg != markerSuccess {
		return nil, &AuthError{Reason: fmt.Sprintf("validation returned %q", msg), Output: res.Combined()}
	}
	if desc := status.Attr(attrDesc); desc != markerValid {
		return nil, &AuthError{Reason: fmt.Sprintf("account state is %q", desc), Output: res.Combined()}
	}
	if cnfg := status.Attr(attrConfigured); cnfg != markerConfigured {
		return nil, &AuthError{Reason: fmt.Sprintf("account configuration is %q", cnfg), Output: res.Combined()}
	}

	if status.Attr(attrEncType) == encPrivate {
		if cfg.Util.PvtKeyFile == "" {
			return nil, &ConfigError{Setting: config.SettingPvtKeyFile}
		}
		authArgs = append(authArgs, "--pvt-key="+cfg.Util.PvtKeyFile)
	}

	args = append([]string{"--getServerAddress", cfg.Util.Account}, authArgs...)
	res, err = runner.Run(ctx, execPath, args...)

	status = parser.ParseStatus(res.Combined())
	if status == nil || status.Attr(attrServer) == "" {
		if err != nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("server address missing from response: %v", err)}
		}
		return nil, &ProtocolError{Reason: "server address missing from response"}
	}

	sess := &Session{
		ExecPath: execPath,
		Account:  cfg.Util.Account,
		AuthArgs: authArgs,
		Server:   status.Attr(attrServer),
	}

	logger.Info("session established",
		zap.String("account", sess.Account),
		zap.String("server", sess.Server),
	)

	return sess, nil
}

// remoteBase returns the "<account>@<server>::" prefix of positional
// arguments.
func (s *Session) remoteBase() string {
	return s.Account + "@" + s.Server + "::"
}

// RemotePath builds the positional argument "<account>@<server>::home/<p>".
func (s *Session) RemotePath(p string) string {
	return s.remoteBase() + path.Join("home", p)
}
