// Package storage adapts the idevsutil transfer utility into a conventional
// put/get/list/delete object store for the backup pipeline. The utility
// preserves the local path of every upload, so storing a file at a chosen
// remote path takes a multi-step relocation sequence rather than a single
// call; see Put.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jradxl/idrived2backend/internal/config"
	"github.com/jradxl/idrived2backend/internal/parser"
	"github.com/jradxl/idrived2backend/internal/run"
)

// SizeUnknown is returned by Query for names absent from the remote listing.
// A missing remote file is an expected outcome for a backup probe, not an
// error.
const SizeUnknown int64 = -1

// stagingMarker prefixes every throwaway staging directory the upload saga
// creates under the remote prefix.
const stagingMarker = "stage-"

// Client implements Adapter on top of the transfer utility. Operations are
// strictly sequential within one client: each blocks on its external
// invocations, and later saga steps depend on the remote side effects of
// earlier ones. Concurrent clients are independent and uncoordinated.
type Client struct {
	cfg    *config.Config
	logger *zap.Logger
	runner run.Runner

	sess   *Session
	tmpDir string

	metrics struct {
		invocations     *prometheus.CounterVec
		stepFailures    *prometheus.CounterVec
		bytesUploaded   prometheus.Counter
		bytesDownloaded prometheus.Counter
		uploadLatency   prometheus.Histogram
		downloadLatency prometheus.Histogram
		listFallbacks   prometheus.Counter
	}
}

var _ Adapter = (*Client)(nil)

func NewClient(cfg *config.Config, logger *zap.Logger, runner run.Runner, reg prometheus.Registerer) (*Client, error) {
	tmpDir, err := os.MkdirTemp("", "evs-adapter-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary directory: %w", err)
	}

	c := &Client{
		cfg:    cfg,
		logger: logger,
		runner: runner,
		tmpDir: tmpDir,
	}

	c.metrics.invocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evs_invocations_total",
		Help: "Total transfer-utility invocations by operation",
	}, []string{"operation"})
	c.metrics.stepFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evs_upload_step_failures_total",
		Help: "Total upload saga step failures by step name",
	}, []string{"step"})
	c.metrics.bytesUploaded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evs_bytes_uploaded_total",
		Help: "Total bytes uploaded to the remote store",
	})
	c.metrics.bytesDownloaded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evs_bytes_downloaded_total",
		Help: "Total bytes downloaded from the remote store",
	})
	c.metrics.uploadLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "evs_upload_duration_seconds",
		Help:    "End-to-end upload saga duration",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
	c.metrics.downloadLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "evs_download_duration_seconds",
		Help:    "End-to-end download duration",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
	c.metrics.listFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evs_list_fallbacks_total",
		Help: "Total listings degraded to an empty result after a failed invocation",
	})

	if reg != nil {
		reg.MustRegister(
			c.metrics.invocations,
			c.metrics.stepFailures,
			c.metrics.bytesUploaded,
			c.metrics.bytesDownloaded,
			c.metrics.uploadLatency,
			c.metrics.downloadLatency,
			c.metrics.listFallbacks,
		)
	}

	return c, nil
}

// ensureSession lazily establishes the session on first use and reuses it
// for the client's remaining lifetime. There is no re-handshake or expiry
// detection.
func (c *Client) ensureSession(ctx context.Context) (*Session, error) {
	if c.sess != nil {
		return c.sess, nil
	}

	sess, err := Establish(ctx, c.cfg, c.runner, c.logger)
	if err != nil {
		return nil, err
	}
	c.sess = sess
	return sess, nil
}

func (c *Client) Connect(ctx context.Context) error {
	_, err := c.ensureSession(ctx)
	return err
}

// invoke runs the utility with the session auth flags prepended.
func (c *Client) invoke(ctx context.Context, op string, sess *Session, args ...string) (run.Result, error) {
	c.metrics.invocations.WithLabelValues(op).Inc()
	full := append(append([]string{}, sess.AuthArgs...), args...)
	return c.runner.Run(ctx, sess.ExecPath, full...)
}

// writeFileList writes one path per line into a fresh temporary file. The
// utility takes batch arguments from a file because argv has length and
// quoting limits. The caller removes it via the returned cleanup func.
func (c *Client) writeFileList(paths []string) (string, func(), error) {
	f, err := os.CreateTemp(c.tmpDir, "filelist-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create file list: %w", err)
	}

	for _, p := range paths {
		if _, err := fmt.Fprintln(f, p); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", nil, fmt.Errorf("failed to write file list: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("failed to write file list: %w", err)
	}

	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

// uploadList uploads the listed local paths to destDir. An empty list is a
// legitimate call: it is the only primitive that materializes a remote
// directory, because the utility creates directories as an upload side
// effect and offers no standalone mkdir.
func (c *Client) uploadList(ctx context.Context, sess *Session, paths []string, destDir string) (string, error) {
	list, cleanup, err := c.writeFileList(paths)
	if err != nil {
		return "", err
	}
	defer cleanup()

	res, err := c.invoke(ctx, "upload", sess,
		"--xml-output",
		"--files-from="+list,
		sess.RemotePath(destDir),
	)
	if err != nil {
		return res.Combined(), fmt.Errorf("upload to %s failed: %w", destDir, err)
	}
	return res.Combined(), nil
}

// stagingPrefix derives a throwaway staging directory name from the local
// directory holding the source file. Backup frameworks hand us sources in
// per-run scratch directories, so the base name is unique enough to avoid
// collisions between concurrent uploads; it is not cryptographic.
func stagingPrefix(localDir string) string {
	token := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, filepath.Base(localDir))

	if strings.Trim(token, "-") == "" {
		token = strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return stagingMarker + token
}

// IsStagingName reports whether a listed entry is a leftover staging
// directory from an interrupted upload.
func IsStagingName(name string) bool {
	return strings.HasPrefix(name, stagingMarker)
}

// putStep is one entry of the upload sequence. Steps run strictly in order
// and a failure is not rolled back: the remote store is left in whatever
// intermediate state the completed steps produced, for the janitor or a
// later run to reclaim.
type putStep struct {
	name string
	run  func() (output string, err error)
}

// Put stores localPath under the remote prefix as remoteName.
//
// The utility always uploads a file to its own local path and cannot place
// it at an arbitrary remote path, so Put is a five-invocation sequence:
// rename the source in place to the target name, upload it into a derived
// staging directory (where it lands at the preserved local path),
// materialize the intended directory with an empty upload, copy the staged
// file server-side into the intended directory, then delete the staging
// directory and purge it from trash so staging artifacts do not consume
// quota.
func (c *Client) Put(ctx context.Context, localPath, remoteName string) error {
	sess, err := c.ensureSession(ctx)
	if err != nil {
		return err
	}

	start := time.Now()

	localDir := filepath.Dir(localPath)
	staged := filepath.Join(localDir, remoteName)
	prefix := path.Join(c.cfg.Remote.Prefix, stagingPrefix(localDir))

	// Path preservation lands the staged upload at the staging prefix plus
	// the file's absolute local path.
	stagedRemote := path.Join(prefix, strings.TrimPrefix(localDir, "/"), remoteName)

	var size int64

	steps := []putStep{
		{name: "stage", run: func() (string, error) {
			if staged != localPath {
				if err := os.Rename(localPath, staged); err != nil {
					return "", err
				}
			}
			if info, err := os.Stat(staged); err == nil {
				size = info.Size()
			}
			return "", nil
		}},
		{name: "stage-upload", run: func() (string, error) {
			return c.uploadList(ctx, sess, []string{staged}, prefix)
		}},
		{name: "create-dir", run: func() (string, error) {
			// Copy-within does not create missing destination directories,
			// so the target must exist before the next step.
			return c.uploadList(ctx, sess, nil, c.cfg.Remote.Prefix)
		}},
		{name: "copy-within", run: func() (string, error) {
			res, err := c.invoke(ctx, "copy-within", sess,
				"--copy-within",
				sess.RemotePath(stagedRemote),
				sess.RemotePath(c.cfg.Remote.Prefix),
			)
			if err != nil {
				return res.Combined(), fmt.Errorf("copy-within failed: %w", err)
			}
			return res.Combined(), nil
		}},
		{name: "delete-staging", run: func() (string, error) {
			return c.deleteItems(ctx, sess, c.cfg.Remote.Prefix, []string{path.Base(prefix)})
		}},
		{name: "purge-trash", run: func() (string, error) {
			// Deletion only moves the staging directory to the service
			// trash, where it still counts against quota.
			res, err := c.invoke(ctx, "purge-trash", sess,
				"--deleteTrash",
				sess.RemotePath(prefix),
			)
			if err != nil {
				return res.Combined(), fmt.Errorf("trash purge failed: %w", err)
			}
			return res.Combined(), nil
		}},
	}

	for i, step := range steps {
		output, err := step.run()
		if err != nil {
			c.metrics.stepFailures.WithLabelValues(step.name).Inc()
			c.logger.Error("upload step failed",
				zap.Int("step", i+1),
				zap.String("name", step.name),
				zap.String("remote_name", remoteName),
				zap.Error(err),
			)
			return &TransferError{Step: i + 1, Name: step.name, Output: output, Err: err}
		}
	}

	duration := time.Since(start)
	c.metrics.bytesUploaded.Add(float64(size))
	c.metrics.uploadLatency.Observe(duration.Seconds())

	c.logger.Info("upload completed",
		zap.String("remote_name", remoteName),
		zap.Int64("size_bytes", size),
		zap.Duration("duration", duration),
	)

	return nil
}

// Get downloads remoteName into localPath. The utility reconstructs the full
// remote path under its target directory instead of flattening it, so the
// download goes into a fresh scratch directory and the file is moved into
// place afterwards. The scratch directory is removed on every path.
func (c *Client) Get(ctx context.Context, remoteName, localPath string) error {
	sess, err := c.ensureSession(ctx)
	if err != nil {
		return err
	}

	start := time.Now()

	scratch, err := os.MkdirTemp(c.tmpDir, "fetch-")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	remote := path.Join(c.cfg.Remote.Prefix, remoteName)
	list, cleanup, err := c.writeFileList([]string{remote})
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := c.invoke(ctx, "download", sess,
		"--xml-output",
		"--files-from="+list,
		sess.remoteBase()+"home/",
		scratch,
	)
	if err != nil {
		return &TransferError{Step: 1, Name: "download", Output: res.Combined(), Err: err}
	}

	downloaded := filepath.Join(scratch, filepath.FromSlash(remote))
	info, err := os.Stat(downloaded)
	if err != nil {
		return &NotFoundError{Path: remote}
	}

	if err := moveFile(downloaded, localPath); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", remoteName, err)
	}

	duration := time.Since(start)
	c.metrics.bytesDownloaded.Add(float64(info.Size()))
	c.metrics.downloadLatency.Observe(duration.Seconds())

	c.logger.Info("download completed",
		zap.String("remote_name", remoteName),
		zap.Int64("size_bytes", info.Size()),
		zap.Duration("duration", duration),
	)

	return nil
}

// moveFile renames src to dst, falling back to a copy when the rename
// crosses filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	return os.Remove(src)
}

// List returns the entries under the remote prefix. A failed invocation
// degrades to an empty listing: the utility legitimately reports nothing for
// an empty directory, and output alone cannot distinguish "empty" from
// "unreachable".
func (c *Client) List(ctx context.Context) ([]parser.Entry, error) {
	sess, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.invoke(ctx, "list", sess,
		"--auth-list",
		sess.RemotePath(c.cfg.Remote.Prefix),
	)
	if err != nil {
		c.metrics.listFallbacks.Inc()
		c.logger.Warn("listing failed, treating as empty",
			zap.String("prefix", c.cfg.Remote.Prefix),
			zap.Error(err),
		)
		return nil, nil
	}

	return parser.ParseListing(res.Combined()), nil
}

// Query returns the remote size of remoteName, or SizeUnknown when absent.
func (c *Client) Query(ctx context.Context, remoteName string) (int64, error) {
	sizes, err := c.QueryMany(ctx, []string{remoteName})
	if err != nil {
		return SizeUnknown, err
	}
	return sizes[remoteName], nil
}

// QueryMany answers for a batch of names with a single listing invocation.
// A name absent from the listing always maps to SizeUnknown.
func (c *Client) QueryMany(ctx context.Context, remoteNames []string) (map[string]int64, error) {
	entries, err := c.List(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]int64, len(entries))
	for _, e := range entries {
		byName[e.Name] = e.Size
	}

	sizes := make(map[string]int64, len(remoteNames))
	for _, name := range remoteNames {
		size, ok := byName[name]
		if !ok {
			size = SizeUnknown
		}
		sizes[name] = size
	}
	return sizes, nil
}

func (c *Client) Delete(ctx context.Context, remoteName string) error {
	return c.DeleteMany(ctx, []string{remoteName})
}

// DeleteMany removes a batch of remote files in one invocation. There is no
// existence check beforehand; reporting a nonexistent path is the utility's
// problem, not the adapter's.
func (c *Client) DeleteMany(ctx context.Context, remoteNames []string) error {
	sess, err := c.ensureSession(ctx)
	if err != nil {
		return err
	}

	output, err := c.deleteItems(ctx, sess, c.cfg.Remote.Prefix, remoteNames)
	if err != nil {
		return &TransferError{Step: 1, Name: "delete", Output: output, Err: err}
	}
	return nil
}

// deleteItems issues one delete-items invocation for the named paths,
// resolved against dir.
func (c *Client) deleteItems(ctx context.Context, sess *Session, dir string, names []string) (string, error) {
	list, cleanup, err := c.writeFileList(names)
	if err != nil {
		return "", err
	}
	defer cleanup()

	res, err := c.invoke(ctx, "delete", sess,
		"--delete-items",
		"--files-from="+list,
		sess.RemotePath(dir),
	)
	if err != nil {
		return res.Combined(), fmt.Errorf("delete failed: %w", err)
	}
	return res.Combined(), nil
}

// PurgeTrash permanently removes a deleted path from the service trash.
func (c *Client) PurgeTrash(ctx context.Context, remoteName string) error {
	sess, err := c.ensureSession(ctx)
	if err != nil {
		return err
	}

	res, err := c.invoke(ctx, "purge-trash", sess,
		"--deleteTrash",
		sess.RemotePath(path.Join(c.cfg.Remote.Prefix, remoteName)),
	)
	if err != nil {
		return &TransferError{Step: 1, Name: "purge-trash", Output: res.Combined(), Err: fmt.Errorf("trash purge failed: %w", err)}
	}
	return nil
}

// Close removes local temporary state. The session itself needs no
// teardown; it dies with the process.
func (c *Client) Close() error {
	c.sess = nil
	if err := os.RemoveAll(c.tmpDir); err != nil {
		c.logger.Warn("failed to remove temporary directory",
			zap.String("dir", c.tmpDir),
			zap.Error(err),
		)
	}
	return nil
}
