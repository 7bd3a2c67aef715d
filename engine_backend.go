package fsbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultDirMode is applied by CreateDirectory when SetPermissions is set.
const DefaultDirMode os.FileMode = 0o750

// maxRenameAttempts bounds the "name-N.ext" search under the Rename policy.
const maxRenameAttempts = 10000

// EngineBackend implements [Backend] on top of any [StorageEngine].
type EngineBackend struct {
	scheme      string
	engine      StorageEngine
	baseURL     string
	publicLinks bool
	linkExpiry  time.Duration
	dirMode     os.FileMode
	log         logrus.FieldLogger
	locks       keyLock
}

// BackendOption configures an [EngineBackend].
type BackendOption func(*EngineBackend)

// WithBaseURL makes objects externally addressable as baseURL + "/" + path.
func WithBaseURL(baseURL string) BackendOption {
	return func(b *EngineBackend) { b.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithPublicLinks asks engines implementing [SignedURLGenerator] for
// external URLs valid for expiry.
func WithPublicLinks(expiry time.Duration) BackendOption {
	return func(b *EngineBackend) {
		b.publicLinks = true
		b.linkExpiry = expiry
	}
}

// WithDirMode overrides DefaultDirMode.
func WithDirMode(mode os.FileMode) BackendOption {
	return func(b *EngineBackend) { b.dirMode = mode }
}

// WithBackendLogger sets the logger used for debug output.
func WithBackendLogger(log logrus.FieldLogger) BackendOption {
	return func(b *EngineBackend) { b.log = log }
}

// NewEngineBackend wraps engine as the backend for scheme.
func NewEngineBackend(scheme string, engine StorageEngine, opts ...BackendOption) *EngineBackend {
	b := &EngineBackend{
		scheme:  scheme,
		engine:  engine,
		dirMode: DefaultDirMode,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.WithField("scheme", scheme)
	return b
}

// Engine returns the wrapped engine.
func (b *EngineBackend) Engine() StorageEngine { return b.engine }

// Scheme returns the scheme the backend was created for.
func (b *EngineBackend) Scheme() string { return b.scheme }

// cleanPath normalizes a backend path. The scheme root is ".".
func cleanPath(p string) string {
	c := strings.TrimPrefix(path.Clean("/"+p), "/")
	if c == "" {
		return "."
	}
	return c
}

func cleanObjectPath(p string) (string, error) {
	c := cleanPath(p)
	if c == "." || strings.HasSuffix(p, "/") {
		return "", fmt.Errorf("%w: %q does not name an object", ErrInvalidAddress, p)
	}
	return c, nil
}

// stat classifies the path: nil info means nothing is there.
func (b *EngineBackend) stat(ctx context.Context, p string) (*EntryInfo, error) {
	info, err := b.engine.Stat(ctx, p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, classifyError(err)
	}
	return info, nil
}

// target picks the path a write under policy should land on.
func (b *EngineBackend) target(ctx context.Context, p string, policy ConflictPolicy) (string, error) {
	info, err := b.stat(ctx, p)
	if err != nil {
		return "", err
	}
	if info == nil {
		return p, nil
	}
	switch policy {
	case Replace:
		if info.IsDir {
			return "", ErrIsDir
		}
		return p, nil
	case Fail:
		return "", ErrConflict
	case Rename:
		return b.freeVariant(ctx, p)
	default:
		return "", fmt.Errorf("%w: conflict policy %d", ErrInvalid, policy)
	}
}

// NumberedPath returns the n-th Rename variant of p: "dir/a.txt" becomes
// "dir/a-n.txt". Names without an extension, and dotfiles, get "-n"
// appended.
func NumberedPath(p string, n int) string {
	dir, base := path.Split(p)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem, ext = base, ""
	}
	return dir + stem + "-" + strconv.Itoa(n) + ext
}

// freeVariant finds the first numbered sibling of p that is unused.
func (b *EngineBackend) freeVariant(ctx context.Context, p string) (string, error) {
	for n := 1; n <= maxRenameAttempts; n++ {
		candidate := NumberedPath(p, n)
		info, err := b.stat(ctx, candidate)
		if err != nil {
			return "", err
		}
		if info == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free name for %q", ErrConflict, p)
}

// write runs put against the chosen target while holding the lock for the
// target's directory, so concurrent writers never pick the same name.
func (b *EngineBackend) write(ctx context.Context, p string, policy ConflictPolicy, put func(target string) error) (string, error) {
	name, err := cleanObjectPath(p)
	if err != nil {
		return "", err
	}

	unlock := b.locks.lock(path.Dir(name))
	defer unlock()

	target, err := b.target(ctx, name, policy)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fresh := !b.Exists(ctx, target)
	if err := put(target); err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			err = classifyError(err)
		}
		if !fresh {
			return "", err
		}
		if rmErr := b.engine.Remove(context.WithoutCancel(ctx), target); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			b.log.WithError(rmErr).WithField("path", target).Warn("Failed to remove partial object")
		}
		return "", err
	}

	b.log.WithFields(logrus.Fields{
		"path":   target,
		"policy": policy.String(),
	}).Debug("Wrote object")
	return target, nil
}

// Write implements Backend.
func (b *EngineBackend) Write(ctx context.Context, p string, data []byte, policy ConflictPolicy) (string, error) {
	return b.write(ctx, p, policy, func(target string) error {
		return b.copyIn(ctx, target, bytes.NewReader(data))
	})
}

// WriteStream implements StreamBackend. Engines implementing
// [StreamWriter] receive the reader directly.
func (b *EngineBackend) WriteStream(ctx context.Context, p string, r io.Reader, policy ConflictPolicy) (string, error) {
	return b.write(ctx, p, policy, func(target string) error {
		if sw, ok := b.engine.(StreamWriter); ok {
			return sw.Put(ctx, target, r)
		}
		return b.copyIn(ctx, target, r)
	})
}

func (b *EngineBackend) copyIn(ctx context.Context, target string, r io.Reader) error {
	w, err := b.engine.Create(ctx, target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Read implements Backend.
func (b *EngineBackend) Read(ctx context.Context, p string) ([]byte, error) {
	name := cleanPath(p)
	info, err := b.stat(ctx, name)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrNotFound
	}
	if info.IsDir {
		return nil, ErrIsDir
	}

	var rc io.ReadCloser
	if sr, ok := b.engine.(StreamReader); ok {
		rc, err = sr.Get(ctx, name)
	} else {
		rc, err = b.engine.Open(ctx, name)
	}
	if err != nil {
		return nil, classifyError(err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, classifyError(err)
	}
	return data, nil
}

// Delete implements Backend.
func (b *EngineBackend) Delete(ctx context.Context, p string) error {
	name := cleanPath(p)
	info, err := b.stat(ctx, name)
	if err != nil {
		return err
	}
	if info == nil {
		return ErrNotFound
	}
	if info.IsDir {
		return ErrIsDir
	}
	if err := b.engine.Remove(ctx, name); err != nil {
		return classifyError(err)
	}
	b.log.WithField("path", name).Debug("Deleted object")
	return nil
}

// Exists implements Backend.
func (b *EngineBackend) Exists(ctx context.Context, p string) bool {
	info, err := b.engine.Stat(ctx, cleanPath(p))
	return err == nil && !info.IsDir
}

// ExternalURL implements Backend.
func (b *EngineBackend) ExternalURL(ctx context.Context, p string) (string, bool) {
	name := cleanPath(p)
	if name == "." {
		name = ""
	}
	if b.baseURL != "" {
		segs := strings.Split(name, "/")
		for i, s := range segs {
			segs[i] = url.PathEscape(s)
		}
		return b.baseURL + "/" + strings.Join(segs, "/"), true
	}
	if !b.publicLinks {
		return "", false
	}
	gen, ok := b.engine.(SignedURLGenerator)
	if !ok {
		return "", false
	}
	link, err := gen.SignedURL(ctx, name, b.linkExpiry)
	if err != nil || link == "" {
		b.log.WithError(err).WithField("path", name).Debug("No public link")
		return "", false
	}
	return link, true
}

// CreateDirectory implements Backend.
func (b *EngineBackend) CreateDirectory(ctx context.Context, p string, opts DirOptions) error {
	name := cleanPath(p)
	if name == "." {
		return nil
	}
	info, err := b.stat(ctx, name)
	if err != nil {
		return err
	}
	if info != nil && !info.IsDir {
		return ErrNotDir
	}
	if info == nil && !opts.CreateParents {
		if parent := path.Dir(name); parent != "." && !b.DirectoryExists(ctx, parent) {
			return fmt.Errorf("%w: parent directory missing", ErrBackendUnavailable)
		}
	}
	if err := b.engine.MkdirAll(ctx, name); err != nil {
		return classifyError(err)
	}
	if opts.SetPermissions {
		if ch, ok := b.engine.(Chmoder); ok {
			if err := ch.Chmod(ctx, name, b.dirMode); err != nil {
				return classifyError(err)
			}
		}
	}
	b.log.WithField("path", name).Debug("Prepared directory")
	return nil
}

// DeleteDirectoryRecursive implements Backend.
func (b *EngineBackend) DeleteDirectoryRecursive(ctx context.Context, p string) error {
	name := cleanPath(p)
	if name == "." {
		return fmt.Errorf("%w: refusing to delete the scheme root", ErrInvalid)
	}
	info, err := b.stat(ctx, name)
	if err != nil {
		return err
	}
	if info == nil {
		return ErrNotFound
	}
	if !info.IsDir {
		return ErrNotDir
	}
	if err := b.engine.Remove(ctx, name); err != nil {
		return classifyError(err)
	}
	return nil
}

// DirectoryExists implements Backend.
func (b *EngineBackend) DirectoryExists(ctx context.Context, p string) bool {
	info, err := b.engine.Stat(ctx, cleanPath(p))
	return err == nil && info.IsDir
}

// WalkObjects implements Walker.
func (b *EngineBackend) WalkObjects(ctx context.Context, dir string, fn func(path string, info *EntryInfo) error) error {
	return Walk(ctx, b.engine, cleanPath(dir), func(p string, info *EntryInfo, err error) error {
		if err != nil {
			return classifyError(err)
		}
		if info.IsDir {
			return nil
		}
		return fn(cleanPath(p), info)
	})
}

// Copy duplicates src to dst inside this backend, using the engine's
// [Copier] when available.
func (b *EngineBackend) Copy(ctx context.Context, src, dst string, policy ConflictPolicy) (string, error) {
	from := cleanPath(src)
	if !b.Exists(ctx, from) {
		return "", ErrNotFound
	}
	cp, ok := b.engine.(Copier)
	if !ok {
		data, err := b.Read(ctx, from)
		if err != nil {
			return "", err
		}
		return b.Write(ctx, dst, data, policy)
	}
	return b.write(ctx, dst, policy, func(target string) error {
		return cp.Copy(ctx, from, target)
	})
}

// Sweep implements Sweeper for engines that can reclaim storage.
func (b *EngineBackend) Sweep(ctx context.Context) (int, error) {
	sw, ok := b.engine.(Sweeper)
	if !ok {
		return 0, ErrNotSupported
	}
	return sw.Sweep(ctx)
}

// Compile-time interface checks.
var (
	_ Backend       = (*EngineBackend)(nil)
	_ StreamBackend = (*EngineBackend)(nil)
	_ Walker        = (*EngineBackend)(nil)
	_ Sweeper       = (*EngineBackend)(nil)
)
