package fsbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultScheme is used for writes whose address hint is empty.
const DefaultScheme = "public"

// DeleteOutcome reports which path Store.Delete took.
type DeleteOutcome int

const (
	// DeletedManaged means a Record was found and removed.
	DeletedManaged DeleteOutcome = iota + 1
	// DeletedUnmanaged means the object was removed from its backend only.
	DeletedUnmanaged
)

func (o DeleteOutcome) String() string {
	switch o {
	case DeletedManaged:
		return "managed"
	case DeletedUnmanaged:
		return "unmanaged"
	default:
		return "none"
	}
}

// WriteResult is returned by Store.WriteManaged.
type WriteResult struct {
	// Address is where the object ended up. Under the Rename policy it can
	// differ from the requested address.
	Address string
	// RecordID is the ID of the Record created for Address.
	RecordID string
}

// Store is the entry point for callers: it resolves addresses to backends
// through a Registry and keeps managed records in an Index.
type Store struct {
	registry      *Registry
	index         Index
	defaultScheme string
	sanitizer     Sanitizer
	deleteObjects bool
	log           logrus.FieldLogger
	observer      Observer
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultScheme sets the scheme used when a write has no address hint.
func WithDefaultScheme(scheme string) Option {
	return func(s *Store) { s.defaultScheme = scheme }
}

// WithLogger sets the Store logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) { s.log = log }
}

// WithObserver installs an operation observer, typically metrics.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithSanitizer replaces DefaultSanitizer for ReadAndMirror.
func WithSanitizer(san Sanitizer) Option {
	return func(s *Store) { s.sanitizer = san }
}

// WithDeleteManagedObjects controls whether deleting a managed address also
// removes the underlying object. The default is true.
func WithDeleteManagedObjects(v bool) Option {
	return func(s *Store) { s.deleteObjects = v }
}

// New creates a Store. index may be nil, in which case managed writes fail
// with ErrNotSupported and every delete is unmanaged.
func New(registry *Registry, index Index, opts ...Option) *Store {
	s := &Store{
		registry:      registry,
		index:         index,
		defaultScheme: DefaultScheme,
		sanitizer:     DefaultSanitizer,
		deleteObjects: true,
		log:           logrus.StandardLogger(),
		observer:      nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the registry the Store dispatches through.
func (s *Store) Registry() *Registry { return s.registry }

// DefaultScheme returns the scheme used for empty address hints.
func (s *Store) DefaultScheme() string { return s.defaultScheme }

// done reports the operation to the observer and wraps err.
func (s *Store) done(op, address, scheme string, start time.Time, err error) error {
	s.observer.Observe(op, scheme, err, time.Since(start))
	if err == nil {
		return nil
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	return &OpError{Op: op, Address: address, Err: err}
}

// resolveHint picks the backend and target address for a write. An empty
// hint means the default scheme; a hint without a file name gets a
// generated one.
func (s *Store) resolveHint(hint string) (Backend, Address, error) {
	if hint == "" {
		hint = s.defaultScheme + schemeSep
	}
	b, addr, err := s.registry.Resolve(hint)
	if err != nil {
		return nil, addr, err
	}
	if addr.Path == "" || strings.HasSuffix(addr.Path, "/") {
		addr = addr.WithPath(addr.Path + generatedName())
	}
	return b, addr.Canonical(), nil
}

func generatedName() string {
	return "file-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12] + ".txt"
}

// WriteManaged writes data near hint with the Rename policy and creates a
// Record for the final address. A name whose record outlived its object
// counts as taken, and the next numbered name is tried. If no record can
// be created the object is removed again.
func (s *Store) WriteManaged(ctx context.Context, hint string, data []byte) (WriteResult, error) {
	const op = "write_managed"
	start := time.Now()

	b, addr, err := s.resolveHint(hint)
	if err != nil {
		return WriteResult{}, s.done(op, hint, addr.Scheme, start, err)
	}
	if s.index == nil {
		return WriteResult{}, s.done(op, hint, addr.Scheme, start, ErrNotSupported)
	}

	used, err := b.Write(ctx, addr.Path, data, Rename)
	if err != nil {
		return WriteResult{}, s.done(op, hint, addr.Scheme, start, err)
	}
	rec, err := s.claim(ctx, b, addr.WithPath(used), data)
	for n := 1; errors.Is(err, ErrConflict) && n <= maxRenameAttempts; n++ {
		used, err = b.Write(ctx, NumberedPath(addr.Path, n), data, Fail)
		switch {
		case errors.Is(err, ErrConflict):
			continue
		case err != nil:
			return WriteResult{}, s.done(op, hint, addr.Scheme, start, err)
		}
		rec, err = s.claim(ctx, b, addr.WithPath(used), data)
	}
	if err != nil {
		return WriteResult{}, s.done(op, hint, addr.Scheme, start, err)
	}

	s.log.WithFields(logrus.Fields{
		"address":   rec.Address,
		"record_id": rec.ID,
		"size":      rec.Size,
	}).Info("Saved managed object")

	return WriteResult{Address: rec.Address, RecordID: rec.ID}, s.done(op, hint, addr.Scheme, start, nil)
}

// claim creates the record for an object just written at addr, removing
// the object if that fails.
func (s *Store) claim(ctx context.Context, b Backend, addr Address, data []byte) (*Record, error) {
	rec, err := s.index.Create(ctx, Record{
		Address:  addr.String(),
		Filename: addr.Base(),
		Size:     int64(len(data)),
	})
	if err != nil {
		if delErr := b.Delete(context.WithoutCancel(ctx), addr.Path); delErr != nil {
			s.log.WithError(delErr).WithField("address", addr.String()).Warn("Failed to roll back managed write")
		}
		return nil, err
	}
	return rec, nil
}

// WriteUnmanaged writes data to hint, replacing any existing object. No
// Record is created.
func (s *Store) WriteUnmanaged(ctx context.Context, hint string, data []byte) (string, error) {
	return s.writeUnmanaged(ctx, "write_unmanaged", hint, bytes.NewReader(data), Replace)
}

// WriteUnmanagedStream is WriteUnmanaged for a reader. Backends that
// implement StreamBackend receive the stream without buffering.
func (s *Store) WriteUnmanagedStream(ctx context.Context, hint string, r io.Reader) (string, error) {
	return s.writeUnmanaged(ctx, "write_stream", hint, r, Replace)
}

func (s *Store) writeUnmanaged(ctx context.Context, op, hint string, r io.Reader, policy ConflictPolicy) (string, error) {
	start := time.Now()

	b, addr, err := s.resolveHint(hint)
	if err != nil {
		return "", s.done(op, hint, addr.Scheme, start, err)
	}

	var used string
	if sb, ok := b.(StreamBackend); ok {
		used, err = sb.WriteStream(ctx, addr.Path, r, policy)
	} else {
		var data []byte
		if data, err = io.ReadAll(r); err == nil {
			used, err = b.Write(ctx, addr.Path, data, policy)
		}
	}
	if err != nil {
		return "", s.done(op, hint, addr.Scheme, start, err)
	}

	final := addr.WithPath(used).String()
	s.log.WithField("address", final).Info("Saved unmanaged object")
	return final, s.done(op, hint, addr.Scheme, start, nil)
}

// Read returns the bytes stored at address.
func (s *Store) Read(ctx context.Context, address string) ([]byte, error) {
	const op = "read"
	start := time.Now()

	b, addr, err := s.registry.Resolve(address)
	if err != nil {
		return nil, s.done(op, address, addr.Scheme, start, err)
	}
	data, err := b.Read(ctx, addr.Path)
	return data, s.done(op, address, addr.Scheme, start, err)
}

// sameBackendCopier is implemented by backends that can copy internally.
type sameBackendCopier interface {
	Copy(ctx context.Context, src, dst string, policy ConflictPolicy) (string, error)
}

// ReadAndMirror copies the object at source into destinationScheme under a
// sanitized version of its file name, renaming on conflict. The copy is
// unmanaged. An empty destinationScheme selects the default scheme.
func (s *Store) ReadAndMirror(ctx context.Context, source, destinationScheme string) (string, error) {
	const op = "mirror"
	start := time.Now()

	src, srcAddr, err := s.registry.Resolve(source)
	if err != nil {
		return "", s.done(op, source, srcAddr.Scheme, start, err)
	}
	if destinationScheme == "" {
		destinationScheme = s.defaultScheme
	}
	destinationScheme = strings.ToLower(destinationScheme)
	dst, ok := s.registry.Lookup(destinationScheme)
	if !ok {
		return "", s.done(op, source, srcAddr.Scheme, start, fmt.Errorf("%w: %q", ErrUnknownScheme, destinationScheme))
	}

	name := s.sanitizer.SafeName(srcAddr.Path)

	var used string
	if c, ok := src.(sameBackendCopier); ok && src == dst {
		used, err = c.Copy(ctx, srcAddr.Path, name, Rename)
	} else {
		var data []byte
		if data, err = src.Read(ctx, srcAddr.Path); err == nil {
			used, err = dst.Write(ctx, name, data, Rename)
		}
	}
	if err != nil {
		return "", s.done(op, source, srcAddr.Scheme, start, err)
	}

	final := Address{Scheme: destinationScheme, Path: used}.String()
	s.log.WithFields(logrus.Fields{
		"source":  source,
		"address": final,
	}).Info("Mirrored object")
	return final, s.done(op, source, srcAddr.Scheme, start, nil)
}

// Delete removes the object at address. A managed address loses its Record
// (and, unless disabled, its object) and reports DeletedManaged; otherwise
// the object is removed from its backend and DeletedUnmanaged is reported.
// ErrNotFound means neither a record nor an object existed.
//
// The record is removed first. If removing the object then fails the error
// is returned and the object is left behind as unmanaged.
func (s *Store) Delete(ctx context.Context, address string) (DeleteOutcome, error) {
	const op = "delete"
	start := time.Now()

	b, addr, err := s.registry.Resolve(address)
	if err != nil {
		return 0, s.done(op, address, addr.Scheme, start, err)
	}
	canon := addr.Canonical()

	if s.index != nil {
		rec, err := s.index.FindByAddress(ctx, canon.String())
		switch {
		case err == nil:
			if err := s.index.Delete(ctx, rec); err != nil {
				return 0, s.done(op, address, addr.Scheme, start, err)
			}
			if s.deleteObjects {
				if err := b.Delete(ctx, canon.Path); err != nil && !errors.Is(err, ErrNotFound) {
					s.log.WithError(err).WithField("address", rec.Address).Warn("Record deleted but object removal failed")
					return 0, s.done(op, address, addr.Scheme, start, err)
				}
			}
			s.log.WithFields(logrus.Fields{
				"address":   rec.Address,
				"record_id": rec.ID,
			}).Info("Deleted managed object")
			return DeletedManaged, s.done(op, address, addr.Scheme, start, nil)
		case !errors.Is(err, ErrNotFound):
			return 0, s.done(op, address, addr.Scheme, start, err)
		}
	}

	if err := b.Delete(ctx, canon.Path); err != nil {
		return 0, s.done(op, address, addr.Scheme, start, err)
	}
	s.log.WithField("address", canon.String()).Info("Deleted unmanaged object")
	return DeletedUnmanaged, s.done(op, address, addr.Scheme, start, nil)
}

// Exists reports whether an object is stored at address. Invalid addresses
// and unknown schemes yield false.
func (s *Store) Exists(ctx context.Context, address string) bool {
	b, addr, err := s.registry.Resolve(address)
	if err != nil {
		return false
	}
	return b.Exists(ctx, addr.Path)
}

// ExternalURL returns a public URL for address if its backend has one.
func (s *Store) ExternalURL(ctx context.Context, address string) (string, bool) {
	b, addr, err := s.registry.Resolve(address)
	if err != nil {
		return "", false
	}
	return b.ExternalURL(ctx, addr.Path)
}

var storeDirOptions = DirOptions{CreateParents: true, SetPermissions: true}

// CreateDirectory prepares the directory at address, creating parents.
func (s *Store) CreateDirectory(ctx context.Context, address string) error {
	const op = "mkdir"
	start := time.Now()

	b, addr, err := s.registry.Resolve(address)
	if err != nil {
		return s.done(op, address, addr.Scheme, start, err)
	}
	err = b.CreateDirectory(ctx, addr.Path, storeDirOptions)
	if err == nil {
		s.log.WithField("address", address).Info("Directory is ready for use")
	}
	return s.done(op, address, addr.Scheme, start, err)
}

// DeleteDirectoryRecursive removes the directory at address and everything
// below it. Records of managed objects inside it are not touched.
func (s *Store) DeleteDirectoryRecursive(ctx context.Context, address string) error {
	const op = "rmdir"
	start := time.Now()

	b, addr, err := s.registry.Resolve(address)
	if err != nil {
		return s.done(op, address, addr.Scheme, start, err)
	}
	err = b.DeleteDirectoryRecursive(ctx, addr.Path)
	if err == nil {
		s.log.WithField("address", address).Info("Deleted directory")
	}
	return s.done(op, address, addr.Scheme, start, err)
}

// DirectoryExists reports whether address names a directory.
func (s *Store) DirectoryExists(ctx context.Context, address string) bool {
	b, addr, err := s.registry.Resolve(address)
	if err != nil {
		return false
	}
	return b.DirectoryExists(ctx, addr.Path)
}

// Records lists managed records.
func (s *Store) Records(ctx context.Context) ([]*Record, error) {
	if s.index == nil {
		return nil, nil
	}
	return s.index.List(ctx)
}

// Walk calls fn with the address of every object under dirAddress.
func (s *Store) Walk(ctx context.Context, dirAddress string, fn func(address string, info *EntryInfo) error) error {
	const op = "walk"
	start := time.Now()

	b, addr, err := s.registry.Resolve(dirAddress)
	if err != nil {
		return s.done(op, dirAddress, addr.Scheme, start, err)
	}
	w, ok := b.(Walker)
	if !ok {
		return s.done(op, dirAddress, addr.Scheme, start, ErrNotSupported)
	}
	err = w.WalkObjects(ctx, addr.Path, func(p string, info *EntryInfo) error {
		return fn(addr.WithPath(p).String(), info)
	})
	return s.done(op, dirAddress, addr.Scheme, start, err)
}

// Sweep reclaims unreferenced storage in scheme's backend.
func (s *Store) Sweep(ctx context.Context, scheme string) (int, error) {
	const op = "sweep"
	start := time.Now()
	scheme = strings.ToLower(scheme)

	b, ok := s.registry.Lookup(scheme)
	if !ok {
		return 0, s.done(op, scheme+"://", scheme, start, ErrUnknownScheme)
	}
	sw, ok := b.(Sweeper)
	if !ok {
		return 0, s.done(op, scheme+"://", scheme, start, ErrNotSupported)
	}
	n, err := sw.Sweep(ctx)
	if err != nil {
		err = classifyError(err)
	}
	return n, s.done(op, scheme+"://", scheme, start, err)
}
