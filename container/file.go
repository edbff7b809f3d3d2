package container

import (
	"fmt"
	"os"

	"github.com/robert-malhotra/go-sigfile/internal/binary"
)

// Format constants for the SGC container header.
const (
	// ContainerVersion is the version of the on-disk container layout,
	// independent of the application-level format version stamped by
	// higher layers as root attributes.
	ContainerVersion = 1

	headerSize = 24
)

var magic = []byte("SIGC")

// File represents an open SGC container file.
type File struct {
	path     string
	file     *os.File
	reader   *binary.Reader
	writer   *binary.Writer
	root     *Group
	writable bool
	closed   bool

	// eof is the next allocation point for chunk payloads.
	// Allocation is append-only; replaced dataset space is not reclaimed.
	eof uint64
}

// Create creates a new container at the given path, truncating any
// existing file.
func Create(path string) (*File, error) {
	osFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	f := &File{
		path:     path,
		file:     osFile,
		reader:   binary.NewReader(osFile),
		writer:   binary.NewWriter(osFile),
		writable: true,
		eof:      headerSize,
	}
	f.root = newGroup(f, nil, "")

	// Reserve the header now so a crash before Flush leaves a file that
	// is recognizably incomplete (zero index offset).
	if err := f.writeHeader(0, 0); err != nil {
		osFile.Close()
		os.Remove(path)
		return nil, fmt.Errorf("writing header: %w", err)
	}

	return f, nil
}

// Open opens an existing container for reading.
func Open(path string) (*File, error) {
	osFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	f, err := load(osFile, path, false)
	if err != nil {
		osFile.Close()
		return nil, err
	}
	return f, nil
}

// OpenReadWrite opens an existing container for reading and appending.
// New and replaced datasets are written after the existing data; the
// index is rewritten on flush.
func OpenReadWrite(path string) (*File, error) {
	osFile, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	f, err := load(osFile, path, true)
	if err != nil {
		osFile.Close()
		return nil, err
	}
	return f, nil
}

// load reads the header and index of an already-open file.
func load(osFile *os.File, path string, writable bool) (*File, error) {
	f := &File{
		path:     path,
		file:     osFile,
		reader:   binary.NewReader(osFile),
		writable: writable,
	}
	if writable {
		f.writer = binary.NewWriter(osFile)
	}

	indexOff, indexLen, err := f.readHeader()
	if err != nil {
		return nil, err
	}

	root, err := f.readIndex(indexOff, indexLen)
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	f.root = root
	f.eof = indexOff + indexLen

	return f, nil
}

// writeHeader writes the fixed header at offset 0.
func (f *File) writeHeader(indexOff, indexLen uint64) error {
	w := f.writer.At(0)
	if err := w.WriteBytes(magic); err != nil {
		return err
	}
	if err := w.WriteUint8(ContainerVersion); err != nil {
		return err
	}
	if err := w.WriteBytes([]byte{0, 0, 0}); err != nil {
		return err
	}
	if err := w.WriteUint64(indexOff); err != nil {
		return err
	}
	return w.WriteUint64(indexLen)
}

// readHeader validates the magic and returns the index location.
func (f *File) readHeader() (indexOff, indexLen uint64, err error) {
	r := f.reader.At(0)
	m, err := r.ReadBytes(4)
	if err != nil {
		return 0, 0, ErrNotContainer
	}
	if string(m) != string(magic) {
		return 0, 0, ErrNotContainer
	}
	version, err := r.ReadUint8()
	if err != nil {
		return 0, 0, ErrNotContainer
	}
	if version == 0 || version > ContainerVersion {
		return 0, 0, fmt.Errorf("%w: unsupported container version %d", ErrNotContainer, version)
	}
	if _, err := r.ReadBytes(3); err != nil {
		return 0, 0, ErrNotContainer
	}
	if indexOff, err = r.ReadUint64(); err != nil {
		return 0, 0, ErrNotContainer
	}
	if indexLen, err = r.ReadUint64(); err != nil {
		return 0, 0, ErrNotContainer
	}
	if indexOff == 0 {
		return 0, 0, fmt.Errorf("%w: missing index (file was not flushed)", ErrNotContainer)
	}
	return indexOff, indexLen, nil
}

// allocate reserves size bytes of body space and returns its offset.
func (f *File) allocate(size uint64) uint64 {
	addr := f.eof
	f.eof += size
	return addr
}

// Flush serializes the group tree as the index footer and patches the
// header to point at it, then syncs the file.
func (f *File) Flush() error {
	if f.closed {
		return ErrClosed
	}
	if !f.writable {
		return nil
	}

	buf, err := encodeIndex(f.root)
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}

	// The index is written at the current EOF but does not advance the
	// allocation point: chunk data written after this flush reuses the
	// space and the index is rewritten on the next flush.
	indexOff := f.eof
	w := f.writer.At(int64(indexOff))
	if err := w.WriteBytes(buf); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	if err := f.writeHeader(indexOff, uint64(len(buf))); err != nil {
		return fmt.Errorf("patching header: %w", err)
	}
	if err := f.file.Truncate(int64(indexOff) + int64(len(buf))); err != nil {
		return fmt.Errorf("truncating: %w", err)
	}

	return f.file.Sync()
}

// Close flushes pending changes (if writable) and closes the file.
// Closing an already-closed file is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	if f.writable {
		if err := f.Flush(); err != nil {
			f.closed = true
			f.file.Close()
			return err
		}
	}
	f.closed = true
	return f.file.Close()
}

// Root returns the root group.
func (f *File) Root() *Group {
	return f.root
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Stat returns metadata for the underlying file handle. Combined with
// os.SameFile it identifies the on-disk file regardless of the path it
// was opened through.
func (f *File) Stat() (os.FileInfo, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.file.Stat()
}

// Writable reports whether the file accepts writes.
func (f *File) Writable() bool {
	return f.writable && !f.closed
}

// Closed reports whether Close has been called.
func (f *File) Closed() bool {
	return f.closed
}
