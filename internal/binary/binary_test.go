package binary

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scratch.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer f.Close()

	w := NewWriter(f)
	if err := w.WriteUint8(0xAB); err != nil {
		t.Fatalf("WriteUint8: %v", err)
	}
	if err := w.WriteUint16(0xBEEF); err != nil {
		t.Fatalf("WriteUint16: %v", err)
	}
	if err := w.WriteUint32(0xDEADBEEF); err != nil {
		t.Fatalf("WriteUint32: %v", err)
	}
	if err := w.WriteUint64(1 << 40); err != nil {
		t.Fatalf("WriteUint64: %v", err)
	}
	if err := w.WriteInt64(-42); err != nil {
		t.Fatalf("WriteInt64: %v", err)
	}
	if err := w.WriteFloat64(3.25); err != nil {
		t.Fatalf("WriteFloat64: %v", err)
	}
	if err := w.WriteString("héllo"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}

	r := NewReader(f)
	if v, err := r.ReadUint8(); err != nil || v != 0xAB {
		t.Errorf("ReadUint8 = %v, %v", v, err)
	}
	if v, err := r.ReadUint16(); err != nil || v != 0xBEEF {
		t.Errorf("ReadUint16 = %v, %v", v, err)
	}
	if v, err := r.ReadUint32(); err != nil || v != 0xDEADBEEF {
		t.Errorf("ReadUint32 = %v, %v", v, err)
	}
	if v, err := r.ReadUint64(); err != nil || v != 1<<40 {
		t.Errorf("ReadUint64 = %v, %v", v, err)
	}
	if v, err := r.ReadInt64(); err != nil || v != -42 {
		t.Errorf("ReadInt64 = %v, %v", v, err)
	}
	if v, err := r.ReadFloat64(); err != nil || v != 3.25 {
		t.Errorf("ReadFloat64 = %v, %v", v, err)
	}
	if v, err := r.ReadString(); err != nil || v != "héllo" {
		t.Errorf("ReadString = %q, %v", v, err)
	}

	if r.Pos() != w.Pos() {
		t.Errorf("reader ended at %d, writer at %d", r.Pos(), w.Pos())
	}
}

func TestAtIndependentPosition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scratch.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer f.Close()

	w := NewWriter(f)
	if err := w.WriteUint64(111); err != nil {
		t.Fatalf("WriteUint64: %v", err)
	}
	// Patch the first word through an independent writer.
	if err := w.At(0).WriteUint64(222); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if w.Pos() != 8 {
		t.Errorf("original writer position moved to %d", w.Pos())
	}

	v, err := NewReader(f).ReadUint64()
	if err != nil || v != 222 {
		t.Errorf("ReadUint64 = %v, %v, want 222", v, err)
	}
}

func TestWriteStringEnforcesLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scratch.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer f.Close()

	w := NewWriter(f)
	if err := w.WriteString(strings.Repeat("x", MaxStringLen+1)); !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("oversize WriteString = %v, want ErrStringTooLong", err)
	}
	if w.Pos() != 0 {
		t.Errorf("rejected write advanced position to %d", w.Pos())
	}
}
