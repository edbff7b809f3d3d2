package sigfile

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robert-malhotra/go-sigfile/container"
)

func testRecord(title string) *SignalRecord {
	data := make([]float64, 12)
	for i := range data {
		data[i] = float64(i) * 0.5
	}
	return &SignalRecord{
		Data: MustArray(data, 3, 4),
		Axes: []Axis{
			{Name: "y", Units: "nm", Navigate: true, Offset: 0, Scale: 2, Size: 3},
			ExplicitAxis("x", []float64{0, 1, 4}),
		},
		Metadata: Map{
			"General": Map{"title": title, "date": "2024-01-15"},
			"Signal":  Map{"signal_type": "EDS", "binned": false},
		},
		OriginalMetadata: Map{
			"instrument": Map{"voltage": 200.0, "detectors": []string{"a", "b"}},
			"counts":     []int32{5, 9, 12},
		},
		TransientParameters: Map{"original_file": "input.dat"},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.sgf")
	rec := testRecord("spectrum image")

	if err := Write(path, rec); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	records, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	got := records[0]

	arr, ok := got.Data.(*Array)
	if !ok {
		t.Fatalf("data type = %T, want *Array", got.Data)
	}
	if s := arr.Shape(); len(s) != 2 || s[0] != 3 || s[1] != 4 {
		t.Fatalf("shape = %v", s)
	}
	data := arr.Data().([]float64)
	for i := range data {
		if data[i] != float64(i)*0.5 {
			t.Fatalf("data[%d] = %v", i, data[i])
		}
	}

	if len(got.Axes) != 2 {
		t.Fatalf("got %d axes", len(got.Axes))
	}
	ay := got.Axes[0]
	if !ay.IsUniform() || ay.Name != "y" || ay.Units != "nm" || !ay.Navigate || ay.Scale != 2 || ay.Size != 3 {
		t.Errorf("axis 0 = %+v", ay)
	}
	ax := got.Axes[1]
	if ax.IsUniform() || ax.Name != "x" {
		t.Errorf("axis 1 = %+v", ax)
	}
	if v := ax.AxisValues(); len(v) != 3 || v[0] != 0 || v[1] != 1 || v[2] != 4 {
		t.Errorf("axis 1 values = %v", v)
	}

	general, ok := got.Metadata["General"].(Map)
	if !ok {
		t.Fatalf("General = %T", got.Metadata["General"])
	}
	if general["title"] != "spectrum image" || general["date"] != "2024-01-15" {
		t.Errorf("General = %v", general)
	}
	signal := got.Metadata["Signal"].(Map)
	if signal["signal_type"] != "EDS" || signal["binned"] != false {
		t.Errorf("Signal = %v", signal)
	}

	instr := got.OriginalMetadata["instrument"].(Map)
	if instr["voltage"] != 200.0 {
		t.Errorf("voltage = %v", instr["voltage"])
	}
	dets, ok := instr["detectors"].([]string)
	if !ok || len(dets) != 2 || dets[0] != "a" || dets[1] != "b" {
		t.Errorf("detectors = %v", instr["detectors"])
	}
	counts, ok := got.OriginalMetadata["counts"].(*Array)
	if !ok {
		t.Fatalf("counts = %T", got.OriginalMetadata["counts"])
	}
	cs := counts.Data().([]int32)
	if len(cs) != 3 || cs[0] != 5 || cs[1] != 9 || cs[2] != 12 {
		t.Errorf("counts = %v", cs)
	}

	if got.TransientParameters["original_file"] != "input.dat" {
		t.Errorf("transients = %v", got.TransientParameters)
	}
	if got.Attributes.Lazy {
		t.Error("eager read marked lazy")
	}
}

func TestTitleSanitized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "title.sgf")
	rec := testRecord("a/b")

	if err := Write(path, rec); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// The in-memory record is not mutated.
	if rec.Title() != "a/b" {
		t.Errorf("in-memory title = %q", rec.Title())
	}

	records, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got := records[0].Title(); got != "a-b" {
		t.Errorf("stored title = %q, want a-b", got)
	}

	f, err := container.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	exps, err := f.Root().Group("Experiments")
	if err != nil {
		t.Fatalf("Experiments group: %v", err)
	}
	groups := exps.Groups()
	if len(groups) != 1 || groups[0] != "a-b" {
		t.Errorf("experiment groups = %v, want [a-b]", groups)
	}
}

func TestUntitledRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "untitled.sgf")
	rec := &SignalRecord{Data: MustArray([]float64{1, 2, 3})}

	if err := Write(path, rec); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := container.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	exps, err := f.Root().Group("Experiments")
	if err != nil {
		t.Fatalf("Experiments group: %v", err)
	}
	if groups := exps.Groups(); len(groups) != 1 || groups[0] != "__unnamed__" {
		t.Errorf("experiment groups = %v", groups)
	}
}

func TestRaggedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragged.sgf")
	rg := mustRagged(t,
		[]float64{1, 2, 3},
		[]float64{4, 5, 6, 7, 8},
		[]float64{9, 10},
	)
	rec := &SignalRecord{
		Data:     rg,
		Metadata: Map{"General": Map{"title": "ragged"}},
	}

	if err := Write(path, rec); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	records, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	got, ok := records[0].Data.(*Ragged)
	if !ok {
		t.Fatalf("data type = %T, want *Ragged", records[0].Data)
	}
	if got.Rows() != 3 {
		t.Fatalf("rows = %d", got.Rows())
	}
	wantLens := []int{3, 5, 2}
	for i, n := range wantLens {
		if got.RowLen(i) != n {
			t.Errorf("row %d length = %d, want %d", i, got.RowLen(i), n)
		}
	}
	row1 := got.Row(1).([]float64)
	if row1[0] != 4 || row1[4] != 8 {
		t.Errorf("row 1 = %v", row1)
	}
}

func TestRaggedReadIgnoresLazy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragged-lazy.sgf")
	rec := &SignalRecord{
		Data:     mustRagged(t, []int32{1}, []int32{2, 3}),
		Metadata: Map{"General": Map{"title": "r"}},
	}
	if err := Write(path, rec); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	records, err := Read(path, WithLazy(true))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if _, ok := records[0].Data.(*Ragged); !ok {
		t.Errorf("lazy ragged data type = %T, want *Ragged", records[0].Data)
	}
	if records[0].Attributes.Lazy {
		t.Error("ragged record marked lazy")
	}
}

func TestWriteIdempotent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.sgf")
	b := filepath.Join(dir, "b.sgf")

	if err := Write(a, testRecord("same")); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if err := Write(b, testRecord("same")); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	ra, err := os.ReadFile(a)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	rb, err := os.ReadFile(b)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(ra, rb) {
		t.Error("identical records produced different files")
	}
}

func TestWriteDatasetFalseRequiresTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodata.sgf")

	err := Write(path, testRecord("t"), WriteDataset(false))
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
	if _, serr := os.Stat(path); !os.IsNotExist(serr) {
		t.Error("rejected write still created a file")
	}
}

func TestBadCompressionName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badcomp.sgf")
	err := Write(path, testRecord("t"), WithCompression("lzma"))
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
	if _, serr := os.Stat(path); !os.IsNotExist(serr) {
		t.Error("rejected write still created a file")
	}
}

func TestModeConflictOnLazyHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conflict.sgf")
	if err := Write(path, testRecord("spectrum image")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	records, err := Read(path, WithLazy(true))
	if err != nil {
		t.Fatalf("lazy Read failed: %v", err)
	}
	lz := records[0].Data.(*Lazy)
	defer lz.Close()

	err = Write(path, testRecord("spectrum image"), WithFile(lz.File()))
	if !errors.Is(err, ErrModeConflict) {
		t.Fatalf("err = %v, want ErrModeConflict", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("rejected write modified the file")
	}
}

func TestVersionStamping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "version.sgf")
	if err := Write(path, testRecord("t")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := container.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	if v, _ := f.Root().Attr("file_format"); v != FileFormat {
		t.Errorf("file_format = %v", v)
	}
	if v, _ := f.Root().Attr("file_format_version"); v != CurrentVersion {
		t.Errorf("file_format_version = %v", v)
	}
}

func TestReadForeignFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign.sgf")
	f, err := container.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := f.Root().SetAttr("file_format", "OtherTool"); err != nil {
		t.Fatalf("SetAttr: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := Read(path); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("foreign format read = %v, want ErrInvalidFormat", err)
	}
}

func TestReadMissingFormatAttrs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.sgf")
	f, err := container.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := Read(path); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("bare container read = %v, want ErrInvalidFormat", err)
	}
}

func TestReadNotContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.sgf")
	if err := os.WriteFile(path, []byte("arbitrary bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Read(path); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("junk read = %v, want ErrInvalidFormat", err)
	}
}

func TestReadNewerVersionWarns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newer.sgf")
	err := Write(path, testRecord("t"), WithVersionPolicy(VersionPolicy{Current: "99.0"}))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	records, err := Read(path, WithReadLogger(logger))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records", len(records))
	}
	if !strings.Contains(buf.String(), "newer format version") {
		t.Errorf("expected a version warning, log: %q", buf.String())
	}
}

func TestLazyReadMatchesEager(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lazy.sgf")
	if err := Write(path, testRecord("spectrum image"), WithChunks(2, 2)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	eager, err := Read(path)
	if err != nil {
		t.Fatalf("eager Read failed: %v", err)
	}
	lazyRecs, err := Read(path, WithLazy(true))
	if err != nil {
		t.Fatalf("lazy Read failed: %v", err)
	}
	lz, ok := lazyRecs[0].Data.(*Lazy)
	if !ok {
		t.Fatalf("lazy data type = %T", lazyRecs[0].Data)
	}
	defer lz.Close()
	if !lazyRecs[0].Attributes.Lazy {
		t.Error("lazy record not marked lazy")
	}
	if lz.Writable() {
		t.Error("lazy read handle should be read-only")
	}

	mat, err := lz.Materialize()
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	want := eager[0].Data.(*Array).Data().([]float64)
	got := mat.Data().([]float64)
	if len(got) != len(want) {
		t.Fatalf("lengths differ: %d vs %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d: %v != %v", i, got[i], want[i])
		}
	}
}

func TestCloseFileFalseKeepsLazyHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open.sgf")
	rec := testRecord("first")

	if err := Write(path, rec, CloseFile(false)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	lz, ok := rec.Data.(*Lazy)
	if !ok {
		t.Fatalf("data after open write = %T, want *Lazy", rec.Data)
	}
	if !rec.Attributes.Lazy {
		t.Error("record not marked lazy")
	}
	if !lz.Writable() {
		t.Error("handle from CloseFile(false) should stay writable")
	}

	// The still-open writable handle accepts another record.
	if err := Write(path, testRecord("second"), WithFile(lz.File())); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	records, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Title() != "first" || records[1].Title() != "second" {
		t.Errorf("titles = %q, %q", records[0].Title(), records[1].Title())
	}
}

func TestMetadataOnlyUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.sgf")
	if err := Write(path, testRecord("keep")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	update := &SignalRecord{
		Metadata: Map{"General": Map{"title": "keep", "operator": "jane"}},
	}
	if err := Write(path, update, Append(), WriteDataset(false)); err != nil {
		t.Fatalf("metadata update failed: %v", err)
	}

	records, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records", len(records))
	}
	got := records[0]

	arr, ok := got.Data.(*Array)
	if !ok {
		t.Fatalf("data type = %T", got.Data)
	}
	if data := arr.Data().([]float64); data[5] != 2.5 {
		t.Errorf("data[5] = %v, original array not preserved", data[5])
	}
	general := got.Metadata["General"].(Map)
	if general["operator"] != "jane" {
		t.Errorf("operator = %v, update not applied", general["operator"])
	}
	if general["title"] != "keep" {
		t.Errorf("title = %v", general["title"])
	}
}

func TestAppendSecondRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multi.sgf")
	if err := Write(path, testRecord("one")); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if err := Write(path, testRecord("two"), Append()); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	records, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Title() != "one" || records[1].Title() != "two" {
		t.Errorf("titles = %q, %q", records[0].Title(), records[1].Title())
	}
}

func TestOverwriteReplacesRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replace.sgf")
	first := testRecord("same")
	first.Metadata["General"].(Map)["stale"] = "yes"
	if err := Write(path, first); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}

	if err := Write(path, testRecord("same"), Append()); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	records, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	general := records[0].Metadata["General"].(Map)
	if _, ok := general["stale"]; ok {
		t.Error("replaced record kept stale metadata")
	}
}

func TestLazyRechunkCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.sgf")
	dst := filepath.Join(dir, "dst.sgf")

	data := make([]float64, 8*6)
	for i := range data {
		data[i] = float64(i)
	}
	rec := &SignalRecord{
		Data:     MustArray(data, 8, 6),
		Metadata: Map{"General": Map{"title": "grid"}},
	}
	if err := Write(src, rec, WithChunks(4, 3)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	records, err := Read(src, WithLazy(true))
	if err != nil {
		t.Fatalf("lazy Read failed: %v", err)
	}
	lz := records[0].Data.(*Lazy)
	if cs := lz.ChunkShape(); cs[0] != 4 || cs[1] != 3 {
		t.Fatalf("source chunk shape = %v", cs)
	}

	if err := Write(dst, records[0], WithChunks(3, 2)); err != nil {
		t.Fatalf("rechunking Write failed: %v", err)
	}
	lz.Close()

	out, err := Read(dst)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	arr := out[0].Data.(*Array)
	if s := arr.Shape(); s[0] != 8 || s[1] != 6 {
		t.Fatalf("shape = %v", s)
	}
	got := arr.Data().([]float64)
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("element %d = %v, want %v", i, got[i], data[i])
		}
	}

	f, err := container.Open(dst)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	exps, _ := f.Root().Group("Experiments")
	expg, _ := exps.Group("grid")
	ds, err := expg.Dataset("data")
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	if cs := ds.ChunkShape(); cs[0] != 3 || cs[1] != 2 {
		t.Errorf("destination chunk shape = %v, want [3 2]", cs)
	}
}

func TestStringListData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strings.sgf")
	rec := &SignalRecord{
		Data:     []string{"alpha", "beta", "gamma delta"},
		Metadata: Map{"General": Map{"title": "names"}},
	}
	if err := Write(path, rec); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	records, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	got, ok := records[0].Data.([]string)
	if !ok {
		t.Fatalf("data type = %T, want []string", records[0].Data)
	}
	if len(got) != 3 || got[2] != "gamma delta" {
		t.Errorf("strings = %v", got)
	}
}

func TestOversizeStringAttrRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bigstring.sgf")
	rec := testRecord("big")
	rec.Metadata["notes"] = strings.Repeat("x", 1<<24+1)

	err := Write(path, rec)
	if !errors.Is(err, container.ErrBadAttr) {
		t.Fatalf("Write with oversize string = %v, want ErrBadAttr", err)
	}

	// Whatever was flushed before the failure must still be readable;
	// the limit may never produce a file the reader rejects as corrupt.
	if _, serr := os.Stat(path); serr == nil {
		if _, rerr := Read(path); rerr != nil && !errors.Is(rerr, ErrInvalidFormat) {
			t.Errorf("partial file unreadable: %v", rerr)
		}
	}
}

func TestLazyReadClosesFileWithoutLazyData(t *testing.T) {
	if _, err := os.Stat("/proc/self/fd"); err != nil {
		t.Skip("requires /proc/self/fd")
	}
	path := filepath.Join(t.TempDir(), "allragged.sgf")
	rec := &SignalRecord{
		Data:     mustRagged(t, []int32{1, 2}, []int32{3}),
		Metadata: Map{"General": Map{"title": "r"}},
	}
	if err := Write(path, rec); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	before, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	records, err := Read(path, WithLazy(true))
	if err != nil {
		t.Fatalf("lazy Read failed: %v", err)
	}
	if _, ok := records[0].Data.(*Ragged); !ok {
		t.Fatalf("data type = %T, want *Ragged", records[0].Data)
	}
	after, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(after) > len(before) {
		t.Errorf("lazy read of fully materialized records leaked a descriptor: %d -> %d", len(before), len(after))
	}
}

func TestTitleSanitizeWarns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.sgf")
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	if err := Write(path, testRecord("a/b"), WithLogger(logger)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !strings.Contains(buf.String(), "sanitized") {
		t.Errorf("expected a sanitization warning, log: %q", buf.String())
	}

	buf.Reset()
	if err := Write(path, testRecord("plain"), WithLogger(logger), Append()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("clean title logged: %q", buf.String())
	}
}

func TestLazySelfOverwriteRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "self.sgf")
	if err := Write(path, testRecord("spectrum image")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	records, err := Read(path, WithLazy(true))
	if err != nil {
		t.Fatalf("lazy Read failed: %v", err)
	}
	lz := records[0].Data.(*Lazy)
	defer lz.Close()

	// Forgetting WithFile must not truncate the file backing the record.
	err = Write(path, records[0])
	if !errors.Is(err, ErrModeConflict) {
		t.Fatalf("self-target write = %v, want ErrModeConflict", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("rejected write modified the source file")
	}
	if _, err := lz.Materialize(); err != nil {
		t.Errorf("lazy source unreadable after rejected write: %v", err)
	}
}

func TestHeuristicChunks(t *testing.T) {
	// Small arrays are a single chunk.
	small := heuristicChunks([]uint64{3, 4}, 8, 1)
	if small[0] != 3 || small[1] != 4 {
		t.Errorf("small chunks = %v", small)
	}

	// Signal dimensions stay whole; navigation dimensions are halved
	// until the chunk fits the byte budget.
	big := heuristicChunks([]uint64{16, 16, 256, 256}, 8, 2)
	if big[2] != 256 || big[3] != 256 {
		t.Errorf("signal dims shrunk: %v", big)
	}
	total := big[0] * big[1] * big[2] * big[3] * 8
	if total > targetChunkBytes {
		t.Errorf("chunk bytes = %d over budget", total)
	}
	if big[0] != 1 || big[1] != 2 {
		t.Errorf("navigation chunks = %v, want [1 2 ...]", big[:2])
	}

	// With every axis a signal axis nothing shrinks.
	whole := heuristicChunks([]uint64{1024, 1024}, 8, 2)
	if whole[0] != 1024 || whole[1] != 1024 {
		t.Errorf("all-signal chunks = %v", whole)
	}
}
