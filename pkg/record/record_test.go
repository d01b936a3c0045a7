package record_test

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"

	"github.com/goliatone/go-datatpl/pkg/errs"
	"github.com/goliatone/go-datatpl/pkg/record"
	"github.com/goliatone/go-datatpl/pkg/testsupport"
)

func TestDelimitedSource_HeaderRows(t *testing.T) {
	path := testsupport.WriteString(t, t.TempDir(), "people.csv", "name,age\nAnn,30\nBo,25\nCy,40\n")

	got := collect(t, record.FormatCSV, path)
	want := []record.Record{
		map[string]any{"name": "Ann", "age": "30"},
		map[string]any{"name": "Bo", "age": "25"},
		map[string]any{"name": "Cy", "age": "40"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestDelimitedSource_RowLengthPolicy(t *testing.T) {
	path := testsupport.WriteString(t, t.TempDir(), "ragged.csv", "a,b,c\n1,2\n1,2,3,4,5\n")

	got := collect(t, "csv", path)
	want := []record.Record{
		map[string]any{"a": "1", "b": "2", "c": nil},
		map[string]any{"a": "1", "b": "2", "c": "3", record.OverflowKey: []any{"4", "5"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestDelimitedSource_OverflowColumnInHeader(t *testing.T) {
	dir := t.TempDir()

	fits := testsupport.WriteString(t, dir, "fits.csv", "a,_rest\n1,keep\n")
	want := []record.Record{map[string]any{"a": "1", record.OverflowKey: "keep"}}
	if diff := cmp.Diff(want, collect(t, "csv", fits)); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	long := testsupport.WriteString(t, dir, "long.csv", "a,_rest\n1,keep\n2,keep,extra\n")
	src, err := record.Open("csv", long)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = record.Collect(context.Background(), src)
	var formatErr *errs.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
	if !strings.Contains(formatErr.Message, "line 3") {
		t.Fatalf("expected line number in %q", formatErr.Message)
	}
}

func TestDelimitedSource_EmptyInputs(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"empty.csv":  "",
		"header.csv": "name,age\n",
		"blank.csv":  "name,age\n\n\n",
	}
	for name, content := range cases {
		path := testsupport.WriteString(t, dir, name, content)
		if got := collect(t, "csv", path); len(got) != 0 {
			t.Fatalf("%s: expected no records, got %#v", name, got)
		}
	}
}

func TestDelimitedSource_QuotedCells(t *testing.T) {
	path := testsupport.WriteString(t, t.TempDir(), "quoted.csv", "title,body\n\"Hello, world\",\"line one\nline two\"\n")

	got := collect(t, "csv", path)
	want := []record.Record{
		map[string]any{"title": "Hello, world", "body": "line one\nline two"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestDelimitedSource_Tabs(t *testing.T) {
	path := testsupport.WriteString(t, t.TempDir(), "people.tsv", "name\tcity\nAnn\tOslo, NO\n")

	got := collect(t, "TSV", path)
	want := []record.Record{map[string]any{"name": "Ann", "city": "Oslo, NO"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONSource_ListElements(t *testing.T) {
	path := testsupport.WriteString(t, t.TempDir(), "data.json", `[{"a":1},{"a":2}]`)

	got := collect(t, "json", path)
	want := []record.Record{
		map[string]any{"a": int64(1)},
		map[string]any{"a": int64(2)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONSource_AnyElementType(t *testing.T) {
	path := testsupport.WriteString(t, t.TempDir(), "mixed.json", `[1, 2.5, "x", null, true, [3], {"n": {"m": 4}}]`)

	got := collect(t, "JSON", path)
	want := []record.Record{
		int64(1),
		2.5,
		"x",
		nil,
		true,
		[]any{int64(3)},
		map[string]any{"n": map[string]any{"m": int64(4)}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONSource_RootMustBeList(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"object.json": `{"a":1}`,
		"string.json": `"text"`,
		"number.json": `5`,
	} {
		path := testsupport.WriteString(t, dir, name, content)
		src := open(t, "json", path)

		count := 0
		var err error
		for _, recErr := range src.Records(context.Background()) {
			if recErr != nil {
				err = recErr
				break
			}
			count++
		}

		var formatErr *errs.FormatError
		if !errors.As(err, &formatErr) {
			t.Fatalf("%s: expected FormatError, got %v", name, err)
		}
		if !strings.Contains(err.Error(), "this JSON data is not start list") {
			t.Fatalf("%s: unexpected message %q", name, err.Error())
		}
		if count != 0 {
			t.Fatalf("%s: expected no records before the error, got %d", name, count)
		}
	}
}

func TestJSONSource_Malformed(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"broken.json":   `[{"a":1},`,
		"trailing.json": `[1] [2]`,
		"empty.json":    ``,
	} {
		path := testsupport.WriteString(t, dir, name, content)
		_, err := record.Collect(context.Background(), open(t, "json", path))

		var accessErr *errs.FileAccessError
		if !errors.As(err, &accessErr) {
			t.Fatalf("%s: expected FileAccessError, got %v", name, err)
		}
		if accessErr.Op != "parse" {
			t.Fatalf("%s: expected parse op, got %q", name, accessErr.Op)
		}
	}
}

func TestJSONLinesSource(t *testing.T) {
	path := testsupport.WriteString(t, t.TempDir(), "events.jsonl", "{\"id\":1}\n\n{\"id\":2}\n\"tail\"\n")

	got := collect(t, "jsonl", path)
	want := []record.Record{
		map[string]any{"id": int64(1)},
		map[string]any{"id": int64(2)},
		"tail",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestYAMLSource(t *testing.T) {
	dir := t.TempDir()
	path := testsupport.WriteString(t, dir, "data.yaml", "- name: Ann\n  tags: [a, b]\n- name: Bo\n  age: 25\n")

	got := collect(t, "yml", path)
	want := []record.Record{
		map[string]any{"name": "Ann", "tags": []any{"a", "b"}},
		map[string]any{"name": "Bo", "age": int64(25)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	notList := testsupport.WriteString(t, dir, "map.yaml", "name: Ann\n")
	_, err := record.Collect(context.Background(), open(t, "yaml", notList))
	var formatErr *errs.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestSource_Restartable(t *testing.T) {
	path := testsupport.WriteString(t, t.TempDir(), "people.csv", "name\nAnn\nBo\n")
	src := open(t, "csv", path)

	first, err := record.Collect(context.Background(), src)
	if err != nil {
		t.Fatalf("first traversal: %v", err)
	}
	second, err := record.Collect(context.Background(), src)
	if err != nil {
		t.Fatalf("second traversal: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("traversals differ (-first +second):\n%s", diff)
	}
}

func TestSource_EarlyStop(t *testing.T) {
	path := testsupport.WriteString(t, t.TempDir(), "people.csv", "name\nAnn\nBo\nCy\n")
	src := open(t, "csv", path)

	var names []string
	for rec, err := range src.Records(context.Background()) {
		if err != nil {
			t.Fatalf("records: %v", err)
		}
		names = append(names, rec.(map[string]any)["name"].(string))
		if len(names) == 2 {
			break
		}
	}
	if diff := cmp.Diff([]string{"Ann", "Bo"}, names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestSource_CancelledContext(t *testing.T) {
	path := testsupport.WriteString(t, t.TempDir(), "people.csv", "name\nAnn\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := record.Collect(ctx, open(t, "csv", path))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOpen_UnknownFormat(t *testing.T) {
	_, err := record.Open("xml", "does-not-matter.xml")

	var cfgErr *errs.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Value != "xml" {
		t.Fatalf("expected unknown value xml, got %q", cfgErr.Value)
	}
	if !strings.Contains(err.Error(), "xml") {
		t.Fatalf("error should name the format: %q", err.Error())
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := record.Open("csv", "missing.csv")

	var accessErr *errs.FileAccessError
	if !errors.As(err, &accessErr) {
		t.Fatalf("expected FileAccessError, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist in chain, got %v", err)
	}
}

func TestOpen_UnknownEncoding(t *testing.T) {
	path := testsupport.WriteString(t, t.TempDir(), "people.csv", "name\nAnn\n")
	_, err := record.Open("csv", path, record.WithEncoding("klingon-8"))

	var cfgErr *errs.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Setting != "encoding" {
		t.Fatalf("expected encoding ConfigError, got %v", err)
	}
}

func TestEncoding_UTF16ReadAsUTF8Fails(t *testing.T) {
	data := encode(t, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder(), "name,age\nAnn,30\n")
	path := testsupport.WriteFile(t, t.TempDir(), "wide.csv", data)

	_, err := record.Collect(context.Background(), open(t, "csv", path))
	var accessErr *errs.FileAccessError
	if !errors.As(err, &accessErr) {
		t.Fatalf("expected FileAccessError, got %v", err)
	}
	if accessErr.Op != "decode" || !errors.Is(err, encoding.ErrInvalidUTF8) {
		t.Fatalf("expected decode failure, got %v", err)
	}

	got := collect(t, "csv", path, record.WithEncoding("utf-16"))
	want := []record.Record{map[string]any{"name": "Ann", "age": "30"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestEncoding_ShiftJIS(t *testing.T) {
	data := encode(t, japanese.ShiftJIS.NewEncoder(), "name,city\n山田,東京\n")
	path := testsupport.WriteFile(t, t.TempDir(), "sjis.csv", data)

	got := collect(t, "csv", path, record.WithEncoding("Shift_JIS"))
	want := []record.Record{map[string]any{"name": "山田", "city": "東京"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestEncoding_UTF8SigStripsBOM(t *testing.T) {
	path := testsupport.WriteString(t, t.TempDir(), "bom.csv", "\ufeffname\nAnn\n")

	got := collect(t, "csv", path, record.WithEncoding("utf-8-sig"))
	want := []record.Record{map[string]any{"name": "Ann"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveDecoding_Labels(t *testing.T) {
	cases := map[string]string{
		"":          "utf-8",
		" UTF8 ":    "utf-8",
		"utf-8-sig": "utf-8-sig",
		"UTF-16":    "utf-16",
		"Shift_JIS": "shift-jis",
		"latin1":    "latin1",
	}
	for label, want := range cases {
		dec, err := record.ResolveDecoding(label)
		if err != nil {
			t.Fatalf("resolve %q: %v", label, err)
		}
		if got := dec.Label(); got != want {
			t.Fatalf("label %q: want %q got %q", label, want, got)
		}
	}
	if got := (record.Decoding{}).Label(); got != record.DefaultEncoding {
		t.Fatalf("zero Decoding label: want %q got %q", record.DefaultEncoding, got)
	}
}

func TestRegistry(t *testing.T) {
	reg := record.NewRegistry()
	factory := func(path string, dec record.Decoding) (record.Source, error) { return nil, nil }

	if err := reg.Register("Custom", factory); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("custom", factory); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if !reg.Has("CUSTOM") {
		t.Fatalf("expected case-insensitive lookup")
	}

	formats := record.DefaultRegistry().Formats()
	want := []string{"csv", "json", "jsonl", "ndjson", "tsv", "yaml", "yml"}
	if diff := cmp.Diff(want, formats); diff != "" {
		t.Fatalf("formats mismatch (-want +got):\n%s", diff)
	}
}

func open(t *testing.T, format, path string, options ...record.Option) record.Source {
	t.Helper()
	src, err := record.Open(format, path, options...)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	return src
}

func collect(t *testing.T, format, path string, options ...record.Option) []record.Record {
	t.Helper()
	got, err := record.Collect(context.Background(), open(t, format, path, options...))
	if err != nil {
		t.Fatalf("collect %s: %v", path, err)
	}
	return got
}

func encode(t *testing.T, enc *encoding.Encoder, text string) []byte {
	t.Helper()
	out, err := enc.Bytes([]byte(text))
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return out
}
