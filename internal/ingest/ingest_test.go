package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/animus-labs/animus-audit/internal/fingerprint"
)

func TestRead_Shape(t *testing.T) {
	frame, err := Read(strings.NewReader("a,b\n1,3\n2,4\n"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if frame.Len() != 2 || len(frame.Columns) != 2 {
		t.Fatalf("shape=(%d,%d), want (2,2)", frame.Len(), len(frame.Columns))
	}
}

func TestRead_Errors(t *testing.T) {
	if _, err := Read(strings.NewReader("")); err == nil {
		t.Fatalf("empty input should fail")
	}
	if _, err := Read(strings.NewReader("a,a\n1,2\n")); err == nil {
		t.Fatalf("duplicate columns should fail")
	}
	if _, err := Read(strings.NewReader("a,b\n1\n")); err == nil {
		t.Fatalf("ragged rows should fail")
	}
}

func TestDTypes(t *testing.T) {
	frame, err := Read(strings.NewReader("a,b,c,d,e,f\n1,x,1.5,True,1,\n2,y,2,False,,\n"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := map[string]string{
		"a": DTypeInt64,
		"b": DTypeObject,
		"c": DTypeFloat64,
		"d": DTypeBool,
		"e": DTypeFloat64,
		"f": DTypeFloat64,
	}
	if got := frame.DTypes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("DTypes()=%v, want %v", got, want)
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"))
	if !errors.Is(err, ErrDatasetNotFound) {
		t.Fatalf("err=%v, want ErrDatasetNotFound", err)
	}
}

func TestDescribe(t *testing.T) {
	content := "age,job,deposit\n30,admin,yes\n41,technician,no\n"
	path := filepath.Join(t.TempDir(), "bank.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	info, err := Describe(path, frame)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if info.DatasetSHA256 != fingerprint.Bytes([]byte(content)) {
		t.Fatalf("sha=%s", info.DatasetSHA256)
	}
	if size, ok := info.FileSizeBytes.Get(); !ok || size != int64(len(content)) {
		t.Fatalf("size=%v,%v", size, ok)
	}
	if info.Rows != 2 || !reflect.DeepEqual(info.Columns, []string{"age", "job", "deposit"}) {
		t.Fatalf("info=%+v", info)
	}
	if info.Schema["age"] != DTypeInt64 || info.Schema["job"] != DTypeObject {
		t.Fatalf("schema=%v", info.Schema)
	}
}
