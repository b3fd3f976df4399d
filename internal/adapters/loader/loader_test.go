package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	return path
}

func TestCSVLoader_DropsIncompleteRows(t *testing.T) {
	path := writeFile(t, "kb.csv", "prompt,completion\n"+
		"What is flu?,\"Influenza is a viral infection, usually seasonal.\"\n"+
		"Empty answer,\n"+
		",Orphan answer\n"+
		"Blank answer,   \n"+
		"  Sore throat?  ,  Gargle salt water.  \n")

	entries, err := NewCSVLoader().Load(context.Background(), path)

	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ReferenceAnswer != "Influenza is a viral infection, usually seasonal." {
		t.Errorf("unexpected answer: %q", entries[0].ReferenceAnswer)
	}
	if entries[1].ReferenceQuestion != "  Sore throat?  " || entries[1].ReferenceAnswer != "  Gargle salt water.  " {
		t.Errorf("fields should be stored as written: %+v", entries[1])
	}
}

func TestCSVLoader_AlternateHeaders(t *testing.T) {
	path := writeFile(t, "kb.csv", "id,Question,Answer\n1,q1,a1\n")

	entries, err := NewCSVLoader().Load(context.Background(), path)

	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ReferenceAnswer != "a1" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestCSVLoader_MissingColumns(t *testing.T) {
	path := writeFile(t, "kb.csv", "foo,bar\n1,2\n")
	if _, err := NewCSVLoader().Load(context.Background(), path); err == nil {
		t.Error("should reject a header without question/answer columns")
	}
}

func TestJSONLLoader_Load(t *testing.T) {
	path := writeFile(t, "kb.jsonl",
		`{"question":"What is asthma?","answer":"A chronic airway condition."}`+"\n"+
			"\n"+
			`{"prompt":"Migraine?","completion":"A recurrent headache disorder."}`+"\n"+
			`{"question":"no answer"}`+"\n")

	entries, err := NewJSONLLoader().Load(context.Background(), path)

	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].ReferenceQuestion != "Migraine?" {
		t.Errorf("unexpected question: %q", entries[1].ReferenceQuestion)
	}
}

func TestJSONLLoader_Malformed(t *testing.T) {
	path := writeFile(t, "kb.jsonl", "{not json}\n")
	if _, err := NewJSONLLoader().Load(context.Background(), path); err == nil {
		t.Error("should error on malformed line")
	}
}

func TestMultiLoader_DispatchByExtension(t *testing.T) {
	csvPath := writeFile(t, "kb.CSV", "prompt,completion\nq,a\n")
	jsonlPath := writeFile(t, "kb.jsonl", `{"question":"q","answer":"a"}`+"\n")

	m := NewMultiLoader()
	for _, p := range []string{csvPath, jsonlPath} {
		entries, err := m.Load(context.Background(), p)
		if err != nil {
			t.Fatalf("load %s failed: %v", p, err)
		}
		if len(entries) != 1 {
			t.Errorf("%s: expected 1 entry, got %d", p, len(entries))
		}
	}

	_, err := m.Load(context.Background(), writeFile(t, "kb.txt", "x"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestMultiLoader_SupportedExtensions(t *testing.T) {
	exts := NewMultiLoader().SupportedExtensions()
	want := []string{".csv", ".jsonl", ".ndjson"}
	if len(exts) != len(want) {
		t.Fatalf("expected %v, got %v", want, exts)
	}
	for i := range want {
		if exts[i] != want[i] {
			t.Errorf("expected %v, got %v", want, exts)
		}
	}
}
