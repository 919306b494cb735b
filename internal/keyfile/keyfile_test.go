package keyfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		data    string
		wantIDs []string
	}{
		{
			name:   "yaml list under answer_keys",
			format: FormatYAML,
			data: `answer_keys:
  - id: phys-1
    name: Physics Midterm
    answers: {Q1: A, Q2: C}
    points_per_question: 2
    negative_marking: true
    negative_mark_value: 0.5
  - id: chem-1
    answers: {Q1: B}
`,
			wantIDs: []string{"phys-1", "chem-1"},
		},
		{
			name:    "yaml top-level list",
			format:  FormatYAML,
			data:    "- id: a\n  answers: {Q1: A}\n- id: b\n  answers: {Q1: B}\n",
			wantIDs: []string{"a", "b"},
		},
		{
			name:    "yaml single key",
			format:  FormatYAML,
			data:    "id: solo\nanswers:\n  Q1: D\n",
			wantIDs: []string{"solo"},
		},
		{
			name:    "json object with list",
			format:  FormatJSON,
			data:    `{"answer_keys":[{"id":"j1","answers":{"Q1":"A"}}]}`,
			wantIDs: []string{"j1"},
		},
		{
			name:    "json array",
			format:  FormatJSON,
			data:    ` [{"id":"j1","answers":{"Q1":"A"}},{"id":"j2","answers":{"Q1":"B"}}]`,
			wantIDs: []string{"j1", "j2"},
		},
		{
			name:    "json single key",
			format:  FormatJSON,
			data:    `{"id":"j3","name":"Quiz","answers":{"Q1":"C"}}`,
			wantIDs: []string{"j3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := Parse([]byte(tt.data), tt.format)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(keys) != len(tt.wantIDs) {
				t.Fatalf("expected %d keys, got %d", len(tt.wantIDs), len(keys))
			}
			for i, id := range tt.wantIDs {
				if keys[i].ID != id {
					t.Errorf("key %d id = %q, want %q", i, keys[i].ID, id)
				}
				if len(keys[i].Answers) == 0 {
					t.Errorf("key %s has no answers", id)
				}
			}
		})
	}
}

func TestParseScoringFields(t *testing.T) {
	keys, err := Parse([]byte("id: k\nanswers: {Q1: A}\npoints_per_question: 2\nnegative_marking: true\nnegative_mark_value: 0.5\n"), FormatYAML)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	k := keys[0]
	if k.PointsPerQuestion != 2 || !k.NegativeMarking || k.NegativeMarkValue == nil || *k.NegativeMarkValue != 0.5 {
		t.Errorf("scoring fields = %+v", k)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   string
	}{
		{"empty yaml", FormatYAML, ""},
		{"yaml without keys", FormatYAML, "title: nothing here\n"},
		{"json without keys", FormatJSON, `{"title":"nothing"}`},
		{"broken json", FormatJSON, `{"id":`},
		{"unknown format", Format("toml"), `id = "x"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data), tt.format); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Parse([]byte("title: x\n"), FormatYAML); !errors.Is(err, ErrNoKeys) {
		t.Errorf("expected ErrNoKeys, got %v", err)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"keys.json", FormatJSON, false},
		{"keys.YAML", FormatYAML, false},
		{"dir/keys.yml", FormatYAML, false},
		{"keys.csv", "", true},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("FormatFromPath(%q) = %q, %v", tt.path, got, err)
		}
	}
}

func TestLoadHashesContent(t *testing.T) {
	content := "id: k1\nanswers: {Q1: A}\n"
	a := writeFile(t, "a.yaml", content)
	b := writeFile(t, "b.yaml", content)

	fa, err := Load(a)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	fb, err := Load(b)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fa.Hash == "" || fa.Hash != fb.Hash {
		t.Errorf("same content should hash equal: %q vs %q", fa.Hash, fb.Hash)
	}
	if fa.Hash != Hash([]byte(content)) {
		t.Error("Load hash differs from Hash")
	}
	if len(fa.Hash) != 64 {
		t.Errorf("expected hex sha256, got %q", fa.Hash)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadSheet(t *testing.T) {
	path := writeFile(t, "stu-42.json", `{"student_name":"Lee","answers":{"Q1":"A","Q2":"-","Q3":""},"multi_marked_count":1}`)
	sub, err := LoadSheet(path)
	if err != nil {
		t.Fatalf("LoadSheet: %v", err)
	}
	if sub.StudentID != "stu-42" {
		t.Errorf("StudentID = %q, want file stem", sub.StudentID)
	}
	if sub.StudentName != "Lee" || sub.MultiMarkedCount != 1 {
		t.Errorf("sheet = %+v", sub)
	}
	if !sub.Answers["Q1"].Answered() || sub.Answers["Q2"].Answered() || sub.Answers["Q3"].Answered() {
		t.Errorf("answers = %v", sub.Answers)
	}
}
