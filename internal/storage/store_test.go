package storage

import (
	"errors"
	"testing"
	"time"
)

func sampleTrace() *Trace {
	tr := NewTrace("torque_l", "torque_r", "x")
	tr.Append(0, "SystemOff", 0, 0, 0)
	tr.Append(0.01, "StartingUp", 0.5, -0.5, 0.001)
	tr.Append(0.02, "SystemOn", 0.25)
	return tr
}

func TestTrace(t *testing.T) {
	tr := sampleTrace()
	if tr.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", tr.Len())
	}
	col, err := tr.Column("torque_r")
	if err != nil {
		t.Fatal(err)
	}
	if col[1] != -0.5 || col[2] != 0 {
		t.Errorf("unexpected column %v", col)
	}
	if _, err := tr.Column("y"); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}

	meta := RunMetadata{
		Preset:     "emergency",
		Dt:         0.01,
		Duration:   0.03,
		Ticks:      3,
		FinalLevel: "SystemOn",
		FinalPose:  Pose{X: 1, Y: 2, Phi: 0.5},
		Levels:     []LevelChange{{Time: 0.01, From: "SystemOff", To: "StartingUp"}},
		Metrics:    map[string]float64{"control_effort": 0.25},
	}
	id, err := st.Save(meta, sampleTrace())
	if err != nil {
		t.Fatal(err)
	}
	if len(id) != 36 {
		t.Errorf("expected a uuid run id, got %q", id)
	}

	loaded, err := st.Load(id)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.FinalPose != meta.FinalPose || loaded.Levels[0] != meta.Levels[0] || loaded.Metrics["control_effort"] != 0.25 {
		t.Errorf("metadata mismatch: %+v", loaded)
	}

	tr, err := st.LoadTrace(id)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Len() != 3 || tr.Levels[2] != "SystemOn" || tr.Rows[1][0] != 0.5 || tr.Times[1] != 0.01 {
		t.Errorf("trace mismatch: %+v", tr)
	}
}

func TestListAndResolve(t *testing.T) {
	st := New(t.TempDir())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"bbbb-2", "aaaa-1", "aaab-3"} {
		if _, err := st.Save(RunMetadata{ID: id, Timestamp: base.Add(time.Duration(i) * time.Hour)}, NewTrace()); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 || runs[0].ID != "bbbb-2" || runs[2].ID != "aaab-3" {
		t.Errorf("expected runs oldest first, got %+v", runs)
	}

	tests := []struct {
		prefix string
		want   string
		fails  bool
	}{
		{"bb", "bbbb-2", false},
		{"aaaa", "aaaa-1", false},
		{"aaa", "", true},
		{"zz", "", true},
	}
	for _, tt := range tests {
		got, err := st.Resolve(tt.prefix)
		if tt.fails != (err != nil) || got != tt.want {
			t.Errorf("Resolve(%q) = %q, %v", tt.prefix, got, err)
		}
	}
}

func TestLoad_Missing(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.Load("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := st.LoadTrace("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}

	runs, err := New(t.TempDir() + "/missing").List()
	if err != nil || len(runs) != 0 {
		t.Errorf("expected empty list for missing dir, got %v %v", runs, err)
	}
}
