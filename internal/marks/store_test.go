package marks

import (
	"path/filepath"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "marks.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestViewpointRoundTrip(t *testing.T) {
	s := openStore(t)
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }

	if _, ok, err := s.Viewpoint("/var/log/app.log"); err != nil || ok {
		t.Fatalf("Viewpoint on empty store ok=%v err=%v", ok, err)
	}
	if err := s.SaveViewpoint("/var/log/app.log", 100, 5000); err != nil {
		t.Fatalf("SaveViewpoint: %v", err)
	}
	if err := s.SaveViewpoint("/var/log/app.log", 250, 6000); err != nil {
		t.Fatalf("SaveViewpoint: %v", err)
	}
	pos, ok, err := s.Viewpoint("/var/log/app.log")
	if err != nil || !ok {
		t.Fatalf("Viewpoint ok=%v err=%v", ok, err)
	}
	if pos.Offset != 250 || pos.Size != 6000 || !pos.Updated.Equal(now) {
		t.Fatalf("pos = %+v want offset 250 size 6000", pos)
	}
}

func TestMarks(t *testing.T) {
	s := openStore(t)
	file := "/var/log/app.log"

	if _, err := s.AddMark(file, 300, "restart"); err != nil {
		t.Fatalf("AddMark: %v", err)
	}
	first, err := s.AddMark(file, 10, "")
	if err != nil {
		t.Fatalf("AddMark: %v", err)
	}
	if _, err := s.AddMark("/other.log", 5, ""); err != nil {
		t.Fatalf("AddMark: %v", err)
	}
	again, err := s.AddMark(file, 10, "boot")
	if err != nil {
		t.Fatalf("AddMark: %v", err)
	}
	if again.ID != first.ID || again.Label != "boot" {
		t.Fatalf("re-marking = %+v want id %d label boot", again, first.ID)
	}

	list, err := s.Marks(file)
	if err != nil {
		t.Fatalf("Marks: %v", err)
	}
	if len(list) != 2 || list[0].Offset != 10 || list[1].Offset != 300 {
		t.Fatalf("marks = %+v want offsets 10, 300", list)
	}

	if err := s.DeleteMark(file, list[0].ID); err != nil {
		t.Fatalf("DeleteMark: %v", err)
	}
	list, _ = s.Marks(file)
	if len(list) != 1 || list[0].Label != "restart" {
		t.Fatalf("marks after delete = %+v", list)
	}

	if err := s.Forget(file); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if list, _ = s.Marks(file); len(list) != 0 {
		t.Fatalf("marks after forget = %+v", list)
	}
	if list, _ = s.Marks("/other.log"); len(list) != 1 {
		t.Fatalf("other file marks = %+v", list)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marks.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SaveViewpoint("a", 7, 8); err != nil {
		t.Fatalf("SaveViewpoint: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if pos, ok, _ := s.Viewpoint("a"); !ok || pos.Offset != 7 {
		t.Fatalf("Viewpoint after reopen = %+v ok=%v", pos, ok)
	}
}

func TestKey(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.log")
	if Key(a) != a {
		t.Fatalf("Key(%q) = %q", a, Key(a))
	}
	if Key(a, a) == Key(a) {
		t.Fatalf("multi-file key equals single-file key")
	}
}
