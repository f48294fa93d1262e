package watcher

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDebouncerMergesBurst(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, 30*time.Millisecond, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	for i := 0; i < 5; i++ {
		input <- ChangeEvent{Type: ChangeTypeSource, Paths: []string{"/data/world.json"}}
	}
	input <- ChangeEvent{Type: ChangeTypeConfig, Paths: []string{"/data/relgraph.toml"}}

	var got []ChangeEvent
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case event := <-d.Output():
			got = append(got, event)
		case <-timeout:
			t.Fatalf("Timeout, got %d events", len(got))
		}
	}

	if got[0].Type != ChangeTypeConfig {
		t.Errorf("Expected config change first, got %v", got[0].Type)
	}
	if !reflect.DeepEqual(got[1].Paths, []string{"/data/world.json"}) {
		t.Errorf("Expected deduplicated source paths, got %v", got[1].Paths)
	}

	select {
	case event := <-d.Output():
		t.Errorf("Unexpected extra event %+v", event)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestDebouncerMaxWait(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, time.Hour, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	input <- ChangeEvent{Type: ChangeTypeSource, Paths: []string{"a.json"}}

	select {
	case event := <-d.Output():
		if event.Type != ChangeTypeSource {
			t.Errorf("Unexpected event %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("Max wait did not force a flush")
	}
}

func TestDebouncerFlushesOnClosedInput(t *testing.T) {
	input := make(chan ChangeEvent, 1)
	d := NewDebouncer(input, time.Hour, time.Hour)
	d.Start(context.Background())

	input <- ChangeEvent{Type: ChangeTypeSource, Paths: []string{"a.json"}}
	close(input)

	event, ok := <-d.Output()
	if !ok || event.Type != ChangeTypeSource {
		t.Fatalf("Expected pending event before close, got %+v (ok=%v)", event, ok)
	}
	if _, ok := <-d.Output(); ok {
		t.Error("Expected output to be closed")
	}
}

func TestAnalyzeChanges(t *testing.T) {
	plan := AnalyzeChanges(ChangeEvent{Type: ChangeTypeSource, Paths: []string{"world.yaml"}})
	if !plan.Rebuild || plan.ReloadConfig {
		t.Errorf("Source change should rebuild only, got %+v", plan)
	}

	plan = AnalyzeChanges(
		ChangeEvent{Type: ChangeTypeConfig, Paths: []string{"relgraph.toml"}},
		ChangeEvent{Type: ChangeTypeSource, Paths: []string{"world.yaml"}},
	)
	if !plan.Rebuild || !plan.ReloadConfig {
		t.Errorf("Config change should reload and rebuild, got %+v", plan)
	}
	if len(plan.ChangedFiles) != 2 {
		t.Errorf("Expected 2 changed files, got %v", plan.ChangedFiles)
	}

	if plan := AnalyzeChanges(); plan.Rebuild {
		t.Error("Empty batch should not rebuild")
	}
}

func TestFileWatcherSeesWrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "world.json")
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(target, []byte(`{}`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	if err := fw.Watch(target, ChangeTypeSource); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fw.Start(ctx)

	if err := os.WriteFile(other, []byte("ignored"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(target, []byte(`{"entities": []}`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case event := <-fw.Events():
		if event.Type != ChangeTypeSource {
			t.Errorf("Expected source change, got %v", event.Type)
		}
		for _, p := range event.Paths {
			if filepath.Base(p) != "world.json" {
				t.Errorf("Unexpected path %s", p)
			}
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for change event")
	}
}

func TestFileWatcherTree(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "quests")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	if err := fw.WatchTree(root, ChangeTypeSource); err != nil {
		t.Fatalf("WatchTree: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fw.Start(ctx)

	if err := os.WriteFile(filepath.Join(sub, "readme.md"), []byte("ignored"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "main.yaml"), []byte("entities: []"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case event := <-fw.Events():
		if len(event.Paths) != 1 || filepath.Base(event.Paths[0]) != "main.yaml" {
			t.Errorf("Unexpected paths %v", event.Paths)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for change event")
	}
}
