//go:build !no_automation

package automation

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "scripts"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestManagerListEmpty(t *testing.T) {
	m := newTestManager(t)
	scripts, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 0 {
		t.Errorf("list count = %d, want 0", len(scripts))
	}
}

func TestManagerSaveAndGet(t *testing.T) {
	m := newTestManager(t)

	saved, err := m.Save(&Script{
		Meta: ScriptMeta{
			Name:        "Hall Switch",
			Description: "Mirror the hall switch",
			Enabled:     true,
			Endpoints:   []string{"0x1234/1"},
		},
		LuaCode: "cluster = 6\n",
	})
	if err != nil {
		t.Fatal(err)
	}
	if saved.ID != "hall_switch" {
		t.Errorf("id = %q, want hall_switch", saved.ID)
	}

	got, err := m.Get(saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Meta.Name != "Hall Switch" {
		t.Errorf("name = %q, want Hall Switch", got.Meta.Name)
	}
	if got.Meta.Description != "Mirror the hall switch" {
		t.Errorf("description = %q", got.Meta.Description)
	}
	if !got.Meta.Enabled {
		t.Error("enabled = false, want true")
	}
	if !reflect.DeepEqual(got.Meta.Endpoints, []string{"0x1234/1"}) {
		t.Errorf("endpoints = %v", got.Meta.Endpoints)
	}
	if got.LuaCode != "cluster = 6\n" {
		t.Errorf("lua_code = %q", got.LuaCode)
	}
}

func TestManagerSaveExistingID(t *testing.T) {
	m := newTestManager(t)

	saved, err := m.Save(&Script{ID: "my_script", Meta: ScriptMeta{Name: "My Script"}, LuaCode: `zigbee.log("v1")`})
	if err != nil {
		t.Fatal(err)
	}
	saved.LuaCode = `zigbee.log("v2")`
	if _, err := m.Save(saved); err != nil {
		t.Fatal(err)
	}

	got, err := m.Get("my_script")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.LuaCode, `zigbee.log("v2")`) {
		t.Errorf("lua_code after update = %q", got.LuaCode)
	}
}

func TestManagerListSorted(t *testing.T) {
	m := newTestManager(t)

	for _, name := range []string{"Gamma", "Alpha", "Beta"} {
		if _, err := m.Save(&Script{Meta: ScriptMeta{Name: name}, LuaCode: "cluster = 6"}); err != nil {
			t.Fatal(err)
		}
	}
	scripts, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 3 {
		t.Fatalf("list count = %d, want 3", len(scripts))
	}
	for i, want := range []string{"alpha", "beta", "gamma"} {
		if scripts[i].ID != want {
			t.Errorf("scripts[%d] = %q, want %q", i, scripts[i].ID, want)
		}
	}
}

func TestManagerDelete(t *testing.T) {
	m := newTestManager(t)

	saved, err := m.Save(&Script{Meta: ScriptMeta{Name: "ToDelete"}, LuaCode: "cluster = 6"})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(saved.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(saved.ID); err == nil {
		t.Error("expected error after delete, got nil")
	}
}

func TestManagerRejectsUnsafeIDs(t *testing.T) {
	m := newTestManager(t)

	for _, id := range []string{"", "..", "../x", "a/b", `a\b`} {
		if _, err := m.Get(id); err == nil {
			t.Errorf("Get(%q) succeeded", id)
		}
		if err := m.Delete(id); err == nil {
			t.Errorf("Delete(%q) succeeded", id)
		}
	}
	if _, err := m.Save(&Script{ID: "../escape"}); err == nil {
		t.Error("Save with unsafe id succeeded")
	}
}

func TestManagerUniqueID(t *testing.T) {
	m := newTestManager(t)

	s1, err := m.Save(&Script{Meta: ScriptMeta{Name: "Dup"}, LuaCode: "cluster = 6"})
	if err != nil {
		t.Fatal(err)
	}
	s2, err := m.Save(&Script{Meta: ScriptMeta{Name: "Dup"}, LuaCode: "cluster = 6"})
	if err != nil {
		t.Fatal(err)
	}
	if s1.ID == s2.ID {
		t.Errorf("expected unique IDs, got %q for both", s1.ID)
	}
	if s2.ID != "dup_1" {
		t.Errorf("second id = %q, want dup_1", s2.ID)
	}
}

func TestParseScriptFile(t *testing.T) {
	dir := t.TempDir()
	content := `-- {"name":"Door Light","description":"Light on when the door opens","enabled":true}

cluster = 0x0500
function on_command(cmd)
    zigbee.send(0x2000, 1, 6, "On")
end
`
	path := filepath.Join(dir, "door.lua")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m := &Manager{dir: dir, logger: testLogger()}
	s, err := m.parseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.ID != "door" {
		t.Errorf("id = %q, want door", s.ID)
	}
	if s.Meta.Name != "Door Light" {
		t.Errorf("name = %q, want Door Light", s.Meta.Name)
	}
	if !s.Meta.Enabled {
		t.Error("enabled = false, want true")
	}
	if !strings.HasPrefix(s.LuaCode, "cluster = 0x0500") {
		t.Errorf("lua_code = %q", s.LuaCode)
	}
}

func TestParseScriptWithoutHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bare.lua")
	if err := os.WriteFile(path, []byte("cluster = 6\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := &Manager{dir: dir, logger: testLogger()}
	s, err := m.parseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Meta.Enabled {
		t.Error("script without metadata should be disabled")
	}
	if s.LuaCode != "cluster = 6\n" {
		t.Errorf("lua_code = %q", s.LuaCode)
	}
}

func TestSerializeScript(t *testing.T) {
	content := serializeScript(&Script{
		ID:      "test",
		Meta:    ScriptMeta{Name: "Test", Enabled: true},
		LuaCode: `zigbee.log("hi")`,
	})
	if !strings.HasPrefix(content, `-- {"name":"Test","enabled":true}`+"\n") {
		t.Errorf("metadata line = %q", content)
	}
	if !strings.HasSuffix(content, "zigbee.log(\"hi\")\n") {
		t.Errorf("code not terminated: %q", content)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Bathroom Light", "bathroom_light"},
		{"hello world!", "hello_world"},
		{"", ""},
		{"  spaces  ", "spaces"},
		{"UPPER", "upper"},
	}
	for _, tt := range tests {
		got := slugify(tt.input)
		if got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBindsTo(t *testing.T) {
	all := &Script{}
	if !all.bindsTo("0x0001/1") {
		t.Error("script without filter should bind everywhere")
	}
	one := &Script{Meta: ScriptMeta{Endpoints: []string{"0x1234/2"}}}
	if !one.bindsTo("0x1234/2") || one.bindsTo("0x1234/1") {
		t.Error("filter not applied")
	}
}
