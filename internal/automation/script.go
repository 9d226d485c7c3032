//go:build !no_automation

package automation

// ScriptMeta holds user-editable metadata for a script.
type ScriptMeta struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
	// Endpoints limits the script to these endpoint keys ("0x1234/1").
	// Empty binds it to every endpoint that declares the script's cluster.
	Endpoints []string `json:"endpoints,omitempty"`
}

// Script represents a single automation script stored on disk.
type Script struct {
	ID       string     `json:"id"` // filename stem (no .lua)
	Meta     ScriptMeta `json:"meta"`
	LuaCode  string     `json:"lua_code"` // raw Lua source (without header)
	FilePath string     `json:"-"`        // absolute path on disk
}

// bindsTo reports whether the script's endpoint filter admits key.
func (s *Script) bindsTo(key string) bool {
	if len(s.Meta.Endpoints) == 0 {
		return true
	}
	for _, k := range s.Meta.Endpoints {
		if k == key {
			return true
		}
	}
	return false
}
