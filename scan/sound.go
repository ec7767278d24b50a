package scan

import (
	_ "embed"
	"strings"
)

//go:embed sounds.txt
var builtinSoundList string

// DefaultCustomSoundPrefixes are resource-pack effect prefixes routed to the
// record channel.
var DefaultCustomSoundPrefixes = []string{"ins_", "fx_", "klang_"}

// Sound channels a rewritten playsound command may use.
const (
	ChannelRecord = "record"
	ChannelVoice  = "voice"
)

// SoundRegistry decides which channel a sound effect plays on.
type SoundRegistry struct {
	builtin  map[string]bool
	prefixes []string
}

// NewSoundRegistry returns a registry with the embedded built-in keys plus
// extra, matching custom effects by prefixes.
func NewSoundRegistry(extra []string, prefixes []string) *SoundRegistry {
	r := &SoundRegistry{builtin: make(map[string]bool), prefixes: append([]string(nil), prefixes...)}
	for _, line := range strings.Split(builtinSoundList, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r.builtin[line] = true
	}
	for _, key := range extra {
		r.builtin[key] = true
	}
	return r
}

// Channel returns ChannelRecord for built-in or custom-prefixed effects and
// ChannelVoice otherwise.
func (r *SoundRegistry) Channel(effect string) string {
	if r.builtin[effect] {
		return ChannelRecord
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(effect, p) {
			return ChannelRecord
		}
	}
	return ChannelVoice
}

// Rewrite renders sc as a playsound broadcast executed at every listener
// matched by listenerSelector.
func (r *SoundRegistry) Rewrite(sc SoundCommand, listenerSelector string) string {
	parts := []string{
		"as", listenerSelector, "at", "@s", "run",
		"playsound", sc.Effect, r.Channel(sc.Effect), "@s", "~", "~", "~",
	}
	parts = append(parts, sc.Trailing...)
	return strings.Join(parts, " ")
}
