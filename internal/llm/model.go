package llm

import "strings"

// ModelRef is a provider model identifier with an optional revision
// written after a colon, e.g. "deepseek-ai/DeepSeek-V3.1-Terminus:novita".
type ModelRef struct {
	Name     string
	Revision string
}

func ParseModelRef(s string) ModelRef {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return ModelRef{Name: strings.TrimSuffix(s, ":")}
	}
	return ModelRef{Name: s[:i], Revision: s[i+1:]}
}

func (m ModelRef) String() string {
	if m.Revision == "" {
		return m.Name
	}
	return m.Name + ":" + m.Revision
}
