package prompt

import (
	"unicode/utf8"

	"gosha-bot/internal/history"
	"gosha-bot/internal/llm"
	"gosha-bot/internal/persona"
)

// Policy selects which end of an over-long text survives truncation.
type Policy string

const (
	// KeepHead keeps the beginning of the text.
	KeepHead Policy = "head"
	// KeepTail keeps the end of the text.
	KeepTail Policy = "tail"
)

// Assembler builds the bounded message list sent to the provider.
type Assembler struct {
	Instruction     string
	HistoryLimit    int
	BudgetChars     int
	SystemMaxChars  int
	MessageMaxChars int
	MinSystemChars  int
	Truncation      map[string]Policy
}

// DefaultTruncation keeps the head of instructions and the tail of chat messages.
func DefaultTruncation() map[string]Policy {
	return map[string]Policy{
		history.RoleSystem:    KeepHead,
		history.RoleUser:      KeepTail,
		history.RoleAssistant: KeepTail,
	}
}

// ParseTruncation converts a role→policy map from configuration. Unknown
// policies fall back to the defaults for that role.
func ParseTruncation(m map[string]string) map[string]Policy {
	out := DefaultTruncation()
	for role, v := range m {
		switch p := Policy(v); p {
		case KeepHead, KeepTail:
			out[role] = p
		}
	}
	return out
}

// Assemble returns the instruction, the optional persona fragment and the most
// recent history plus next, fitted into BudgetChars. Oldest history goes first,
// then the persona fragment. When that is not enough the instruction allowance
// is halved down to MinSystemChars and the fitting restarts; next is dropped
// only at the floor. The result always starts with the system message.
func (a *Assembler) Assemble(hist []history.Message, next history.Message, profile *persona.Profile) []llm.Message {
	window := make([]history.Message, 0, len(hist)+1)
	window = append(window, hist...)
	window = append(window, next)
	if a.HistoryLimit > 0 && len(window) > a.HistoryLimit {
		window = window[len(window)-a.HistoryLimit:]
	}

	rendered := make([]llm.Message, 0, len(window))
	for _, m := range window {
		rendered = append(rendered, a.render(m))
	}

	var fragment *llm.Message
	if profile != nil && profile.Fragment != "" {
		fragment = &llm.Message{Role: llm.RoleSystem, Content: a.truncate(history.RoleSystem, profile.Fragment, a.SystemMaxChars)}
	}

	allowance := a.SystemMaxChars
	if allowance <= 0 {
		allowance = utf8.RuneCountInString(a.Instruction)
	}
	floor := a.MinSystemChars
	if floor < 1 {
		floor = 1
	}
	if allowance < floor {
		allowance = floor
	}

	for {
		system := llm.Message{Role: llm.RoleSystem, Content: a.truncate(history.RoleSystem, a.Instruction, allowance)}
		if out, ok := a.fit(system, fragment, rendered, allowance <= floor); ok {
			return out
		}
		if allowance <= floor {
			return []llm.Message{system}
		}
		allowance /= 2
		if allowance < floor {
			allowance = floor
		}
	}
}

// fit drops messages until the list is within budget. The incoming message is
// only dropped when dropNext is set. It reports false when the list is still
// over budget after all allowed drops.
func (a *Assembler) fit(system llm.Message, fragment *llm.Message, msgs []llm.Message, dropNext bool) ([]llm.Message, bool) {
	total := count(system.Content)
	if fragment != nil {
		total += count(fragment.Content)
	}
	for _, m := range msgs {
		total += count(m.Content)
	}

	// msgs[len-1] is the incoming message; it is dropped only after the fragment.
	start := 0
	for a.over(total) && start < len(msgs)-1 {
		total -= count(msgs[start].Content)
		start++
	}
	if a.over(total) && fragment != nil {
		total -= count(fragment.Content)
		fragment = nil
	}
	if a.over(total) && dropNext && start < len(msgs) {
		total -= count(msgs[start].Content)
		start++
	}
	if a.over(total) {
		return nil, false
	}

	out := make([]llm.Message, 0, len(msgs)-start+2)
	out = append(out, system)
	if fragment != nil {
		out = append(out, *fragment)
	}
	return append(out, msgs[start:]...), true
}

func (a *Assembler) over(total int) bool {
	return a.BudgetChars > 0 && total > a.BudgetChars
}

// render applies MessageMaxChars to the whole rendered text, label included.
func (a *Assembler) render(m history.Message) llm.Message {
	if m.Role != history.RoleUser || m.AuthorLabel == "" {
		return llm.Message{Role: m.Role, Content: a.truncate(m.Role, m.Content, a.MessageMaxChars)}
	}
	prefix := m.AuthorLabel + ": "
	if a.MessageMaxChars <= 0 {
		return llm.Message{Role: m.Role, Content: prefix + m.Content}
	}
	room := a.MessageMaxChars - count(prefix)
	if room <= 0 {
		return llm.Message{Role: m.Role, Content: Truncate(prefix, a.MessageMaxChars, KeepHead)}
	}
	return llm.Message{Role: m.Role, Content: prefix + a.truncate(m.Role, m.Content, room)}
}

func (a *Assembler) truncate(role, s string, limit int) string {
	p, ok := a.Truncation[role]
	if !ok {
		p = DefaultTruncation()[role]
	}
	return Truncate(s, limit, p)
}

// Truncate cuts s to at most limit code points. A non-positive limit disables it.
func Truncate(s string, limit int, p Policy) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	if p == KeepHead {
		return string(r[:limit])
	}
	return string(r[len(r)-limit:])
}

// Size is the character count of a message list.
func Size(msgs []llm.Message) int {
	n := 0
	for _, m := range msgs {
		n += count(m.Content)
	}
	return n
}

func count(s string) int { return utf8.RuneCountInString(s) }
