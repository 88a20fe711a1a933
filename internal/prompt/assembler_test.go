package prompt

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosha-bot/internal/history"
	"gosha-bot/internal/llm"
	"gosha-bot/internal/persona"
)

func newAssembler(budget int) *Assembler {
	return &Assembler{
		Instruction:     "Ты Гоша. " + strings.Repeat("инструкция ", 30),
		HistoryLimit:    20,
		BudgetChars:     budget,
		SystemMaxChars:  200,
		MessageMaxChars: 150,
		MinSystemChars:  16,
		Truncation:      DefaultTruncation(),
	}
}

func TestAssemble_EmptyHistory(t *testing.T) {
	a := newAssembler(6000)
	out := a.Assemble(nil, history.User("", "сколько будет 2+2?"), nil)
	require.Len(t, out, 2)
	assert.Equal(t, llm.RoleSystem, out[0].Role)
	assert.Equal(t, "сколько будет 2+2?", out[1].Content)
	assert.Equal(t, 200, count(out[0].Content))
	assert.True(t, strings.HasPrefix(out[0].Content, "Ты Гоша."), "system keeps its head")
}

func TestAssemble_WindowAndLabels(t *testing.T) {
	a := newAssembler(0)
	a.HistoryLimit = 3
	hist := []history.Message{
		history.User("Аня", "первое"),
		history.Assistant("ответ"),
		history.User("Боря", "второе"),
	}
	out := a.Assemble(hist, history.User("Аня", "третье"), nil)
	require.Len(t, out, 4)
	assert.Equal(t, "ответ", out[1].Content)
	assert.Equal(t, "Боря: второе", out[2].Content)
	assert.Equal(t, "Аня: третье", out[3].Content)
}

func TestAssemble_MessageTruncationKeepsTail(t *testing.T) {
	a := newAssembler(0)
	long := strings.Repeat("а", 400) + "КОНЕЦ"
	out := a.Assemble(nil, history.User("", long), nil)
	assert.Equal(t, 150, count(out[1].Content))
	assert.True(t, strings.HasSuffix(out[1].Content, "КОНЕЦ"))
}

func TestAssemble_LabelCountsTowardMessageLimit(t *testing.T) {
	a := newAssembler(0)
	long := strings.Repeat("а", 400) + "КОНЕЦ"
	out := a.Assemble(nil, history.User("Аня", long), nil)
	assert.Equal(t, 150, count(out[1].Content))
	assert.True(t, strings.HasPrefix(out[1].Content, "Аня: "))
	assert.True(t, strings.HasSuffix(out[1].Content, "КОНЕЦ"))

	a.MessageMaxChars = 3
	out = a.Assemble(nil, history.User("Аня", "текст"), nil)
	assert.Equal(t, "Аня", out[1].Content)
}

func TestAssemble_ConfigurablePolicy(t *testing.T) {
	a := newAssembler(0)
	a.Truncation = ParseTruncation(map[string]string{"system": "tail", "user": "head", "assistant": "bogus"})
	assert.Equal(t, KeepTail, a.Truncation[history.RoleSystem])
	assert.Equal(t, KeepTail, a.Truncation[history.RoleAssistant])

	out := a.Assemble(nil, history.User("", "НАЧАЛО"+strings.Repeat("я", 400)), nil)
	assert.True(t, strings.HasPrefix(out[1].Content, "НАЧАЛО"))
	assert.False(t, strings.HasPrefix(out[0].Content, "Ты Гоша."))
}

func TestAssemble_PersonaAfterSystemAndDroppedAfterHistory(t *testing.T) {
	a := newAssembler(0)
	profile := &persona.Profile{Username: "anya", Fragment: "Аня любит котиков."}
	hist := []history.Message{history.User("Аня", strings.Repeat("x", 100))}
	next := history.User("Аня", "привет")

	out := a.Assemble(hist, next, profile)
	require.Len(t, out, 4)
	assert.Equal(t, llm.RoleSystem, out[1].Role)
	assert.Equal(t, profile.Fragment, out[1].Content)

	// Budget fits system + fragment + next, but not the old message.
	a.BudgetChars = 200 + count(profile.Fragment) + count("Аня: привет")
	out = a.Assemble(hist, next, profile)
	require.Len(t, out, 3)
	assert.Equal(t, profile.Fragment, out[1].Content)
	assert.Equal(t, "Аня: привет", out[2].Content)

	// One char less: the fragment goes before the incoming message.
	a.BudgetChars--
	out = a.Assemble(hist, next, profile)
	require.Len(t, out, 2)
	assert.Equal(t, "Аня: привет", out[1].Content)
}

func TestAssemble_HalvesInstructionWhenNothingFits(t *testing.T) {
	a := newAssembler(60)
	out := a.Assemble(nil, history.User("", strings.Repeat("b", 30)), nil)
	assert.LessOrEqual(t, Size(out), 60)
	assert.Equal(t, llm.RoleSystem, out[0].Role)
	require.Len(t, out, 2, "a shorter instruction leaves room for the question")
}

func TestAssemble_BudgetBelowFloor(t *testing.T) {
	a := newAssembler(5)
	out := a.Assemble([]history.Message{history.Assistant("old")}, history.User("", "new"), nil)
	require.Len(t, out, 1)
	assert.Equal(t, llm.RoleSystem, out[0].Role)
	assert.Equal(t, 16, count(out[0].Content))
}

func TestAssemble_BudgetBoundHolds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	words := []string{"гоша", "задача", "x^2", "ответ", "почему", "🙂", "интеграл", "$\\frac{1}{2}$"}
	randText := func() string {
		n := rng.Intn(80)
		parts := make([]string, n)
		for i := range parts {
			parts[i] = words[rng.Intn(len(words))]
		}
		return strings.Join(parts, " ")
	}

	for i := 0; i < 300; i++ {
		a := newAssembler(rng.Intn(1200))
		a.HistoryLimit = 1 + rng.Intn(30)
		var hist []history.Message
		for j := rng.Intn(40); j > 0; j-- {
			if rng.Intn(2) == 0 {
				hist = append(hist, history.User("u", randText()))
			} else {
				hist = append(hist, history.Assistant(randText()))
			}
		}
		var profile *persona.Profile
		if rng.Intn(2) == 0 {
			profile = &persona.Profile{Fragment: randText()}
		}

		out := a.Assemble(hist, history.User("u", randText()), profile)
		require.NotEmpty(t, out)
		assert.Equal(t, llm.RoleSystem, out[0].Role)
		if a.BudgetChars > 0 && Size(out) > a.BudgetChars {
			assert.Len(t, out, 1, "only the system message may exceed the budget")
			assert.LessOrEqual(t, count(out[0].Content), a.MinSystemChars)
		}
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "абв", Truncate("абвгд", 3, KeepHead))
	assert.Equal(t, "вгд", Truncate("абвгд", 3, KeepTail))
	assert.Equal(t, "абвгд", Truncate("абвгд", 0, KeepTail))
	assert.Equal(t, "", Truncate("", 3, KeepHead))
}
