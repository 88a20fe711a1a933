package llm

import (
	"context"
	"strings"
	"unicode"
)

type Label string

const (
	LabelYes     Label = "yes"
	LabelNo      Label = "no"
	LabelUnknown Label = "unknown"
)

const classifierPrompt = "Ты классификатор вопросов. На вопрос пользователя ответь ровно одним словом: " +
	"\"да\", \"нет\" или \"неизвестно\". Никаких пояснений."

type completer interface {
	Complete(ctx context.Context, messages []Message) (Response, error)
}

// Classifier answers yes/no questions with a single label.
type Classifier struct {
	gw completer
}

func NewClassifier(gw completer) *Classifier {
	return &Classifier{gw: gw}
}

func (c *Classifier) Classify(ctx context.Context, question string) (Label, error) {
	resp, err := c.gw.Complete(ctx, []Message{
		{Role: RoleSystem, Content: classifierPrompt},
		{Role: RoleUser, Content: question},
	})
	if err != nil {
		return LabelUnknown, err
	}
	return ParseLabel(resp.Content), nil
}

// ParseLabel maps the first word of a model answer to a label.
func ParseLabel(s string) Label {
	word := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(word) == 0 {
		return LabelUnknown
	}
	switch word[0] {
	case "да", "yes", "верно", "правда", "true":
		return LabelYes
	case "нет", "no", "неверно", "неправда", "false":
		return LabelNo
	default:
		return LabelUnknown
	}
}
