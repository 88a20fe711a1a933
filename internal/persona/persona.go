package persona

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Replies are the canned texts the bot sends without asking the model.
type Replies struct {
	PrivateRefusal string `yaml:"private_refusal"`
	Mention        string `yaml:"mention"`
	Thinking       string `yaml:"thinking"`
	ForgetOK       string `yaml:"forget_ok"`
	ForgetDenied   string `yaml:"forget_denied"`
	ErrorPrefix    string `yaml:"error_prefix"`
	NoText         string `yaml:"no_text"`
	Yes            string `yaml:"yes"`
	No             string `yaml:"no"`
	Unknown        string `yaml:"unknown"`
}

// Stickers maps reply kinds to Telegram sticker file IDs.
type Stickers struct {
	Mention string `yaml:"mention"`
	Yes     string `yaml:"yes"`
	No      string `yaml:"no"`
	Unknown string `yaml:"unknown"`
}

// Persona is the bot character: instruction, trigger words and canned replies.
type Persona struct {
	Name         string   `yaml:"name"`
	Instruction  string   `yaml:"instruction"`
	Triggers     []string `yaml:"triggers"`
	YesNoMarkers []string `yaml:"yes_no_markers"`
	ForgetPhrase string   `yaml:"forget_phrase"`
	Replies      Replies  `yaml:"replies"`
	Stickers     Stickers `yaml:"stickers"`
}

func Default() *Persona {
	return &Persona{
		Name: "Гоша",
		Instruction: "Ты — Георгий, для друзей просто Гоша. Ты участник группового чата: отвечаешь коротко, " +
			"по делу и с лёгкой иронией. Если тебе присылают задачу, решай её пошагово и давай итоговый ответ. " +
			"Формулы записывай в LaTeX между знаками $.",
		Triggers:     []string{"гош", "георг", "жора"},
		YesNoMarkers: []string{"правда ли", "верно ли", "да или нет", "это правда"},
		ForgetPhrase: "георгий приказываю забыть все",
		Replies: Replies{
			PrivateRefusal: "Я общаюсь только в групповых чатах.",
			Mention:        "Я тут.",
			Thinking:       "Обрабатываю задачу...",
			ForgetOK:       "ок",
			ForgetDenied:   "Ты мне не начальник.",
			ErrorPrefix:    "Ошибка при обращении к модели: ",
			NoText:         "Не удалось распознать текст на изображении.",
			Yes:            "Да.",
			No:             "Нет.",
			Unknown:        "Кто ж его знает.",
		},
	}
}

// Load reads a persona file and fills unset fields from Default. A missing file yields Default.
func Load(path string) (*Persona, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return nil, fmt.Errorf("read persona %s: %w", path, err)
	}
	var fromFile Persona
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("decode persona %s: %w", path, err)
	}
	merge(p, &fromFile)
	return p, nil
}

func merge(dst, src *Persona) {
	setStr(&dst.Name, src.Name)
	setStr(&dst.Instruction, src.Instruction)
	setStr(&dst.ForgetPhrase, src.ForgetPhrase)
	if len(src.Triggers) > 0 {
		dst.Triggers = src.Triggers
	}
	if len(src.YesNoMarkers) > 0 {
		dst.YesNoMarkers = src.YesNoMarkers
	}

	r := &dst.Replies
	setStr(&r.PrivateRefusal, src.Replies.PrivateRefusal)
	setStr(&r.Mention, src.Replies.Mention)
	setStr(&r.Thinking, src.Replies.Thinking)
	setStr(&r.ForgetOK, src.Replies.ForgetOK)
	setStr(&r.ForgetDenied, src.Replies.ForgetDenied)
	setStr(&r.ErrorPrefix, src.Replies.ErrorPrefix)
	setStr(&r.NoText, src.Replies.NoText)
	setStr(&r.Yes, src.Replies.Yes)
	setStr(&r.No, src.Replies.No)
	setStr(&r.Unknown, src.Replies.Unknown)

	s := &dst.Stickers
	setStr(&s.Mention, src.Stickers.Mention)
	setStr(&s.Yes, src.Stickers.Yes)
	setStr(&s.No, src.Stickers.No)
	setStr(&s.Unknown, src.Stickers.Unknown)
}

func setStr(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

// IsForgetPhrase reports a case-insensitive exact match with the forget phrase.
func (p *Persona) IsForgetPhrase(text string) bool {
	if p == nil || strings.TrimSpace(p.ForgetPhrase) == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(p.ForgetPhrase))
}
