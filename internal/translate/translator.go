package translate

import (
	"context"
	"errors"
	"strings"
)

const (
	DefaultFrom  = "fr"
	DefaultTo    = "en"
	DefaultModel = "gpt-4o-mini"
)

var (
	ErrEmptyText         = errors.New("translate: text required")
	ErrTranslationFailed = errors.New("translation failed")
)

type Request struct {
	Text string `json:"text"`
	From string `json:"from"`
	To   string `json:"to"`
}

// WithDefaults fills an absent language pair with fr -> en.
func (r Request) WithDefaults() Request {
	if strings.TrimSpace(r.From) == "" {
		r.From = DefaultFrom
	}
	if strings.TrimSpace(r.To) == "" {
		r.To = DefaultTo
	}
	return r
}

type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
}

// EchoTranslator returns the input unchanged. Used when no API key is configured.
type EchoTranslator struct{}

func (EchoTranslator) Translate(_ context.Context, req Request) (string, error) {
	if req.Text == "" {
		return "", ErrEmptyText
	}
	return req.Text, nil
}
