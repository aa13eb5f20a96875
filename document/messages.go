package document

import (
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/habiliai/docstore/config"
	"github.com/habiliai/docstore/errors"
)

type messageData struct {
	Path     string
	Revision string
	Created  bool
}

type messages struct {
	write, delete, revert *template.Template
}

func newMessages(conf config.MessageTemplates) (*messages, error) {
	parse := func(name, text string) (*template.Template, error) {
		tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Parse(text)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "commit message template %s: %v", name, err)
		}
		return tmpl, nil
	}

	var (
		m   messages
		err error
	)
	if m.write, err = parse("write", conf.Write); err != nil {
		return nil, err
	}
	if m.delete, err = parse("delete", conf.Delete); err != nil {
		return nil, err
	}
	if m.revert, err = parse("revert", conf.Revert); err != nil {
		return nil, err
	}
	return &m, nil
}

func render(tmpl *template.Template, data messageData, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", errors.Wrapf(err, "failed to render commit message")
	}
	return strings.TrimSpace(sb.String()), nil
}
