package adapter

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/smtp"
	"os"
	"path/filepath"
	"text/template"

	domainerrors "github.com/eloym/formasur/internal/domain/errors"
)

// SMTPClient is the subset of *smtp.Client this adapter drives,
// abstracted so tests can inject a fake transport.
type SMTPClient interface {
	Hello(localName string) error
	StartTLS(*tls.Config) error
	Auth(smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// EmailAdapter renders a text (and optional HTML) body template from a
// directory and delivers it over SMTP. Templates are named
// "<template>.txt"/"<template>.html"; subject arrives already rendered
// by the Action Renderer.
type EmailAdapter struct {
	Addr         string
	Username     string
	Password     string
	FromEmail    string
	UseTLS       bool
	TemplatesDir string
	Dial         func(addr string) (SMTPClient, error)
}

// NewEmailAdapter constructs an EmailAdapter using the real net/smtp
// transport.
func NewEmailAdapter(addr, username, password, fromEmail, templatesDir string, useTLS bool) *EmailAdapter {
	return &EmailAdapter{
		Addr:         addr,
		Username:     username,
		Password:     password,
		FromEmail:    fromEmail,
		UseTLS:       useTLS,
		TemplatesDir: templatesDir,
		Dial:         dialRealSMTP,
	}
}

// Send implements Adapter.
func (a *EmailAdapter) Send(ctx context.Context, payload map[string]any) (map[string]any, error) {
	action, _ := payload["action"].(map[string]any)
	ctxData, _ := payload["context"].(map[string]any)
	playbook, _ := payload["playbook"].(string)

	templateName, _ := action["template"].(string)
	if templateName == "" {
		return nil, domainerrors.NewValidationError("template", "email action requires a 'template' field")
	}
	recipient, _ := action["to"].(string)
	if recipient == "" {
		return nil, domainerrors.NewValidationError("to", "email action requires a 'to' field")
	}
	subject, _ := action["subject"].(string)
	if subject == "" {
		subject = fmt.Sprintf("Notification from %s", nonEmpty(playbook, "formasur"))
	}
	from, _ := action["from"].(string)
	if from == "" {
		from = nonEmpty(a.FromEmail, a.Username)
	}

	data := map[string]any{
		"action":   action,
		"context":  ctxData,
		"playbook": playbook,
	}
	if row, ok := ctxData["row"].(map[string]any); ok {
		for k, v := range row {
			data[k] = v
		}
	}

	textBody, err := a.renderTemplate(templateName+".txt", data)
	if err != nil {
		return nil, fmt.Errorf("rendering text body: %w", err)
	}
	htmlBody, htmlErr := a.renderTemplate(templateName+".html", data)
	hasHTML := htmlErr == nil

	message := buildMIMEMessage(recipient, from, subject, textBody, htmlBody, hasHTML)

	client, err := a.Dial(a.Addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to smtp server: %w", err)
	}
	defer client.Close()

	if a.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: hostOnly(a.Addr)}); err != nil {
			return nil, fmt.Errorf("starttls: %w", err)
		}
	}
	if a.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", a.Username, a.Password, hostOnly(a.Addr))); err != nil {
			return nil, fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return nil, fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return nil, fmt.Errorf("rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		return nil, fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message: %w", err)
	}
	if err := client.Quit(); err != nil {
		return nil, fmt.Errorf("quit: %w", err)
	}

	return map[string]any{
		"status":   "sent",
		"subject":  subject,
		"to":       recipient,
		"template": templateName,
	}, nil
}

func (a *EmailAdapter) renderTemplate(name string, data map[string]any) (string, error) {
	path := filepath.Join(a.TemplatesDir, name)
	source, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	tmpl, err := template.New(name).Parse(string(source))
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func nonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
