package adapter

import (
	"fmt"
	"net/smtp"
	"strings"
)

// dialRealSMTP connects to addr using the standard library's SMTP
// client, satisfying SMTPClient.
func dialRealSMTP(addr string) (SMTPClient, error) {
	return smtp.Dial(addr)
}

// hostOnly strips a ":port" suffix from an "host:port" address, since
// smtp.PlainAuth wants the bare hostname.
func hostOnly(addr string) string {
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// buildMIMEMessage assembles a minimal RFC 5322 message, using a
// multipart/alternative body when an HTML variant is present.
func buildMIMEMessage(to, from, subject, textBody, htmlBody string, hasHTML bool) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\n")

	if !hasHTML {
		b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
		b.WriteString(textBody)
		return []byte(b.String())
	}

	const boundary = "formasur-boundary"
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(textBody)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "--%s--\r\n", boundary)

	return []byte(b.String())
}
