// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"time"

	gomail "github.com/emersion/go-message/mail"

	"github.com/bcem/outreach/internal/models"
)

// smtpServer is a resolved SMTP submission target.
type smtpServer struct {
	Host     string
	Port     int
	Username string
	Password string
}

// smtpSubmit delivers a composed message. Tests replace it.
var smtpSubmit = submitSMTP

func (s *Service) sendSMTP(ctx context.Context, user *models.User, msg models.OutboundMessage) error {
	c := user.Credential.SMTP
	port := c.Port
	if port == 0 {
		port = s.cfg.DefaultSMTPPort
	}

	var missing []string
	if c.Host == "" {
		missing = append(missing, "host")
	}
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.PasswordEnc == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrSMTPConfigIncomplete, missing)
	}

	password, err := s.vault.Decrypt(c.PasswordEnc)
	if err != nil {
		return fmt.Errorf("decrypt smtp password: %w", err)
	}

	atts, err := loadAttachments(s.cfg.UploadsDir, msg.Attachments)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	fromName := c.FromName
	if fromName == "" {
		fromName = s.cfg.DefaultFromName
	}
	from := &gomail.Address{Name: fromName, Address: c.Username}

	raw, err := compose(from, msg, atts)
	if err != nil {
		return fmt.Errorf("%w: compose message: %w", ErrSendFailed, err)
	}

	rcpt := make([]string, 0, 1+len(msg.CC)+len(msg.BCC))
	rcpt = append(rcpt, msg.To)
	rcpt = append(rcpt, msg.CC...)
	rcpt = append(rcpt, msg.BCC...)

	server := smtpServer{Host: c.Host, Port: port, Username: c.Username, Password: password}
	if err := smtpSubmit(ctx, server, c.Username, rcpt, raw); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	slog.Info("email sent", "user_id", user.ID, "provider", models.ProviderSMTP, "host", c.Host, "attachments", len(atts))
	return nil
}

// compose renders msg as multipart/mixed with a text/html alternative and
// any attachments. Bcc recipients are left out of the headers.
func compose(from *gomail.Address, msg models.OutboundMessage, atts []models.Attachment) ([]byte, error) {
	htmlBody, textBody := bodies(msg)

	var h gomail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*gomail.Address{from})
	h.SetAddressList("To", addressList(msg.To))
	if len(msg.CC) > 0 {
		h.SetAddressList("Cc", addressList(msg.CC...))
	}
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := gomail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	alt, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}
	if err := writeInline(alt, "text/plain", textBody); err != nil {
		return nil, err
	}
	if err := writeInline(alt, "text/html", htmlBody); err != nil {
		return nil, err
	}
	if err := alt.Close(); err != nil {
		return nil, err
	}

	for _, a := range atts {
		var ah gomail.AttachmentHeader
		ah.Set("Content-Type", a.ContentType)
		ah.SetFilename(a.Filename)
		ah.Set("Content-Transfer-Encoding", "base64")
		w, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(a.Content); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeInline(iw *gomail.InlineWriter, contentType, body string) error {
	var ih gomail.InlineHeader
	ih.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	ih.Set("Content-Transfer-Encoding", "quoted-printable")
	w, err := iw.CreatePart(ih)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, body); err != nil {
		return err
	}
	return w.Close()
}

func addressList(addrs ...string) []*gomail.Address {
	out := make([]*gomail.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, &gomail.Address{Address: a})
	}
	return out
}

// submitSMTP connects with implicit TLS on port 465 and upgrades with
// STARTTLS otherwise, then authenticates and submits msg.
func submitSMTP(ctx context.Context, server smtpServer, from string, rcpt []string, msg []byte) error {
	addr := net.JoinHostPort(server.Host, strconv.Itoa(server.Port))
	tlsConfig := &tls.Config{ServerName: server.Host, MinVersion: tls.VersionTLS12}

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	var conn net.Conn
	var err error
	if server.Port == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, server.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if server.Port != 465 {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return fmt.Errorf("smtp server %s does not offer STARTTLS", addr)
		}
		if err := c.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if err := c.Auth(smtp.PlainAuth("", server.Username, server.Password, server.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, r := range rcpt {
		if err := c.Rcpt(r); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", r, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp end data: %w", err)
	}
	return c.Quit()
}
