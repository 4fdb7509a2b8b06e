package utils

import (
	"fmt"
	"html"
	"log"
	"net/smtp"
	"sort"
	"strings"

	"github.com/renthive/renthive-backend/internal/config"
)

const companyName = "RentHive"

// Common header template for all emails
const emailHeader = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; margin: 0; padding: 0;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<div style="text-align: center; margin-bottom: 30px; background-color: #f9f9f9; padding: 20px;">
			<h2 style="color: #F5A623; margin: 0;">RentHive</h2>
		</div>
`

// Common footer template for all emails
const emailFooter = `
		<div style="text-align: center; margin-top: 20px; font-size: 12px; color: #666; border-top: 1px solid #eee; padding-top: 20px;">
			<p>This is an automated message, please do not reply to this email.</p>
			<p>© RentHive. All rights reserved.</p>
		</div>
	</div>
</body>
</html>
`

const notificationTemplate = `
		<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
			<h1 style="color: #2c3e50; text-align: center;">%s</h1>
			<p>Hello %s,</p>
			<p>%s</p>
			<div style="text-align: center; margin: 30px 0;">
				<a href="%s" style="background-color: #F5A623; color: white; padding: 12px 25px; text-decoration: none; border-radius: 5px;">Open RentHive</a>
			</div>
			<p>Best regards,<br>The RentHive Team</p>
		</div>`

// Mailer sends HTML notification emails over SMTP.
type Mailer struct {
	from     string
	password string
	host     string
	port     string
	baseURL  string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg config.Mail, baseURL string) *Mailer {
	return &Mailer{
		from:     cfg.From,
		password: cfg.Password,
		host:     cfg.Host,
		port:     cfg.Port,
		baseURL:  strings.TrimRight(baseURL, "/"),
		send:     smtp.SendMail,
	}
}

func (m *Mailer) Enabled() bool {
	return m != nil && m.from != "" && m.password != "" && m.host != "" && m.port != ""
}

func (m *Mailer) buildMessage(to []string, subject, body string) []byte {
	headers := map[string]string{
		"From":         fmt.Sprintf("%s <%s>", companyName, m.from),
		"To":           strings.Join(to, ","),
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
		"X-Mailer":     "RentHive-Mailer",
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, headers[k])
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func (m *Mailer) sendEmail(to []string, subject, body string) error {
	if !m.Enabled() {
		return fmt.Errorf("email configuration not set")
	}

	auth := smtp.PlainAuth("", m.from, m.password, m.host)
	if err := m.send(m.host+":"+m.port, auth, m.from, to, m.buildMessage(to, subject, body)); err != nil {
		log.Printf("Failed to send email: %v", err)
		return err
	}

	log.Printf("Successfully sent email to recipients: %v", to)
	return nil
}

// SendNotificationEmail renders a titled notification with a link back to
// path on the web app.
func (m *Mailer) SendNotificationEmail(to, name, title, message, path string) error {
	if name == "" {
		name = "there"
	}
	body := emailHeader + fmt.Sprintf(notificationTemplate,
		html.EscapeString(title),
		html.EscapeString(name),
		html.EscapeString(message),
		m.baseURL+path,
	) + emailFooter

	return m.sendEmail([]string{to}, title+" - "+companyName, body)
}
