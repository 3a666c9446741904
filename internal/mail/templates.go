package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const VerificationSubject = "Для завершения регистрации подтвердите свой email"

type verificationData struct {
	Subject          string
	URL              string
	ExpiresInMinutes int
}

// Verification renders the email carrying the verification link.
func Verification(to, link string, expiresIn time.Duration) (Message, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return Message{}, ErrNoRecipients
	}

	var body bytes.Buffer
	err := templates.ExecuteTemplate(&body, "verification.html", verificationData{
		Subject:          VerificationSubject,
		URL:              link,
		ExpiresInMinutes: int(expiresIn.Minutes()),
	})
	if err != nil {
		return Message{}, fmt.Errorf("render verification email: %w", err)
	}

	return Message{To: []string{to}, Subject: VerificationSubject, HTML: body.String()}, nil
}
