package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"mime"
	"strings"
	"time"

	"github.com/elskow/users-api/internal/verification"
)

var pinBody = template.Must(template.New("pin").Parse(
	`<p>Your verification code is: <strong>{{.Code}}</strong></p>
<p>{{.Instruction}}</p>
<p>The code expires in {{.Minutes}} minutes.</p>
`))

func subjectFor(purpose verification.Purpose) string {
	if purpose == verification.PurposeRegistration {
		return "Registration verification"
	}
	return "Password recovery"
}

func instructionFor(purpose verification.Purpose) string {
	if purpose == verification.PurposeRegistration {
		return "Use this code to complete your registration."
	}
	return "Enter this code to reset your password."
}

// buildMessage renders an RFC 5322 HTML message carrying the pin.
func buildMessage(from, to, code string, purpose verification.Purpose, validity time.Duration) ([]byte, error) {
	var body bytes.Buffer
	err := pinBody.Execute(&body, struct {
		Code        string
		Instruction string
		Minutes     int
	}{
		Code:        code,
		Instruction: instructionFor(purpose),
		Minutes:     int(validity / time.Minute),
	})
	if err != nil {
		return nil, fmt.Errorf("render pin email: %w", err)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subjectFor(purpose)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body.String(), "\n", "\r\n"))
	return []byte(msg.String()), nil
}
