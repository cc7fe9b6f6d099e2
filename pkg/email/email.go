package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Attachment is a file attached to a message.
type Attachment struct {
	Filename string
	Content  []byte
}

// Message is an outgoing email. To, Cc and Bcc may each hold several
// comma-separated addresses.
type Message struct {
	From        string
	To          string
	Cc          string
	Bcc         string
	ReplyTo     string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Destinations returns every recipient address, To first, then Cc and Bcc.
func (m Message) Destinations() []string {
	var out []string
	for _, field := range []string{m.To, m.Cc, m.Bcc} {
		if field == "" {
			continue
		}
		for _, addr := range strings.Split(field, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				out = append(out, addr)
			}
		}
	}
	return out
}

// Raw renders the message as MIME. Bcc recipients are not written to the
// headers.
func (m Message) Raw(now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	headers := []struct{ key, value string }{
		{"From", m.From},
		{"To", m.To},
		{"Cc", m.Cc},
		{"Reply-To", m.ReplyTo},
		{"Subject", mime.QEncoding.Encode("utf-8", m.Subject)},
		{"Date", now.Format(time.RFC1123Z)},
		{"Message-ID", fmt.Sprintf("<%s@llama>", uuid.NewString())},
		{"MIME-Version", "1.0"},
		{"Content-Type", "multipart/mixed; boundary=" + mw.Boundary()},
	}
	for _, h := range headers {
		if h.value != "" {
			fmt.Fprintf(&buf, "%s: %s\r\n", h.key, h.value)
		}
	}
	buf.WriteString("\r\n")

	if m.Body != "" {
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"text/plain; charset=\"utf-8\""},
			"Content-Transfer-Encoding": {"base64"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create body part: %w", err)
		}
		if err := writeBase64(part, []byte(m.Body)); err != nil {
			return nil, err
		}
	}
	for _, a := range m.Attachments {
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {mimeType(a.Filename)},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename})},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment %s: %w", a.Filename, err)
		}
		if err := writeBase64(part, a.Content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}
	return buf.Bytes(), nil
}

func mimeType(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".txt"):
		return "text/plain; charset=\"utf-8\""
	case strings.HasSuffix(filename, ".htm"), strings.HasSuffix(filename, ".html"):
		return "text/html; charset=\"utf-8\""
	case strings.HasSuffix(filename, ".xml"):
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}

// writeBase64 writes content base64 encoded in 76 column lines.
func writeBase64(w io.Writer, content []byte) error {
	encoded := base64.StdEncoding.EncodeToString(content)
	for len(encoded) > 76 {
		if _, err := fmt.Fprintf(w, "%s\r\n", encoded[:76]); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := fmt.Fprintf(w, "%s\r\n", encoded)
	return err
}

// API is the subset of the SES client used here.
type API interface {
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

// Sender delivers messages through SES.
type Sender struct {
	api    API
	logger *log.Logger
	now    func() time.Time
}

// New creates a Sender backed by the AWS SES client for region.
func New(ctx context.Context, logger *log.Logger, region string) (*Sender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewWithAPI(logger, ses.NewFromConfig(cfg)), nil
}

// NewWithAPI wraps an existing SES API implementation.
func NewWithAPI(logger *log.Logger, api API) *Sender {
	return &Sender{api: api, logger: logger, now: time.Now}
}

// Send delivers m and returns the SES message id.
func (s *Sender) Send(ctx context.Context, m Message) (string, error) {
	destinations := m.Destinations()
	if len(destinations) == 0 {
		return "", fmt.Errorf("email %q has no recipients", m.Subject)
	}
	raw, err := m.Raw(s.now())
	if err != nil {
		return "", err
	}
	out, err := s.api.SendRawEmail(ctx, &ses.SendRawEmailInput{
		Source:       aws.String(m.From),
		Destinations: destinations,
		RawMessage:   &types.RawMessage{Data: raw},
	})
	if err != nil {
		return "", fmt.Errorf("failed to send email %q: %w", m.Subject, err)
	}
	id := aws.ToString(out.MessageId)
	s.logger.Debug("email sent", "subject", m.Subject, "recipients", len(destinations), "message_id", id)
	return id, nil
}
