package email

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSES struct {
	input *ses.SendRawEmailInput
	err   error
}

func (m *mockSES) SendRawEmail(_ context.Context, in *ses.SendRawEmailInput, _ ...func(*ses.Options)) (*ses.SendRawEmailOutput, error) {
	m.input = in
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendRawEmailOutput{MessageId: aws.String("0100017c-abc")}, nil
}

func testMessage() Message {
	return Message{
		From:    "from@example.com",
		To:      "to_1@example.com,to_2@example.com",
		Cc:      "cc@example.com",
		Bcc:     "bcc_1@example.com, bcc_2@example.com",
		ReplyTo: "replyto@example.com",
		Subject: "Libraries invoice feed - monos - 20211001",
		Body:    "--- MIT Libraries--- Alma to SAP Invoice Feed\n",
		Attachments: []Attachment{
			{Filename: "cover_sheets_mono_20211001000000.txt", Content: []byte("a file")},
		},
	}
}

func TestDestinations(t *testing.T) {
	assert.Equal(t, []string{
		"to_1@example.com", "to_2@example.com", "cc@example.com", "bcc_1@example.com", "bcc_2@example.com",
	}, testMessage().Destinations())

	assert.Equal(t, []string{"to@example.com"}, Message{To: "to@example.com"}.Destinations())
}

func TestRaw(t *testing.T) {
	raw, err := testMessage().Raw(time.Date(2021, 10, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, "from@example.com", msg.Header.Get("From"))
	assert.Equal(t, "to_1@example.com,to_2@example.com", msg.Header.Get("To"))
	assert.Equal(t, "cc@example.com", msg.Header.Get("Cc"))
	assert.Equal(t, "replyto@example.com", msg.Header.Get("Reply-To"))
	assert.Empty(t, msg.Header.Get("Bcc"))
	assert.Equal(t, "Libraries invoice feed - monos - 20211001", msg.Header.Get("Subject"))
	assert.NotEmpty(t, msg.Header.Get("Message-ID"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(msg.Body, params["boundary"])
	body, err := mr.NextPart()
	require.NoError(t, err)
	assert.Empty(t, body.FileName())

	attachment, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "cover_sheets_mono_20211001000000.txt", attachment.FileName())
	content, err := io.ReadAll(attachment)
	require.NoError(t, err)
	assert.Equal(t, "YSBmaWxl\r\n", string(content))

	_, err = mr.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteBase64WrapsLines(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, writeBase64(&sb, []byte(strings.Repeat("x", 120))))
	lines := strings.Split(strings.TrimSuffix(sb.String(), "\r\n"), "\r\n")
	require.Len(t, lines, 3)
	assert.Len(t, lines[0], 76)
	assert.Len(t, lines[1], 76)
}

func TestSend(t *testing.T) {
	api := &mockSES{}
	sender := NewWithAPI(log.New(io.Discard), api)

	id, err := sender.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, "0100017c-abc", id)
	assert.Equal(t, "from@example.com", aws.ToString(api.input.Source))
	assert.Len(t, api.input.Destinations, 5)
	assert.Contains(t, string(api.input.RawMessage.Data), "Subject: Libraries invoice feed - monos - 20211001")
}

func TestSendErrors(t *testing.T) {
	api := &mockSES{err: errors.New("MessageRejected")}
	sender := NewWithAPI(log.New(io.Discard), api)

	_, err := sender.Send(context.Background(), testMessage())
	assert.ErrorContains(t, err, "failed to send email")

	_, err = sender.Send(context.Background(), Message{From: "from@example.com", Subject: "nobody"})
	assert.ErrorContains(t, err, "has no recipients")
}
