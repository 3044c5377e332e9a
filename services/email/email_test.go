package emailsvc

import (
	"bytes"
	"net/http"
	"net/mail"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/maktaba/core"
)

type reminderLoan struct {
	Title       string
	Author      string
	DueDate     time.Time
	DaysOverdue int64
	Fine        int64
}

func testConfig() *core.Config {
	return &core.Config{
		AppName:          "Maktaba",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Maktaba", Address: "noreply@localhost"},
	}
}

func reminder(to ...mail.Address) *core.EmailMessage {
	return &core.EmailMessage{
		To:           to,
		Subject:      "Overdue books",
		TemplateName: "overdue_reminder",
		TemplateData: struct {
			MemberName string
			Loans      []reminderLoan
		}{
			MemberName: "Amina",
			Loans: []reminderLoan{
				{Title: "Things Fall Apart", Author: "Chinua Achebe", DueDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), DaysOverdue: 3, Fine: 30},
			},
		},
	}
}

func TestConsoleService_SendMessages(t *testing.T) {
	var out bytes.Buffer
	svc := NewConsoleService(testConfig(), &out)

	err := svc.SendMessages(
		reminder(mail.Address{Name: "Amina", Address: "amina@test.cd"}),
		reminder(), // no recipient: skipped
	)
	if err != nil {
		t.Fatalf("SendMessages() failed: %v", err)
	}

	sent := svc.SentMessages()
	if assert.Len(t, sent, 1) {
		assert.Contains(t, sent[0].TextContent, "Hello Amina,")
		assert.Contains(t, sent[0].TextContent, "- Things Fall Apart by Chinua Achebe: due 2024-03-01, 3 day(s) late, fine so far 30")
		assert.Contains(t, sent[0].HTMLContent, "Things Fall Apart")
	}
	assert.Contains(t, out.String(), "Subject: [Maktaba] Overdue books")
	assert.Contains(t, out.String(), `To: "Amina" <amina@test.cd>`)
}

func TestConsoleService_UnknownTemplate(t *testing.T) {
	svc := NewConsoleService(testConfig(), nil)
	err := svc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: "amina@test.cd"}},
		TemplateName: "nope",
	})
	assert.Error(t, err)
	assert.Empty(t, svc.SentMessages())
}

type nopLogger struct{ errors []string }

func (l *nopLogger) Debug(string, ...interface{}) {}
func (l *nopLogger) Info(string, ...interface{})  {}
func (l *nopLogger) Warn(string, ...interface{})  {}
func (l *nopLogger) Error(msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}
func (l *nopLogger) Fatal(string, ...interface{}) {}

func TestSendgridService_SendMessages(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{name: "accepted", statusCode: http.StatusAccepted},
		{name: "rejected", statusCode: http.StatusBadRequest, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logger := new(nopLogger)
			svc := NewSendgridService(testConfig(), logger)

			var reqs []rest.Request
			svc.send = func(req rest.Request) (*rest.Response, error) {
				reqs = append(reqs, req)
				return &rest.Response{StatusCode: tc.statusCode}, nil
			}

			err := svc.SendMessages(reminder(mail.Address{Name: "Amina", Address: "amina@test.cd"}))
			if tc.wantErr {
				assert.Error(t, err)
				assert.Len(t, logger.errors, 1)
			} else {
				assert.NoError(t, err)
				assert.Empty(t, logger.errors)
			}
			if assert.Len(t, reqs, 1) {
				assert.Equal(t, http.MethodPost, string(reqs[0].Method))
				assert.Contains(t, string(reqs[0].Body), `"subject":"[Maktaba] Overdue books"`)
				assert.Contains(t, string(reqs[0].Body), "amina@test.cd")
			}
		})
	}
}
