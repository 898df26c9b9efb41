package utils

import (
	"fmt"
	"net/smtp"
	"os"
	"time"
)

func SendEmail(to, subject, body string) error {
	from := os.Getenv("SMTP_EMAIL")
	pass := os.Getenv("SMTP_PASSWORD")

	// Headers: hỗ trợ UTF-8 & HTML
	msg := ""
	msg += "MIME-Version: 1.0\r\n"
	msg += "Content-Type: text/html; charset=\"UTF-8\"\r\n"
	msg += fmt.Sprintf("From: %s\r\n", from)
	msg += fmt.Sprintf("To: %s\r\n", to)
	msg += fmt.Sprintf("Subject: %s\r\n", subject)
	msg += "\r\n" + body

	err := smtp.SendMail(
		"smtp.gmail.com:587",
		smtp.PlainAuth("", from, pass, "smtp.gmail.com"),
		from,
		[]string{to},
		[]byte(msg),
	)

	if err != nil {
		return fmt.Errorf("gửi email thất bại: %v", err)
	}
	return nil
}

// NotifyNewAssignment báo cho học sinh khi giáo viên giao bài tập mới.
func NotifyNewAssignment(to, subjectName, assignmentName string, due time.Time) error {
	subject := fmt.Sprintf("Bài tập mới: %s", assignmentName)
	body := fmt.Sprintf(
		"<p>Bạn vừa được giao bài tập <b>%s</b> trong môn <b>%s</b>.</p><p>Hạn nộp: %s</p>",
		assignmentName, subjectName, due.Format("02/01/2006 15:04"),
	)
	return SendEmail(to, subject, body)
}
