// services/mail_service.go
package services

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/gomail.v2"
)

// Mailer sends transactional emails for membership and payout decisions.
// Sending is best effort; a failed email never rolls back a decision.
type Mailer struct {
	host string
	port int
	user string
	pass string
}

func NewMailer() *Mailer {
	port := 2525
	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		fmt.Sscanf(portStr, "%d", &port)
	}
	return &Mailer{
		host: os.Getenv("SMTP_HOST"),
		port: port,
		user: os.Getenv("SMTP_USER"),
		pass: os.Getenv("SMTP_PASS"),
	}
}

func (m *Mailer) send(to, subject, body string) {
	if m.host == "" || to == "" {
		return
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.user)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	d := gomail.NewDialer(m.host, m.port, m.user, m.pass)
	if err := d.DialAndSend(msg); err != nil {
		log.Printf("Failed to send email to %s: %v", to, err)
	}
}

// SendPayoutDecision notifies the requester their payout was settled.
func (m *Mailer) SendPayoutDecision(to, name string, amount int64, accepted bool, reason string) {
	subject := "Your payout request has been accepted"
	body := fmt.Sprintf("Dear %s,\n\nYour payout request for %d coins has been accepted and is being processed.\n\nBest regards,\nPony Team", name, amount)
	if !accepted {
		subject = "Your payout request has been declined"
		body = fmt.Sprintf("Dear %s,\n\nYour payout request for %d coins has been declined.\nReason: %s\n\nBest regards,\nPony Team", name, amount, reason)
	}
	m.send(to, subject, body)
}

// SendApplicationDecision notifies an applicant about their join request.
func (m *Mailer) SendApplicationDecision(to, name, agencyName string, accepted bool) {
	subject := "Your agency application was accepted"
	body := fmt.Sprintf("Dear %s,\n\nCongratulations! %s has accepted your application. You are now an active host.\n\nBest regards,\nPony Team", name, agencyName)
	if !accepted {
		subject = "Your agency application was rejected"
		body = fmt.Sprintf("Dear %s,\n\nUnfortunately %s has rejected your application.\n\nBest regards,\nPony Team", name, agencyName)
	}
	m.send(to, subject, body)
}
