// Package email sends transactional mail over SMTP.
package email

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host     string
	port     string
	from     string
	sendMail sendMailFunc
	logger   *zap.Logger
}

// NewService creates a new email service
func NewService(host, port, from string, logger *zap.Logger) *Service {
	return &Service{
		host:     host,
		port:     port,
		from:     from,
		sendMail: smtp.SendMail,
		logger:   logger.Named("email"),
	}
}

// SendOrderConfirmation sends an order confirmation email
func (s *Service) SendOrderConfirmation(ctx context.Context, c Confirmation) error {
	if c.To == "" {
		return ErrNoRecipient
	}
	body, err := BuildOrderConfirmationBody(c)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Order confirmation %s", c.OrderNumber)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.send(c.To, subject, body); err != nil {
		return fmt.Errorf("send order confirmation: %w", err)
	}
	s.logger.Info("order confirmation sent", zap.String("order_number", c.OrderNumber))
	return nil
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.sendMail(addr, nil, s.from, []string{to}, []byte(msg))
}
