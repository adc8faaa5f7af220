package email

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Message is a rendered email with the letter attached as a text file.
type Message struct {
	To             string
	Subject        string
	Body           string
	AttachmentName string
	Attachment     []byte
}

// Letter is a drafted claim letter addressed to its passenger.
type Letter struct {
	SessionID    string
	To           string
	FlightNumber string
	FileName     string
	Text         string
}

type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

type Sender struct {
	log       *zap.Logger
	transport Transport
}

func NewSender(log *zap.Logger, transport Transport) *Sender {
	if log == nil {
		log = zap.NewNop()
	}
	if transport == nil {
		transport = NewLogTransport(log)
	}
	return &Sender{log: log, transport: transport}
}

func (s *Sender) Send(ctx context.Context, letter Letter) error {
	const op = "email.Send"

	msg, err := Render(letter)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.transport.Deliver(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("claim letter sent",
		zap.String("op", op),
		zap.String("session_id", letter.SessionID),
		zap.String("flight_number", letter.FlightNumber),
	)
	return nil
}

func Render(letter Letter) (Message, error) {
	if letter.To == "" {
		return Message{}, errors.New("letter has no recipient")
	}
	if letter.Text == "" {
		return Message{}, errors.New("letter is empty")
	}

	name := letter.FileName
	if name == "" {
		name = fmt.Sprintf("Claim_Letter_%s.txt", letter.FlightNumber)
	}

	return Message{
		To:      letter.To,
		Subject: fmt.Sprintf("Your compensation claim letter for flight %s", letter.FlightNumber),
		Body: fmt.Sprintf("Your claim letter for flight %s is attached.\n\n"+
			"Send it to the airline using the contact details listed under the letter.\n", letter.FlightNumber),
		AttachmentName: name,
		Attachment:     []byte(letter.Text),
	}, nil
}

// LogTransport records deliveries in the log instead of sending them. The
// recipient address and letter text are left out.
type LogTransport struct {
	log *zap.Logger
}

func NewLogTransport(log *zap.Logger) *LogTransport {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogTransport{log: log}
}

func (t *LogTransport) Deliver(_ context.Context, msg Message) error {
	t.log.Info("email delivery (log transport)",
		zap.String("subject", msg.Subject),
		zap.String("attachment", msg.AttachmentName),
		zap.Int("attachment_bytes", len(msg.Attachment)),
	)
	return nil
}
