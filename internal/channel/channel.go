package channel

// Channel is an outreach medium shared by dunning steps, conversations and
// the outbound queue.
type Channel string

const (
	WhatsApp Channel = "WHATSAPP"
	SMS      Channel = "SMS"
	Email    Channel = "EMAIL"
)

func (c Channel) Valid() bool {
	switch c {
	case WhatsApp, SMS, Email:
		return true
	}
	return false
}
