package notification

// Case selects the template a message is rendered with.
type Case string

// CaseCreateAccount is the welcome mail sent after sign-up. Its context
// carries "firstname" and "lastname".
const CaseCreateAccount Case = "create_account"

// Message is one mail to deliver.
type Message struct {
	// ID identifies the message for deduplication. Two messages with the
	// same ID are delivered at most once.
	ID        string
	Addressee string
	Subject   Case
	Context   map[string]string
}

// MessageID builds a deduplication ID for a case and a subject key, such
// as the user ID.
func MessageID(c Case, key string) string {
	return string(c) + ":" + key
}
